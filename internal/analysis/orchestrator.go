// Package analysis runs the session-analysis pipeline: validate eagerly,
// acknowledge the caller, then analyze in the background and write results
// back through the store.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/cognitive"
	"github.com/mindmate-health/mindmate/internal/observability"
	"github.com/mindmate-health/mindmate/internal/scoring"
	"github.com/mindmate-health/mindmate/internal/store"
)

// State of one analysis run. A session not currently being analyzed is idle
// and has no state here; a failed run is re-attempted only by a fresh
// analyze request.
type State string

const (
	StateDispatched State = "dispatched"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Event is published to subscribers on every state change of a session's run.
type Event struct {
	SessionID uuid.UUID `json:"session_id"`
	State     State     `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Ack is returned to the caller as soon as the run is dispatched.
type Ack struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

type Orchestrator struct {
	store        store.Store
	peer         cognitive.Client
	metrics      *observability.Metrics
	historyLimit int
	now          func() time.Time

	mu   sync.Mutex
	subs map[uuid.UUID][]chan Event

	wg sync.WaitGroup
}

func NewOrchestrator(st store.Store, peer cognitive.Client, metrics *observability.Metrics, historyLimit int) *Orchestrator {
	if historyLimit <= 0 {
		historyLimit = 5
	}
	return &Orchestrator{
		store:        st,
		peer:         peer,
		metrics:      metrics,
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
		subs:         make(map[uuid.UUID][]chan Event),
	}
}

// Analyze validates that the session and its patient exist, dispatches the
// async phase and returns immediately. Existence failures surface to the
// caller here; everything after the ack only ever lands in the session row's
// error marker and the logs. Repeated calls for the same session race freely
// and the last write wins.
func (o *Orchestrator) Analyze(ctx context.Context, sessionID uuid.UUID) (Ack, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return Ack{}, err
	}
	patient, err := o.store.GetPatient(ctx, sess.PatientID)
	if err != nil {
		return Ack{}, err
	}

	// Publish before the goroutine starts so subscribers always see the
	// dispatched event ahead of the terminal one.
	o.publish(Event{SessionID: sessionID, State: StateDispatched, At: o.now()})

	o.wg.Add(1)
	go o.run(sess, patient)

	return Ack{
		SessionID: sessionID,
		Status:    "analysis_dispatched",
		Message:   "Analysis started in background. Check back in 60-120 seconds for results.",
	}, nil
}

// Wait blocks until all in-flight runs finish. Used at shutdown and in tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Subscribe returns a channel of state events for one session and a cancel
// function. Events emitted before subscribing are not replayed.
func (o *Orchestrator) Subscribe(sessionID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 8)
	o.mu.Lock()
	o.subs[sessionID] = append(o.subs[sessionID], ch)
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		chans := o.subs[sessionID]
		for i, c := range chans {
			if c == ch {
				o.subs[sessionID] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
		if len(o.subs[sessionID]) == 0 {
			delete(o.subs, sessionID)
		}
	}
	return ch, cancel
}

func (o *Orchestrator) publish(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the pipeline.
		}
	}
}

// run is the async phase. The request that triggered it has already been
// answered, so failures here are recorded into the session row and never
// re-surfaced to the original caller. The triggering request's context is
// deliberately not inherited: cancellation of the HTTP request must not
// cancel a dispatched run.
func (o *Orchestrator) run(sess store.Session, patient store.Patient) {
	defer o.wg.Done()
	ctx := context.Background()

	if o.metrics != nil {
		o.metrics.ActiveAnalyses.Inc()
		defer o.metrics.ActiveAnalyses.Dec()
	}

	result, err := o.callPeer(ctx, sess, patient)
	if err != nil {
		o.fail(ctx, sess.ID, err)
		return
	}

	update, err := buildUpdate(result)
	if err != nil {
		o.fail(ctx, sess.ID, err)
		return
	}

	if err := o.store.UpdateSessionAnalysis(ctx, sess.ID, update); err != nil {
		log.Printf("analysis: session %s: store write failed: %v", sess.ID, err)
		if o.metrics != nil {
			o.metrics.StoreErrors.WithLabelValues("update_session_analysis").Inc()
			o.metrics.AnalysisRuns.WithLabelValues("store_error").Inc()
		}
		o.publish(Event{SessionID: sess.ID, State: StateFailed, Detail: "store write failed", At: o.now()})
		return
	}

	// Session fields are committed before any memory insert is attempted.
	// Per-memory failures are logged and skipped; they never roll back the
	// session update or abort the remaining inserts.
	stored := 0
	for _, item := range result.Memories {
		mem := memoryFromItem(patient.ID, item)
		if _, err := o.store.CreateMemory(ctx, mem); err != nil {
			log.Printf("analysis: session %s: memory %q insert failed: %v", sess.ID, item.Title, err)
			if o.metrics != nil {
				o.metrics.MemoryWrites.WithLabelValues("error").Inc()
			}
			continue
		}
		stored++
		if o.metrics != nil {
			o.metrics.MemoryWrites.WithLabelValues("ok").Inc()
		}
	}

	if o.metrics != nil {
		o.metrics.AnalysisRuns.WithLabelValues("succeeded").Inc()
	}
	log.Printf("analysis: session %s complete, %d/%d memories stored", sess.ID, stored, len(result.Memories))
	o.publish(Event{SessionID: sess.ID, State: StateSucceeded, At: o.now()})
}

func (o *Orchestrator) callPeer(ctx context.Context, sess store.Session, patient store.Patient) (cognitive.AnalyzeResult, error) {
	// Prior sessions only: the session under analysis is excluded from its
	// own history context.
	history, err := o.store.SessionsForPatient(ctx, patient.ID, o.historyLimit+1)
	if err != nil {
		return cognitive.AnalyzeResult{}, fmt.Errorf("fetch session history: %w", err)
	}
	prior := make([]store.Session, 0, o.historyLimit)
	for _, h := range history {
		if h.ID == sess.ID {
			continue
		}
		if len(prior) == o.historyLimit {
			break
		}
		prior = append(prior, h)
	}

	req := cognitive.AnalyzeRequest{
		SessionID:    sess.ID,
		PatientID:    patient.ID,
		Transcript:   sess.Transcript,
		ExerciseType: sess.ExerciseType,
		SessionDate:  sess.SessionDate,
		PatientProfile: cognitive.PatientProfile{
			Name:      patient.Name,
			Age:       cognitive.Age(patient.DOB, o.now()),
			Diagnosis: patient.Diagnosis,
			Interests: patient.Interests,
		},
		PreviousSessions: cognitive.Summarize(prior),
	}

	start := o.now()
	result, err := o.peer.AnalyzeSession(ctx, req)
	if o.metrics != nil {
		o.metrics.ObservePeerRequest("analyze_session", time.Since(start))
	}
	return result, err
}

// buildUpdate recomputes the overall score from the per-test scores instead
// of trusting the peer's own overall field, so every score in the system
// comes from the same aggregation.
func buildUpdate(result cognitive.AnalyzeResult) (store.SessionAnalysis, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return store.SessionAnalysis{}, fmt.Errorf("marshal analysis blob: %w", err)
	}
	var blob map[string]any
	if err := json.Unmarshal(raw, &blob); err != nil {
		return store.SessionAnalysis{}, fmt.Errorf("shape analysis blob: %w", err)
	}

	update := store.SessionAnalysis{
		ExtractedData: blob,
		Scores:        result.CognitiveTestScores,
		NotableEvents: result.NotableEvents,
	}
	if overall, ok := scoring.Overall(result.CognitiveTestScores); ok {
		update.OverallScore = &overall
	}
	return update, nil
}

func memoryFromItem(patientID uuid.UUID, item cognitive.MemoryItem) store.Memory {
	significance := item.SignificanceLevel
	if significance <= 0 {
		significance = 1
	}
	return store.Memory{
		PatientID:         patientID,
		Title:             item.Title,
		Description:       item.Description,
		DateApprox:        item.DateApprox,
		Location:          item.Location,
		PeopleInvolved:    item.PeopleInvolved,
		EmotionalTone:     item.EmotionalTone,
		Tags:              item.Tags,
		SignificanceLevel: significance,
		Embedding:         item.Embedding,
	}
}

// fail writes the error marker into the session and leaves every other field,
// overall_score included, exactly as it was.
func (o *Orchestrator) fail(ctx context.Context, sessionID uuid.UUID, cause error) {
	log.Printf("analysis: session %s failed: %v", sessionID, cause)
	if err := o.store.MarkSessionAnalysisFailed(ctx, sessionID, cause.Error()); err != nil {
		log.Printf("analysis: session %s: failure marker write failed: %v", sessionID, err)
		if o.metrics != nil {
			o.metrics.StoreErrors.WithLabelValues("mark_analysis_failed").Inc()
		}
	}
	if o.metrics != nil {
		o.metrics.AnalysisRuns.WithLabelValues("failed").Inc()
	}
	o.publish(Event{SessionID: sessionID, State: StateFailed, Detail: cause.Error(), At: o.now()})
}
