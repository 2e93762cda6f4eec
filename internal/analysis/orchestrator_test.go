package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/cognitive"
	"github.com/mindmate-health/mindmate/internal/store"
)

func seedSession(t *testing.T, st store.Store, transcript string) (store.Patient, store.Session) {
	t.Helper()
	ctx := context.Background()
	dob := time.Date(1950, 6, 15, 0, 0, 0, 0, time.UTC)
	patient, err := st.CreatePatient(ctx, store.Patient{Name: "Alice Example", DOB: &dob})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	sess, err := st.CreateSession(ctx, store.Session{
		PatientID:  patient.ID,
		Transcript: transcript,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return patient, sess
}

func validResult(memories ...string) cognitive.AnalyzeResult {
	result := cognitive.AnalyzeResult{
		CognitiveTestScores: []store.CognitiveTestScore{
			{Test: "recall", Score: 8, MaxScore: 10},
			{Test: "naming", Score: 5, MaxScore: 10},
		},
		NotableEvents: []string{"mentioned granddaughter by name"},
	}
	for _, title := range memories {
		result.Memories = append(result.Memories, cognitive.MemoryItem{
			Title:       title,
			Description: "extracted during the session",
		})
	}
	return result
}

func TestAnalyzeUnknownSessionFailsEagerly(t *testing.T) {
	st := store.NewInMemoryStore(4)
	peer := &cognitive.MockClient{}
	orch := NewOrchestrator(st, peer, nil, 5)

	_, err := orch.Analyze(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Analyze() error = %v, want ErrNotFound", err)
	}
	orch.Wait()

	if calls := peer.AnalyzeCalls(); len(calls) != 0 {
		t.Fatalf("peer called %d times for unknown session", len(calls))
	}
	memories, _ := st.ListMemories(context.Background())
	if len(memories) != 0 {
		t.Fatalf("unexpected memory writes: %d", len(memories))
	}
}

func TestAnalyzeAckDoesNotWaitForPeer(t *testing.T) {
	st := store.NewInMemoryStore(4)
	release := make(chan struct{})
	peer := &cognitive.MockClient{
		AnalyzeFunc: func(context.Context, cognitive.AnalyzeRequest) (cognitive.AnalyzeResult, error) {
			<-release
			return validResult("Visit to Boston"), nil
		},
	}
	orch := NewOrchestrator(st, peer, nil, 5)
	_, sess := seedSession(t, st, "talked about Boston")

	done := make(chan Ack, 1)
	go func() {
		ack, err := orch.Analyze(context.Background(), sess.ID)
		if err != nil {
			t.Errorf("Analyze() error = %v", err)
		}
		done <- ack
	}()

	select {
	case ack := <-done:
		if ack.SessionID != sess.ID {
			t.Fatalf("ack session = %s, want %s", ack.SessionID, sess.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ack blocked on peer latency")
	}

	close(release)
	orch.Wait()

	updated, err := st.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if updated.OverallScore == nil || *updated.OverallScore != 65.0 {
		t.Fatalf("overall score = %v, want 65.0", updated.OverallScore)
	}
	memories, _ := st.MemoriesForPatient(context.Background(), updated.PatientID)
	if len(memories) != 1 || memories[0].Title != "Visit to Boston" {
		t.Fatalf("memories = %+v, want one titled Visit to Boston", memories)
	}
}

func TestAnalyzePeerFailureWritesMarkerOnly(t *testing.T) {
	st := store.NewInMemoryStore(4)
	peer := &cognitive.MockClient{
		AnalyzeFunc: func(context.Context, cognitive.AnalyzeRequest) (cognitive.AnalyzeResult, error) {
			return cognitive.AnalyzeResult{}, errors.New("cognitive api timeout")
		},
	}
	orch := NewOrchestrator(st, peer, nil, 5)
	_, sess := seedSession(t, st, "transcript")

	// Pre-existing score from an earlier successful run must survive.
	prior := 72.0
	sess.OverallScore = &prior
	if _, err := st.UpdateSession(context.Background(), sess); err != nil {
		t.Fatalf("seed prior score: %v", err)
	}

	if _, err := orch.Analyze(context.Background(), sess.ID); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	orch.Wait()

	updated, _ := st.GetSession(context.Background(), sess.ID)
	if !updated.AnalysisFailed() {
		t.Fatalf("session missing error marker: %+v", updated.AIExtractedData)
	}
	if updated.OverallScore == nil || *updated.OverallScore != 72.0 {
		t.Fatalf("overall score = %v, want prior 72.0 untouched", updated.OverallScore)
	}
}

func TestAnalyzeRejectsMalformedPeerResponse(t *testing.T) {
	st := store.NewInMemoryStore(4)
	peer := &cognitive.MockClient{
		AnalyzeFunc: func(ctx context.Context, req cognitive.AnalyzeRequest) (cognitive.AnalyzeResult, error) {
			// The HTTP client validates before returning; a result with no
			// scores surfaces as an error, never as partial data.
			result := cognitive.AnalyzeResult{}
			if err := result.Validate(); err != nil {
				return cognitive.AnalyzeResult{}, err
			}
			return result, nil
		},
	}
	orch := NewOrchestrator(st, peer, nil, 5)
	_, sess := seedSession(t, st, "transcript")

	if _, err := orch.Analyze(context.Background(), sess.ID); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	orch.Wait()

	updated, _ := st.GetSession(context.Background(), sess.ID)
	if !updated.AnalysisFailed() {
		t.Fatal("malformed response did not fail closed")
	}
	if updated.OverallScore != nil {
		t.Fatalf("overall score = %v, want nil", updated.OverallScore)
	}
}

// memoryFailStore fails CreateMemory for one specific title.
type memoryFailStore struct {
	store.Store
	failTitle string
}

func (s *memoryFailStore) CreateMemory(ctx context.Context, m store.Memory) (store.Memory, error) {
	if m.Title == s.failTitle {
		return store.Memory{}, fmt.Errorf("insert memory %q: connection reset", m.Title)
	}
	return s.Store.CreateMemory(ctx, m)
}

func TestAnalyzeMemoryFailureIsIsolated(t *testing.T) {
	inner := store.NewInMemoryStore(4)
	st := &memoryFailStore{Store: inner, failTitle: "Second memory"}
	peer := &cognitive.MockClient{
		AnalyzeFunc: func(context.Context, cognitive.AnalyzeRequest) (cognitive.AnalyzeResult, error) {
			return validResult("First memory", "Second memory", "Third memory"), nil
		},
	}
	orch := NewOrchestrator(st, peer, nil, 5)
	patient, sess := seedSession(t, st, "transcript")

	if _, err := orch.Analyze(context.Background(), sess.ID); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	orch.Wait()

	updated, _ := st.GetSession(context.Background(), sess.ID)
	if updated.AnalysisFailed() {
		t.Fatal("session marked failed despite successful analysis")
	}
	if updated.OverallScore == nil || *updated.OverallScore != 65.0 {
		t.Fatalf("overall score = %v, want 65.0", updated.OverallScore)
	}

	memories, _ := st.MemoriesForPatient(context.Background(), patient.ID)
	if len(memories) != 2 {
		t.Fatalf("stored memories = %d, want 2 of 3", len(memories))
	}
	for _, m := range memories {
		if m.Title == "Second memory" {
			t.Fatal("failed memory unexpectedly persisted")
		}
	}
}

func TestAnalyzeHistoryExcludesCurrentSession(t *testing.T) {
	st := store.NewInMemoryStore(4)
	peer := &cognitive.MockClient{}
	orch := NewOrchestrator(st, peer, nil, 2)
	patient, sess := seedSession(t, st, "current")

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := st.CreateSession(ctx, store.Session{
			PatientID:   patient.ID,
			SessionDate: time.Now().UTC().Add(-time.Duration(i+1) * 24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	if _, err := orch.Analyze(ctx, sess.ID); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	orch.Wait()

	calls := peer.AnalyzeCalls()
	if len(calls) != 1 {
		t.Fatalf("peer calls = %d, want 1", len(calls))
	}
	req := calls[0]
	if len(req.PreviousSessions) != 2 {
		t.Fatalf("previous sessions = %d, want history limit 2", len(req.PreviousSessions))
	}
	for _, prev := range req.PreviousSessions {
		if prev.SessionID == sess.ID {
			t.Fatal("current session leaked into its own history")
		}
	}
	if req.PatientProfile.Age <= 0 {
		t.Fatalf("derived age = %d, want positive for a known DOB", req.PatientProfile.Age)
	}
}

func TestSubscribeReceivesTerminalEvent(t *testing.T) {
	st := store.NewInMemoryStore(4)
	started := make(chan struct{})
	release := make(chan struct{})
	peer := &cognitive.MockClient{
		AnalyzeFunc: func(context.Context, cognitive.AnalyzeRequest) (cognitive.AnalyzeResult, error) {
			close(started)
			<-release
			return validResult(), nil
		},
	}
	orch := NewOrchestrator(st, peer, nil, 5)
	_, sess := seedSession(t, st, "transcript")

	events, cancel := orch.Subscribe(sess.ID)
	defer cancel()

	if _, err := orch.Analyze(context.Background(), sess.ID); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	<-started
	close(release)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.State == StateSucceeded {
				return
			}
		case <-deadline:
			t.Fatal("no succeeded event received")
		}
	}
}

func TestSubscribeSeesDispatchedBeforeTerminal(t *testing.T) {
	st := store.NewInMemoryStore(4)
	peer := &cognitive.MockClient{
		AnalyzeFunc: func(context.Context, cognitive.AnalyzeRequest) (cognitive.AnalyzeResult, error) {
			return validResult(), nil
		},
	}
	orch := NewOrchestrator(st, peer, nil, 5)
	_, sess := seedSession(t, st, "transcript")

	events, cancel := orch.Subscribe(sess.ID)
	defer cancel()

	if _, err := orch.Analyze(context.Background(), sess.ID); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	orch.Wait()

	first := <-events
	if first.State != StateDispatched {
		t.Fatalf("first event state = %q, want %q", first.State, StateDispatched)
	}
	second := <-events
	if second.State != StateSucceeded {
		t.Fatalf("second event state = %q, want %q", second.State, StateSucceeded)
	}
}

func TestAgeDerivation(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	if got := cognitive.Age(nil, now); got != 0 {
		t.Fatalf("Age(nil) = %d, want 0", got)
	}

	dob := time.Date(1950, 6, 15, 0, 0, 0, 0, time.UTC)
	if got := cognitive.Age(&dob, now); got != 76 {
		t.Fatalf("Age(1950-06-15) = %d, want 76", got)
	}

	beforeBirthday := time.Date(1950, 12, 31, 0, 0, 0, 0, time.UTC)
	if got := cognitive.Age(&beforeBirthday, now); got != 75 {
		t.Fatalf("Age(1950-12-31) = %d, want 75", got)
	}

	future := now.AddDate(1, 0, 0)
	if got := cognitive.Age(&future, now); got != 0 {
		t.Fatalf("Age(future) = %d, want 0", got)
	}
}
