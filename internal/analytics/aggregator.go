// Package analytics builds dashboard summaries from already-persisted
// sessions. It is a pure read path: no peer calls, no writes.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/store"
)

const recentSessionLimit = 5

// BrainRegionScores are sub-scores that require upstream neurological
// measurement this service does not own. Until the analysis peer supplies
// real values, PlaceholderRegions is returned and flagged as such.
type BrainRegionScores struct {
	Hippocampus      float64 `json:"hippocampus"`
	PrefrontalCortex float64 `json:"prefrontalCortex"`
	TemporalLobe     float64 `json:"temporalLobe"`
	ParietalLobe     float64 `json:"parietalLobe"`
	Amygdala         float64 `json:"amygdala"`
	Cerebellum       float64 `json:"cerebellum"`
}

type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// MemoryMetrics carries per-memory-type score series. Only short-term recall
// is populated today; the other series stay empty pending richer data.
type MemoryMetrics struct {
	ShortTermRecall []TimeSeriesPoint `json:"shortTermRecall"`
	LongTermRecall  []TimeSeriesPoint `json:"longTermRecall"`
	SemanticMemory  []TimeSeriesPoint `json:"semanticMemory"`
	EpisodicMemory  []TimeSeriesPoint `json:"episodicMemory"`
	WorkingMemory   []TimeSeriesPoint `json:"workingMemory"`
}

type RecentSession struct {
	Date          time.Time `json:"date"`
	Score         float64   `json:"score"`
	ExerciseType  string    `json:"exerciseType"`
	NotableEvents []string  `json:"notableEvents"`
}

// PatientSummary is the dashboard-ready aggregate for one patient.
type PatientSummary struct {
	PatientID             uuid.UUID         `json:"patientId"`
	PatientName           string            `json:"patientName"`
	LastUpdated           time.Time         `json:"lastUpdated"`
	BrainRegions          BrainRegionScores `json:"brainRegions"`
	BrainRegionsSource    string            `json:"brainRegionsSource"`
	MemoryMetrics         MemoryMetrics     `json:"memoryMetrics"`
	RecentSessions        []RecentSession   `json:"recentSessions"`
	OverallCognitiveScore float64           `json:"overallCognitiveScore"`
	MemoryRetentionRate   float64           `json:"memoryRetentionRate"`
}

// PlaceholderRegions stands in until the peer delivers measured sub-scores.
// Any summary carrying it has BrainRegionsSource set to "placeholder" so
// consumers cannot mistake it for real data.
var PlaceholderRegions = BrainRegionScores{
	Hippocampus:      82.5,
	PrefrontalCortex: 77.3,
	TemporalLobe:     85.2,
	ParietalLobe:     79.0,
	Amygdala:         88.4,
	Cerebellum:       83.0,
}

type Aggregator struct {
	store         store.Store
	sessionWindow int
	now           func() time.Time
}

func NewAggregator(st store.Store, sessionWindow int) *Aggregator {
	if sessionWindow <= 0 {
		sessionWindow = 30
	}
	return &Aggregator{
		store:         st,
		sessionWindow: sessionWindow,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PatientSummary aggregates the patient's recent sessions. The overall
// aggregate counts sessions without a score as 0; that zero-default applies
// to this one aggregate only, everywhere else an absent score stays absent.
func (a *Aggregator) PatientSummary(ctx context.Context, patientID uuid.UUID) (PatientSummary, error) {
	patient, err := a.store.GetPatient(ctx, patientID)
	if err != nil {
		return PatientSummary{}, err
	}
	sessions, err := a.store.SessionsForPatient(ctx, patientID, a.sessionWindow)
	if err != nil {
		return PatientSummary{}, err
	}

	summary := PatientSummary{
		PatientID:          patient.ID,
		PatientName:        patient.Name,
		LastUpdated:        a.now(),
		BrainRegions:       PlaceholderRegions,
		BrainRegionsSource: "placeholder",
		MemoryMetrics: MemoryMetrics{
			ShortTermRecall: []TimeSeriesPoint{},
			LongTermRecall:  []TimeSeriesPoint{},
			SemanticMemory:  []TimeSeriesPoint{},
			EpisodicMemory:  []TimeSeriesPoint{},
			WorkingMemory:   []TimeSeriesPoint{},
		},
		RecentSessions: []RecentSession{},
	}

	var scoreSum float64
	for i, s := range sessions {
		var score float64
		if s.OverallScore != nil {
			score = *s.OverallScore
			summary.MemoryMetrics.ShortTermRecall = append(summary.MemoryMetrics.ShortTermRecall, TimeSeriesPoint{
				Timestamp: s.SessionDate,
				Score:     score,
			})
		}
		scoreSum += score

		if i < recentSessionLimit {
			events := s.NotableEvents
			if events == nil {
				events = []string{}
			}
			summary.RecentSessions = append(summary.RecentSessions, RecentSession{
				Date:          s.SessionDate,
				Score:         score,
				ExerciseType:  s.ExerciseType,
				NotableEvents: events,
			})
		}
	}
	if len(sessions) > 0 {
		summary.OverallCognitiveScore = scoreSum / float64(len(sessions))
		summary.MemoryRetentionRate = summary.OverallCognitiveScore / 100
	}
	return summary, nil
}
