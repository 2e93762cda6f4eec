// Package cognitive is the HTTP client for the external Cognitive API peer.
// The peer does all actual transcript analysis; this package only shapes
// requests, enforces the response contract and reports failures.
package cognitive

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/store"
)

// PatientProfile is the profile slice of the analyze payload.
type PatientProfile struct {
	Name         string       `json:"name"`
	Age          int          `json:"age"`
	Diagnosis    string       `json:"diagnosis"`
	Interests    []string     `json:"interests"`
	ExpectedInfo ExpectedInfo `json:"expected_info"`
}

// ExpectedInfo lists ground-truth facts the peer can grade recall against.
type ExpectedInfo struct {
	FamilyMembers []string `json:"family_members"`
	Profession    string   `json:"profession"`
	Hometown      string   `json:"hometown"`
}

// SessionSummary is the compact prior-session shape sent as history context.
type SessionSummary struct {
	SessionID     uuid.UUID `json:"session_id"`
	SessionDate   time.Time `json:"session_date"`
	ExerciseType  string    `json:"exercise_type"`
	OverallScore  *float64  `json:"overall_score,omitempty"`
	NotableEvents []string  `json:"notable_events,omitempty"`
}

// AnalyzeRequest is the analyze-session payload.
type AnalyzeRequest struct {
	SessionID        uuid.UUID        `json:"session_id"`
	PatientID        uuid.UUID        `json:"patient_id"`
	Transcript       string           `json:"transcript"`
	ExerciseType     string           `json:"exercise_type"`
	SessionDate      time.Time        `json:"session_date"`
	PatientProfile   PatientProfile   `json:"patient_profile"`
	PreviousSessions []SessionSummary `json:"previous_sessions"`
}

// MemoryItem is one autobiographical memory extracted by the peer.
type MemoryItem struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	DateApprox        *time.Time `json:"dateapprox,omitempty"`
	Location          string     `json:"location,omitempty"`
	PeopleInvolved    []string   `json:"peopleinvolved,omitempty"`
	EmotionalTone     string     `json:"emotional_tone,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	SignificanceLevel int        `json:"significance_level,omitempty"`
	Embedding         []float32  `json:"embedding,omitempty"`
}

// AnalyzeResult is the analysis object inside the peer's response envelope.
type AnalyzeResult struct {
	CognitiveTestScores []store.CognitiveTestScore `json:"cognitive_test_scores"`
	OverallScore        *float64                   `json:"overall_score,omitempty"`
	NotableEvents       []string                   `json:"notable_events"`
	Memories            []MemoryItem               `json:"memories"`
	RiskAlerts          []string                   `json:"risk_alerts,omitempty"`
}

// Validate enforces the expected-response contract. Anything malformed makes
// the whole analysis fail closed; partial trust in an ambiguous payload is
// exactly the bug this replaces.
func (r AnalyzeResult) Validate() error {
	if len(r.CognitiveTestScores) == 0 {
		return fmt.Errorf("analysis missing cognitive_test_scores")
	}
	for i, t := range r.CognitiveTestScores {
		if t.Test == "" {
			return fmt.Errorf("cognitive_test_scores[%d]: missing test name", i)
		}
		if t.MaxScore <= 0 {
			return fmt.Errorf("cognitive_test_scores[%d] (%q): non-positive max_score %v", i, t.Test, t.MaxScore)
		}
	}
	for i, m := range r.Memories {
		if m.Title == "" {
			return fmt.Errorf("memories[%d]: missing title", i)
		}
	}
	return nil
}

// DashboardRequest is the patient-dashboard payload.
type DashboardRequest struct {
	PatientID   uuid.UUID        `json:"patient_id"`
	PatientName string           `json:"patient_name"`
	Sessions    []SessionSummary `json:"sessions"`
	MRICSVPath  string           `json:"mri_csv_path,omitempty"`
	DaysBack    int              `json:"days_back"`
}

// QueryRequest is the natural-language doctor-query payload.
type QueryRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// QueryResult is the doctor-query response body.
type QueryResult struct {
	Success   bool           `json:"success"`
	Query     string         `json:"query"`
	Response  string         `json:"response"`
	ToolsUsed []string       `json:"tools_used,omitempty"`
	ModelInfo map[string]any `json:"model_info,omitempty"`
	RawData   map[string]any `json:"raw_data,omitempty"`
}

// HealthStatus is the peer health probe result.
type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Age derives a patient age from date of birth. Absent or future DOB
// reports 0 rather than failing the request.
func Age(dob *time.Time, now time.Time) int {
	if dob == nil {
		return 0
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Summarize converts stored sessions into the history shape the peer expects.
func Summarize(sessions []store.Session) []SessionSummary {
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{
			SessionID:     s.ID,
			SessionDate:   s.SessionDate,
			ExerciseType:  s.ExerciseType,
			OverallScore:  s.OverallScore,
			NotableEvents: s.NotableEvents,
		})
	}
	return out
}
