package store

import (
	"time"

	"github.com/google/uuid"
)

// CognitiveTestScore is one graded exercise inside a session. MaxScore must be
// positive; validation rejects zero before anything reaches the aggregator.
type CognitiveTestScore struct {
	Test     string  `json:"test"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
}

// Patient is the root entity; sessions, memories and doctor records all hang
// off a patient ID.
type Patient struct {
	ID        uuid.UUID  `json:"patient_id"`
	Name      string     `json:"name"`
	DOB       *time.Time `json:"dob,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	Diagnosis string     `json:"diagnosis,omitempty"`
	Interests []string   `json:"interests,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Doctor struct {
	ID             uuid.UUID `json:"doctor_id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session is one recorded exercise instance. OverallScore is nil until the
// aggregation has run; nil means "not computed", never zero. AIExtractedData
// holds the raw analysis blob, or an error marker {"error": "..."} when the
// async analysis failed.
type Session struct {
	ID                  uuid.UUID            `json:"session_id"`
	PatientID           uuid.UUID            `json:"patient_id"`
	CreatedBy           *uuid.UUID           `json:"created_by,omitempty"`
	SessionDate         time.Time            `json:"session_date"`
	ExerciseType        string               `json:"exercise_type"`
	Transcript          string               `json:"transcript,omitempty"`
	AIExtractedData     map[string]any       `json:"ai_extracted_data,omitempty"`
	CognitiveTestScores []CognitiveTestScore `json:"cognitive_test_scores,omitempty"`
	OverallScore        *float64             `json:"overall_score,omitempty"`
	NotableEvents       []string             `json:"notable_events,omitempty"`
	DoctorNotes         string               `json:"doctor_notes,omitempty"`
	AudioURL            string               `json:"audio_url,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// AnalysisFailed reports whether the session carries a failed-analysis marker.
func (s Session) AnalysisFailed() bool {
	if s.AIExtractedData == nil {
		return false
	}
	_, ok := s.AIExtractedData["error"]
	return ok
}

// Memory is a discrete autobiographical item, recorded manually or extracted
// from a session by the analysis peer. Embedding, when present, must match the
// store's configured vector width for similarity search to work.
type Memory struct {
	ID                uuid.UUID  `json:"memory_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	DateApprox        *time.Time `json:"dateapprox,omitempty"`
	Location          string     `json:"location,omitempty"`
	PeopleInvolved    []string   `json:"peopleinvolved,omitempty"`
	EmotionalTone     string     `json:"emotional_tone,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	SignificanceLevel int        `json:"significance_level"`
	Embedding         []float32  `json:"embedding,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type DoctorRecord struct {
	ID              uuid.UUID      `json:"record_id"`
	DoctorID        uuid.UUID      `json:"doctor_id"`
	PatientID       uuid.UUID      `json:"patient_id"`
	SessionID       *uuid.UUID     `json:"session_id,omitempty"`
	ScanID          *uuid.UUID     `json:"scan_id,omitempty"`
	RecordType      string         `json:"record_type"`
	Summary         string         `json:"summary"`
	Notes           string         `json:"notes,omitempty"`
	Recommendations string         `json:"recommendations,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type MRIScan struct {
	ID           uuid.UUID      `json:"scan_id"`
	PatientID    uuid.UUID      `json:"patient_id"`
	UploadedBy   *uuid.UUID     `json:"uploaded_by,omitempty"`
	SessionID    *uuid.UUID     `json:"session_id,omitempty"`
	StoragePath  string         `json:"storage_path"`
	FileSize     int64          `json:"file_size"`
	Status       string         `json:"status"`
	AnalysisData map[string]any `json:"analysis_data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// SessionAnalysis is the write-back the orchestrator applies in one update
// when the peer call succeeds.
type SessionAnalysis struct {
	ExtractedData map[string]any
	Scores        []CognitiveTestScore
	OverallScore  *float64
	NotableEvents []string
}
