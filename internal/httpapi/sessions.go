package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/scoring"
	"github.com/mindmate-health/mindmate/internal/store"
)

type sessionRequest struct {
	PatientID           uuid.UUID                  `json:"patient_id"`
	CreatedBy           *uuid.UUID                 `json:"created_by"`
	SessionDate         string                     `json:"session_date"`
	ExerciseType        string                     `json:"exercise_type"`
	Transcript          string                     `json:"transcript"`
	CognitiveTestScores []store.CognitiveTestScore `json:"cognitive_test_scores"`
	NotableEvents       []string                   `json:"notable_events"`
	DoctorNotes         string                     `json:"doctor_notes"`
	AudioURL            string                     `json:"audio_url"`
}

func (req sessionRequest) toSession(now time.Time) (store.Session, error) {
	if req.PatientID == uuid.Nil {
		return store.Session{}, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(req.ExerciseType) == "" {
		return store.Session{}, fmt.Errorf("exercise_type is required")
	}
	if err := scoring.Validate(req.CognitiveTestScores); err != nil {
		return store.Session{}, err
	}

	date := now
	if parsed, err := parseDate(req.SessionDate); err != nil {
		return store.Session{}, fmt.Errorf("session_date: %w", err)
	} else if parsed != nil {
		date = *parsed
	}

	sess := store.Session{
		PatientID:           req.PatientID,
		CreatedBy:           req.CreatedBy,
		SessionDate:         date,
		ExerciseType:        strings.TrimSpace(req.ExerciseType),
		Transcript:          req.Transcript,
		CognitiveTestScores: req.CognitiveTestScores,
		NotableEvents:       req.NotableEvents,
		DoctorNotes:         req.DoctorNotes,
		AudioURL:            req.AudioURL,
	}
	// No scores means no overall score, never a zero one.
	if overall, ok := scoring.Overall(req.CognitiveTestScores); ok {
		sess.OverallScore = &overall
	}
	return sess, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sess, err := req.toSession(time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if _, err := s.store.GetPatient(r.Context(), sess.PatientID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	created, err := s.store.CreateSession(r.Context(), sess)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	existing, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.PatientID == uuid.Nil {
		req.PatientID = existing.PatientID
	}
	// Omitted scores keep the stored list; an explicit empty list clears it.
	// Either way the overall score is recomputed from the final list, so a
	// session never carries a score with no tests behind it.
	if req.CognitiveTestScores == nil {
		req.CognitiveTestScores = existing.CognitiveTestScores
	}
	sess, err := req.toSession(existing.SessionDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	sess.ID = id
	// Analysis output survives manual edits; only the analyze flow rewrites it.
	sess.AIExtractedData = existing.AIExtractedData
	sess.AudioURL = firstNonEmpty(sess.AudioURL, existing.AudioURL)
	updated, err := s.store.UpdateSession(r.Context(), sess)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAnalyzeSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	ack, err := s.analyzer.Analyze(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ack)
}
