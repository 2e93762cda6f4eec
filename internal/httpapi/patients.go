package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mindmate-health/mindmate/internal/store"
)

type patientRequest struct {
	Name      string   `json:"name"`
	DOB       string   `json:"dob"`
	Gender    string   `json:"gender"`
	Diagnosis string   `json:"diagnosis"`
	Interests []string `json:"interests"`
}

func (p patientRequest) toPatient() (store.Patient, error) {
	if strings.TrimSpace(p.Name) == "" {
		return store.Patient{}, fmt.Errorf("name is required")
	}
	dob, err := parseDate(p.DOB)
	if err != nil {
		return store.Patient{}, fmt.Errorf("dob: %w", err)
	}
	return store.Patient{
		Name:      strings.TrimSpace(p.Name),
		DOB:       dob,
		Gender:    p.Gender,
		Diagnosis: p.Diagnosis,
		Interests: p.Interests,
	}, nil
}

// parseDate accepts date-only or RFC3339 timestamps; empty means absent.
func parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", v)
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	patient, err := req.toPatient()
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	created, err := s.store.CreatePatient(r.Context(), patient)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.store.ListPatients(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if patients == nil {
		patients = []store.Patient{}
	}
	respondJSON(w, http.StatusOK, patients)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	patient, err := s.store.GetPatient(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, patient)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	patient, err := req.toPatient()
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	patient.ID = id
	updated, err := s.store.UpdatePatient(r.Context(), patient)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := s.store.DeletePatient(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePatientSessions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if _, err := s.store.GetPatient(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	sessions, err := s.store.SessionsForPatient(r.Context(), id, 0)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (s *Server) handlePatientMemories(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if _, err := s.store.GetPatient(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	memories, err := s.store.MemoriesForPatient(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if memories == nil {
		memories = []store.Memory{}
	}
	respondJSON(w, http.StatusOK, memories)
}

func (s *Server) handlePatientAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	summary, err := s.aggregator.PatientSummary(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
