package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/store"
)

type recordRequest struct {
	DoctorID        uuid.UUID      `json:"doctor_id"`
	PatientID       uuid.UUID      `json:"patient_id"`
	SessionID       *uuid.UUID     `json:"session_id"`
	ScanID          *uuid.UUID     `json:"scan_id"`
	RecordType      string         `json:"record_type"`
	Summary         string         `json:"summary"`
	Notes           string         `json:"notes"`
	Recommendations string         `json:"recommendations"`
	Metadata        map[string]any `json:"metadata"`
}

func (req recordRequest) toRecord() (store.DoctorRecord, error) {
	if req.DoctorID == uuid.Nil {
		return store.DoctorRecord{}, fmt.Errorf("doctor_id is required")
	}
	if req.PatientID == uuid.Nil {
		return store.DoctorRecord{}, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(req.RecordType) == "" {
		return store.DoctorRecord{}, fmt.Errorf("record_type is required")
	}
	return store.DoctorRecord{
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		SessionID:       req.SessionID,
		ScanID:          req.ScanID,
		RecordType:      strings.TrimSpace(req.RecordType),
		Summary:         req.Summary,
		Notes:           req.Notes,
		Recommendations: req.Recommendations,
		Metadata:        req.Metadata,
	}, nil
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	record, err := req.toRecord()
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if _, err := s.store.GetDoctor(r.Context(), record.DoctorID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	if _, err := s.store.GetPatient(r.Context(), record.PatientID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	created, err := s.store.CreateDoctorRecord(r.Context(), record)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListDoctorRecords(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if records == nil {
		records = []store.DoctorRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	record, err := s.store.GetDoctorRecord(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := s.store.DeleteDoctorRecord(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
