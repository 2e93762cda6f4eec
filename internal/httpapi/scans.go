package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/store"
)

type scanRequest struct {
	PatientID    uuid.UUID      `json:"patient_id"`
	UploadedBy   *uuid.UUID     `json:"uploaded_by"`
	SessionID    *uuid.UUID     `json:"session_id"`
	StoragePath  string         `json:"storage_path"`
	FileSize     int64          `json:"file_size"`
	AnalysisData map[string]any `json:"analysis_data"`
}

func (req scanRequest) toScan(maxBytes int64) (store.MRIScan, error) {
	if req.PatientID == uuid.Nil {
		return store.MRIScan{}, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(req.StoragePath) == "" {
		return store.MRIScan{}, fmt.Errorf("storage_path is required")
	}
	if req.FileSize < 0 {
		return store.MRIScan{}, fmt.Errorf("file_size must not be negative")
	}
	if maxBytes > 0 && req.FileSize > maxBytes {
		return store.MRIScan{}, fmt.Errorf("file_size %d exceeds limit %d", req.FileSize, maxBytes)
	}
	status := "uploaded"
	if req.AnalysisData != nil {
		status = "analyzed"
	}
	return store.MRIScan{
		PatientID:    req.PatientID,
		UploadedBy:   req.UploadedBy,
		SessionID:    req.SessionID,
		StoragePath:  strings.TrimSpace(req.StoragePath),
		FileSize:     req.FileSize,
		Status:       status,
		AnalysisData: req.AnalysisData,
	}, nil
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	scan, err := req.toScan(s.cfg.MaxUploadBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if _, err := s.store.GetPatient(r.Context(), scan.PatientID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	created, err := s.store.CreateMRIScan(r.Context(), scan)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.store.ListMRIScans(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if scans == nil {
		scans = []store.MRIScan{}
	}
	respondJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	scan, err := s.store.GetMRIScan(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scan)
}
