package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mindmate-health/mindmate/internal/store"
)

type memoryRequest struct {
	PatientID         uuid.UUID `json:"patient_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	DateApprox        string    `json:"dateapprox"`
	Location          string    `json:"location"`
	PeopleInvolved    []string  `json:"peopleinvolved"`
	EmotionalTone     string    `json:"emotional_tone"`
	Tags              []string  `json:"tags"`
	SignificanceLevel *int      `json:"significance_level"`
	Embedding         []float32 `json:"embedding"`
}

func (req memoryRequest) toMemory(embeddingDim int) (store.Memory, error) {
	if req.PatientID == uuid.Nil {
		return store.Memory{}, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return store.Memory{}, fmt.Errorf("title is required")
	}
	significance := 1
	if req.SignificanceLevel != nil {
		significance = *req.SignificanceLevel
		if significance < 0 || significance > 10 {
			return store.Memory{}, fmt.Errorf("significance_level must be between 0 and 10, got %d", significance)
		}
	}
	if len(req.Embedding) != 0 && len(req.Embedding) != embeddingDim {
		return store.Memory{}, fmt.Errorf("embedding must have %d dimensions, got %d", embeddingDim, len(req.Embedding))
	}
	dateApprox, err := parseDate(req.DateApprox)
	if err != nil {
		return store.Memory{}, fmt.Errorf("dateapprox: %w", err)
	}
	return store.Memory{
		PatientID:         req.PatientID,
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		DateApprox:        dateApprox,
		Location:          req.Location,
		PeopleInvolved:    req.PeopleInvolved,
		EmotionalTone:     req.EmotionalTone,
		Tags:              req.Tags,
		SignificanceLevel: significance,
		Embedding:         req.Embedding,
	}, nil
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	memory, err := req.toMemory(s.cfg.MemoryEmbeddingDim)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if _, err := s.store.GetPatient(r.Context(), memory.PatientID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	created, err := s.store.CreateMemory(r.Context(), memory)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := s.store.ListMemories(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if memories == nil {
		memories = []store.Memory{}
	}
	respondJSON(w, http.StatusOK, memories)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	memory, err := s.store.GetMemory(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, memory)
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	existing, err := s.store.GetMemory(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	var req memoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.PatientID == uuid.Nil {
		req.PatientID = existing.PatientID
	}
	memory, err := req.toMemory(s.cfg.MemoryEmbeddingDim)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	memory.ID = id
	if memory.Embedding == nil {
		memory.Embedding = existing.Embedding
	}
	updated, err := s.store.UpdateMemory(r.Context(), memory)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := s.store.DeleteMemory(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type memorySearchRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Embedding []float32 `json:"embedding"`
	Limit     int       `json:"limit"`
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	var req memorySearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.PatientID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "validation_error", "patient_id is required")
		return
	}
	if len(req.Embedding) != s.cfg.MemoryEmbeddingDim {
		respondError(w, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("embedding must have %d dimensions, got %d", s.cfg.MemoryEmbeddingDim, len(req.Embedding)))
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}
	memories, err := s.store.SearchMemories(r.Context(), req.PatientID, req.Embedding, limit)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if memories == nil {
		memories = []store.Memory{}
	}
	respondJSON(w, http.StatusOK, memories)
}
