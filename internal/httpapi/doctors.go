package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mindmate-health/mindmate/internal/store"
)

type doctorRequest struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
}

func (d doctorRequest) toDoctor() (store.Doctor, error) {
	if strings.TrimSpace(d.Name) == "" {
		return store.Doctor{}, fmt.Errorf("name is required")
	}
	return store.Doctor{
		Name:           strings.TrimSpace(d.Name),
		Specialization: d.Specialization,
		Email:          d.Email,
		Phone:          d.Phone,
	}, nil
}

func (s *Server) handleCreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	doctor, err := req.toDoctor()
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	created, err := s.store.CreateDoctor(r.Context(), doctor)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := s.store.ListDoctors(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if doctors == nil {
		doctors = []store.Doctor{}
	}
	respondJSON(w, http.StatusOK, doctors)
}

func (s *Server) handleGetDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	doctor, err := s.store.GetDoctor(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doctor)
}

func (s *Server) handleUpdateDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req doctorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	doctor, err := req.toDoctor()
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	doctor.ID = id
	updated, err := s.store.UpdateDoctor(r.Context(), doctor)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := s.store.DeleteDoctor(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
