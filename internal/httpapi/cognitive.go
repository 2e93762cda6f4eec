package httpapi

import (
	"net/http"
	"strings"

	"github.com/mindmate-health/mindmate/internal/cognitive"
)

func (s *Server) handleCognitiveHealth(w http.ResponseWriter, r *http.Request) {
	status := s.peer.Health(r.Context())
	code := http.StatusOK
	if status.Status != "ok" && status.Status != "healthy" {
		code = http.StatusBadGateway
	}
	respondJSON(w, code, status)
}

func (s *Server) handlePatientDashboard(w http.ResponseWriter, r *http.Request) {
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
	sessions, err := s.store.SessionsForPatient(r.Context(), id, s.cfg.AnalyticsSessionWindow)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	dashboard, err := s.peer.PatientDashboard(r.Context(), cognitive.DashboardRequest{
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Sessions:    cognitive.Summarize(sessions),
		DaysBack:    s.cfg.AnalyticsSessionWindow,
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "peer_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}

func (s *Server) handleDoctorQuery(w http.ResponseWriter, r *http.Request) {
	var req cognitive.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "query is required")
		return
	}
	result, err := s.peer.DoctorQuery(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadGateway, "peer_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}
