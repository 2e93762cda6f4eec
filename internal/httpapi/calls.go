package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mindmate-health/mindmate/internal/calls"
)

// handleCallMessages proxies the Beyond Presence call-history endpoint. The
// caller may supply a per-request key in the x-api-key header; otherwise the
// configured key is used.
func (s *Server) handleCallMessages(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "invalid_id", "call id is required")
		return
	}

	history, err := s.calls.CallMessagesWithKey(r.Context(), callID, r.Header.Get("x-api-key"))
	if err != nil {
		if errors.Is(err, calls.ErrMissingAPIKey) {
			respondError(w, http.StatusUnauthorized, "missing_api_key", err.Error())
			return
		}
		var statusErr *calls.StatusError
		if errors.As(err, &statusErr) {
			respondError(w, statusErr.StatusCode, "vendor_error", statusErr.Body)
			return
		}
		respondError(w, http.StatusBadGateway, "vendor_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, history)
}
