package httpapi

import (
	"log"
	"net/http"

	"github.com/mindmate-health/mindmate/internal/analysis"
)

// handleAnalysisWS streams analysis state events for one session over a
// websocket. The connection closes after the first terminal event; a client
// that subscribes after the run finished hangs until it disconnects, since
// events are not replayed.
func (s *Server) handleAnalysisWS(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}

	events, cancel := s.analyzer.Subscribe(id)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		return
	}
	defer conn.Close()
	defer cancel()

	// Drain client frames so close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("analysis ws: write for session %s: %v", id, err)
				return
			}
			if ev.State == analysis.StateSucceeded || ev.State == analysis.StateFailed {
				return
			}
		}
	}
}
