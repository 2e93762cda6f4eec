package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mindmate-health/mindmate/internal/analysis"
	"github.com/mindmate-health/mindmate/internal/analytics"
	"github.com/mindmate-health/mindmate/internal/calls"
	"github.com/mindmate-health/mindmate/internal/cognitive"
	"github.com/mindmate-health/mindmate/internal/config"
	"github.com/mindmate-health/mindmate/internal/observability"
	"github.com/mindmate-health/mindmate/internal/store"
)

// Analyzer dispatches session analyses and streams their state changes.
type Analyzer interface {
	Analyze(ctx context.Context, sessionID uuid.UUID) (analysis.Ack, error)
	Subscribe(sessionID uuid.UUID) (<-chan analysis.Event, func())
}

type Server struct {
	cfg        config.Config
	store      store.Store
	analyzer   Analyzer
	aggregator *analytics.Aggregator
	peer       cognitive.Client
	calls      *calls.Client
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, st store.Store, analyzer Analyzer, aggregator *analytics.Aggregator, peer cognitive.Client, callsClient *calls.Client, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		analyzer:   analyzer,
		aggregator: aggregator,
		peer:       peer,
		calls:      callsClient,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.AllowAnyOrigin
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.cfg.AllowAnyOrigin {
		r.Use(corsMiddleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats/overview", s.handleStatsOverview)

		r.Post("/patients", s.handleCreatePatient)
		r.Get("/patients", s.handleListPatients)
		r.Get("/patients/{id}", s.handleGetPatient)
		r.Put("/patients/{id}", s.handleUpdatePatient)
		r.Delete("/patients/{id}", s.handleDeletePatient)
		r.Get("/patients/{id}/sessions", s.handlePatientSessions)
		r.Get("/patients/{id}/memories", s.handlePatientMemories)
		r.Get("/patients/{id}/analytics", s.handlePatientAnalytics)
		r.Get("/patients/{id}/dashboard", s.handlePatientDashboard)

		r.Post("/doctors", s.handleCreateDoctor)
		r.Get("/doctors", s.handleListDoctors)
		r.Get("/doctors/{id}", s.handleGetDoctor)
		r.Put("/doctors/{id}", s.handleUpdateDoctor)
		r.Delete("/doctors/{id}", s.handleDeleteDoctor)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Put("/sessions/{id}", s.handleUpdateSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/analyze", s.handleAnalyzeSession)
		r.Post("/sessions/{id}/audio", s.handleUploadSessionAudio)
		r.Get("/sessions/{id}/analysis/ws", s.handleAnalysisWS)

		r.Post("/memories", s.handleCreateMemory)
		r.Get("/memories", s.handleListMemories)
		r.Get("/memories/{id}", s.handleGetMemory)
		r.Put("/memories/{id}", s.handleUpdateMemory)
		r.Delete("/memories/{id}", s.handleDeleteMemory)
		r.Post("/memories/search", s.handleSearchMemories)

		r.Post("/records", s.handleCreateRecord)
		r.Get("/records", s.handleListRecords)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Delete("/records/{id}", s.handleDeleteRecord)

		r.Post("/scans", s.handleCreateScan)
		r.Get("/scans", s.handleListScans)
		r.Get("/scans/{id}", s.handleGetScan)

		r.Get("/cognitive/health", s.handleCognitiveHealth)
		r.Post("/doctor/query", s.handleDoctorQuery)

		r.Get("/calls/{id}/messages", s.handleCallMessages)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-api-key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Readiness covers the store; the cognitive peer being down degrades
	// analysis but must not take the CRUD surface with it.
	if _, err := s.store.CountOverview(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountOverview(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// pathID parses the {id} URL parameter as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondStoreError maps store errors onto the API error taxonomy.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues("request").Inc()
	}
	respondError(w, http.StatusInternalServerError, "store_error", err.Error())
}
