package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mindmate-health/mindmate/internal/analysis"
	"github.com/mindmate-health/mindmate/internal/analytics"
	"github.com/mindmate-health/mindmate/internal/calls"
	"github.com/mindmate-health/mindmate/internal/cognitive"
	"github.com/mindmate-health/mindmate/internal/config"
	"github.com/mindmate-health/mindmate/internal/httpapi"
	"github.com/mindmate-health/mindmate/internal/observability"
	"github.com/mindmate-health/mindmate/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DatabaseURL, cfg.MemoryEmbeddingDim)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("store: in-memory (DATABASE_URL not set, data will not survive restarts)")
	} else {
		log.Printf("store: postgres")
	}

	var peer cognitive.Client
	if strings.EqualFold(strings.TrimSpace(os.Getenv("COGNITIVE_API_MODE")), "mock") {
		peer = &cognitive.MockClient{}
		log.Printf("cognitive peer: mock")
	} else {
		peer = cognitive.NewHTTPClient(cfg.CognitiveAPIURL, cognitive.Timeouts{
			Analyze:   cfg.CognitiveAnalyzeTimeout,
			Dashboard: cfg.CognitiveDashboardTimeout,
			Query:     cfg.CognitiveQueryTimeout,
		})
		log.Printf("cognitive peer: %s", cfg.CognitiveAPIURL)
	}

	orchestrator := analysis.NewOrchestrator(st, peer, metrics, cfg.AnalysisHistoryLimit)
	aggregator := analytics.NewAggregator(st, cfg.AnalyticsSessionWindow)
	callsClient := calls.NewClient(cfg.BeyondPresenceBaseURL, cfg.BeyondPresenceAPIKey)

	api := httpapi.New(cfg, st, orchestrator, aggregator, peer, callsClient, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	// Let in-flight analyses write their results before the store closes.
	orchestrator.Wait()

	log.Printf("shutdown complete")
}
