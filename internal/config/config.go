package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the MindMate backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL        string
	MemoryEmbeddingDim int

	CognitiveAPIURL           string
	CognitiveAnalyzeTimeout   time.Duration
	CognitiveDashboardTimeout time.Duration
	CognitiveQueryTimeout     time.Duration

	AnalysisHistoryLimit   int
	AnalyticsSessionWindow int

	BeyondPresenceBaseURL string
	BeyondPresenceAPIKey  string

	// AudioBucket is the directory session recordings are stored under.
	AudioBucket    string
	MaxUploadBytes int64
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "mindmate"),
		// The original deployment served a browser frontend from another
		// origin, so permissive CORS is the default here.
		AllowAnyOrigin:            true,
		DatabaseURL:               stringsTrimSpace("DATABASE_URL"),
		MemoryEmbeddingDim:        1536,
		CognitiveAPIURL:           envOrDefault("COGNITIVE_API_URL", "https://mindmate-cognitive-api.onrender.com"),
		CognitiveAnalyzeTimeout:   120 * time.Second,
		CognitiveDashboardTimeout: 60 * time.Second,
		CognitiveQueryTimeout:     30 * time.Second,
		AnalysisHistoryLimit:      5,
		AnalyticsSessionWindow:    30,
		BeyondPresenceBaseURL:     envOrDefault("BEY_BASE_URL", "https://api.beyondpresence.ai/v1"),
		BeyondPresenceAPIKey:      stringsTrimSpace("BEY_API_KEY"),
		AudioBucket:               envOrDefault("AUDIO_BUCKET", "session-audio"),
		MaxUploadBytes:            50 << 20,
		ShutdownTimeout:           15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CognitiveAnalyzeTimeout, err = durationFromEnv("COGNITIVE_ANALYZE_TIMEOUT", cfg.CognitiveAnalyzeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CognitiveDashboardTimeout, err = durationFromEnv("COGNITIVE_DASHBOARD_TIMEOUT", cfg.CognitiveDashboardTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CognitiveQueryTimeout, err = durationFromEnv("COGNITIVE_QUERY_TIMEOUT", cfg.CognitiveQueryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryEmbeddingDim, err = intFromEnv("MEMORY_EMBEDDING_DIM", cfg.MemoryEmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.AnalysisHistoryLimit, err = intFromEnv("ANALYSIS_HISTORY_LIMIT", cfg.AnalysisHistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AnalyticsSessionWindow, err = intFromEnv("ANALYTICS_SESSION_WINDOW", cfg.AnalyticsSessionWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := intFromEnv("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if strings.TrimSpace(cfg.CognitiveAPIURL) == "" {
		return Config{}, fmt.Errorf("COGNITIVE_API_URL must not be empty")
	}
	if cfg.MemoryEmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("MEMORY_EMBEDDING_DIM must be positive")
	}
	if cfg.AnalysisHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("ANALYSIS_HISTORY_LIMIT must be positive")
	}
	if cfg.AnalyticsSessionWindow <= 0 {
		return Config{}, fmt.Errorf("ANALYTICS_SESSION_WINDOW must be positive")
	}
	if cfg.CognitiveAnalyzeTimeout < 10*time.Second {
		return Config{}, fmt.Errorf("COGNITIVE_ANALYZE_TIMEOUT must be at least 10s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
