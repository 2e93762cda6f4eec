package cognitive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAnalyzeSessionDecodesEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze/session" {
			t.Errorf("path = %q, want /analyze/session", r.URL.Path)
		}
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Transcript != "hello" {
			t.Errorf("transcript = %q, want hello", req.Transcript)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{
			"cognitive_test_scores":[{"test":"recall","score":7,"max_score":10}],
			"notable_events":["remembered the trip"],
			"memories":[{"title":"The trip","description":"to the coast"}]
		}}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, Timeouts{})
	result, err := c.AnalyzeSession(context.Background(), AnalyzeRequest{
		SessionID:  uuid.New(),
		PatientID:  uuid.New(),
		Transcript: "hello",
	})
	if err != nil {
		t.Fatalf("AnalyzeSession() error = %v", err)
	}
	if len(result.CognitiveTestScores) != 1 || result.CognitiveTestScores[0].Test != "recall" {
		t.Fatalf("scores = %+v, want one recall entry", result.CognitiveTestScores)
	}
	if len(result.Memories) != 1 || result.Memories[0].Title != "The trip" {
		t.Fatalf("memories = %+v, want one titled The trip", result.Memories)
	}
}

func TestAnalyzeSessionRejectsMissingScores(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"cognitive_test_scores":[],"memories":[]}}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, Timeouts{})
	_, err := c.AnalyzeSession(context.Background(), AnalyzeRequest{})
	if err == nil || !strings.Contains(err.Error(), "cognitive_test_scores") {
		t.Fatalf("AnalyzeSession() error = %v, want missing-scores rejection", err)
	}
}

func TestAnalyzeSessionNonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, Timeouts{})
	_, err := c.AnalyzeSession(context.Background(), AnalyzeRequest{})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("AnalyzeSession() error = %v, want status 503 surfaced", err)
	}
}

func TestDoctorQueryNoEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/doctor/query" {
			t.Errorf("path = %q, want /doctor/query", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"query":"q","response":"two patients declined this week"}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, Timeouts{})
	result, err := c.DoctorQuery(context.Background(), QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("DoctorQuery() error = %v", err)
	}
	if !result.Success || result.Response == "" {
		t.Fatalf("DoctorQuery() = %+v, want populated result", result)
	}
}

func TestHealthDownPeer(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", Timeouts{Health: 500 * time.Millisecond})
	status := c.Health(context.Background())
	if status.Status != "unhealthy" || status.Error == "" {
		t.Fatalf("Health() = %+v, want unhealthy with error detail", status)
	}
}
