package cognitive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the interface the orchestrator and handlers depend on. HTTPClient
// is the real implementation; MockClient serves tests.
type Client interface {
	AnalyzeSession(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error)
	PatientDashboard(ctx context.Context, req DashboardRequest) (map[string]any, error)
	DoctorQuery(ctx context.Context, req QueryRequest) (QueryResult, error)
	Health(ctx context.Context) HealthStatus
}

// Timeouts per request type. Analysis is known to be slow (60-120s on the
// hosted peer), dashboards less so, queries least.
type Timeouts struct {
	Analyze   time.Duration
	Dashboard time.Duration
	Query     time.Duration
	Health    time.Duration
}

func (t *Timeouts) applyDefaults() {
	if t.Analyze <= 0 {
		t.Analyze = 120 * time.Second
	}
	if t.Dashboard <= 0 {
		t.Dashboard = 60 * time.Second
	}
	if t.Query <= 0 {
		t.Query = 30 * time.Second
	}
	if t.Health <= 0 {
		t.Health = 10 * time.Second
	}
}

// HTTPClient talks to a Cognitive API deployment over HTTP/JSON.
type HTTPClient struct {
	baseURL  string
	timeouts Timeouts
	client   *http.Client
}

func NewHTTPClient(baseURL string, timeouts Timeouts) *HTTPClient {
	timeouts.applyDefaults()
	return &HTTPClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeouts: timeouts,
		// Per-request deadlines come from contexts; no client-wide timeout,
		// it would cap the slow analyze path too.
		client: &http.Client{},
	}
}

func (c *HTTPClient) AnalyzeSession(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Analyze)
	defer cancel()

	var result AnalyzeResult
	if err := c.postJSON(ctx, "/analyze/session", req, &result); err != nil {
		return AnalyzeResult{}, err
	}
	if err := result.Validate(); err != nil {
		return AnalyzeResult{}, fmt.Errorf("analysis response rejected: %w", err)
	}
	return result, nil
}

func (c *HTTPClient) PatientDashboard(ctx context.Context, req DashboardRequest) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Dashboard)
	defer cancel()

	var result map[string]any
	if err := c.postJSON(ctx, "/patient/dashboard", req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *HTTPClient) DoctorQuery(ctx context.Context, req QueryRequest) (QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Query)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return QueryResult{}, fmt.Errorf("marshal query: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/doctor/query", payload)
	if err != nil {
		return QueryResult{}, err
	}
	// Doctor query responds with the result object directly, no envelope.
	var result QueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return QueryResult{}, fmt.Errorf("decode query response: %w", err)
	}
	return result, nil
}

func (c *HTTPClient) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Health)
	defer cancel()

	body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{Status: "unhealthy", Error: err.Error()}
	}
	var status HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return HealthStatus{Status: "unhealthy", Error: err.Error()}
	}
	if status.Status == "" {
		status.Status = "ok"
	}
	return status
}

// envelope is the {"data": ...} wrapper the peer puts around analyze and
// dashboard payloads.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, req any, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("response envelope missing data field")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cognitive api request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("cognitive api status %d: %s", res.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
