package cognitive

import (
	"context"
	"sync"

	"github.com/mindmate-health/mindmate/internal/store"
)

// MockClient is a configurable peer double for tests and local development.
type MockClient struct {
	mu sync.Mutex

	AnalyzeFunc   func(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error)
	DashboardFunc func(ctx context.Context, req DashboardRequest) (map[string]any, error)
	QueryFunc     func(ctx context.Context, req QueryRequest) (QueryResult, error)

	analyzeCalls []AnalyzeRequest
}

func (m *MockClient) AnalyzeSession(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	m.mu.Lock()
	m.analyzeCalls = append(m.analyzeCalls, req)
	fn := m.AnalyzeFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	score := 80.0
	return AnalyzeResult{
		CognitiveTestScores: []store.CognitiveTestScore{
			{Test: "recall", Score: 8, MaxScore: 10},
		},
		OverallScore: &score,
	}, nil
}

func (m *MockClient) PatientDashboard(ctx context.Context, req DashboardRequest) (map[string]any, error) {
	if m.DashboardFunc != nil {
		return m.DashboardFunc(ctx, req)
	}
	return map[string]any{"patientId": req.PatientID.String()}, nil
}

func (m *MockClient) DoctorQuery(ctx context.Context, req QueryRequest) (QueryResult, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, req)
	}
	return QueryResult{Success: true, Query: req.Query, Response: "no data"}, nil
}

func (m *MockClient) Health(_ context.Context) HealthStatus {
	return HealthStatus{Status: "ok"}
}

// AnalyzeCalls returns a copy of the analyze requests seen so far.
func (m *MockClient) AnalyzeCalls() []AnalyzeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AnalyzeRequest, len(m.analyzeCalls))
	copy(out, m.analyzeCalls)
	return out
}
