package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNotFoundSemantics(t *testing.T) {
	st := NewInMemoryStore(4)
	ctx := context.Background()

	if _, err := st.GetPatient(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPatient() error = %v, want ErrNotFound", err)
	}
	if err := st.DeleteSession(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteSession() error = %v, want ErrNotFound", err)
	}
	if err := st.MarkSessionAnalysisFailed(ctx, uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkSessionAnalysisFailed() error = %v, want ErrNotFound", err)
	}
}

func TestSessionsForPatientOrderAndLimit(t *testing.T) {
	st := NewInMemoryStore(4)
	ctx := context.Background()
	patient, err := st.CreatePatient(ctx, Patient{Name: "p"})
	if err != nil {
		t.Fatalf("CreatePatient() error = %v", err)
	}

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := st.CreateSession(ctx, Session{
			PatientID:   patient.ID,
			SessionDate: base.AddDate(0, 0, i),
		}); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	sessions, err := st.SessionsForPatient(ctx, patient.ID, 2)
	if err != nil {
		t.Fatalf("SessionsForPatient() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want limit 2", len(sessions))
	}
	if !sessions[0].SessionDate.After(sessions[1].SessionDate) {
		t.Fatalf("sessions not in descending date order: %v then %v",
			sessions[0].SessionDate, sessions[1].SessionDate)
	}
}

func TestMarkAnalysisFailedLeavesScore(t *testing.T) {
	st := NewInMemoryStore(4)
	ctx := context.Background()
	patient, _ := st.CreatePatient(ctx, Patient{Name: "p"})
	score := 72.0
	sess, err := st.CreateSession(ctx, Session{PatientID: patient.ID, OverallScore: &score})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := st.MarkSessionAnalysisFailed(ctx, sess.ID, "peer timeout"); err != nil {
		t.Fatalf("MarkSessionAnalysisFailed() error = %v", err)
	}

	got, _ := st.GetSession(ctx, sess.ID)
	if !got.AnalysisFailed() {
		t.Fatalf("session missing error marker: %+v", got.AIExtractedData)
	}
	if got.OverallScore == nil || *got.OverallScore != 72.0 {
		t.Fatalf("overall score = %v, want prior 72.0", got.OverallScore)
	}
}

func TestSearchMemoriesNearest(t *testing.T) {
	st := NewInMemoryStore(3)
	ctx := context.Background()
	patient, _ := st.CreatePatient(ctx, Patient{Name: "p"})

	for _, m := range []Memory{
		{PatientID: patient.ID, Title: "garden", Embedding: []float32{1, 0, 0}},
		{PatientID: patient.ID, Title: "seaside", Embedding: []float32{0, 1, 0}},
		{PatientID: patient.ID, Title: "no embedding"},
	} {
		if _, err := st.CreateMemory(ctx, m); err != nil {
			t.Fatalf("CreateMemory(%q) error = %v", m.Title, err)
		}
	}

	hits, err := st.SearchMemories(ctx, patient.ID, []float32{0.9, 0.1, 0}, 1)
	if err != nil {
		t.Fatalf("SearchMemories() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "garden" {
		t.Fatalf("hits = %+v, want single garden hit", hits)
	}
}

func TestClearTableUnknown(t *testing.T) {
	st := NewInMemoryStore(4)
	if _, err := st.ClearTable(context.Background(), "users"); err == nil {
		t.Fatal("ClearTable() accepted unknown table")
	}
}
