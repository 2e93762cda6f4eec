package cleanup

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mindmate-health/mindmate/internal/store"
)

func seedAllTables(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	patient, err := st.CreatePatient(ctx, store.Patient{Name: "p"})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	doctor, err := st.CreateDoctor(ctx, store.Doctor{Name: "d"})
	if err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	sess, err := st.CreateSession(ctx, store.Session{PatientID: patient.ID})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, err := st.CreateMemory(ctx, store.Memory{PatientID: patient.ID, Title: "m"}); err != nil {
		t.Fatalf("seed memory: %v", err)
	}
	if _, err := st.CreateMRIScan(ctx, store.MRIScan{PatientID: patient.ID, StoragePath: "scans/x"}); err != nil {
		t.Fatalf("seed scan: %v", err)
	}
	if _, err := st.CreateDoctorRecord(ctx, store.DoctorRecord{
		DoctorID:  doctor.ID,
		PatientID: patient.ID,
		SessionID: &sess.ID,
		Summary:   "s",
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func totalRows(t *testing.T, st store.Store) int {
	t.Helper()
	ctx := context.Background()
	patients, _ := st.ListPatients(ctx)
	doctors, _ := st.ListDoctors(ctx)
	sessions, _ := st.ListSessions(ctx)
	memories, _ := st.ListMemories(ctx)
	records, _ := st.ListDoctorRecords(ctx)
	scans, _ := st.ListMRIScans(ctx)
	return len(patients) + len(doctors) + len(sessions) + len(memories) + len(records) + len(scans)
}

func TestRunNonConfirmingInputDeletesNothing(t *testing.T) {
	st := store.NewInMemoryStore(4)
	seedAllTables(t, st)
	before := totalRows(t, st)

	var out bytes.Buffer
	r := &Runner{Store: st, In: strings.NewReader("no thanks\n"), Out: &out}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results != nil {
		t.Fatalf("Run() results = %v, want nil on abort", results)
	}
	if got := totalRows(t, st); got != before {
		t.Fatalf("rows after abort = %d, want %d untouched", got, before)
	}
	if !strings.Contains(out.String(), "cancelled") {
		t.Fatalf("output missing cancellation notice: %q", out.String())
	}
}

func TestRunEmptyInputDeletesNothing(t *testing.T) {
	st := store.NewInMemoryStore(4)
	seedAllTables(t, st)
	before := totalRows(t, st)

	var out bytes.Buffer
	r := &Runner{Store: st, In: strings.NewReader(""), Out: &out}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := totalRows(t, st); got != before {
		t.Fatalf("rows after abort = %d, want %d untouched", got, before)
	}
}

func TestRunConfirmedClearsEverythingInOrder(t *testing.T) {
	st := store.NewInMemoryStore(4)
	seedAllTables(t, st)

	var out bytes.Buffer
	r := &Runner{Store: st, In: strings.NewReader("confirm\n"), Out: &out}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(results) != len(DeleteOrder) {
		t.Fatalf("results = %d tables, want %d", len(results), len(DeleteOrder))
	}
	for i, res := range results {
		if res.Table != DeleteOrder[i] {
			t.Fatalf("results[%d].Table = %q, want %q", i, res.Table, DeleteOrder[i])
		}
		if res.Err != nil {
			t.Fatalf("results[%d] (%s) error = %v", i, res.Table, res.Err)
		}
	}
	if got := totalRows(t, st); got != 0 {
		t.Fatalf("rows after cleanup = %d, want 0", got)
	}
	if Failed(results) {
		t.Fatal("Failed() = true for a clean run")
	}
}

// tableFailStore fails ClearTable for a single table.
type tableFailStore struct {
	store.Store
	failTable string
}

func (s *tableFailStore) ClearTable(ctx context.Context, table string) (int64, error) {
	if table == s.failTable {
		return 0, fmt.Errorf("clear %s: permission denied", table)
	}
	return s.Store.ClearTable(ctx, table)
}

func TestRunContinuesPastFailingTable(t *testing.T) {
	inner := store.NewInMemoryStore(4)
	seedAllTables(t, inner)
	st := &tableFailStore{Store: inner, failTable: store.TableMemories}

	var out bytes.Buffer
	r := &Runner{Store: st, In: strings.NewReader("CONFIRM\n"), Out: &out}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(results) != len(DeleteOrder) {
		t.Fatalf("results = %d tables, want all %d attempted", len(results), len(DeleteOrder))
	}
	var sawFailure bool
	for _, res := range results {
		if res.Table == store.TableMemories {
			if res.Err == nil {
				t.Fatal("expected memories table to fail")
			}
			sawFailure = true
		} else if res.Err != nil {
			t.Fatalf("table %s error = %v, want nil", res.Table, res.Err)
		}
	}
	if !sawFailure {
		t.Fatal("memories table was never attempted")
	}
	if !Failed(results) {
		t.Fatal("Failed() = false despite a table error")
	}

	// Everything except memories is gone, including tables after it in order.
	ctx := context.Background()
	if sessions, _ := inner.ListSessions(ctx); len(sessions) != 0 {
		t.Fatalf("sessions remaining = %d, want 0", len(sessions))
	}
	if patients, _ := inner.ListPatients(ctx); len(patients) != 0 {
		t.Fatalf("patients remaining = %d, want 0", len(patients))
	}
	if memories, _ := inner.ListMemories(ctx); len(memories) != 1 {
		t.Fatalf("memories remaining = %d, want 1 (failed table untouched)", len(memories))
	}
}
