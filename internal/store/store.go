package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced entity does not exist. Callers
// check it with errors.Is and surface a message naming the missing entity.
var ErrNotFound = errors.New("not found")

// NotFoundError wraps ErrNotFound with the entity name and ID.
func NotFoundError(entity string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Tables that the cleanup routine may clear, in no particular order here;
// the dependency-safe order lives in the cleanup package.
const (
	TablePatients      = "patients"
	TableDoctors       = "doctors"
	TableSessions      = "sessions"
	TableMemories      = "memories"
	TableDoctorRecords = "doctor_records"
	TableMRIScans      = "mri_scans"
)

// KnownTable reports whether name is one of the service's tables.
func KnownTable(name string) bool {
	switch strings.TrimSpace(name) {
	case TablePatients, TableDoctors, TableSessions, TableMemories, TableDoctorRecords, TableMRIScans:
		return true
	}
	return false
}

// Counts holds per-entity row counts for the stats endpoint.
type Counts struct {
	Patients int64 `json:"patients"`
	Sessions int64 `json:"sessions"`
	Memories int64 `json:"memories"`
}

// Store persists and retrieves all MindMate entities. Single-row writes are
// atomic; the store performs no multi-row transactions on behalf of callers.
type Store interface {
	CreatePatient(ctx context.Context, p Patient) (Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, p Patient) (Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error

	CreateDoctor(ctx context.Context, d Doctor) (Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	UpdateDoctor(ctx context.Context, d Doctor) (Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	// SessionsForPatient returns the patient's sessions ordered by
	// session_date descending. limit <= 0 means no limit.
	SessionsForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Session, error)
	UpdateSession(ctx context.Context, s Session) (Session, error)
	// UpdateSessionAnalysis applies a successful analysis result to one
	// session row in a single write.
	UpdateSessionAnalysis(ctx context.Context, id uuid.UUID, a SessionAnalysis) error
	// MarkSessionAnalysisFailed writes the error marker into
	// ai_extracted_data, leaving overall_score and scores untouched.
	MarkSessionAnalysisFailed(ctx context.Context, id uuid.UUID, reason string) error
	DeleteSession(ctx context.Context, id uuid.UUID) error

	CreateMemory(ctx context.Context, m Memory) (Memory, error)
	GetMemory(ctx context.Context, id uuid.UUID) (Memory, error)
	ListMemories(ctx context.Context) ([]Memory, error)
	MemoriesForPatient(ctx context.Context, patientID uuid.UUID) ([]Memory, error)
	UpdateMemory(ctx context.Context, m Memory) (Memory, error)
	DeleteMemory(ctx context.Context, id uuid.UUID) error
	// SearchMemories ranks a patient's memories by cosine distance to the
	// query embedding. The embedding width must match the store's configured
	// vector dimension.
	SearchMemories(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int) ([]Memory, error)

	CreateDoctorRecord(ctx context.Context, r DoctorRecord) (DoctorRecord, error)
	GetDoctorRecord(ctx context.Context, id uuid.UUID) (DoctorRecord, error)
	ListDoctorRecords(ctx context.Context) ([]DoctorRecord, error)
	DeleteDoctorRecord(ctx context.Context, id uuid.UUID) error

	CreateMRIScan(ctx context.Context, s MRIScan) (MRIScan, error)
	GetMRIScan(ctx context.Context, id uuid.UUID) (MRIScan, error)
	ListMRIScans(ctx context.Context) ([]MRIScan, error)

	CountOverview(ctx context.Context) (Counts, error)

	// ClearTable deletes every row from one table and returns the number of
	// rows removed. Used only by the cleanup routine.
	ClearTable(ctx context.Context, table string) (int64, error)

	Close() error
}
