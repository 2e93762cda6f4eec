package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists all entities in PostgreSQL. Memories carry a
// pgvector embedding column sized by embeddingDim.
type PostgresStore struct {
	pool         *pgxpool.Pool
	embeddingDim int
}

func NewPostgresStore(ctx context.Context, databaseURL string, embeddingDim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if embeddingDim <= 0 {
		embeddingDim = 1536
	}
	if err := initSchema(ctx, pool, embeddingDim); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, embeddingDim: embeddingDim}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE TABLE IF NOT EXISTS patients (
			patient_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			dob DATE NULL,
			gender TEXT NOT NULL DEFAULT '',
			diagnosis TEXT NOT NULL DEFAULT '',
			interests JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS doctors (
			doctor_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			specialization TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES patients(patient_id),
			created_by TEXT NULL,
			session_date TIMESTAMPTZ NOT NULL,
			exercise_type TEXT NOT NULL DEFAULT 'memory_recall',
			transcript TEXT NOT NULL DEFAULT '',
			ai_extracted_data JSONB NULL,
			cognitive_test_scores JSONB NOT NULL DEFAULT '[]',
			overall_score DOUBLE PRECISION NULL,
			notable_events JSONB NOT NULL DEFAULT '[]',
			doctor_notes TEXT NOT NULL DEFAULT '',
			audio_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_patient_date ON sessions (patient_id, session_date DESC);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			memory_id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES patients(patient_id),
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			dateapprox DATE NULL,
			location TEXT NOT NULL DEFAULT '',
			peopleinvolved JSONB NOT NULL DEFAULT '[]',
			emotional_tone TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			significance_level INTEGER NOT NULL DEFAULT 1,
			embedding vector(%d) NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_memories_patient_created ON memories (patient_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS mri_scans (
			scan_id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES patients(patient_id),
			uploaded_by TEXT NULL,
			session_id TEXT NULL REFERENCES sessions(session_id),
			storage_path TEXT NOT NULL,
			file_size BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'uploaded',
			analysis_data JSONB NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS doctor_records (
			record_id TEXT PRIMARY KEY,
			doctor_id TEXT NOT NULL REFERENCES doctors(doctor_id),
			patient_id TEXT NOT NULL REFERENCES patients(patient_id),
			session_id TEXT NULL REFERENCES sessions(session_id),
			scan_id TEXT NULL REFERENCES mri_scans(scan_id),
			record_type TEXT NOT NULL DEFAULT 'note',
			summary TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			recommendations TEXT NOT NULL DEFAULT '',
			metadata JSONB NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// encodeVector renders the pgvector text literal, e.g. "[0.1,0.2]".
func encodeVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func decodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func emptyArrayJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil || b == nil || string(b) == "null" {
		return []byte("[]")
	}
	return b
}

// Patients

func (s *PostgresStore) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO patients (patient_id, name, dob, gender, diagnosis, interests, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID.String(), p.Name, p.DOB, p.Gender, p.Diagnosis, emptyArrayJSON(p.Interests), p.CreatedAt,
	)
	if err != nil {
		return Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPatient(ctx context.Context, id uuid.UUID) (Patient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT patient_id, name, dob, gender, diagnosis, interests, created_at
		 FROM patients WHERE patient_id=$1`, id.String())
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Patient{}, NotFoundError("patient", id)
	}
	return p, err
}

func (s *PostgresStore) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT patient_id, name, dob, gender, diagnosis, interests, created_at
		 FROM patients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdatePatient(ctx context.Context, p Patient) (Patient, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients SET name=$2, dob=$3, gender=$4, diagnosis=$5, interests=$6
		 WHERE patient_id=$1`,
		p.ID.String(), p.Name, p.DOB, p.Gender, p.Diagnosis, emptyArrayJSON(p.Interests),
	)
	if err != nil {
		return Patient{}, fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Patient{}, NotFoundError("patient", p.ID)
	}
	return s.GetPatient(ctx, p.ID)
}

func (s *PostgresStore) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM patients WHERE patient_id=$1`, id.String())
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError("patient", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (Patient, error) {
	var (
		p         Patient
		idStr     string
		interests []byte
	)
	if err := row.Scan(&idStr, &p.Name, &p.DOB, &p.Gender, &p.Diagnosis, &interests, &p.CreatedAt); err != nil {
		return Patient{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return Patient{}, fmt.Errorf("parse patient id: %w", err)
	}
	p.ID = id
	if len(interests) > 0 {
		if err := json.Unmarshal(interests, &p.Interests); err != nil {
			return Patient{}, fmt.Errorf("unmarshal interests: %w", err)
		}
	}
	return p, nil
}

// Doctors

func (s *PostgresStore) CreateDoctor(ctx context.Context, d Doctor) (Doctor, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO doctors (doctor_id, name, specialization, email, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID.String(), d.Name, d.Specialization, d.Email, d.Phone, d.CreatedAt,
	)
	if err != nil {
		return Doctor{}, fmt.Errorf("insert doctor: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetDoctor(ctx context.Context, id uuid.UUID) (Doctor, error) {
	var (
		d     Doctor
		idStr string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT doctor_id, name, specialization, email, phone, created_at
		 FROM doctors WHERE doctor_id=$1`, id.String(),
	).Scan(&idStr, &d.Name, &d.Specialization, &d.Email, &d.Phone, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Doctor{}, NotFoundError("doctor", id)
	}
	if err != nil {
		return Doctor{}, fmt.Errorf("query doctor: %w", err)
	}
	d.ID = id
	return d, nil
}

func (s *PostgresStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doctor_id, name, specialization, email, phone, created_at
		 FROM doctors ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var (
			d     Doctor
			idStr string
		)
		if err := rows.Scan(&idStr, &d.Name, &d.Specialization, &d.Email, &d.Phone, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse doctor id: %w", err)
		}
		d.ID = id
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateDoctor(ctx context.Context, d Doctor) (Doctor, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE doctors SET name=$2, specialization=$3, email=$4, phone=$5 WHERE doctor_id=$1`,
		d.ID.String(), d.Name, d.Specialization, d.Email, d.Phone,
	)
	if err != nil {
		return Doctor{}, fmt.Errorf("update doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Doctor{}, NotFoundError("doctor", d.ID)
	}
	return s.GetDoctor(ctx, d.ID)
}

func (s *PostgresStore) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM doctors WHERE doctor_id=$1`, id.String())
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError("doctor", id)
	}
	return nil
}

// Sessions

const sessionColumns = `session_id, patient_id, created_by, session_date, exercise_type, transcript,
	ai_extracted_data, cognitive_test_scores, overall_score, notable_events, doctor_notes, audio_url, created_at`

func (s *PostgresStore) CreateSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.SessionDate.IsZero() {
		sess.SessionDate = now
	}
	if sess.ExerciseType == "" {
		sess.ExerciseType = "memory_recall"
	}
	extracted, err := marshalJSON(sess.AIExtractedData)
	if err != nil {
		return Session{}, fmt.Errorf("marshal ai_extracted_data: %w", err)
	}
	var createdBy *string
	if sess.CreatedBy != nil {
		v := sess.CreatedBy.String()
		createdBy = &v
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sess.ID.String(), sess.PatientID.String(), createdBy, sess.SessionDate, sess.ExerciseType,
		sess.Transcript, extracted, emptyArrayJSON(sess.CognitiveTestScores), sess.OverallScore,
		emptyArrayJSON(sess.NotableEvents), sess.DoctorNotes, sess.AudioURL, sess.CreatedAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id=$1`, id.String())
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, NotFoundError("session", id)
	}
	return sess, err
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
}

func (s *PostgresStore) SessionsForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE patient_id=$1 ORDER BY session_date DESC`
	if limit > 0 {
		return s.querySessions(ctx, q+` LIMIT $2`, patientID.String(), limit)
	}
	return s.querySessions(ctx, q, patientID.String())
}

func (s *PostgresStore) querySessions(ctx context.Context, q string, args ...any) ([]Session, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess      Session
		idStr     string
		patientID string
		createdBy *string
		extracted []byte
		scores    []byte
		events    []byte
	)
	err := row.Scan(&idStr, &patientID, &createdBy, &sess.SessionDate, &sess.ExerciseType,
		&sess.Transcript, &extracted, &scores, &sess.OverallScore, &events,
		&sess.DoctorNotes, &sess.AudioURL, &sess.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	if sess.ID, err = uuid.Parse(idStr); err != nil {
		return Session{}, fmt.Errorf("parse session id: %w", err)
	}
	if sess.PatientID, err = uuid.Parse(patientID); err != nil {
		return Session{}, fmt.Errorf("parse session patient id: %w", err)
	}
	if createdBy != nil {
		id, err := uuid.Parse(*createdBy)
		if err != nil {
			return Session{}, fmt.Errorf("parse created_by: %w", err)
		}
		sess.CreatedBy = &id
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &sess.AIExtractedData); err != nil {
			return Session{}, fmt.Errorf("unmarshal ai_extracted_data: %w", err)
		}
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &sess.CognitiveTestScores); err != nil {
			return Session{}, fmt.Errorf("unmarshal cognitive_test_scores: %w", err)
		}
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &sess.NotableEvents); err != nil {
			return Session{}, fmt.Errorf("unmarshal notable_events: %w", err)
		}
	}
	return sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess Session) (Session, error) {
	extracted, err := marshalJSON(sess.AIExtractedData)
	if err != nil {
		return Session{}, fmt.Errorf("marshal ai_extracted_data: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET session_date=$2, exercise_type=$3, transcript=$4,
		 ai_extracted_data=$5, cognitive_test_scores=$6, overall_score=$7,
		 notable_events=$8, doctor_notes=$9, audio_url=$10
		 WHERE session_id=$1`,
		sess.ID.String(), sess.SessionDate, sess.ExerciseType, sess.Transcript,
		extracted, emptyArrayJSON(sess.CognitiveTestScores), sess.OverallScore,
		emptyArrayJSON(sess.NotableEvents), sess.DoctorNotes, sess.AudioURL,
	)
	if err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Session{}, NotFoundError("session", sess.ID)
	}
	return s.GetSession(ctx, sess.ID)
}

func (s *PostgresStore) UpdateSessionAnalysis(ctx context.Context, id uuid.UUID, a SessionAnalysis) error {
	extracted, err := marshalJSON(a.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshal analysis data: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET ai_extracted_data=$2, cognitive_test_scores=$3,
		 overall_score=$4, notable_events=$5 WHERE session_id=$1`,
		id.String(), extracted, emptyArrayJSON(a.Scores), a.OverallScore, emptyArrayJSON(a.NotableEvents),
	)
	if err != nil {
		return fmt.Errorf("write session analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError("session", id)
	}
	return nil
}

func (s *PostgresStore) MarkSessionAnalysisFailed(ctx context.Context, id uuid.UUID, reason string) error {
	marker, err := json.Marshal(map[string]string{"error": reason})
	if err != nil {
		return fmt.Errorf("marshal error marker: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET ai_extracted_data=$2 WHERE session_id=$1`,
		id.String(), marker,
	)
	if err != nil {
		return fmt.Errorf("write failure marker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError("session", id)
	}
	return nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id=$1`, id.String())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError("session", id)
	}
	return nil
}

// Memories

const memoryColumns = `memory_id, patient_id, title, description, dateapprox, location,
	peopleinvolved, emotional_tone, tags, significance_level, embedding::text, created_at`

func (s *PostgresStore) CreateMemory(ctx context.Context, m Memory) (Memory, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.SignificanceLevel <= 0 {
		m.SignificanceLevel = 1
	}
	if len(m.Embedding) > 0 && len(m.Embedding) != s.embeddingDim {
		return Memory{}, fmt.Errorf("embedding dimension %d does not match configured %d", len(m.Embedding), s.embeddingDim)
	}
	var embedding *string
	if len(m.Embedding) > 0 {
		v := encodeVector(m.Embedding)
		embedding = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memories (memory_id, patient_id, title, description, dateapprox, location,
		 peopleinvolved, emotional_tone, tags, significance_level, embedding, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::vector,$12)`,
		m.ID.String(), m.PatientID.String(), m.Title, m.Description, m.DateApprox, m.Location,
		emptyArrayJSON(m.PeopleInvolved), m.EmotionalTone, emptyArrayJSON(m.Tags),
		m.SignificanceLevel, embedding, m.CreatedAt,
	)
	if err != nil {
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetMemory(ctx context.Context, id uuid.UUID) (Memory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE memory_id=$1`, id.String())
	m, err := scanMemory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Memory{}, NotFoundError("memory", id)
	}
	return m, err
}

func (s *PostgresStore) ListMemories(ctx context.Context) ([]Memory, error) {
	return s.queryMemories(ctx, `SELECT `+memoryColumns+` FROM memories ORDER BY created_at DESC`)
}

func (s *PostgresStore) MemoriesForPatient(ctx context.Context, patientID uuid.UUID) ([]Memory, error) {
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE patient_id=$1 ORDER BY created_at DESC`,
		patientID.String())
}

func (s *PostgresStore) SearchMemories(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int) ([]Memory, error) {
	if len(embedding) != s.embeddingDim {
		return nil, fmt.Errorf("query embedding dimension %d does not match configured %d", len(embedding), s.embeddingDim)
	}
	if limit <= 0 {
		limit = 5
	}
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE patient_id=$1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2::vector ASC LIMIT $3`,
		patientID.String(), encodeVector(embedding), limit)
}

func (s *PostgresStore) queryMemories(ctx context.Context, q string, args ...any) ([]Memory, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMemory(row rowScanner) (Memory, error) {
	var (
		m         Memory
		idStr     string
		patientID string
		people    []byte
		tags      []byte
		embedding *string
	)
	err := row.Scan(&idStr, &patientID, &m.Title, &m.Description, &m.DateApprox, &m.Location,
		&people, &m.EmotionalTone, &tags, &m.SignificanceLevel, &embedding, &m.CreatedAt)
	if err != nil {
		return Memory{}, err
	}
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return Memory{}, fmt.Errorf("parse memory id: %w", err)
	}
	if m.PatientID, err = uuid.Parse(patientID); err != nil {
		return Memory{}, fmt.Errorf("parse memory patient id: %w", err)
	}
	if len(people) > 0 {
		if err := json.Unmarshal(people, &m.PeopleInvolved); err != nil {
			return Memory{}, fmt.Errorf("unmarshal peopleinvolved: %w", err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &m.Tags); err != nil {
			return Memory{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if embedding != nil {
		if m.Embedding, err = decodeVector(*embedding); err != nil {
			return Memory{}, err
		}
	}
	return m, nil
}

func (s *PostgresStore) UpdateMemory(ctx context.Context, m Memory) (Memory, error) {
	var embedding *string
	if len(m.Embedding) > 0 {
		if len(m.Embedding) != s.embeddingDim {
			return Memory{}, fmt.Errorf("embedding dimension %d does not match configured %d", len(m.Embedding), s.embeddingDim)
		}
		v := encodeVector(m.Embedding)
		embedding = &v
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories SET title=$2, description=$3, dateapprox=$4, location=$5,
		 peopleinvolved=$6, emotional_tone=$7, tags=$8, significance_level=$9,
		 embedding=COALESCE($10::vector, embedding)
		 WHERE memory_id=$1`,
		m.ID.String(), m.Title, m.Description, m.DateApprox, m.Location,
		emptyArrayJSON(m.PeopleInvolved), m.EmotionalTone, emptyArrayJSON(m.Tags),
		m.SignificanceLevel, embedding,
	)
	if err != nil {
		return Memory{}, fmt.Errorf("update memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Memory{}, NotFoundError("memory", m.ID)
	}
	return s.GetMemory(ctx, m.ID)
}

func (s *PostgresStore) DeleteMemory(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE memory_id=$1`, id.String())
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError("memory", id)
	}
	return nil
}

// Doctor records

func (s *PostgresStore) CreateDoctorRecord(ctx context.Context, r DoctorRecord) (DoctorRecord, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.RecordType == "" {
		r.RecordType = "note"
	}
	metadata, err := marshalJSON(r.Metadata)
	if err != nil {
		return DoctorRecord{}, fmt.Errorf("marshal record metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO doctor_records (record_id, doctor_id, patient_id, session_id, scan_id,
		 record_type, summary, notes, recommendations, metadata, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID.String(), r.DoctorID.String(), r.PatientID.String(),
		uuidPtrString(r.SessionID), uuidPtrString(r.ScanID),
		r.RecordType, r.Summary, r.Notes, r.Recommendations, metadata, r.CreatedAt,
	)
	if err != nil {
		return DoctorRecord{}, fmt.Errorf("insert doctor record: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetDoctorRecord(ctx context.Context, id uuid.UUID) (DoctorRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record_id, doctor_id, patient_id, session_id, scan_id, record_type,
		 summary, notes, recommendations, metadata, created_at
		 FROM doctor_records WHERE record_id=$1`, id.String())
	r, err := scanDoctorRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DoctorRecord{}, NotFoundError("doctor record", id)
	}
	return r, err
}

func (s *PostgresStore) ListDoctorRecords(ctx context.Context) ([]DoctorRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_id, doctor_id, patient_id, session_id, scan_id, record_type,
		 summary, notes, recommendations, metadata, created_at
		 FROM doctor_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query doctor records: %w", err)
	}
	defer rows.Close()

	var out []DoctorRecord
	for rows.Next() {
		r, err := scanDoctorRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanDoctorRecord(row rowScanner) (DoctorRecord, error) {
	var (
		r         DoctorRecord
		idStr     string
		doctorID  string
		patientID string
		sessionID *string
		scanID    *string
		metadata  []byte
	)
	err := row.Scan(&idStr, &doctorID, &patientID, &sessionID, &scanID, &r.RecordType,
		&r.Summary, &r.Notes, &r.Recommendations, &metadata, &r.CreatedAt)
	if err != nil {
		return DoctorRecord{}, err
	}
	if r.ID, err = uuid.Parse(idStr); err != nil {
		return DoctorRecord{}, fmt.Errorf("parse record id: %w", err)
	}
	if r.DoctorID, err = uuid.Parse(doctorID); err != nil {
		return DoctorRecord{}, fmt.Errorf("parse record doctor id: %w", err)
	}
	if r.PatientID, err = uuid.Parse(patientID); err != nil {
		return DoctorRecord{}, fmt.Errorf("parse record patient id: %w", err)
	}
	if r.SessionID, err = parseUUIDPtr(sessionID); err != nil {
		return DoctorRecord{}, err
	}
	if r.ScanID, err = parseUUIDPtr(scanID); err != nil {
		return DoctorRecord{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return DoctorRecord{}, fmt.Errorf("unmarshal record metadata: %w", err)
		}
	}
	return r, nil
}

func (s *PostgresStore) DeleteDoctorRecord(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM doctor_records WHERE record_id=$1`, id.String())
	if err != nil {
		return fmt.Errorf("delete doctor record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError("doctor record", id)
	}
	return nil
}

// MRI scans

func (s *PostgresStore) CreateMRIScan(ctx context.Context, scan MRIScan) (MRIScan, error) {
	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if scan.Status == "" {
		scan.Status = "uploaded"
	}
	analysis, err := marshalJSON(scan.AnalysisData)
	if err != nil {
		return MRIScan{}, fmt.Errorf("marshal scan analysis: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO mri_scans (scan_id, patient_id, uploaded_by, session_id, storage_path,
		 file_size, status, analysis_data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		scan.ID.String(), scan.PatientID.String(), uuidPtrString(scan.UploadedBy),
		uuidPtrString(scan.SessionID), scan.StoragePath, scan.FileSize, scan.Status,
		analysis, scan.CreatedAt,
	)
	if err != nil {
		return MRIScan{}, fmt.Errorf("insert mri scan: %w", err)
	}
	return scan, nil
}

func (s *PostgresStore) GetMRIScan(ctx context.Context, id uuid.UUID) (MRIScan, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT scan_id, patient_id, uploaded_by, session_id, storage_path, file_size,
		 status, analysis_data, created_at FROM mri_scans WHERE scan_id=$1`, id.String())
	scan, err := scanMRIScan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return MRIScan{}, NotFoundError("mri scan", id)
	}
	return scan, err
}

func (s *PostgresStore) ListMRIScans(ctx context.Context) ([]MRIScan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT scan_id, patient_id, uploaded_by, session_id, storage_path, file_size,
		 status, analysis_data, created_at FROM mri_scans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query mri scans: %w", err)
	}
	defer rows.Close()

	var out []MRIScan
	for rows.Next() {
		scan, err := scanMRIScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, scan)
	}
	return out, rows.Err()
}

func scanMRIScan(row rowScanner) (MRIScan, error) {
	var (
		m          MRIScan
		idStr      string
		patientID  string
		uploadedBy *string
		sessionID  *string
		analysis   []byte
	)
	err := row.Scan(&idStr, &patientID, &uploadedBy, &sessionID, &m.StoragePath,
		&m.FileSize, &m.Status, &analysis, &m.CreatedAt)
	if err != nil {
		return MRIScan{}, err
	}
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return MRIScan{}, fmt.Errorf("parse scan id: %w", err)
	}
	if m.PatientID, err = uuid.Parse(patientID); err != nil {
		return MRIScan{}, fmt.Errorf("parse scan patient id: %w", err)
	}
	if m.UploadedBy, err = parseUUIDPtr(uploadedBy); err != nil {
		return MRIScan{}, err
	}
	if m.SessionID, err = parseUUIDPtr(sessionID); err != nil {
		return MRIScan{}, err
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &m.AnalysisData); err != nil {
			return MRIScan{}, fmt.Errorf("unmarshal scan analysis: %w", err)
		}
	}
	return m, nil
}

// Stats and cleanup

func (s *PostgresStore) CountOverview(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM patients),
		        (SELECT count(*) FROM sessions),
		        (SELECT count(*) FROM memories)`,
	).Scan(&c.Patients, &c.Sessions, &c.Memories)
	if err != nil {
		return Counts{}, fmt.Errorf("count overview: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ClearTable(ctx context.Context, table string) (int64, error) {
	if !KnownTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	// Table names come from the fixed constant set above, never from input.
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+table)
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	v := id.String()
	return &v
}

func parseUUIDPtr(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("parse uuid: %w", err)
	}
	return &id, nil
}
