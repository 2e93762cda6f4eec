package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu            sync.RWMutex
	embeddingDim  int
	patients      map[uuid.UUID]Patient
	doctors       map[uuid.UUID]Doctor
	sessions      map[uuid.UUID]Session
	memories      map[uuid.UUID]Memory
	doctorRecords map[uuid.UUID]DoctorRecord
	mriScans      map[uuid.UUID]MRIScan
}

func NewInMemoryStore(embeddingDim int) *InMemoryStore {
	if embeddingDim <= 0 {
		embeddingDim = 1536
	}
	return &InMemoryStore{
		embeddingDim:  embeddingDim,
		patients:      make(map[uuid.UUID]Patient),
		doctors:       make(map[uuid.UUID]Doctor),
		sessions:      make(map[uuid.UUID]Session),
		memories:      make(map[uuid.UUID]Memory),
		doctorRecords: make(map[uuid.UUID]DoctorRecord),
		mriScans:      make(map[uuid.UUID]MRIScan),
	}
}

func (s *InMemoryStore) CreatePatient(_ context.Context, p Patient) (Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.patients[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) GetPatient(_ context.Context, id uuid.UUID) (Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return Patient{}, NotFoundError("patient", id)
	}
	return p, nil
}

func (s *InMemoryStore) ListPatients(_ context.Context) ([]Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdatePatient(_ context.Context, p Patient) (Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.patients[p.ID]
	if !ok {
		return Patient{}, NotFoundError("patient", p.ID)
	}
	p.CreatedAt = existing.CreatedAt
	s.patients[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) DeletePatient(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[id]; !ok {
		return NotFoundError("patient", id)
	}
	delete(s.patients, id)
	return nil
}

func (s *InMemoryStore) CreateDoctor(_ context.Context, d Doctor) (Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.doctors[d.ID] = d
	return d, nil
}

func (s *InMemoryStore) GetDoctor(_ context.Context, id uuid.UUID) (Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	if !ok {
		return Doctor{}, NotFoundError("doctor", id)
	}
	return d, nil
}

func (s *InMemoryStore) ListDoctors(_ context.Context) ([]Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateDoctor(_ context.Context, d Doctor) (Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.doctors[d.ID]
	if !ok {
		return Doctor{}, NotFoundError("doctor", d.ID)
	}
	d.CreatedAt = existing.CreatedAt
	s.doctors[d.ID] = d
	return d, nil
}

func (s *InMemoryStore) DeleteDoctor(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doctors[id]; !ok {
		return NotFoundError("doctor", id)
	}
	delete(s.doctors, id)
	return nil
}

func (s *InMemoryStore) CreateSession(_ context.Context, sess Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, NotFoundError("session", id)
	}
	return sess, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SessionsForPatient(_ context.Context, patientID uuid.UUID, limit int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Session
	for _, sess := range s.sessions {
		if sess.PatientID == patientID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionDate.After(out[j].SessionDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdateSession(_ context.Context, sess Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[sess.ID]
	if !ok {
		return Session{}, NotFoundError("session", sess.ID)
	}
	sess.PatientID = existing.PatientID
	sess.CreatedAt = existing.CreatedAt
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *InMemoryStore) UpdateSessionAnalysis(_ context.Context, id uuid.UUID, a SessionAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return NotFoundError("session", id)
	}
	sess.AIExtractedData = a.ExtractedData
	sess.CognitiveTestScores = a.Scores
	sess.OverallScore = a.OverallScore
	sess.NotableEvents = a.NotableEvents
	s.sessions[id] = sess
	return nil
}

func (s *InMemoryStore) MarkSessionAnalysisFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return NotFoundError("session", id)
	}
	sess.AIExtractedData = map[string]any{"error": reason}
	s.sessions[id] = sess
	return nil
}

func (s *InMemoryStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return NotFoundError("session", id)
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) CreateMemory(_ context.Context, m Memory) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.SignificanceLevel <= 0 {
		m.SignificanceLevel = 1
	}
	s.memories[m.ID] = m
	return m, nil
}

func (s *InMemoryStore) GetMemory(_ context.Context, id uuid.UUID) (Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return Memory{}, NotFoundError("memory", id)
	}
	return m, nil
}

func (s *InMemoryStore) ListMemories(_ context.Context) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Memory, 0, len(s.memories))
	for _, m := range s.memories {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) MemoriesForPatient(_ context.Context, patientID uuid.UUID) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Memory
	for _, m := range s.memories {
		if m.PatientID == patientID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SearchMemories(_ context.Context, patientID uuid.UUID, embedding []float32, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		m    Memory
		dist float64
	}
	var candidates []scored
	for _, m := range s.memories {
		if m.PatientID != patientID || len(m.Embedding) == 0 {
			continue
		}
		if len(m.Embedding) != len(embedding) {
			continue
		}
		candidates = append(candidates, scored{m: m, dist: cosineDistance(embedding, m.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Memory, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.m)
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (s *InMemoryStore) UpdateMemory(_ context.Context, m Memory) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.memories[m.ID]
	if !ok {
		return Memory{}, NotFoundError("memory", m.ID)
	}
	m.PatientID = existing.PatientID
	m.CreatedAt = existing.CreatedAt
	if len(m.Embedding) == 0 {
		m.Embedding = existing.Embedding
	}
	s.memories[m.ID] = m
	return m, nil
}

func (s *InMemoryStore) DeleteMemory(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[id]; !ok {
		return NotFoundError("memory", id)
	}
	delete(s.memories, id)
	return nil
}

func (s *InMemoryStore) CreateDoctorRecord(_ context.Context, r DoctorRecord) (DoctorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.RecordType == "" {
		r.RecordType = "note"
	}
	s.doctorRecords[r.ID] = r
	return r, nil
}

func (s *InMemoryStore) GetDoctorRecord(_ context.Context, id uuid.UUID) (DoctorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.doctorRecords[id]
	if !ok {
		return DoctorRecord{}, NotFoundError("doctor record", id)
	}
	return r, nil
}

func (s *InMemoryStore) ListDoctorRecords(_ context.Context) ([]DoctorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DoctorRecord, 0, len(s.doctorRecords))
	for _, r := range s.doctorRecords {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteDoctorRecord(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doctorRecords[id]; !ok {
		return NotFoundError("doctor record", id)
	}
	delete(s.doctorRecords, id)
	return nil
}

func (s *InMemoryStore) CreateMRIScan(_ context.Context, scan MRIScan) (MRIScan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if scan.Status == "" {
		scan.Status = "uploaded"
	}
	s.mriScans[scan.ID] = scan
	return scan, nil
}

func (s *InMemoryStore) GetMRIScan(_ context.Context, id uuid.UUID) (MRIScan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scan, ok := s.mriScans[id]
	if !ok {
		return MRIScan{}, NotFoundError("mri scan", id)
	}
	return scan, nil
}

func (s *InMemoryStore) ListMRIScans(_ context.Context) ([]MRIScan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MRIScan, 0, len(s.mriScans))
	for _, scan := range s.mriScans {
		out = append(out, scan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CountOverview(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Patients: int64(len(s.patients)),
		Sessions: int64(len(s.sessions)),
		Memories: int64(len(s.memories)),
	}, nil
}

func (s *InMemoryStore) ClearTable(_ context.Context, table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case TablePatients:
		n := int64(len(s.patients))
		s.patients = make(map[uuid.UUID]Patient)
		return n, nil
	case TableDoctors:
		n := int64(len(s.doctors))
		s.doctors = make(map[uuid.UUID]Doctor)
		return n, nil
	case TableSessions:
		n := int64(len(s.sessions))
		s.sessions = make(map[uuid.UUID]Session)
		return n, nil
	case TableMemories:
		n := int64(len(s.memories))
		s.memories = make(map[uuid.UUID]Memory)
		return n, nil
	case TableDoctorRecords:
		n := int64(len(s.doctorRecords))
		s.doctorRecords = make(map[uuid.UUID]DoctorRecord)
		return n, nil
	case TableMRIScans:
		n := int64(len(s.mriScans))
		s.mriScans = make(map[uuid.UUID]MRIScan)
		return n, nil
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
}

func (s *InMemoryStore) Close() error { return nil }
