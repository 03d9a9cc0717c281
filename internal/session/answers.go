package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/akademix/examroom-backend/internal/model"
)

// AnswerStore holds the in-memory answer records for one session. It is the
// source of truth for scoring until the submission is finalized; durable
// writes only mirror it. Mutated exclusively through controller operations.
type AnswerStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]model.AnswerRecord
}

// NewAnswerStore creates an empty AnswerStore.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{records: make(map[uuid.UUID]model.AnswerRecord)}
}

// Get returns the record for a question, if any.
func (s *AnswerStore) Get(questionID uuid.UUID) (model.AnswerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[questionID]
	return rec, ok
}

// Put stores or overwrites the record for a question. Last write wins.
func (s *AnswerStore) Put(rec model.AnswerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.QuestionID] = rec
}

// Len returns the number of records.
func (s *AnswerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of all records keyed by question ID.
func (s *AnswerStore) Snapshot() map[uuid.UUID]model.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]model.AnswerRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}
