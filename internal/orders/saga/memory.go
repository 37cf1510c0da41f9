package saga

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps saga records in memory, for tests and DB-less runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory saga store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Create inserts the record, generating an id when none is supplied. An
// existing id short-circuits and returns the stored record unchanged.
func (s *MemoryStore) Create(ctx context.Context, rec Record) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID != "" {
		if existing, ok := s.records[rec.ID]; ok {
			return existing, false, nil
		}
	} else {
		rec.ID = uuid.NewString()
	}

	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = rec
	return rec, true, nil
}

// Save updates the step of an existing saga.
func (s *MemoryStore) Save(ctx context.Context, id string, step Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Step = step
	rec.UpdatedAt = s.now()
	s.records[id] = rec
	return nil
}

// Get returns the saga with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}
