package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	turns  []*Turn
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Put stores a turn and assigns it the next id.
func (s *MemoryStore) Put(_ context.Context, turn *Turn) (int64, error) {
	if turn == nil {
		return 0, errNilTurn
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *turn
	stored.ID = s.nextID
	s.nextID++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.turns = append(s.turns, &stored)
	turn.ID = stored.ID
	return stored.ID, nil
}

// Get retrieves a turn by id.
func (s *MemoryStore) Get(_ context.Context, id int64) (*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.turns {
		if t.ID == id {
			copied := *t
			return &copied, nil
		}
	}
	return nil, ErrNotFound{ID: id}
}

// List returns all turns, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Turn, 0, len(s.turns))
	for i := len(s.turns) - 1; i >= 0; i-- {
		copied := *s.turns[i]
		out = append(out, &copied)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
