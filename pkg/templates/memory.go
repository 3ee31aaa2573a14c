package templates

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps templates in a map. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]Template
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[uuid.UUID]Template), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, notFound(id)
	}
	return &t, nil
}

func (s *MemoryStore) List(context.Context) ([]Template, error) {
	s.mu.RLock()
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sortByName(out)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.templates[t.ID]; ok && t.CreatedAt.IsZero() {
		t.CreatedAt = prev.CreatedAt
	}
	if err := Prepare(t, s.now()); err != nil {
		return err
	}
	s.templates[t.ID] = *t
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return notFound(id)
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
