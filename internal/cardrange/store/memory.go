package store

import (
	"context"
	"sort"
	"sync"

	"tessera/internal/cardrange/models"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// Memory is the in-memory range store backing unit tests and local
// development.
type Memory struct {
	mu   sync.RWMutex
	rows map[id.RangeID]*models.Range
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[id.RangeID]*models.Range)}
}

func (s *Memory) Create(_ context.Context, r *models.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[r.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *r
	s.rows[r.ID] = &clone
	return nil
}

func (s *Memory) Delete(_ context.Context, rangeID id.RangeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[rangeID]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.rows, rangeID)
	return nil
}

func (s *Memory) FindByID(_ context.Context, rangeID id.RangeID) (*models.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.rows[rangeID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

// ListAll returns every registered range ordered by start ascending. This
// ordering establishes the allocation order: lower numbers are offered first.
func (s *Memory) ListAll(_ context.Context) ([]*models.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Range, 0, len(s.rows))
	for _, row := range s.rows {
		clone := *row
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}
