package storage

import (
	"context"
	"fmt"
	"sync"

	"cellmlhub/internal/model"
)

type MemoryStore struct {
	mu    sync.RWMutex
	graph *model.Graph
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		s.graph = model.NewGraph()
	}
	return nil
}

func (s *MemoryStore) LoadGraph(_ context.Context) (*model.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil {
		return nil, ErrNotInitialized
	}
	return s.graph.Clone(), nil
}

func (s *MemoryStore) Apply(_ context.Context, changes model.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return ErrNotInitialized
	}
	for _, e := range changes.Upserts {
		if e.Base().ID == "" {
			return fmt.Errorf("apply %s: empty id", e.Kind())
		}
		if _, err := model.New(e.Kind()); err != nil {
			return err
		}
	}
	for _, ref := range changes.Deletes {
		if _, err := model.New(ref.Kind); err != nil {
			return err
		}
	}

	for _, e := range changes.Upserts {
		if err := s.graph.Put(e.Clone()); err != nil {
			return err
		}
	}
	for _, ref := range changes.Deletes {
		s.graph.Remove(ref)
	}
	return nil
}

func (s *MemoryStore) GetEntity(_ context.Context, ref model.Ref) (model.Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil {
		return nil, false, ErrNotInitialized
	}
	e, ok := s.graph.Get(ref)
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (s *MemoryStore) ListEntities(_ context.Context, kind model.Kind) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil {
		return nil, ErrNotInitialized
	}
	if _, err := model.New(kind); err != nil {
		return nil, err
	}
	entities := s.graph.Entities(kind)
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Clone())
	}
	return out, nil
}
