package ranking

import (
	"context"
	"sync"

	"jobmate/matching-service/internal/model"
)

// Store persists one ranking generation per job.
//
// Replace swaps the job's generation as a single unit: readers see either
// the previous complete generation or the new one. It returns
// ErrStaleGeneration, leaving the store untouched, when the stored
// generation belongs to a run that started after gen's run. Replacing with
// the generation that is already current succeeds without change.
type Store interface {
	Replace(ctx context.Context, gen *model.Generation) error
	Current(ctx context.Context, jobID string) (*model.Generation, error)
}

// MemoryStore is an in-process Store, used by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	gens map[string]*model.Generation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{gens: make(map[string]*model.Generation)}
}

func (s *MemoryStore) Replace(_ context.Context, gen *model.Generation) error {
	cp := cloneGeneration(gen)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.gens[gen.JobID]; ok {
		if cur.ID == gen.ID {
			return nil
		}
		if cur.StartedAt.After(gen.StartedAt) {
			return ErrStaleGeneration
		}
	}
	s.gens[gen.JobID] = cp
	return nil
}

func (s *MemoryStore) Current(_ context.Context, jobID string) (*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.gens[jobID]
	if !ok {
		return nil, ErrNoRanking
	}
	return cloneGeneration(cur), nil
}

func cloneGeneration(g *model.Generation) *model.Generation {
	cp := *g
	cp.Matches = append(make([]model.MatchResult, 0, len(g.Matches)), g.Matches...)
	return &cp
}
