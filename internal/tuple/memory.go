package tuple

import (
	"context"
	"iter"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used when no database DSN is configured
// and throughout the test suite. Readers iterate over an immutable snapshot
// taken at query time, so concurrent writes never corrupt an in-flight scan.
type MemoryStore struct {
	mu      sync.RWMutex
	vaults  map[string]map[Tuple]struct{}
	deleted map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vaults:  make(map[string]map[Tuple]struct{}),
		deleted: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Write(ctx context.Context, vaultID string, tuples []Tuple) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, t := range tuples {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.deleted[vaultID]; gone {
		return ErrVaultNotFound
	}
	graph, ok := s.vaults[vaultID]
	if !ok {
		graph = make(map[Tuple]struct{})
		s.vaults[vaultID] = graph
	}
	for _, t := range tuples {
		graph[t] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, vaultID string, tuples []Tuple) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.deleted[vaultID]; gone {
		return ErrVaultNotFound
	}
	graph, ok := s.vaults[vaultID]
	if !ok {
		return nil
	}
	for _, t := range tuples {
		delete(graph, t)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vaultID string, filter Filter) iter.Seq2[Tuple, error] {
	return func(yield func(Tuple, error) bool) {
		snapshot, err := s.snapshot(vaultID, filter)
		if err != nil {
			yield(Tuple{}, err)
			return
		}
		for _, t := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(Tuple{}, err)
				return
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) snapshot(vaultID string, filter Filter) ([]Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, gone := s.deleted[vaultID]; gone {
		return nil, ErrVaultNotFound
	}
	graph := s.vaults[vaultID]
	out := make([]Tuple, 0, len(graph))
	for t := range graph {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	// Stable iteration for a given snapshot.
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *MemoryStore) DeleteVault(ctx context.Context, vaultID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vaults, vaultID)
	s.deleted[vaultID] = struct{}{}
	return nil
}
