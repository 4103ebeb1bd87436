package transaction

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore backs local runs and tests. Same transition contract as the
// SQL stores: the state check and the write happen under one lock.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Transaction)}
}

func (s *MemoryStore) Create(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tx.ID] = *tx
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id string, state State, processorRef string) (*Transaction, error) {
	if !state.Terminal() {
		return nil, ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	if tx.State.Terminal() {
		return &tx, nil
	}
	tx.State = state
	if tx.ProcessorRef == "" {
		tx.ProcessorRef = processorRef
	}
	s.data[id] = tx
	return &tx, nil
}

func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Transaction, 0, len(s.data))
	for _, tx := range s.data {
		all = append(all, tx)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
