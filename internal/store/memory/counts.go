package memory

import (
	"context"
	"sync"
)

type CountStore struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewCountStore() *CountStore {
	return &CountStore{counts: make(map[string]int)}
}

func (s *CountStore) Get(ctx context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[key], nil
}

func (s *CountStore) Set(ctx context.Context, key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key] = value
	return nil
}
