package memory

import (
	"context"

	"github.com/yungbote/feedstream-backend/internal/logger"
)

type ActivityStore struct {
	reg *Registry
	log *logger.Logger
}

func NewActivityStore(reg *Registry, baseLog *logger.Logger) *ActivityStore {
	return &ActivityStore{reg: reg, log: baseLog.With("store", "MemoryActivity")}
}

func (s *ActivityStore) AddMany(ctx context.Context, payloads map[string][]byte) error {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	for id, payload := range payloads {
		s.reg.activities[id] = append([]byte(nil), payload...)
	}
	return nil
}

func (s *ActivityStore) GetMany(ctx context.Context, ids []string) (map[string][]byte, error) {
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if payload, ok := s.reg.activities[id]; ok {
			out[id] = payload
		}
	}
	return out, nil
}

func (s *ActivityStore) RemoveMany(ctx context.Context, ids []string) error {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	for _, id := range ids {
		delete(s.reg.activities, id)
	}
	return nil
}
