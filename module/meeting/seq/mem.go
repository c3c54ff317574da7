package seq

import (
	"context"
	"sync"
)

// memStore keeps counters in process memory. It is only correct for a single
// instance and backs tests and the all-in-one node.
type memStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemStore() Store {
	return &memStore{counts: make(map[string]int64)}
}

func (s *memStore) Incr(ctx context.Context, meetingCode string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[meetingCode]++
	return s.counts[meetingCode], nil
}

func (s *memStore) Load(ctx context.Context, meetingCode string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[meetingCode], nil
}

func (s *memStore) Ensure(ctx context.Context, meetingCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counts[meetingCode]; !ok {
		s.counts[meetingCode] = 0
	}
	return nil
}
