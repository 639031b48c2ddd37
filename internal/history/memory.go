package history

import (
	"context"
	"sync"
	"time"
)

// defaultMemoryCap bounds the in-memory log so a long-running session cannot
// grow it without limit.
const defaultMemoryCap = 1024

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process [Store]. It keeps the most recent entries up
// to a fixed cap and is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cap: defaultMemoryCap}
}

// Record implements [Store]. Once the cap is reached the oldest entry is
// dropped.
func (s *MemoryStore) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
	return nil
}

// Recent implements [Store].
func (s *MemoryStore) Recent(ctx context.Context, session string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Entry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Session != session {
			continue
		}
		out = append(out, s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
