package audit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory attempt log for tests and embedded use.
type Memory struct {
	mu       sync.RWMutex
	attempts []Attempt
}

// NewMemory creates an empty in-memory log.
func NewMemory() *Memory {
	return &Memory{}
}

// Append writes one attempt record.
func (m *Memory) Append(ctx context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

// Recent returns up to limit attempts for the user, newest first.
func (m *Memory) Recent(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Attempt
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.attempts[i].UserID == userID {
			out = append(out, m.attempts[i])
		}
	}
	return out, nil
}

// Prune deletes records older than the cutoff.
func (m *Memory) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attempts[:0]
	var removed int64
	for _, a := range m.attempts {
		if a.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	m.attempts = kept
	return removed, nil
}

// Close is a no-op for memory storage.
func (m *Memory) Close() error { return nil }
