package template

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-memory template store for tests and embedded use.
type Memory struct {
	minQuality float32
	mu         sync.RWMutex
	templates  map[string][]*VoiceTemplate // key: userID + "\x00" + extractorVersion
}

// NewMemory creates a new in-memory store.
func NewMemory(minQuality float32) *Memory {
	return &Memory{
		minQuality: minQuality,
		templates:  make(map[string][]*VoiceTemplate),
	}
}

func key(userID, extractorVersion string) string {
	return userID + "\x00" + extractorVersion
}

// Put creates a new template version and atomically marks it active.
func (m *Memory) Put(ctx context.Context, userID, extractorVersion string, embedding []float32, quality float32) (int, error) {
	if len(embedding) == 0 {
		return 0, ErrEmptyEmbedding
	}
	if quality < m.minQuality {
		return 0, fmt.Errorf("%w: %.3f < %.3f", ErrQualityBelowThreshold, quality, m.minQuality)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(userID, extractorVersion)
	history := m.templates[k]
	now := time.Now().UTC()
	for _, t := range history {
		if t.Active {
			t.Active = false
			t.UpdatedAt = now
		}
	}

	emb := make([]float32, len(embedding))
	copy(emb, embedding)
	next := len(history) + 1
	m.templates[k] = append(history, &VoiceTemplate{
		UserID:           userID,
		ExtractorVersion: extractorVersion,
		Version:          next,
		Embedding:        emb,
		Quality:          quality,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	return next, nil
}

// GetActive returns the active template for (userID, extractorVersion).
func (m *Memory) GetActive(ctx context.Context, userID, extractorVersion string) (*VoiceTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.templates[key(userID, extractorVersion)] {
		if t.Active {
			cp := *t
			cp.Embedding = make([]float32, len(t.Embedding))
			copy(cp.Embedding, t.Embedding)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Revoke marks the active template inactive. Idempotent.
func (m *Memory) Revoke(ctx context.Context, userID, extractorVersion string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, t := range m.templates[key(userID, extractorVersion)] {
		if t.Active {
			t.Active = false
			t.UpdatedAt = now
		}
	}
	return nil
}

// Close is a no-op for memory storage.
func (m *Memory) Close() error { return nil }
