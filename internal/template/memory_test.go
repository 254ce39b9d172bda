package template

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryMatchesSQLiteSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0.5)

	v1, err := m.Put(ctx, "alice", testExtractor, []float32{1, 0}, 0.8)
	if err != nil || v1 != 1 {
		t.Fatalf("Put v1 = (%d, %v), want (1, nil)", v1, err)
	}
	v2, err := m.Put(ctx, "alice", testExtractor, []float32{0, 1}, 0.9)
	if err != nil || v2 != 2 {
		t.Fatalf("Put v2 = (%d, %v), want (2, nil)", v2, err)
	}

	got, err := m.GetActive(ctx, "alice", testExtractor)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("active version = %d, want 2", got.Version)
	}

	// Mutating the returned copy must not affect the store.
	got.Embedding[0] = 99
	again, _ := m.GetActive(ctx, "alice", testExtractor)
	if again.Embedding[0] == 99 {
		t.Error("GetActive must return a copy, not shared storage")
	}

	if err := m.Revoke(ctx, "alice", testExtractor); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := m.GetActive(ctx, "alice", testExtractor); !errors.Is(err, ErrNotFound) {
		t.Errorf("after revoke: got %v, want ErrNotFound", err)
	}

	if _, err := m.Put(ctx, "alice", testExtractor, []float32{1}, 0.1); !errors.Is(err, ErrQualityBelowThreshold) {
		t.Errorf("low quality: got %v, want ErrQualityBelowThreshold", err)
	}
}
