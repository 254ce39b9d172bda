// Package audit records verification attempts. Records are immutable once
// written and the log is append-only; only the retention prune removes rows.
package audit

import (
	"context"
	"time"
)

// Attempt is one verification attempt's audit record.
type Attempt struct {
	ID        string
	UserID    string
	Timestamp time.Time
	// Score is the computed similarity, when one was computed. Attempts that
	// never reached scoring (lockout, extraction failure) have Scored false.
	Score    float32
	Scored   bool
	Decision string
	Reason   string
}

// Store is an append-only attempt log.
type Store interface {
	// Append writes one attempt record. Records are never updated.
	Append(ctx context.Context, a Attempt) error

	// Recent returns up to limit attempts for the user, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]Attempt, error)

	// Prune deletes records older than the cutoff and returns how many were
	// removed. Used by the retention maintenance task.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases resources.
	Close() error
}
