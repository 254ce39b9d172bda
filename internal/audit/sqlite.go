package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLite is the persistent attempt log backed by the shared engine database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates an attempt log on an already-opened database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Append writes one attempt record.
func (s *SQLite) Append(ctx context.Context, a Attempt) error {
	var score sql.NullFloat64
	if a.Scored {
		score = sql.NullFloat64{Float64: float64(a.Score), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_attempts (id, user_id, timestamp, score, decision, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Timestamp.UTC(), score, a.Decision, a.Reason)
	if err != nil {
		return fmt.Errorf("failed to append attempt record: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts for the user, newest first.
func (s *SQLite) Recent(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, timestamp, score, decision, reason
		 FROM verification_attempts
		 WHERE user_id = ?
		 ORDER BY timestamp DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a     Attempt
			score sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Timestamp, &score, &a.Decision, &a.Reason); err != nil {
			return nil, err
		}
		if score.Valid {
			a.Score = float32(score.Float64)
			a.Scored = true
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Prune deletes records older than the cutoff.
func (s *SQLite) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM verification_attempts WHERE timestamp < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the shared database handle is owned by the caller.
func (s *SQLite) Close() error { return nil }
