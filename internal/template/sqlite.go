package template

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SQLite is a persistent template store backed by the shared engine database.
// Per-user write serialization uses an in-process keyed mutex; the active-flag
// swap happens inside one transaction so readers see either the fully-old or
// fully-new template, never a partial state.
type SQLite struct {
	db         *sql.DB
	minQuality float32
	userLocks  sync.Map // userID -> *sync.Mutex
}

// NewSQLite creates a template store on an already-opened database. The
// schema is managed by the database package's migrations.
func NewSQLite(db *sql.DB, minQuality float32) *SQLite {
	return &SQLite{db: db, minQuality: minQuality}
}

func (s *SQLite) userLock(userID string) *sync.Mutex {
	lock, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Put creates a new template version and atomically marks it active.
func (s *SQLite) Put(ctx context.Context, userID, extractorVersion string, embedding []float32, quality float32) (int, error) {
	if len(embedding) == 0 {
		return 0, ErrEmptyEmbedding
	}
	if quality < s.minQuality {
		return 0, fmt.Errorf("%w: %.3f < %.3f", ErrQualityBelowThreshold, quality, s.minQuality)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT MAX(version) FROM voice_templates WHERE user_id = ? AND extractor_version = ?",
		userID, extractorVersion).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to read current version: %w", err)
	}
	next := int(maxVersion.Int64) + 1

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE voice_templates SET active = 0, updated_at = ?
		 WHERE user_id = ? AND extractor_version = ? AND active = 1`,
		now, userID, extractorVersion); err != nil {
		return 0, fmt.Errorf("failed to supersede active template: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO voice_templates
			(user_id, extractor_version, version, embedding, quality, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		userID, extractorVersion, next, encodeEmbedding(embedding), quality, now, now); err != nil {
		return 0, fmt.Errorf("failed to insert template version %d: %w", next, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// GetActive returns the active template for (userID, extractorVersion).
func (s *SQLite) GetActive(ctx context.Context, userID, extractorVersion string) (*VoiceTemplate, error) {
	var (
		t        VoiceTemplate
		embBytes []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, extractor_version, version, embedding, quality, created_at, updated_at
		 FROM voice_templates
		 WHERE user_id = ? AND extractor_version = ? AND active = 1`,
		userID, extractorVersion).Scan(
		&t.UserID, &t.ExtractorVersion, &t.Version, &embBytes, &t.Quality, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active template: %w", err)
	}
	t.Embedding = decodeEmbedding(embBytes)
	t.Active = true
	return &t, nil
}

// Revoke marks the active template inactive. Idempotent.
func (s *SQLite) Revoke(ctx context.Context, userID, extractorVersion string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE voice_templates SET active = 0, updated_at = ?
		 WHERE user_id = ? AND extractor_version = ? AND active = 1`,
		time.Now().UTC(), userID, extractorVersion)
	if err != nil {
		return fmt.Errorf("failed to revoke template: %w", err)
	}
	return nil
}

// Close is a no-op; the shared database handle is owned by the caller.
func (s *SQLite) Close() error { return nil }
