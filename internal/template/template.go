// Package template persists per-user voice templates with versioning.
//
// A user has at most one active template per extractor version. Re-enrollment
// creates a new version and supersedes the previous active one atomically:
// a reader never observes zero or two active templates for the same key.
package template

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// Common errors
var (
	ErrNotFound              = errors.New("template: no active template")
	ErrQualityBelowThreshold = errors.New("template: aggregate quality below threshold")
	ErrEmptyEmbedding        = errors.New("template: empty embedding")
)

// VoiceTemplate is a user's stored reference embedding plus bookkeeping.
type VoiceTemplate struct {
	UserID           string
	ExtractorVersion string
	Version          int
	Embedding        []float32
	Quality          float32
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Store persists and retrieves voice templates.
type Store interface {
	// Put creates a new template version and atomically marks it active,
	// superseding any prior active version for (userID, extractorVersion).
	// Fails with ErrQualityBelowThreshold when quality is below the store's
	// configured minimum. Concurrent Put calls for the same user are
	// serialized; calls for different users are independent.
	Put(ctx context.Context, userID, extractorVersion string, embedding []float32, quality float32) (int, error)

	// GetActive returns the active template for (userID, extractorVersion),
	// or ErrNotFound.
	GetActive(ctx context.Context, userID, extractorVersion string) (*VoiceTemplate, error)

	// Revoke marks the active template inactive. History is kept for audit.
	// Revoking when nothing is active is a no-op success.
	Revoke(ctx context.Context, userID, extractorVersion string) error

	// Close releases resources.
	Close() error
}

// encodeEmbedding converts []float32 to a little-endian byte blob.
func encodeEmbedding(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding converts a byte blob back to []float32.
func decodeEmbedding(b []byte) []float32 {
	f := make([]float32, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f
}
