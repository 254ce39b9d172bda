// Package extractor turns audio samples into fixed-length voice embeddings.
//
// The interior transform is pluggable behind the Extractor interface; the
// contract is that output dimensionality is constant per extractor version,
// output is invariant to input gain within tolerance, extraction is
// deterministic for identical input, and run time is bounded by input length.
package extractor

import (
	"context"
	"errors"

	"voiceauth/internal/audio"
)

// Common errors
var (
	// ErrInsufficientSignal means the sample has no continuous run of speech
	// energy long enough to carry a voice signature.
	ErrInsufficientSignal = errors.New("extractor: insufficient speech signal")
	// ErrUnsupportedFormat means sample rate or channel layout fall outside
	// what the extractor supports.
	ErrUnsupportedFormat = errors.New("extractor: unsupported audio format")
)

// Embedding is a fixed-dimensionality voice feature vector. Embeddings are
// comparable only to embeddings produced by the same extractor version.
type Embedding struct {
	Vector  []float32
	Version string
}

// Extractor converts one audio sample into an embedding.
type Extractor interface {
	// Extract computes the embedding for a sample. It has no side effects.
	Extract(ctx context.Context, sample *audio.Sample) (Embedding, error)

	// Dimensions returns the constant output dimensionality D.
	Dimensions() int

	// Version identifies the extractor; it changes whenever the transform or
	// its parameters change in a way that breaks comparability.
	Version() string
}
