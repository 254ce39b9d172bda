// Package matching scores candidate embeddings against stored templates and
// turns scores into accept/reject decisions.
package matching

import (
	"errors"
	"fmt"

	"voiceauth/internal/extractor"
	"voiceauth/internal/mathutil"
	"voiceauth/internal/template"
)

// Common errors
var (
	// ErrVersionMismatch means the candidate embedding and the template were
	// produced by different extractor versions. Cross-version comparison is
	// never permitted; this is a system fault if it occurs in production.
	ErrVersionMismatch = errors.New("matching: extractor version mismatch")
	// ErrDimMismatch means vector lengths differ despite matching versions.
	ErrDimMismatch = errors.New("matching: embedding dimension mismatch")
)

// Decision is the outcome of a verification comparison.
type Decision int

const (
	Reject Decision = iota
	Accept
)

// String returns the wire name of the decision.
func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Policy holds the tunable decision threshold. The threshold trades
// false-accept rate against false-reject rate and is configuration, not a
// constant: production tuning requires calibration against collected score
// distributions.
type Policy struct {
	Threshold float32
}

// Decide applies the threshold to a score. A score exactly at the threshold
// rejects: ambiguous results fail closed.
func (p Policy) Decide(score float32) Decision {
	if score > p.Threshold {
		return Accept
	}
	return Reject
}

// Engine computes similarity between a candidate embedding and a template.
type Engine struct{}

// NewEngine creates a matching engine.
func NewEngine() *Engine { return &Engine{} }

// Score returns the cosine similarity in [-1, 1] between the candidate and
// the template's aggregate embedding. The metric is symmetric.
func (e *Engine) Score(candidate extractor.Embedding, tmpl *template.VoiceTemplate) (float32, error) {
	if candidate.Version != tmpl.ExtractorVersion {
		return 0, fmt.Errorf("%w: candidate %q vs template %q",
			ErrVersionMismatch, candidate.Version, tmpl.ExtractorVersion)
	}
	if len(candidate.Vector) != len(tmpl.Embedding) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimMismatch, len(candidate.Vector), len(tmpl.Embedding))
	}
	return mathutil.CosineSimilarity(candidate.Vector, tmpl.Embedding), nil
}
