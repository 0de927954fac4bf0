// Package nli adapts external zero-shot classifiers into a probability
// source over the fixed clinical risk labels.
package nli

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	LabelLow      = "low risk"
	LabelModerate = "moderate risk"
	LabelHigh     = "high risk"
)

// CandidateLabels is the fixed label set every scorer must cover.
var CandidateLabels = []string{LabelLow, LabelModerate, LabelHigh}

// ErrUnavailable marks a scorer failure that should degrade the pipeline to
// heuristics-only mode instead of failing the request.
var ErrUnavailable = errors.New("nli: model unavailable")

// Distribution maps each candidate label to its probability.
type Distribution map[string]float64

// simplexTolerance bounds the allowed drift of the probability sum from 1.
const simplexTolerance = 1e-6

// Validate checks the simplex contract: exactly the candidate labels,
// non-negative mass, total within tolerance of 1.
func (d Distribution) Validate() error {
	if len(d) != len(CandidateLabels) {
		return fmt.Errorf("nli: expected %d labels, got %d", len(CandidateLabels), len(d))
	}
	sum := 0.0
	for _, label := range CandidateLabels {
		p, ok := d[label]
		if !ok {
			return fmt.Errorf("nli: missing label %q", label)
		}
		if p < 0 || math.IsNaN(p) {
			return fmt.Errorf("nli: label %q has invalid probability %g", label, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > simplexTolerance {
		return fmt.Errorf("nli: probabilities sum to %g, want 1", sum)
	}
	return nil
}

// Normalize projects raw label scores onto the candidate simplex. Unknown
// labels are dropped, negative mass is clamped to zero and an all-zero input
// becomes the uniform distribution.
func Normalize(raw map[string]float64) Distribution {
	d := make(Distribution, len(CandidateLabels))
	sum := 0.0
	for _, label := range CandidateLabels {
		p := raw[label]
		if p < 0 || math.IsNaN(p) {
			p = 0
		}
		d[label] = p
		sum += p
	}
	if sum == 0 {
		uniform := 1.0 / float64(len(CandidateLabels))
		for _, label := range CandidateLabels {
			d[label] = uniform
		}
		return d
	}
	for _, label := range CandidateLabels {
		d[label] /= sum
	}
	return d
}

// Scorer produces a risk probability distribution for anonymized text.
// Implementations enforce their own timeout and return an error wrapping
// ErrUnavailable when inference cannot be served; they never block
// indefinitely.
type Scorer interface {
	Score(ctx context.Context, text string) (Distribution, error)
}
