package phi

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

var detectorTracer = otel.Tracer("mediscan/phi-detector")

// Match is a resolved PHI occurrence in the source text.
type Match struct {
	Category Category
	Start    int
	End      int
	Text     string
}

// Detector runs a pattern library over raw text and resolves overlapping
// candidates into a non-overlapping, offset-ordered match set.
type Detector struct {
	library *Library
	logger  *logging.Logger
}

// NewDetector creates a detector over the given library.
func NewDetector(library *Library, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{library: library, logger: logger}
}

type candidate struct {
	Match
	order int
}

// Detect returns all PHI matches sorted by start offset. Overlaps are
// resolved by preferring the greater span; exact ties go to the category
// registered earlier in the library. A text with no PHI yields an empty
// slice. A matcher that panics is isolated: its category contributes zero
// matches for this run and every other category still proceeds.
func (d *Detector) Detect(ctx context.Context, text string) []Match {
	_, span := detectorTracer.Start(ctx, "phi.detect")
	defer span.End()

	var raw []candidate
	for i, m := range d.library.Matchers() {
		for _, loc := range d.findAll(m, text) {
			raw = append(raw, candidate{
				Match: Match{
					Category: m.Category(),
					Start:    loc[0],
					End:      loc[1],
					Text:     text[loc[0]:loc[1]],
				},
				order: i,
			})
		}
	}

	resolved := resolveOverlaps(raw)

	span.SetAttributes(
		attribute.Int("phi.raw_matches", len(raw)),
		attribute.Int("phi.resolved_matches", len(resolved)),
	)
	return resolved
}

// findAll shields the run from a single misbehaving matcher.
func (d *Detector) findAll(m Matcher, text string) (spans [][]int) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("phi matcher failed, category skipped for this run",
				"category", string(m.Category()),
				"panic", r,
			)
			spans = nil
		}
	}()
	return m.FindAll(text)
}

// resolveOverlaps keeps a maximal set of non-overlapping matches, longest
// span first. Equal spans fall back to start offset, then registration order.
func resolveOverlaps(raw []candidate) []Match {
	if len(raw) == 0 {
		return nil
	}

	sort.SliceStable(raw, func(i, j int) bool {
		li, lj := raw[i].End-raw[i].Start, raw[j].End-raw[j].Start
		if li != lj {
			return li > lj
		}
		if raw[i].Start != raw[j].Start {
			return raw[i].Start < raw[j].Start
		}
		return raw[i].order < raw[j].order
	})

	var kept []Match
	for _, c := range raw {
		overlaps := false
		for _, k := range kept {
			if c.Start < k.End && k.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c.Match)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
