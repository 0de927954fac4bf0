package risk

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

var scannerTracer = otel.Tracer("mediscan/risk-scanner")

// TermMatch is one lexicon phrase found in the scanned text. Occurrences
// keep every verbatim hit for downstream highlighting even though scoring
// counts the phrase once.
type TermMatch struct {
	Term        string
	Weight      float64
	Occurrences []string
}

// HeuristicResult is the outcome of one scan.
type HeuristicResult struct {
	// Score is the capped sum of distinct matched phrase weights, in [0,1].
	Score   float64
	Matches []TermMatch
}

type compiledTerm struct {
	entry LexiconEntry
	re    *regexp.Regexp
}

// HeuristicScanner finds weighted clinical phrases with case-insensitive,
// word-boundary matching.
type HeuristicScanner struct {
	terms  []compiledTerm
	logger *logging.Logger
}

// NewHeuristicScanner compiles the lexicon into a scanner.
func NewHeuristicScanner(lexicon Lexicon, logger *logging.Logger) (*HeuristicScanner, error) {
	if err := lexicon.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}

	terms := make([]compiledTerm, 0, len(lexicon))
	for _, e := range lexicon {
		words := strings.Fields(regexp.QuoteMeta(strings.ToLower(e.Phrase)))
		pattern := `(?i)\b` + strings.Join(words, `\s+`) + `\b`
		terms = append(terms, compiledTerm{entry: e, re: regexp.MustCompile(pattern)})
	}
	return &HeuristicScanner{terms: terms, logger: logger}, nil
}

// Scan scores the text against the lexicon. Each distinct phrase counts once
// toward the score regardless of how often it appears; the total is capped
// at 1.0.
func (s *HeuristicScanner) Scan(ctx context.Context, text string) HeuristicResult {
	_, span := scannerTracer.Start(ctx, "risk.heuristic_scan")
	defer span.End()

	var result HeuristicResult
	for _, t := range s.terms {
		hits := t.re.FindAllString(text, -1)
		if len(hits) == 0 {
			continue
		}
		result.Matches = append(result.Matches, TermMatch{
			Term:        t.entry.Phrase,
			Weight:      t.entry.Weight,
			Occurrences: hits,
		})
		result.Score += t.entry.Weight
	}
	if result.Score > 1 {
		result.Score = 1
	}

	span.SetAttributes(
		attribute.Float64("risk.heuristic_score", result.Score),
		attribute.Int("risk.matched_terms", len(result.Matches)),
	)
	return result
}
