package phi

import (
	"context"
	"crypto/sha256"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

var anonymizerTracer = otel.Tracer("mediscan/phi-anonymizer")

// Strategy selects how detected PHI spans are replaced.
type Strategy string

const (
	// StrategyMask overwrites spans with a repeated placeholder character.
	StrategyMask Strategy = "mask"
	// StrategyHash replaces spans with a deterministic salted digest token.
	StrategyHash Strategy = "hash"
)

// AnonymizerConfig controls redaction behavior.
type AnonymizerConfig struct {
	Strategy Strategy
	MaskChar rune
	// MaskFixedWidth, when positive, masks every span at that width instead
	// of preserving span length.
	MaskFixedWidth   int
	HashSalt         string
	KeepDates        bool
	ReduceWhitespace bool
}

// Result is the outcome of one anonymization run. When the hash strategy is
// used no recoverable original value is retained anywhere: the digest is
// one-way and salted.
type Result struct {
	Text     string
	Counts   map[Category]int
	Strategy Strategy
}

// Anonymizer redacts detected PHI spans from report text.
type Anonymizer struct {
	detector *Detector
	cfg      AnonymizerConfig
	logger   *logging.Logger
}

// NewAnonymizer creates an anonymizer over the given detector.
func NewAnonymizer(detector *Detector, cfg AnonymizerConfig, logger *logging.Logger) *Anonymizer {
	if logger == nil {
		logger = logging.Default()
	}
	// An unset mask char, or one inside the detector alphabet, would break
	// the guarantee that masked output never re-triggers detection.
	if cfg.MaskChar == 0 || !SafeMaskChar(cfg.MaskChar) {
		cfg.MaskChar = '█'
	}
	return &Anonymizer{detector: detector, cfg: cfg, logger: logger}
}

// Anonymize detects PHI in text and applies the configured strategy.
func (a *Anonymizer) Anonymize(ctx context.Context, text string) Result {
	matches := a.detector.Detect(ctx, text)
	return a.Apply(ctx, text, matches)
}

// Apply redacts the given resolved matches. Date matches survive redaction
// when KeepDates is set but are still counted as detected. Counts always sum
// to the number of retained matches, independent of the whitespace pass.
func (a *Anonymizer) Apply(ctx context.Context, text string, matches []Match) Result {
	_, span := anonymizerTracer.Start(ctx, "phi.anonymize")
	defer span.End()

	counts := make(map[Category]int, len(matches))
	var b strings.Builder
	b.Grow(len(text))

	cursor := 0
	for _, m := range matches {
		counts[m.Category]++
		if m.Category == CategoryDate && a.cfg.KeepDates {
			continue
		}
		b.WriteString(text[cursor:m.Start])
		b.WriteString(a.replacement(m))
		cursor = m.End
	}
	b.WriteString(text[cursor:])

	out := b.String()
	if a.cfg.ReduceWhitespace {
		out = reduceWhitespace(out)
	}

	span.SetAttributes(
		attribute.Int("phi.redacted", len(matches)),
		attribute.String("phi.strategy", string(a.cfg.Strategy)),
	)
	return Result{Text: out, Counts: counts, Strategy: a.cfg.Strategy}
}

func (a *Anonymizer) replacement(m Match) string {
	if a.cfg.Strategy == StrategyHash {
		return hashToken(a.cfg.HashSalt, m.Category, m.Text)
	}
	width := a.cfg.MaskFixedWidth
	if width <= 0 {
		width = utf8.RuneCountInString(m.Text)
	}
	return strings.Repeat(string(a.cfg.MaskChar), width)
}

// hashToken derives a stable pseudonym for a PHI value. The digest covers
// salt, category and token, so equal values within a category collide on
// purpose and values across categories never share a pseudonym. The output
// alphabet is lowercase letters only, which no detector pattern can match.
func hashToken(salt string, category Category, token string) string {
	sum := sha256.Sum256([]byte(salt + string(category) + token))
	const alphabet = "abcdefghijklmnop"
	var digest [10]byte
	for i := 0; i < 5; i++ {
		digest[2*i] = alphabet[sum[i]>>4]
		digest[2*i+1] = alphabet[sum[i]&0x0f]
	}
	return "<id:" + string(digest[:]) + ">"
}

var (
	blankRunRe   = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\s*\n\s*`)
)

func reduceWhitespace(s string) string {
	s = blankRunRe.ReplaceAllString(s, " ")
	s = blankLinesRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
