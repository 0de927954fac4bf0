package phi

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnonymizer(cfg AnonymizerConfig) *Anonymizer {
	return NewAnonymizer(newTestDetector(), cfg, nil)
}

func TestMaskRemovesLiteralValues(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '█'})

	text := "Contact: john@example.com, phone 555-123-4567, MRN 00987654."
	res := a.Anonymize(context.Background(), text)

	assert.NotContains(t, res.Text, "john@example.com")
	assert.NotContains(t, res.Text, "555-123-4567")
	assert.NotContains(t, res.Text, "00987654")
	assert.Equal(t, 1, res.Counts[CategoryEmail])
	assert.Equal(t, 1, res.Counts[CategoryPhone])
	assert.Equal(t, 1, res.Counts[CategoryIdentifier])
}

func TestMaskPreservesSpanLength(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '#'})

	text := "mail bob@x.io end"
	res := a.Anonymize(context.Background(), text)
	assert.Equal(t, "mail ######## end", res.Text)
}

func TestMaskFixedWidth(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '#', MaskFixedWidth: 4})

	res := a.Anonymize(context.Background(), "mail bob@x.io end")
	assert.Equal(t, "mail #### end", res.Text)
}

func TestMaskIsIdempotent(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '█'})

	text := "Patient Mr. John Doe, email john.doe@hospital.org, phone +1 415-555-0199. MRN 12345678."
	first := a.Anonymize(context.Background(), text)

	second := a.Anonymize(context.Background(), first.Text)
	assert.Empty(t, sumCounts(second.Counts), "masked output must not re-trigger any pattern")
	assert.Equal(t, first.Text, second.Text)
}

func TestUnsafeMaskCharFallsBackToBlock(t *testing.T) {
	// A digit mask would turn "555-123-4567" into another digit run and the
	// masked output would be detected again on the next pass.
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '5'})

	res := a.Anonymize(context.Background(), "Tel: 555-123-4567.")
	assert.NotContains(t, res.Text, "555555")
	assert.Contains(t, res.Text, "█")

	again := a.Anonymize(context.Background(), res.Text)
	assert.Equal(t, 0, sumCounts(again.Counts))
	assert.Equal(t, res.Text, again.Text)
}

func TestSafeMaskChar(t *testing.T) {
	for _, r := range "5a Z@.-" {
		if r == ' ' {
			continue
		}
		assert.False(t, SafeMaskChar(r), "rune %q belongs to the detection alphabet", r)
	}
	assert.True(t, SafeMaskChar('█'))
	assert.True(t, SafeMaskChar('*'))
	assert.True(t, SafeMaskChar('#'))
}

func TestHashIsDeterministicAndOneWay(t *testing.T) {
	cfg := AnonymizerConfig{Strategy: StrategyHash, HashSalt: "pepper"}
	a := newTestAnonymizer(cfg)

	first := a.Anonymize(context.Background(), "mail bob@x.io end")
	again := a.Anonymize(context.Background(), "mail bob@x.io end")
	assert.Equal(t, first.Text, again.Text)
	assert.NotContains(t, first.Text, "bob@x.io")

	other := a.Anonymize(context.Background(), "mail eve@x.io end")
	assert.NotEqual(t, first.Text, other.Text, "different values must map to different pseudonyms")
}

func TestHashSaltChangesPseudonym(t *testing.T) {
	a1 := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyHash, HashSalt: "one"})
	a2 := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyHash, HashSalt: "two"})

	r1 := a1.Anonymize(context.Background(), "mail bob@x.io end")
	r2 := a2.Anonymize(context.Background(), "mail bob@x.io end")
	assert.NotEqual(t, r1.Text, r2.Text)
}

func TestHashPlaceholderDoesNotRetrigger(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyHash, HashSalt: "pepper"})

	text := "Contact: john@example.com, phone 555-123-4567, MRN 00987654, seen 01/02/2023."
	first := a.Anonymize(context.Background(), text)

	second := a.Anonymize(context.Background(), first.Text)
	assert.Empty(t, sumCounts(second.Counts), "hash tokens must not match any detector pattern")
}

func TestKeepDatesCountsButDoesNotRedact(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '█', KeepDates: true})

	res := a.Anonymize(context.Background(), "Scanned on 01/02/2023, call 555-123-4567.")
	assert.Contains(t, res.Text, "01/02/2023")
	assert.NotContains(t, res.Text, "555-123-4567")
	assert.Equal(t, 1, res.Counts[CategoryDate])
	assert.Equal(t, 1, res.Counts[CategoryPhone])
}

func TestNoPHIPassthrough(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '█'})

	text := "Lungs are clear. No acute findings."
	res := a.Anonymize(context.Background(), text)
	assert.Equal(t, text, res.Text)
	assert.Empty(t, sumCounts(res.Counts))
}

func TestReduceWhitespace(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '█', ReduceWhitespace: true})

	res := a.Anonymize(context.Background(), "Line 1   \n   Line 2")
	assert.Equal(t, "Line 1\nLine 2", res.Text)
	assert.NotContains(t, res.Text, "   ")
	assert.Equal(t, []string{"Line 1", "Line 2"}, strings.Split(res.Text, "\n"))
}

func TestCountsSumToRetainedMatches(t *testing.T) {
	a := newTestAnonymizer(AnonymizerConfig{Strategy: StrategyMask, MaskChar: '█', ReduceWhitespace: true})
	d := newTestDetector()

	text := "Mrs. Smith (MRN 7654321) reachable at smith@web.de or 415-555-2671 from Jan 3, 2024."
	matches := d.Detect(context.Background(), text)
	require.NotEmpty(t, matches)

	res := a.Apply(context.Background(), text, matches)
	assert.Equal(t, len(matches), sumCounts(res.Counts))
}

func sumCounts(counts map[Category]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
