package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan-iq/mediscan-iq/internal/nli"
)

func defaultEngine(t *testing.T) *FusionEngine {
	t.Helper()
	e, err := NewFusionEngine(Thresholds{Moderate: 0.42, High: 0.64}, 0.7, nil)
	require.NoError(t, err)
	return e
}

func TestFuseDegradedHighRiskFindings(t *testing.T) {
	scanner := mustScanner(t, Lexicon{
		{Phrase: "hemorrhage", Weight: 0.9},
		{Phrase: "acute", Weight: 0.3},
	})
	engine := defaultEngine(t)

	text := "FINDINGS: Acute subarachnoid hemorrhage. IMPRESSION: Urgent neurosurgical evaluation recommended."
	heur := scanner.Scan(context.Background(), text)

	a := engine.Fuse(context.Background(), nil, heur)

	assert.GreaterOrEqual(t, a.FusedScore, 0.64)
	assert.Equal(t, LevelHigh, a.Bucket)
	assert.True(t, a.ModelUnavailable)
	assert.NoError(t, a.Probabilities.Validate(), "degraded output keeps the schema")
}

func TestFuseDegradedNoFindingsIsLow(t *testing.T) {
	engine := defaultEngine(t)

	a := engine.Fuse(context.Background(), nil, HeuristicResult{})

	assert.Zero(t, a.FusedScore)
	assert.Equal(t, LevelLow, a.Bucket)
	assert.True(t, a.ModelUnavailable)
	assert.InDelta(t, 0.0, a.Probabilities[nli.LabelHigh], 1e-9)
	assert.InDelta(t, 0.4, a.Probabilities[nli.LabelModerate], 1e-9)
	assert.InDelta(t, 0.6, a.Probabilities[nli.LabelLow], 1e-9)
}

func TestFuseWeightsModelMoreHeavily(t *testing.T) {
	engine := defaultEngine(t)
	dist := nli.Distribution{nli.LabelLow: 0.1, nli.LabelModerate: 0.4, nli.LabelHigh: 0.5}

	a := engine.Fuse(context.Background(), dist, HeuristicResult{Score: 1.0})

	// 0.7*0.5 + 0.3*1.0 = 0.65
	assert.InDelta(t, 0.65, a.FusedScore, 1e-9)
	assert.Equal(t, LevelHigh, a.Bucket)
	assert.False(t, a.ModelUnavailable)
	assert.Equal(t, dist, a.Probabilities, "model distribution is reported verbatim")
}

func TestFuseBoundaryIsInclusive(t *testing.T) {
	engine := defaultEngine(t)

	atHigh := engine.Fuse(context.Background(), nil, HeuristicResult{Score: 0.64})
	assert.Equal(t, LevelHigh, atHigh.Bucket)

	atModerate := engine.Fuse(context.Background(), nil, HeuristicResult{Score: 0.42})
	assert.Equal(t, LevelModerate, atModerate.Bucket)

	justBelow := engine.Fuse(context.Background(), nil, HeuristicResult{Score: 0.41999})
	assert.Equal(t, LevelLow, justBelow.Bucket)
}

func TestFuseBucketIsMonotonic(t *testing.T) {
	engine := defaultEngine(t)
	order := map[Level]int{LevelLow: 0, LevelModerate: 1, LevelHigh: 2}

	prev := -1
	for _, score := range []float64{0, 0.1, 0.41, 0.42, 0.5, 0.63, 0.64, 0.8, 1.0} {
		a := engine.Fuse(context.Background(), nil, HeuristicResult{Score: score})
		rank := order[a.Bucket]
		assert.GreaterOrEqual(t, rank, prev, "bucket must not decrease as the score rises (score=%g)", score)
		prev = rank
	}
}

func TestFuseSignalsOrderedByDescendingWeight(t *testing.T) {
	engine := defaultEngine(t)
	dist := nli.Distribution{nli.LabelLow: 0.2, nli.LabelModerate: 0.3, nli.LabelHigh: 0.5}
	heur := HeuristicResult{
		Score: 1.0,
		Matches: []TermMatch{
			{Term: "acute", Weight: 0.3, Occurrences: []string{"Acute"}},
			{Term: "hemorrhage", Weight: 0.9, Occurrences: []string{"hemorrhage"}},
		},
	}

	a := engine.Fuse(context.Background(), dist, heur)

	require.NotEmpty(t, a.Signals)
	for i := 1; i < len(a.Signals); i++ {
		assert.GreaterOrEqual(t, a.Signals[i-1].Weight, a.Signals[i].Weight)
	}
	assert.Equal(t, "hemorrhage", a.Signals[0].Label)
	assert.Equal(t, SignalSourceHeuristic, a.Signals[0].Source)
	assert.Equal(t, []string{"hemorrhage"}, a.Signals[0].Terms)
}

func TestFuseEchoesThresholds(t *testing.T) {
	engine := defaultEngine(t)

	a := engine.Fuse(context.Background(), nil, HeuristicResult{Score: 0.5})
	assert.Equal(t, Thresholds{Moderate: 0.42, High: 0.64}, a.Thresholds)
}

func TestNewFusionEngineValidation(t *testing.T) {
	_, err := NewFusionEngine(Thresholds{Moderate: 0.7, High: 0.6}, 0.7, nil)
	assert.Error(t, err, "moderate must stay below high")

	_, err = NewFusionEngine(Thresholds{Moderate: 0.6, High: 0.6}, 0.7, nil)
	assert.Error(t, err, "equal thresholds are rejected")

	_, err = NewFusionEngine(Thresholds{Moderate: 0.4, High: 1.2}, 0.7, nil)
	assert.Error(t, err)

	_, err = NewFusionEngine(Thresholds{Moderate: 0.42, High: 0.64}, 1.3, nil)
	assert.Error(t, err)
}
