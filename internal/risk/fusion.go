package risk

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mediscan-iq/mediscan-iq/internal/nli"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

var fusionTracer = otel.Tracer("mediscan/risk-fusion")

// Level is the discrete risk bucket, ordered low < moderate < high.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

// Signal source tags.
const (
	SignalSourceHeuristic = "heuristic"
	SignalSourceModel     = "model"
)

// Signal is one piece of contributing evidence surfaced for explainability.
type Signal struct {
	Source string   `json:"source"`
	Label  string   `json:"label"`
	Weight float64  `json:"weight"`
	Terms  []string `json:"terms,omitempty"`
}

// Thresholds are the bucket cut points applied to the fused score.
type Thresholds struct {
	Moderate float64 `json:"moderate"`
	High     float64 `json:"high"`
}

// Validate enforces 0 ≤ moderate < high ≤ 1.
func (t Thresholds) Validate() error {
	if t.Moderate < 0 || t.High > 1 {
		return fmt.Errorf("risk: thresholds %+v outside [0,1]", t)
	}
	if t.Moderate >= t.High {
		return fmt.Errorf("risk: moderate threshold %g must be below high threshold %g", t.Moderate, t.High)
	}
	return nil
}

// Assessment is the calibrated result of fusing model and heuristic
// evidence. The probability map always covers the three candidate labels,
// whichever mode produced it.
type Assessment struct {
	Bucket           Level            `json:"bucket"`
	Probabilities    nli.Distribution `json:"probabilities"`
	Signals          []Signal         `json:"signals"`
	Thresholds       Thresholds       `json:"thresholds"`
	FusedScore       float64          `json:"fused_score"`
	ModelUnavailable bool             `json:"model_unavailable"`
}

// FusionEngine combines classifier probabilities with heuristic severity
// into a deterministic bucket. It holds no mutable state, so one engine
// serves concurrent invocations.
type FusionEngine struct {
	thresholds  Thresholds
	modelWeight float64
	logger      *logging.Logger
}

// NewFusionEngine validates thresholds and the model weight share in [0,1].
func NewFusionEngine(thresholds Thresholds, modelWeight float64, logger *logging.Logger) (*FusionEngine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if modelWeight < 0 || modelWeight > 1 {
		return nil, fmt.Errorf("risk: model weight %g outside [0,1]", modelWeight)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FusionEngine{thresholds: thresholds, modelWeight: modelWeight, logger: logger}, nil
}

// Fuse produces the final assessment. A nil distribution selects degraded
// mode: the fused score is the heuristic score alone, the probability map is
// synthesized from it, and ModelUnavailable is set.
func (e *FusionEngine) Fuse(ctx context.Context, dist nli.Distribution, heur HeuristicResult) Assessment {
	_, span := fusionTracer.Start(ctx, "risk.fuse")
	defer span.End()

	degraded := dist == nil

	var fused float64
	var probs nli.Distribution
	if degraded {
		fused = heur.Score
		probs = syntheticDistribution(heur.Score)
	} else {
		fused = e.modelWeight*dist[nli.LabelHigh] + (1-e.modelWeight)*heur.Score
		probs = dist
	}

	bucket := e.bucketFor(fused)

	assessment := Assessment{
		Bucket:           bucket,
		Probabilities:    probs,
		Signals:          collectSignals(dist, heur),
		Thresholds:       e.thresholds,
		FusedScore:       fused,
		ModelUnavailable: degraded,
	}

	span.SetAttributes(
		attribute.String("risk.bucket", string(bucket)),
		attribute.Float64("risk.fused_score", fused),
		attribute.Bool("risk.model_unavailable", degraded),
	)
	e.logger.Info("risk assessment produced",
		"bucket", string(bucket),
		"fused_score", fused,
		"model_unavailable", degraded,
	)
	return assessment
}

// bucketFor applies inclusive upper comparisons: a score exactly at a
// threshold resolves to the higher bucket.
func (e *FusionEngine) bucketFor(score float64) Level {
	switch {
	case score >= e.thresholds.High:
		return LevelHigh
	case score >= e.thresholds.Moderate:
		return LevelModerate
	default:
		return LevelLow
	}
}

// syntheticDistribution maps a heuristic score onto the label simplex so the
// output schema does not vary by mode: the score becomes the high-risk mass
// and the remainder splits 40/60 between moderate and low.
func syntheticDistribution(score float64) nli.Distribution {
	remainder := 1 - score
	return nli.Distribution{
		nli.LabelHigh:     score,
		nli.LabelModerate: remainder * 0.4,
		nli.LabelLow:      remainder * 0.6,
	}
}

// collectSignals orders contributing evidence by descending weight.
func collectSignals(dist nli.Distribution, heur HeuristicResult) []Signal {
	signals := make([]Signal, 0, len(heur.Matches)+len(nli.CandidateLabels))
	if dist != nil {
		for _, label := range nli.CandidateLabels {
			signals = append(signals, Signal{
				Source: SignalSourceModel,
				Label:  label,
				Weight: dist[label],
			})
		}
	}
	for _, m := range heur.Matches {
		signals = append(signals, Signal{
			Source: SignalSourceHeuristic,
			Label:  m.Term,
			Weight: m.Weight,
			Terms:  m.Occurrences,
		})
	}
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Weight > signals[j].Weight })
	return signals
}
