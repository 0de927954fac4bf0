package nli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mediscan-iq/mediscan-iq/internal/llm"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

var scorerTracer = otel.Tracer("mediscan/nli-scorer")

const scorerSystemPrompt = `You are a clinical triage classifier. ` +
	`Given an anonymized clinical report, estimate how likely the case is ` +
	`"low risk", "moderate risk" and "high risk". Respond with JSON only, ` +
	`no prose, in the form {"low risk": 0.x, "moderate risk": 0.x, "high risk": 0.x}. ` +
	`The three values must sum to 1.`

// maxScoredChars keeps the scored premise short for stability, matching the
// input window of the classifier.
const maxScoredChars = 2000

// LLMScorer scores text by prompting a hosted model for a label
// distribution. The wrapped client is immutable after construction, so one
// scorer serves concurrent pipeline invocations without locking.
type LLMScorer struct {
	client  llm.Client
	timeout time.Duration
	logger  *logging.Logger
}

// NewLLMScorer wraps an LLM client as a risk scorer. The timeout bounds
// every Score call regardless of the caller's context.
func NewLLMScorer(client llm.Client, timeout time.Duration, logger *logging.Logger) *LLMScorer {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMScorer{client: client, timeout: timeout, logger: logger}
}

// Score returns the model's probability simplex over the candidate labels.
// Any failure is reported as ErrUnavailable so the caller can degrade.
func (s *LLMScorer) Score(ctx context.Context, text string) (Distribution, error) {
	ctx, span := scorerTracer.Start(ctx, "nli.score")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	premise := text
	if runes := []rune(premise); len(runes) > maxScoredChars {
		premise = string(runes[:maxScoredChars])
	}

	resp, err := s.client.Complete(ctx, llm.Request{
		System:    scorerSystemPrompt,
		Prompt:    "REPORT:\n" + premise,
		MaxTokens: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	dist, err := parseDistribution(resp.Text)
	if err != nil {
		s.logger.Warn("model returned unparseable distribution", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Float64("nli.high_risk", dist[LabelHigh]))
	return dist, nil
}

// parseDistribution extracts the JSON object from the model reply, which may
// be wrapped in extra prose, and normalizes it onto the simplex.
func parseDistribution(reply string) (Distribution, error) {
	content := strings.TrimSpace(reply)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("nli: no JSON object in model reply")
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("nli: malformed scores: %v", err)
	}

	dist := Normalize(raw)
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return dist, nil
}
