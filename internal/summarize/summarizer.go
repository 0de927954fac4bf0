// Package summarize produces short clinical summaries, preferring an
// external sequence-to-sequence model and falling back to extractive
// selection when inference is unavailable.
package summarize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mediscan-iq/mediscan-iq/internal/llm"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

// Prompt styles supported for abstractive summarization.
const (
	StyleRadiologyBrief  = "radiology_brief"
	StylePathologyBrief  = "pathology_brief"
	StyleGenericClinical = "generic_clinical"
)

var prompts = map[string]string{
	StyleRadiologyBrief: "You are a senior radiologist.\n" +
		"Summarize the FINDINGS/IMPRESSION in 2-3 crisp sentences with clinical precision.\n" +
		"Avoid PHI, avoid speculation, no recommendations, just the key findings.\n\n" +
		"REPORT:\n%s\n\nSUMMARY:",
	StylePathologyBrief: "You are a senior pathologist. Provide a concise 2-3 sentence summary of key pathology findings.\n" +
		"Stick to facts present in the text. Avoid PHI.\n\nREPORT:\n%s\n\nSUMMARY:",
	StyleGenericClinical: "Provide a concise medical summary (2-3 sentences) of the following clinical note.\n" +
		"Avoid PHI and avoid recommendations.\n\nNOTE:\n%s\n\nSUMMARY:",
}

// maxPromptChars bounds how much report text goes into the prompt; the head
// and tail windows are kept when the report is longer.
const maxPromptChars = 8000

// Config controls summarization behavior.
type Config struct {
	PromptStyle     string
	MaxOutputTokens int32
}

// Summarizer turns anonymized report text into a short synthesized summary.
// A nil client pins the summarizer to extractive mode.
type Summarizer struct {
	client llm.Client
	cfg    Config
	logger *logging.Logger
}

// New creates a summarizer. The client may be nil for offline use.
func New(client llm.Client, cfg Config, logger *logging.Logger) *Summarizer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 128
	}
	if _, ok := prompts[cfg.PromptStyle]; !ok {
		cfg.PromptStyle = StyleGenericClinical
	}
	return &Summarizer{client: client, cfg: cfg, logger: logger}
}

// Summarize returns the summary text plus mode metadata. Very short input is
// passed through unchanged. Model failure degrades to the extractive path
// instead of failing the pipeline.
func (s *Summarizer) Summarize(ctx context.Context, text, reportType string) (string, map[string]string) {
	clean := strings.Join(strings.Fields(text), " ")
	if len(clean) < 20 {
		return clean, map[string]string{"mode": "passthrough", "reason": "short_text"}
	}

	if s.client != nil {
		summary, err := s.abstractive(ctx, clean)
		if err == nil {
			return summary, map[string]string{
				"mode":        "abstractive",
				"style":       s.cfg.PromptStyle,
				"report_type": reportType,
			}
		}
		s.logger.Warn("abstractive summarization unavailable, using extractive fallback", "error", err)
	}

	return extractiveSummary(clean, 3), map[string]string{
		"mode":        "extractive",
		"report_type": reportType,
	}
}

func (s *Summarizer) abstractive(ctx context.Context, clean string) (string, error) {
	// Truncate on rune boundaries so a multi-byte character is never split
	// into a mangled prompt byte.
	if runes := []rune(clean); len(runes) > maxPromptChars {
		head := maxPromptChars * 6 / 10
		tail := maxPromptChars - head
		clean = string(runes[:head]) + " " + string(runes[len(runes)-tail:])
	}

	resp, err := s.client.Complete(ctx, llm.Request{
		Prompt:    fmt.Sprintf(prompts[s.cfg.PromptStyle], clean),
		MaxTokens: s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}
	out := postSummarize(resp.Text)
	if out == "" {
		return "", fmt.Errorf("summarize: model returned empty summary")
	}
	return out, nil
}

var (
	labelPrefixRe = regexp.MustCompile(`(?i)^(SUMMARY|FINDINGS|IMPRESSION)[:\-]\s*`)
	sentenceEndRe = regexp.MustCompile(`(?:[.!?])\s+`)
)

// postSummarize normalizes whitespace, cuts leading section labels and caps
// the output at three sentences.
func postSummarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = labelPrefixRe.ReplaceAllString(text, "")
	sents := splitSentences(text)
	if len(sents) > 3 {
		sents = sents[:3]
	}
	return strings.Join(sents, " ")
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
