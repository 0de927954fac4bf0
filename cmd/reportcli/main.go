package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/mediscan-iq/mediscan-iq/internal/analyze"
	"github.com/mediscan-iq/mediscan-iq/internal/config"
	"github.com/mediscan-iq/mediscan-iq/internal/phi"
	"github.com/mediscan-iq/mediscan-iq/internal/report"
	"github.com/mediscan-iq/mediscan-iq/internal/risk"
	"github.com/mediscan-iq/mediscan-iq/internal/summarize"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

// reportcli runs the pipeline offline: no model provider is wired, so every
// analysis uses heuristic-only mode. Useful for air-gapped de-identification.
func main() {
	var (
		file       = flag.String("file", "", "path to a report text file (defaults to stdin)")
		reportType = flag.String("type", "radiology", "report type")
		op         = flag.String("op", "analyze", "operation: ingest or analyze")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New("error")
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration: %v", err)
	}

	text, err := readInput(*file)
	if err != nil {
		fatal("failed to read input: %v", err)
	}

	svc, err := buildService(cfg, logger)
	if err != nil {
		fatal("failed to build pipeline: %v", err)
	}

	ctx := context.Background()
	req := analyze.Request{Text: text, ReportType: *reportType}

	var out any
	switch *op {
	case "ingest":
		res, err := svc.Ingest(ctx, req)
		if err != nil {
			fatal("ingest failed: %v", err)
		}
		out = ingestOutput(res)
	case "analyze":
		res, err := svc.Analyze(ctx, req)
		if err != nil {
			fatal("analyze failed: %v", err)
		}
		out = map[string]any{
			"ingest":       ingestOutput(&res.IngestResult),
			"risk":         res.Risk,
			"summary":      res.Summary,
			"summary_meta": res.SummaryMeta,
		}
	default:
		fatal("unknown operation %q (want ingest or analyze)", *op)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatal("failed to encode output: %v", err)
	}
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func buildService(cfg *config.Config, logger *logging.Logger) (*analyze.Service, error) {
	library := phi.NewLibrary(phi.LibraryOptions{MinIdentifierDigits: cfg.MinIdentifierDigits})
	detector := phi.NewDetector(library, logger)
	anonymizer := phi.NewAnonymizer(detector, phi.AnonymizerConfig{
		Strategy:         phi.Strategy(cfg.AnonymizeStrategy),
		MaskChar:         []rune(cfg.MaskChar)[0],
		MaskFixedWidth:   cfg.MaskFixedWidth,
		HashSalt:         cfg.HashSalt,
		KeepDates:        cfg.KeepDates,
		ReduceWhitespace: cfg.ReduceWhitespace,
	}, logger)

	lexicon := risk.DefaultLexicon()
	if cfg.RiskLexiconPath != "" {
		loaded, err := risk.LoadLexicon(cfg.RiskLexiconPath)
		if err != nil {
			return nil, err
		}
		lexicon = loaded
	}
	scanner, err := risk.NewHeuristicScanner(lexicon, logger)
	if err != nil {
		return nil, err
	}
	fusion, err := risk.NewFusionEngine(risk.Thresholds{
		Moderate: cfg.RiskThresholdModerate,
		High:     cfg.RiskThresholdHigh,
	}, cfg.RiskModelWeight, logger)
	if err != nil {
		return nil, err
	}

	return analyze.NewService(
		report.NewValidator(cfg.MaxChars, cfg.AcceptedReportTypes),
		anonymizer,
		scanner,
		nil,
		fusion,
		summarize.New(nil, summarize.Config{PromptStyle: cfg.SummarizerPromptStyle}, logger),
		nil,
		logger,
	), nil
}

func ingestOutput(res *analyze.IngestResult) map[string]any {
	counts := make(map[string]int, len(res.Anonymized.Counts))
	for category, n := range res.Anonymized.Counts {
		counts[string(category)] = n
	}
	return map[string]any{
		"anonymized_text": res.Anonymized.Text,
		"sentences":       res.Sentences,
		"phi_counts":      counts,
		"strategy":        string(res.Anonymized.Strategy),
		"report_type":     res.Document.ReportType,
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
