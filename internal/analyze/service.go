package analyze

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mediscan-iq/mediscan-iq/internal/nli"
	"github.com/mediscan-iq/mediscan-iq/internal/observability/metrics"
	"github.com/mediscan-iq/mediscan-iq/internal/phi"
	"github.com/mediscan-iq/mediscan-iq/internal/report"
	"github.com/mediscan-iq/mediscan-iq/internal/risk"
	"github.com/mediscan-iq/mediscan-iq/internal/segment"
	"github.com/mediscan-iq/mediscan-iq/internal/summarize"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

var serviceTracer = otel.Tracer("mediscan/analyze-service")

// Request carries one raw report submitted for processing.
type Request struct {
	Text         string
	ReportType   string
	LanguageHint string
}

// IngestResult is the de-identification output returned by Ingest. The raw
// text never leaves this package; only the anonymized form is exposed.
type IngestResult struct {
	Document   report.Document
	Anonymized phi.Result
	Sentences  []string
}

// AnalyzeResult extends ingestion with risk assessment and a summary of the
// anonymized text.
type AnalyzeResult struct {
	IngestResult
	Risk        risk.Assessment
	Summary     string
	SummaryMeta map[string]string

	// Meta is a flat prefixed view of the run (phi_*, summ_*, risk_*) for
	// clients that want one key-value block instead of the typed fields.
	Meta map[string]string
}

// Service wires the pipeline stages together. The scorer may be nil, in
// which case every analysis runs in heuristic-only mode.
type Service struct {
	validator  *report.Validator
	anonymizer *phi.Anonymizer
	scanner    *risk.HeuristicScanner
	scorer     nli.Scorer
	fusion     *risk.FusionEngine
	summarizer *summarize.Summarizer
	metrics    *metrics.PipelineMetrics
	logger     *logging.Logger
}

// NewService assembles the pipeline.
func NewService(
	validator *report.Validator,
	anonymizer *phi.Anonymizer,
	scanner *risk.HeuristicScanner,
	scorer nli.Scorer,
	fusion *risk.FusionEngine,
	summarizer *summarize.Summarizer,
	m *metrics.PipelineMetrics,
	logger *logging.Logger,
) *Service {
	if validator == nil {
		panic("analyze: validator cannot be nil")
	}
	if anonymizer == nil {
		panic("analyze: anonymizer cannot be nil")
	}
	if scanner == nil {
		panic("analyze: scanner cannot be nil")
	}
	if fusion == nil {
		panic("analyze: fusion engine cannot be nil")
	}
	if summarizer == nil {
		panic("analyze: summarizer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		validator:  validator,
		anonymizer: anonymizer,
		scanner:    scanner,
		scorer:     scorer,
		fusion:     fusion,
		summarizer: summarizer,
		metrics:    m,
		logger:     logger,
	}
}

// Ingest validates and de-identifies a report without scoring it.
func (s *Service) Ingest(ctx context.Context, req Request) (*IngestResult, error) {
	ctx, span := serviceTracer.Start(ctx, "analyze.ingest")
	defer span.End()

	res, err := s.deidentify(ctx, req, "ingest")
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveReport("ingest", res.Document.ReportType, "ok")
	return res, nil
}

// Analyze runs the full pipeline: de-identification, concurrent model and
// heuristic scoring, fusion, and summarization. Model failure never fails
// the request; it degrades the assessment to heuristic-only mode.
func (s *Service) Analyze(ctx context.Context, req Request) (*AnalyzeResult, error) {
	ctx, span := serviceTracer.Start(ctx, "analyze.analyze")
	defer span.End()

	ingested, err := s.deidentify(ctx, req, "analyze")
	if err != nil {
		return nil, err
	}
	clean := ingested.Anonymized.Text

	// The model round-trip dominates latency, so it runs alongside the
	// local heuristic scan and summarization.
	var (
		dist    nli.Distribution
		distErr error
		done    chan struct{}
	)
	if s.scorer != nil {
		done = make(chan struct{})
		go func() {
			defer close(done)
			start := time.Now()
			dist, distErr = s.scorer.Score(ctx, clean)
			s.metrics.ObserveStageDuration("score", time.Since(start).Seconds())
		}()
	}

	scanStart := time.Now()
	heur := s.scanner.Scan(ctx, clean)
	s.metrics.ObserveStageDuration("scan", time.Since(scanStart).Seconds())

	sumStart := time.Now()
	summary, summaryMeta := s.summarizer.Summarize(ctx, clean, ingested.Document.ReportType)
	s.metrics.ObserveStageDuration("summarize", time.Since(sumStart).Seconds())

	if done != nil {
		<-done
	}
	if distErr != nil {
		s.logger.Warn("risk model unavailable, degrading to heuristic-only mode",
			"error", distErr,
			"report_type", ingested.Document.ReportType)
		dist = nil
	}

	assessment := s.fusion.Fuse(ctx, dist, heur)
	s.metrics.ObserveRiskBucket(string(assessment.Bucket), assessment.ModelUnavailable)
	s.metrics.ObserveReport("analyze", ingested.Document.ReportType, "ok")

	return &AnalyzeResult{
		IngestResult: *ingested,
		Risk:         assessment,
		Summary:      summary,
		SummaryMeta:  summaryMeta,
		Meta:         buildMeta(ingested, assessment, summaryMeta),
	}, nil
}

func buildMeta(ingested *IngestResult, assessment risk.Assessment, summaryMeta map[string]string) map[string]string {
	total := 0
	for _, n := range ingested.Anonymized.Counts {
		total += n
	}
	meta := map[string]string{
		"phi_strategy":           string(ingested.Anonymized.Strategy),
		"phi_redactions":         strconv.Itoa(total),
		"risk_bucket":            string(assessment.Bucket),
		"risk_model_unavailable": strconv.FormatBool(assessment.ModelUnavailable),
	}
	for k, v := range summaryMeta {
		meta["summ_"+k] = v
	}
	return meta
}

func (s *Service) deidentify(ctx context.Context, req Request, operation string) (*IngestResult, error) {
	doc, err := s.validator.Validate(req.Text, req.ReportType, req.LanguageHint)
	if err != nil {
		s.metrics.ObserveReport(operation, req.ReportType, "rejected")
		return nil, err
	}

	start := time.Now()
	anonymized := s.anonymizer.Anonymize(ctx, doc.Text)
	s.metrics.ObserveStageDuration("anonymize", time.Since(start).Seconds())
	for category, n := range anonymized.Counts {
		s.metrics.ObservePHI(string(category), n)
	}

	return &IngestResult{
		Document:   doc,
		Anonymized: anonymized,
		Sentences:  segment.SplitSentences(anonymized.Text),
	}, nil
}
