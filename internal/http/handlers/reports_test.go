package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan-iq/mediscan-iq/internal/analyze"
	"github.com/mediscan-iq/mediscan-iq/internal/phi"
	"github.com/mediscan-iq/mediscan-iq/internal/report"
	"github.com/mediscan-iq/mediscan-iq/internal/risk"
	"github.com/mediscan-iq/mediscan-iq/internal/summarize"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

func newTestHandler(t *testing.T, maxChars int) *ReportsHandler {
	t.Helper()

	logger := logging.New("error")
	library := phi.NewLibrary(phi.LibraryOptions{MinIdentifierDigits: 7})
	detector := phi.NewDetector(library, logger)
	anonymizer := phi.NewAnonymizer(detector, phi.AnonymizerConfig{
		Strategy: phi.StrategyHash,
		HashSalt: "mediscan",
	}, logger)

	scanner, err := risk.NewHeuristicScanner(risk.DefaultLexicon(), logger)
	require.NoError(t, err)
	fusion, err := risk.NewFusionEngine(risk.Thresholds{Moderate: 0.42, High: 0.64}, 0.7, logger)
	require.NoError(t, err)

	summarizer := summarize.New(nil, summarize.Config{}, logger)
	validator := report.NewValidator(maxChars, []string{"radiology", "generic"})

	svc := analyze.NewService(validator, anonymizer, scanner, nil, fusion, summarizer, nil, logger)
	return NewReportsHandler(svc, maxChars, logger)
}

func postJSON(t *testing.T, handler http.HandlerFunc, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestIngestReturnsAnonymizedReport(t *testing.T) {
	h := newTestHandler(t, 20000)

	rr := postJSON(t, h.Ingest, reportRequest{
		Text:       "Contact john@example.com for records. Findings are stable today.",
		ReportType: "radiology",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ingestResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotContains(t, resp.AnonymizedText, "john@example.com")
	assert.Equal(t, 1, resp.PHICounts["email"])
	assert.Equal(t, "hash", resp.Strategy)
	assert.Equal(t, "radiology", resp.ReportType)
	assert.Len(t, resp.Sentences, 2)
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	h := newTestHandler(t, 20000)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.Ingest(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIngestValidationStatusCodes(t *testing.T) {
	h := newTestHandler(t, 64)

	rr := postJSON(t, h.Ingest, reportRequest{Text: "ok", ReportType: "radiology"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "text", resp.Error.Field)

	long := strings.Repeat("stable findings throughout. ", 10)
	rr = postJSON(t, h.Ingest, reportRequest{Text: long, ReportType: "radiology"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = postJSON(t, h.Ingest, reportRequest{Text: "Findings are stable.", ReportType: "dermatology"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "report_type", resp.Error.Field)
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	h := newTestHandler(t, 64)

	// Far beyond what a 64-char report could legitimately encode, so the
	// body cap trips before the JSON decoder reads it all.
	rr := postJSON(t, h.Ingest, reportRequest{
		Text:       strings.Repeat("a", 200000),
		ReportType: "radiology",
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "request body too large", resp.Error.Reason)
}

func TestAnalyzeReturnsRiskAssessment(t *testing.T) {
	h := newTestHandler(t, 20000)

	rr := postJSON(t, h.Analyze, reportRequest{
		Text:       "FINDINGS: hemorrhage in the left frontal lobe without midline shift.",
		ReportType: "radiology",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp analyzeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, risk.LevelHigh, resp.Risk.Bucket)
	assert.True(t, resp.Risk.ModelUnavailable)
	assert.NotEmpty(t, resp.Risk.Signals)
	assert.NotEmpty(t, resp.Summary)
	assert.Equal(t, "extractive", resp.SummaryMeta["mode"])
}
