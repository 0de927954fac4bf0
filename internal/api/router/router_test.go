package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mediscan-iq/mediscan-iq/internal/analyze"
	"github.com/mediscan-iq/mediscan-iq/internal/http/handlers"
	"github.com/mediscan-iq/mediscan-iq/internal/phi"
	"github.com/mediscan-iq/mediscan-iq/internal/report"
	"github.com/mediscan-iq/mediscan-iq/internal/risk"
	"github.com/mediscan-iq/mediscan-iq/internal/summarize"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.New("error")
	library := phi.NewLibrary(phi.LibraryOptions{MinIdentifierDigits: 7})
	anonymizer := phi.NewAnonymizer(phi.NewDetector(library, logger), phi.AnonymizerConfig{
		Strategy: phi.StrategyMask,
		MaskChar: '█',
	}, logger)

	scanner, err := risk.NewHeuristicScanner(risk.DefaultLexicon(), logger)
	if err != nil {
		t.Fatalf("failed to build scanner: %v", err)
	}
	fusion, err := risk.NewFusionEngine(risk.Thresholds{Moderate: 0.42, High: 0.64}, 0.7, logger)
	if err != nil {
		t.Fatalf("failed to build fusion engine: %v", err)
	}

	svc := analyze.NewService(
		report.NewValidator(20000, []string{"radiology", "generic"}),
		anonymizer,
		scanner,
		nil,
		fusion,
		summarize.New(nil, summarize.Config{}, logger),
		nil,
		logger,
	)

	return New(&Config{
		Logger:         logger,
		ReportsHandler: handlers.NewReportsHandler(svc, 20000, logger),
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterIngestEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body, err := json.Marshal(map[string]string{
		"text":        "Report finalized today. MRN 00987654 recorded for follow-up.",
		"report_type": "generic",
	})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/reports/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var resp struct {
		AnonymizedText string         `json:"anonymized_text"`
		PHICounts      map[string]int `json:"phi_counts"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode ingest response: %v", err)
	}

	if resp.PHICounts["identifier"] != 1 {
		t.Errorf("expected one identifier redaction, got %v", resp.PHICounts)
	}
	if bytes.Contains([]byte(resp.AnonymizedText), []byte("00987654")) {
		t.Errorf("identifier leaked into anonymized text: %q", resp.AnonymizedText)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/unknown", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
