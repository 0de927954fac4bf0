package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mediscan-iq/mediscan-iq/internal/analyze"
	"github.com/mediscan-iq/mediscan-iq/internal/report"
	"github.com/mediscan-iq/mediscan-iq/internal/risk"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

// ReportsHandler wires HTTP requests to the analysis pipeline.
type ReportsHandler struct {
	service      *analyze.Service
	maxBodyBytes int64
	logger       *logging.Logger
}

// NewReportsHandler creates a reports handler. maxChars is the accepted
// report length in characters; the request body is capped at a multiple of
// it so oversized payloads are cut off while reading instead of being
// buffered in full and rejected afterwards.
func NewReportsHandler(service *analyze.Service, maxChars int, logger *logging.Logger) *ReportsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	maxBody := int64(1 << 20)
	if maxChars > 0 {
		// Worst case a character arrives as a JSON \uXXXX escape pair, plus
		// headroom for the envelope fields.
		maxBody = int64(maxChars)*12 + 16*1024
	}
	return &ReportsHandler{service: service, maxBodyBytes: maxBody, logger: logger}
}

type reportRequest struct {
	Text         string `json:"text"`
	ReportType   string `json:"report_type"`
	LanguageHint string `json:"language_hint,omitempty"`
}

type ingestResponse struct {
	AnonymizedText string         `json:"anonymized_text"`
	Sentences      []string       `json:"sentences"`
	PHICounts      map[string]int `json:"phi_counts"`
	Strategy       string         `json:"strategy"`
	ReportType     string         `json:"report_type"`
}

type analyzeResponse struct {
	ingestResponse
	Risk        risk.Assessment   `json:"risk"`
	Summary     string            `json:"summary"`
	SummaryMeta map[string]string `json:"summary_meta"`
	Meta        map[string]string `json:"meta"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// Ingest handles POST /v1/reports/ingest.
func (h *ReportsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toIngestResponse(res))
}

// Analyze handles POST /v1/reports/analyze.
func (h *ReportsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analyzeResponse{
		ingestResponse: toIngestResponse(&res.IngestResult),
		Risk:           res.Risk,
		Summary:        res.Summary,
		SummaryMeta:    res.SummaryMeta,
		Meta:           res.Meta,
	})
}

// HealthCheck handles GET /health.
func (h *ReportsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ReportsHandler) decode(w http.ResponseWriter, r *http.Request) (analyze.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var body reportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: errorDetail{Field: "text", Reason: "request body too large"},
			})
			return analyze.Request{}, false
		}
		h.logger.Error("failed to decode report request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: errorDetail{Reason: "invalid JSON body"},
		})
		return analyze.Request{}, false
	}
	return analyze.Request{
		Text:         body.Text,
		ReportType:   body.ReportType,
		LanguageHint: body.LanguageHint,
	}, true
}

func (h *ReportsHandler) writeError(w http.ResponseWriter, err error) {
	var verr *report.ValidationError
	if errors.As(err, &verr) {
		status := http.StatusBadRequest
		if verr.TooLong() {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeJSON(w, status, errorResponse{
			Error: errorDetail{Field: verr.Field, Reason: verr.Reason},
		})
		return
	}
	h.logger.Error("report processing failed", "error", err)
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: errorDetail{Reason: "internal error"},
	})
}

func (h *ReportsHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func toIngestResponse(res *analyze.IngestResult) ingestResponse {
	counts := make(map[string]int, len(res.Anonymized.Counts))
	for category, n := range res.Anonymized.Counts {
		counts[string(category)] = n
	}
	sentences := res.Sentences
	if sentences == nil {
		sentences = []string{}
	}
	return ingestResponse{
		AnonymizedText: res.Anonymized.Text,
		Sentences:      sentences,
		PHICounts:      counts,
		Strategy:       string(res.Anonymized.Strategy),
		ReportType:     res.Document.ReportType,
	}
}
