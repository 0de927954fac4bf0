package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the analysis pipeline.
type PipelineMetrics struct {
	reportsTotal     *prometheus.CounterVec
	phiRedacted      *prometheus.CounterVec
	riskBuckets      *prometheus.CounterVec
	modelFallbacks   prometheus.Counter
	pipelineDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediscan",
			Subsystem: "pipeline",
			Name:      "reports_total",
			Help:      "Total reports processed",
		}, []string{"operation", "report_type", "status"}),
		phiRedacted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediscan",
			Subsystem: "phi",
			Name:      "redacted_total",
			Help:      "Total PHI spans detected by category",
		}, []string{"category"}),
		riskBuckets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediscan",
			Subsystem: "risk",
			Name:      "bucket_total",
			Help:      "Risk assessments by bucket and scoring mode",
		}, []string{"bucket", "mode"}),
		modelFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediscan",
			Subsystem: "risk",
			Name:      "model_fallback_total",
			Help:      "Times the classifier was unavailable and heuristics-only mode was used",
		}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediscan",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Latency of pipeline stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reportsTotal, m.phiRedacted, m.riskBuckets, m.modelFallbacks, m.pipelineDuration)
	return m
}

func (m *PipelineMetrics) ObserveReport(operation, reportType, status string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(operation, reportType, status).Inc()
}

func (m *PipelineMetrics) ObservePHI(category string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.phiRedacted.WithLabelValues(category).Add(float64(count))
}

func (m *PipelineMetrics) ObserveRiskBucket(bucket string, degraded bool) {
	if m == nil {
		return
	}
	mode := "hybrid"
	if degraded {
		mode = "heuristic_only"
		m.modelFallbacks.Inc()
	}
	m.riskBuckets.WithLabelValues(bucket, mode).Inc()
}

func (m *PipelineMetrics) ObserveStageDuration(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.pipelineDuration.WithLabelValues(stage).Observe(seconds)
}
