package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mdocpack"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	registry        *prom.Registry
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	compileDuration prom.Histogram
	compileOutcome  *prom.CounterVec
	diagnostics     *prom.CounterVec
	partials        prom.Histogram
	schemaSlots     *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual compile stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.compileDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of one document compilation",
			Buckets:   prom.DefBuckets,
		})
		pr.compileOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compile_outcomes_total",
			Help:      "Document compilations by final status",
		}, []string{"outcome"})
		pr.diagnostics = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Validation diagnostics by level",
		}, []string{"level"})
		pr.partials = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "partials_per_document",
			Help:      "Number of partials gathered per document",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		})
		pr.schemaSlots = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_slots",
			Help:      "Schema slots of the last located bundle by state",
		}, []string{"state"})
		reg.MustRegister(pr.stageDuration, pr.stageResults, pr.compileDuration, pr.compileOutcome, pr.diagnostics, pr.partials, pr.schemaSlots)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveCompileDuration(d time.Duration) {
	if p == nil || p.compileDuration == nil {
		return
	}
	p.compileDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompileOutcome(outcome Outcome) {
	if p == nil || p.compileOutcome == nil {
		return
	}
	p.compileOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddDiagnostics(level string, n int) {
	if p == nil || p.diagnostics == nil || n <= 0 {
		return
	}
	p.diagnostics.WithLabelValues(level).Add(float64(n))
}

func (p *PrometheusRecorder) ObservePartials(n int) {
	if p == nil || p.partials == nil {
		return
	}
	p.partials.Observe(float64(n))
}

func (p *PrometheusRecorder) SetSchemaSlots(state string, n int) {
	if p == nil || p.schemaSlots == nil {
		return
	}
	p.schemaSlots.WithLabelValues(state).Set(float64(n))
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

// HTTPHandler serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// WriteTextfile writes reg in the node-exporter textfile format.
func WriteTextfile(path string, reg *prom.Registry) error {
	return prom.WriteToTextfile(path, reg)
}
