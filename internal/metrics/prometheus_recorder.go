package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	buildDuration    prom.Histogram
	documentDuration prom.Histogram
	buildOutcome     *prom.CounterVec
	documentOutcome  *prom.CounterVec
	compilerRuns     prom.Counter
	toolRuns         *prom.CounterVec
	diagnostics      *prom.CounterVec
	workers          prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "texbuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.documentDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "texbuilder",
			Name:      "document_duration_seconds",
			Help:      "Duration of one document's convergence loop",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "texbuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.documentOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "texbuilder",
			Name:      "document_outcomes_total",
			Help:      "Documents by convergence result",
		}, []string{"converged"})
		pr.compilerRuns = prom.NewCounter(prom.CounterOpts{
			Namespace: "texbuilder",
			Name:      "compiler_runs_total",
			Help:      "LaTeX compiler invocations",
		})
		pr.toolRuns = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "texbuilder",
			Name:      "tool_runs_total",
			Help:      "Auxiliary tool invocations by kind and result",
		}, []string{"kind", "result"})
		pr.diagnostics = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "texbuilder",
			Name:      "diagnostics_total",
			Help:      "Recorded diagnostics by code",
		}, []string{"code"})
		pr.workers = prom.NewGauge(prom.GaugeOpts{
			Namespace: "texbuilder",
			Name:      "workers",
			Help:      "Document worker pool size of the last build",
		})
		reg.MustRegister(pr.buildDuration, pr.documentDuration, pr.buildOutcome, pr.documentOutcome,
			pr.compilerRuns, pr.toolRuns, pr.diagnostics, pr.workers)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveDocumentDuration(d time.Duration) {
	if p == nil || p.documentDuration == nil {
		return
	}
	p.documentDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncDocumentOutcome(converged bool) {
	if p == nil || p.documentOutcome == nil {
		return
	}
	label := "false"
	if converged {
		label = "true"
	}
	p.documentOutcome.WithLabelValues(label).Inc()
}

func (p *PrometheusRecorder) IncCompilerRun() {
	if p == nil || p.compilerRuns == nil {
		return
	}
	p.compilerRuns.Inc()
}

func (p *PrometheusRecorder) IncToolRun(kind string, result ResultLabel) {
	if p == nil || p.toolRuns == nil {
		return
	}
	p.toolRuns.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) IncDiagnostic(code string) {
	if p == nil || p.diagnostics == nil {
		return
	}
	p.diagnostics.WithLabelValues(code).Inc()
}

func (p *PrometheusRecorder) SetWorkers(n int) {
	if p == nil || p.workers == nil {
		return
	}
	p.workers.Set(float64(n))
}
