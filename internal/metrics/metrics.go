// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "papertrade"

// Metrics holds the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	QuotesProcessed   prometheus.Counter
	QuotesRejected    *prometheus.CounterVec
	ExecutionsTotal   *prometheus.CounterVec
	AlertsTriggered   prometheus.Counter
	PositionsUpdated  prometheus.Counter
	UpdateDuration    prometheus.Histogram
	UpdateFailures    prometheus.Counter
	RiskCalculations  *prometheus.CounterVec
	Degradations      *prometheus.CounterVec
	SimulationSeconds prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers the engine collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QuotesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "quotes_processed_total",
			Help:      "Total quotes accepted for processing",
		}),
		QuotesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "quotes_rejected_total",
			Help:      "Total quotes rejected by validation",
		}, []string{"reason"}),
		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "closes_total",
			Help:      "Total positions and trade ideas closed by exit rules",
		}, []string{"entity", "kind"}),
		AlertsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "alerts_triggered_total",
			Help:      "Total price alerts triggered",
		}),
		PositionsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "positions_updated_total",
			Help:      "Total position price updates written",
		}),
		UpdateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "update_duration_seconds",
			Help:      "Duration of market update batches",
			Buckets:   prometheus.DefBuckets,
		}),
		UpdateFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "update_failures_total",
			Help:      "Total market update batches aborted by collaborator failures",
		}),
		RiskCalculations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "calculations_total",
			Help:      "Total risk analytics requests",
		}, []string{"kind", "status"}),
		Degradations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "degradations_total",
			Help:      "Total best-effort steps that fell back to defaults",
		}, []string{"component"}),
		SimulationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "monte_carlo_duration_seconds",
			Help:      "Duration of Monte Carlo simulations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
		}, []string{"method", "route"}),
	}
}

// ObserveBatch records one market update batch
func (m *Metrics) ObserveBatch(start time.Time, accepted, positionsUpdated int, failed bool) {
	if m == nil {
		return
	}
	m.UpdateDuration.Observe(time.Since(start).Seconds())
	m.QuotesProcessed.Add(float64(accepted))
	m.PositionsUpdated.Add(float64(positionsUpdated))
	if failed {
		m.UpdateFailures.Inc()
	}
}

// QuoteRejected records a quote dropped by validation
func (m *Metrics) QuoteRejected(reason string) {
	if m == nil {
		return
	}
	m.QuotesRejected.WithLabelValues(reason).Inc()
}

// Executed records a close produced by an exit rule
func (m *Metrics) Executed(entity, kind string) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(entity, kind).Inc()
}

// AlertTriggered records a fired alert
func (m *Metrics) AlertTriggered() {
	if m == nil {
		return
	}
	m.AlertsTriggered.Inc()
}

// RiskCalculation records a risk analytics request outcome
func (m *Metrics) RiskCalculation(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RiskCalculations.WithLabelValues(kind, status).Inc()
}

// Degraded records a best-effort fallback
func (m *Metrics) Degraded(component string) {
	if m == nil {
		return
	}
	m.Degradations.WithLabelValues(component).Inc()
}

// ObserveSimulation records a Monte Carlo run duration
func (m *Metrics) ObserveSimulation(d time.Duration) {
	if m == nil {
		return
	}
	m.SimulationSeconds.Observe(d.Seconds())
}

// ObserveHTTP records one HTTP request
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
