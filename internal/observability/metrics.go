// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the validation core.
type Metrics struct {
	// Engine metrics
	BacktestsTotal      *prometheus.CounterVec
	BarsProcessed       prometheus.Counter
	TradesExecuted      prometheus.Counter
	CircuitBreakerTrips prometheus.Counter
	BacktestDuration    prometheus.Histogram

	// Optimizer metrics
	EvaluationsTotal *prometheus.CounterVec
	SweepDuration    *prometheus.HistogramVec

	// Monte Carlo metrics
	SimulationsTotal *prometheus.CounterVec

	// Walk-forward metrics
	WindowsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_lab"
	}

	return &Metrics{
		BacktestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "backtests_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BarsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bars_processed_total",
			Help:      "Total number of bars processed across all runs",
		}),
		TradesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_executed_total",
			Help:      "Total number of simulated round-trip trades",
		}),
		CircuitBreakerTrips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of runs halted by the drawdown circuit breaker",
		}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "backtest_duration_seconds",
			Help:      "Single backtest run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "evaluations_total",
			Help:      "Total number of parameter evaluations by method and status",
		}, []string{"method", "status"}),
		SweepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "sweep_duration_seconds",
			Help:      "Optimization sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"method"}),

		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "simulations_total",
			Help:      "Total number of Monte Carlo simulations by mode",
		}, []string{"mode"}),

		WindowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "windows_total",
			Help:      "Total number of walk-forward windows by status",
		}, []string{"status"}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBacktest records a completed backtest run.
func RecordBacktest(status string, bars, trades int, seconds float64) {
	DefaultMetrics.BacktestsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BarsProcessed.Add(float64(bars))
	DefaultMetrics.TradesExecuted.Add(float64(trades))
	DefaultMetrics.BacktestDuration.Observe(seconds)
}

// RecordCircuitBreakerTrip increments the circuit breaker counter.
func RecordCircuitBreakerTrip() {
	DefaultMetrics.CircuitBreakerTrips.Inc()
}

// RecordEvaluation records one optimizer evaluation.
func RecordEvaluation(method, status string) {
	DefaultMetrics.EvaluationsTotal.WithLabelValues(method, status).Inc()
}

// RecordSweep records a completed optimization sweep.
func RecordSweep(method string, seconds float64) {
	DefaultMetrics.SweepDuration.WithLabelValues(method).Observe(seconds)
}

// RecordSimulations adds completed Monte Carlo simulations.
func RecordSimulations(mode string, n int) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(mode).Add(float64(n))
}

// RecordWindow records a processed walk-forward window.
func RecordWindow(status string) {
	DefaultMetrics.WindowsTotal.WithLabelValues(status).Inc()
}
