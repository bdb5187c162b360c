// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Stage status labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Latency metrics
	RPCCallLatency     *prometheus.HistogramVec
	GatewayCallLatency prometheus.Histogram

	// Run metrics
	StageRunsTotal *prometheus.CounterVec

	// Oracle metrics
	OracleResponses prometheus.Gauge
	OracleSuccesses prometheus.Gauge

	// Simulation metrics
	UnitsConsumed prometheus.Gauge

	// Health metrics
	LastCompletedRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "switchboard_sim"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		GatewayCallLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "fetch_latency_seconds",
			Help:      "Oracle update fetch latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		StageRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "stages_total",
			Help:      "Total number of run stages by outcome",
		}, []string{"stage", "status"}),
		OracleResponses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "responses",
			Help:      "Number of oracle responses in the last fetched update",
		}),
		OracleSuccesses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "successes",
			Help:      "Number of successful oracle responses reported for the last fetched update",
		}),
		UnitsConsumed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "units_consumed",
			Help:      "Compute units consumed by the last simulated transaction",
		}),
		LastCompletedRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_completed_run_timestamp",
			Help:      "Unix timestamp of last completed run",
		}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordGatewayLatency records oracle update fetch latency.
func RecordGatewayLatency(seconds float64) {
	DefaultMetrics.GatewayCallLatency.Observe(seconds)
}

// RecordStage records the outcome of one run stage.
func RecordStage(stage string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	DefaultMetrics.StageRunsTotal.WithLabelValues(stage, status).Inc()
}

// RecordOracleResponses records the response counts of a fetched update.
func RecordOracleResponses(total, successes int) {
	DefaultMetrics.OracleResponses.Set(float64(total))
	DefaultMetrics.OracleSuccesses.Set(float64(successes))
}

// RecordUnitsConsumed records compute units consumed by a simulation.
func RecordUnitsConsumed(units uint64) {
	DefaultMetrics.UnitsConsumed.Set(float64(units))
}

// MarkRunCompleted stamps the completion time of a run.
func MarkRunCompleted(at time.Time) {
	DefaultMetrics.LastCompletedRun.Set(float64(at.Unix()))
}

// Push sends everything in the default registry to a Prometheus Pushgateway.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
