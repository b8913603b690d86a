// Package metrics counts chain transactions of a deployment run and exports them in the node
// exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder holds the metrics of one process. A nil *Recorder discards everything.
type Recorder struct {
	registry        *prometheus.Registry
	txTotal         *prometheus.CounterVec
	txDuration      *prometheus.HistogramVec
	pendingBindings prometheus.Gauge
	lastSuccess     *prometheus.GaugeVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		txTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_deployer_transactions_total",
				Help: "Transactions sent by chain, kind and result",
			},
			[]string{"chain", "kind", "result"},
		),
		txDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_deployer_transaction_confirmation_seconds",
				Help:    "Time from submission until a transaction is confirmed",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"chain", "kind"},
		),
		pendingBindings: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_deployer_pending_bindings",
				Help: "Cross-chain references still pointing at a placeholder",
			},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_deployer_stage_last_success_timestamp_seconds",
				Help: "Unix time at which a stage last completed",
			},
			[]string{"stage"},
		),
	}
}

// ObserveTx records one deploy, transaction or call against chain.
func (r *Recorder) ObserveTx(chain, kind string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}

	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.txTotal.WithLabelValues(chain, kind, result).Inc()
	if err == nil {
		r.txDuration.WithLabelValues(chain, kind).Observe(elapsed.Seconds())
	}
}

func (r *Recorder) SetPendingBindings(n int) {
	if r == nil {
		return
	}
	r.pendingBindings.Set(float64(n))
}

func (r *Recorder) StageCompleted(stage string, at time.Time) {
	if r == nil {
		return
	}
	r.lastSuccess.WithLabelValues(stage).Set(float64(at.Unix()))
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
