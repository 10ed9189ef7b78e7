// Package metrics exposes the validator's Prometheus gauges and counters,
// grounded on core/system_health_logging.go's HealthLogger: a private
// registry, one gauge/counter per observable, served over promhttp on a
// configurable port.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the validator's runtime metrics.
type Registry struct {
	reg *prometheus.Registry

	EpochIndex       prometheus.Gauge
	RewardVectorSum  prometheus.Gauge
	VoteSnapshots    prometheus.Counter
	LiquiditySnaps   prometheus.Counter
	SubmissionOK     prometheus.Counter
	SubmissionFailed prometheus.Counter
	PipelineSeconds  prometheus.Gauge
}

// New wires a fresh metrics registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		EpochIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oceans_epoch_index",
			Help: "Index of the epoch currently being processed.",
		}),
		RewardVectorSum: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oceans_reward_vector_sum",
			Help: "Sum of the most recently published reward vector (should be ~1.0).",
		}),
		VoteSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oceans_vote_snapshots_persisted_total",
			Help: "Total number of vote snapshots persisted across all epochs.",
		}),
		LiquiditySnaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oceans_liquidity_snapshots_persisted_total",
			Help: "Total number of liquidity snapshots persisted across all epochs.",
		}),
		SubmissionOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oceans_weight_submissions_ok_total",
			Help: "Total number of successful weight submissions.",
		}),
		SubmissionFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oceans_weight_submissions_failed_total",
			Help: "Total number of failed weight submissions.",
		}),
		PipelineSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oceans_pipeline_duration_seconds",
			Help: "Wall-clock duration of the most recent D->E->F pipeline run.",
		}),
	}

	reg.MustRegister(
		r.EpochIndex,
		r.RewardVectorSum,
		r.VoteSnapshots,
		r.LiquiditySnaps,
		r.SubmissionOK,
		r.SubmissionFailed,
		r.PipelineSeconds,
	)
	return r
}

// Serve starts an HTTP server exposing /metrics until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
