// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemsFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ado_items_fetched_total",
		Help: "Total number of work item details successfully fetched",
	})
	BatchesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ado_batches_succeeded_total",
		Help: "Total number of detail batches fetched successfully",
	})
	BatchesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ado_batches_failed_total",
		Help: "Total number of detail batches that failed after retries",
	})
	BatchRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ado_batch_retries_total",
		Help: "Total number of retried HTTP requests against the work-tracking service",
	})
	RequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ado_request_duration_seconds",
		Help:    "Histogram of HTTP request durations against the work-tracking service",
		Buckets: prometheus.DefBuckets,
	})
	IngestionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingestion_run_duration_seconds",
		Help:    "Histogram of full ingestion-run wall-clock durations",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	ValidationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "normalize_validation_errors_total",
		Help: "Total number of work items dropped by the normalizer due to validation errors",
	})
	FlowWIPTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flow_wip_total",
		Help: "Work-in-progress item count at last calculation",
	})
	FlowThroughputCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flow_throughput_count",
		Help: "Throughput count over the configured window at last calculation",
	})
	RefreshInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "refresh_in_progress",
		Help: "1 while a refresh (ingest+calculate) cycle is running, 0 otherwise",
	})
)

func init() {
	prometheus.MustRegister(ItemsFetched, BatchesSucceeded, BatchesFailed, BatchRetries,
		RequestDuration, IngestionDuration, ValidationErrors, FlowWIPTotal, FlowThroughputCount,
		RefreshInProgress)
}

// StartMetricsServer exposes /metrics and returns a server for controlled shutdown.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
