package observability

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_runs_total",
			Help: "Reconciliation cycles by outcome",
		},
		[]string{"status"},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Duration of reconciliation cycles",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	SyncSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_sync_skipped_total",
			Help: "Triggers skipped because a cycle was already running",
		},
	)

	ProductsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_products_created_total",
			Help: "Products created from the spreadsheet",
		},
	)

	SizesUpdatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_sizes_updated_total",
			Help: "Products whose size set was replaced",
		},
	)

	ColumnsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_columns_rejected_total",
			Help: "Spreadsheet columns dropped from the snapshot",
		},
	)

	StoreFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_store_failures_total",
			Help: "Per-product store failures during reconciliation",
		},
		[]string{"op"},
	)
)

var registerOnce sync.Once

// Start registers the collectors and serves /metrics on port in the
// background. A listener failure is logged; the service keeps running
// without metrics.
func Start(port string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SyncRunsTotal,
			SyncDuration,
			SyncSkippedTotal,
			ProductsCreatedTotal,
			SizesUpdatedTotal,
			ColumnsRejectedTotal,
			StoreFailuresTotal,
		)
	})
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(":"+port, mux)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("port", port), zap.Error(err))
		}
	}()
}
