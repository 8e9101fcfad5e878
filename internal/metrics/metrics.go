// Package metrics exposes crawl counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "archivist"

// Page outcomes.
const (
	PageCompleted = "completed"
	PageFailed    = "failed"
)

// Asset outcomes.
const (
	AssetFetched = "fetched"
	AssetCached  = "cached"
	AssetDeduped = "deduped"
	AssetFailed  = "failed"
)

// Metrics holds the crawl metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	PagesTotal     *prometheus.CounterVec
	AssetsTotal    *prometheus.CounterVec
	LinksEnqueued  prometheus.Counter
	AssetBytes     prometheus.Counter
	PageDuration   prometheus.Histogram
	PendingEntries prometheus.Gauge
	WindowWaits    prometheus.Counter
}

// New registers the crawl metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages processed, by outcome.",
		}, []string{"status"}),
		AssetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_total",
			Help:      "Asset references processed, by outcome.",
		}, []string{"result"}),
		LinksEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_enqueued_total",
			Help:      "New ledger entries created from discovered links.",
		}),
		AssetBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_bytes_total",
			Help:      "Asset bytes downloaded.",
		}),
		PageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_duration_seconds",
			Help:      "Time spent processing one page, assets included.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		PendingEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_entries",
			Help:      "Ledger entries waiting to be fetched.",
		}),
		WindowWaits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_waits_total",
			Help:      "Times the crawl paused outside the off-peak window.",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePage records one processed page.
func (m *Metrics) ObservePage(status string, d time.Duration) {
	m.PagesTotal.WithLabelValues(status).Inc()
	m.PageDuration.Observe(d.Seconds())
}

// ObserveAssets records the asset outcomes of one page.
func (m *Metrics) ObserveAssets(fetched, cached, deduped, failed int, bytes int64) {
	m.AssetsTotal.WithLabelValues(AssetFetched).Add(float64(fetched))
	m.AssetsTotal.WithLabelValues(AssetCached).Add(float64(cached))
	m.AssetsTotal.WithLabelValues(AssetDeduped).Add(float64(deduped))
	m.AssetsTotal.WithLabelValues(AssetFailed).Add(float64(failed))
	m.AssetBytes.Add(float64(bytes))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
