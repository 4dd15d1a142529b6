// Package metrics exposes Prometheus instrumentation for every
// component in SPEC_FULL.md's pipeline. This is purely ambient
// observability — spec.md names no metrics requirement — so it is
// served over HTTP, on metrics_addr as given, only when metrics_addr
// is configured.
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter, gauge, and histogram this daemon
// exports, one per pipeline stage from spec.md §2's component table.
type Metrics struct {
	EventsReceived  prometheus.Counter
	EventsMerged    prometheus.Counter
	EventsDiscarded prometheus.Counter
	EventsDropped   *prometheus.CounterVec // labeled by drop reason (scope/blacklist/conflict)

	JobsEnqueued  *prometheus.CounterVec // labeled by job type
	JobsCommitted *prometheus.CounterVec // labeled by volatile/persistent

	IndexDocuments prometheus.Gauge
	SearchLatency  prometheus.Histogram
}

// New registers and returns a fresh Metrics set against its own
// registry, so tests and multiple daemon instances in one process
// don't collide on the default global registry.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "anyfind_kernel_events_received_total",
			Help: "Filesystem change events received from the kernel probe layer.",
		}),
		EventsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "anyfind_kernel_events_merged_total",
			Help: "Events coalesced by the kernel event merger.",
		}),
		EventsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "anyfind_kernel_events_discarded_total",
			Help: "Events evicted by the merger's memory bound.",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "anyfind_events_dropped_total",
			Help: "Events dropped by the scope filter, labeled by reason.",
		}, []string{"reason"}),
		JobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "anyfind_jobs_enqueued_total",
			Help: "Index jobs enqueued, labeled by job type.",
		}, []string{"type"}),
		JobsCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "anyfind_jobs_committed_total",
			Help: "Commit passes run, labeled by volatile/persistent.",
		}, []string{"window"}),
		IndexDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Name: "anyfind_index_documents",
			Help: "Documents currently in the volatile index.",
		}),
		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "anyfind_search_latency_seconds",
			Help:    "Free-text search latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}, reg
}

// Serve starts the metrics HTTP listener on addr until ctx is
// cancelled. A no-op if addr is empty.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	if addr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err = srv.Serve(lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
