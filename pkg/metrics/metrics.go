// Package metrics holds the Prometheus instruments of the mirror.
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests and library use.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcd43gf"

// Metrics holds all instruments.
type Metrics struct {
	Requests         *prometheus.CounterVec // mcd43gf_requests_total{outcome}
	RequestRetries   prometheus.Counter     // mcd43gf_request_retries_total
	SessionRotations prometheus.Counter     // mcd43gf_session_rotations_total

	CrawlDays  *prometheus.CounterVec // mcd43gf_crawl_days_total{product,result}
	CrawlFiles *prometheus.CounterVec // mcd43gf_crawl_files_total{product}

	Transfers        *prometheus.CounterVec // mcd43gf_transfers_total{status}
	TransferAttempts prometheus.Histogram   // mcd43gf_transfer_attempts
	TransferBytes    prometheus.Counter     // mcd43gf_transfer_bytes_total
	ChecksumFailures prometheus.Counter     // mcd43gf_checksum_failures_total

	LinksCreated prometheus.Counter // mcd43gf_links_created_total
	LinksMissing prometheus.Counter // mcd43gf_links_missing_total
}

// New registers all instruments with registry.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Archive requests by final outcome",
		}, []string{"outcome"}),
		RequestRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_retries_total",
			Help:      "Request attempts beyond the first",
		}),
		SessionRotations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_rotations_total",
			Help:      "HTTP sessions discarded after consecutive failures",
		}),
		CrawlDays: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_days_total",
			Help:      "Day listings resolved by product and result",
		}, []string{"product", "result"}),
		CrawlFiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_files_total",
			Help:      "File records discovered by product",
		}, []string{"product"}),
		Transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfer tasks by final status",
		}, []string{"status"}),
		TransferAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_attempts",
			Help:      "Attempts used per transfer task",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}),
		TransferBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_bytes_total",
			Help:      "Bytes written to the mirror",
		}),
		ChecksumFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_failures_total",
			Help:      "Fetched or local files that failed checksum validation",
		}),
		LinksCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Window links created",
		}),
		LinksMissing: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_missing_total",
			Help:      "Window links skipped because the mirror file was missing",
		}),
	}
}

// ObserveRequest records the final outcome of a request and its retry count.
func (m *Metrics) ObserveRequest(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	if attempts > 1 {
		m.RequestRetries.Add(float64(attempts - 1))
	}
}

// ObserveRotation records a session rotation.
func (m *Metrics) ObserveRotation() {
	if m == nil {
		return
	}
	m.SessionRotations.Inc()
}

// ObserveDay records a resolved day listing.
func (m *Metrics) ObserveDay(product, result string, files int) {
	if m == nil {
		return
	}
	m.CrawlDays.WithLabelValues(product, result).Inc()
	m.CrawlFiles.WithLabelValues(product).Add(float64(files))
}

// ObserveTransfer records a finished transfer task.
func (m *Metrics) ObserveTransfer(status string, attempts int, bytes int64) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(status).Inc()
	m.TransferAttempts.Observe(float64(attempts))
	m.TransferBytes.Add(float64(bytes))
}

// ObserveChecksumFailure records a checksum mismatch.
func (m *Metrics) ObserveChecksumFailure() {
	if m == nil {
		return
	}
	m.ChecksumFailures.Inc()
}

// ObserveLinks records the outcome of a materialization.
func (m *Metrics) ObserveLinks(created, missing int) {
	if m == nil {
		return
	}
	m.LinksCreated.Add(float64(created))
	m.LinksMissing.Add(float64(missing))
}

// Serve exposes the registry on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
