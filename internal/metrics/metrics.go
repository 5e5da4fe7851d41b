// Package metrics provides Prometheus metrics for long-running webup modes
// (the drop-folder watcher and the shell).
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transport metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webup_requests_total",
			Help: "Total requests sent to the uploader service",
		},
		[]string{"op", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webup_request_duration_seconds",
			Help:    "Uploader request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Upload queue metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webup_uploads_total",
			Help: "Upload tasks by terminal status",
		},
		[]string{"status"},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webup_upload_bytes_total",
			Help: "Bytes of completed uploads",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webup_queue_depth",
			Help: "Upload tasks not yet terminal",
		},
	)

	// Listing metrics
	staleListingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webup_stale_listings_total",
			Help: "Listing responses discarded because a newer request was already applied",
		},
	)

	alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webup_alerts_total",
			Help: "Alerts raised by severity",
		},
		[]string{"severity"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records one transport call. status is the HTTP status, or 0
// when the request never got a response.
func RecordRequest(op string, status int, duration time.Duration) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	requestsTotal.WithLabelValues(op, label).Inc()
	requestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordUpload records a task reaching a terminal status.
func RecordUpload(status string, bytes int64) {
	uploadsTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		uploadBytes.Add(float64(bytes))
	}
}

// SetQueueDepth records the number of non-terminal upload tasks.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordStaleListing records a discarded out-of-order listing response.
func RecordStaleListing() {
	staleListingsTotal.Inc()
}

// RecordAlert records an alert raised on the sink.
func RecordAlert(severity string) {
	alertsTotal.WithLabelValues(severity).Inc()
}

// ObserveDroppedEvents exports the event bus drop counter read through
// dropped. Only the first registration is kept.
func ObserveDroppedEvents(dropped func() int64) {
	c := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "webup_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
		func() float64 { return float64(dropped()) },
	)
	var are prometheus.AlreadyRegisteredError
	if err := prometheus.Register(c); err != nil && !errors.As(err, &are) {
		panic(err)
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
