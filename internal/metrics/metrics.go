// Package metrics exposes watcher counters for Prometheus scraping.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for poll requests.
const (
	ResultSuccess      = "success"
	ResultUnsuccessful = "unsuccessful"
	ResultError        = "error"
	ResultStale        = "stale"
)

var (
	pollRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobwatch_poll_requests_total",
			Help: "Total number of progress poll requests by result",
		},
		[]string{"result"},
	)

	streamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobwatch_stream_events_total",
			Help: "Total number of server-pushed events received by kind",
		},
		[]string{"kind"},
	)

	streamReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobwatch_stream_reconnects_total",
			Help: "Total number of scheduled stream reconnect attempts",
		},
	)

	watchersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobwatch_watchers_active",
			Help: "Number of trackers and listeners currently running",
		},
	)
)

// RecordPoll counts one poll request outcome.
func RecordPoll(result string) {
	pollRequestsTotal.WithLabelValues(result).Inc()
}

// RecordStreamEvent counts one pushed event. Custom kinds share one label
// to keep cardinality bounded.
func RecordStreamEvent(kind string, builtin bool) {
	if !builtin {
		kind = "custom"
	}
	streamEventsTotal.WithLabelValues(kind).Inc()
}

// RecordReconnect counts one scheduled reconnect.
func RecordReconnect() {
	streamReconnectsTotal.Inc()
}

// WatcherStarted and WatcherStopped track the active gauge.
func WatcherStarted() { watchersActive.Inc() }
func WatcherStopped() { watchersActive.Dec() }

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Router mounts the metrics endpoint.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		Handler().ServeHTTP(w, req)
	})
	return r
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
