// ABOUTME: Prometheus collectors and optional metrics endpoint for arcbot
// ABOUTME: Counters for event flow and reconnects, gauge for queue depth

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

var (
	// EventsReceived counts raw gateway events received, per shard.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcbot",
		Name:      "events_received_total",
		Help:      "Raw gateway events received.",
	}, []string{"shard"})

	// ItemsProcessed counts work items processed by the pool, by outcome.
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcbot",
		Name:      "work_items_processed_total",
		Help:      "Work items processed by the worker pool.",
	}, []string{"outcome"})

	// QueueDepth tracks the current submission queue depth.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arcbot",
		Name:      "queue_depth",
		Help:      "Work items waiting in the submission queue.",
	})

	// Reconnects counts gateway reconnect attempts, per shard.
	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcbot",
		Name:      "gateway_reconnects_total",
		Help:      "Gateway reconnect attempts.",
	}, []string{"shard"})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("metrics endpoint listening", "addr", addr)

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
