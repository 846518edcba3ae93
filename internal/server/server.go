package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nholik/probe-sentinel/internal/healthcheck"
	"github.com/nholik/probe-sentinel/internal/metrics"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Options configures the watch-mode HTTP endpoints. A zero port disables that endpoint.
type Options struct {
	HealthPort   int
	MetricsPort  int
	PollInterval time.Duration
	Tracker      *healthcheck.Tracker
	Metrics      *metrics.Metrics
}

type listener struct {
	label   string
	port    int
	handler http.Handler
}

// Start binds the health and metrics listeners and serves them until ctx is canceled.
// When both ports are equal a single server carries every route.
func Start(ctx context.Context, logger zerolog.Logger, opts Options) error {
	listeners := plan(opts)
	bound := make([]net.Listener, 0, len(listeners))
	for _, l := range listeners {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
		if err != nil {
			for _, prev := range bound {
				_ = prev.Close()
			}
			return fmt.Errorf("listen %s on port %d: %w", l.label, l.port, err)
		}
		bound = append(bound, ln)
	}

	for i, l := range listeners {
		serve(ctx, logger, bound[i], l)
	}
	return nil
}

func plan(opts Options) []listener {
	if opts.HealthPort == 0 && opts.MetricsPort == 0 {
		return nil
	}

	if opts.HealthPort > 0 && opts.HealthPort == opts.MetricsPort {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, opts)
		registerMetricsRoute(mux, opts.Metrics)
		return []listener{{label: "health/metrics", port: opts.HealthPort, handler: mux}}
	}

	listeners := make([]listener, 0, 2)
	if opts.HealthPort > 0 {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, opts)
		listeners = append(listeners, listener{label: "health", port: opts.HealthPort, handler: mux})
	}
	if opts.MetricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, opts.Metrics)
		listeners = append(listeners, listener{label: "metrics", port: opts.MetricsPort, handler: mux})
	}
	return listeners
}

func registerHealthRoutes(mux *http.ServeMux, opts Options) {
	mux.HandleFunc("/healthz", healthcheck.HealthHandler(opts.Tracker, opts.PollInterval))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(opts.Tracker))
}

func registerMetricsRoute(mux *http.ServeMux, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	mux.Handle("/metrics", metricsCollector.Handler())
}

func serve(ctx context.Context, logger zerolog.Logger, ln net.Listener, l listener) {
	server := &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", l.label).Int("port", l.port).Msg("http server starting")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", l.label).Int("port", l.port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", l.label).Int("port", l.port).Msg("http server shutdown failed")
		}
	}()
}
