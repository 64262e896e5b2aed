package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/myrjola/stride/internal/e2etest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultTimeout = 2 * time.Second

func (app *application) newServer(handler http.Handler) *http.Server {
	return &http.Server{
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
		Handler:           handler,
		IdleTimeout:       time.Minute,
		ReadTimeout:       defaultTimeout,
		WriteTimeout:      defaultTimeout,
		ReadHeaderTimeout: time.Second,
	}
}

// configureAndStartServer serves handler on addr until ctx is done. When metricsAddr is set, the Prometheus registry
// is served on its own listener so that it is never exposed through the public address.
func (app *application) configureAndStartServer(
	ctx context.Context,
	addr string,
	handler http.Handler,
	metricsAddr string,
	registry *prometheus.Registry,
) error {
	var (
		err     error
		servers []*http.Server
	)

	srv := app.newServer(handler)
	servers = append(servers, srv)

	var listener net.Listener
	if listener, err = net.Listen("tcp", addr); err != nil {
		return fmt.Errorf("TCP listen: %w", err)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
			EnableOpenMetrics: true,
		}))
		metricsSrv := app.newServer(mux)
		servers = append(servers, metricsSrv)

		var metricsListener net.Listener
		if metricsListener, err = net.Listen("tcp", metricsAddr); err != nil {
			return errors.Join(fmt.Errorf("metrics TCP listen: %w", err), listener.Close())
		}
		app.logger.LogAttrs(ctx, slog.LevelInfo, "starting metrics server",
			slog.String("metrics_addr", metricsListener.Addr().String()))
		go func() {
			if serveErr := metricsSrv.Serve(metricsListener); !errors.Is(serveErr, http.ErrServerClosed) {
				app.logger.LogAttrs(ctx, slog.LevelError, "metrics server stopped", slog.Any("error", serveErr))
			}
		}()
	}

	shutdownComplete := make(chan struct{})
	go func() {
		defer close(shutdownComplete)
		<-ctx.Done()
		app.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "shutting down server")

		shutdownContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
		defer cancel()
		for _, s := range servers {
			if shutdownErr := s.Shutdown(shutdownContext); shutdownErr != nil {
				app.logger.LogAttrs(shutdownContext, slog.LevelError, "error shutting down server",
					slog.Any("error", shutdownErr))
			}
		}
	}()

	app.logger.LogAttrs(ctx, slog.LevelInfo, "starting server", slog.Any(e2etest.LogAddrKey, listener.Addr().String()))
	if err = srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server serve: %w", err)
	}
	<-shutdownComplete

	return nil
}
