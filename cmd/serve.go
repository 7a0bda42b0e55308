package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/okian/dripcue/internal/adapters/http/api"
	"github.com/okian/dripcue/internal/adapters/http/site"
	"github.com/okian/dripcue/internal/adapters/http/swagger"
	"github.com/okian/dripcue/internal/adapters/pulse"
	service "github.com/okian/dripcue/internal/app"
	"github.com/okian/dripcue/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

var serveFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "tone",
		Usage: "also play the beat on this host's speaker",
	},
}

func serve(c *cli.Context) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(ctx, os.Stdout)
	if err != nil {
		return err
	}
	log := logger.Get()

	hub := pulse.NewHub()
	sinks := pulse.Multi{hub}
	if c.Bool("tone") {
		sinks = append(sinks, pulse.NewTone(
			pulse.WithFrequency(cfg.ToneFrequencyHz),
			pulse.WithToneDuration(cfg.ToneDuration()),
		))
	}

	w, err := wire(ctx, cfg, sinks, service.WithLogger(log.Named("service")))
	if err != nil {
		return err
	}
	defer w.closeLogged()
	if err := w.start(ctx); err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, w.svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newMux mounts the console, the API docs and the JSON API. pulseStream
// serves GET /pulse.
func newMux(ctx context.Context, svc *service.Service, pulseStream http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, pulseStream).Register(ctx, mux)
	return mux
}
