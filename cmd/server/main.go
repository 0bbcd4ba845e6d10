package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/loanledger/internal/infrastructure/config"
	"github.com/iho/loanledger/internal/infrastructure/logger"
	"github.com/iho/loanledger/internal/infrastructure/logging"
	"github.com/iho/loanledger/internal/infrastructure/metrics"
)

func main() {
	// Bootstrap logger until the configured one is built
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zlog := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "loanledger",
	})
	logger.SetGlobal(zlog)

	slogger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := appDeps{
		log:            zlog,
		slog:           slogger,
		metrics:        metrics.New(),
		metricsHandler: promhttp.Handler(),
	}

	if err := run(ctx, cfg, deps); err != nil {
		zlog.Fatal().Err(err).Msg("server failed")
	}

	zlog.Info().Msg("server stopped")
}

// run serves HTTP and, when enabled, consumes payments until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, deps appDeps) error {
	a, err := buildApp(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()

	errCh := make(chan error, 2)

	go func() {
		deps.log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerDone := make(chan struct{})
	if a.consumer != nil {
		go func() {
			defer close(consumerDone)
			if err := a.consumer.Run(consumerCtx); err != nil {
				errCh <- fmt.Errorf("payment consumer: %w", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
		deps.log.Info().Msg("shutting down server...")
	case runErr = <-errCh:
		deps.log.Error().Err(runErr).Msg("component failed, shutting down")
	}

	cancelConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server forced to shutdown: %w", err))
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		deps.log.Warn().Msg("payment consumer did not stop in time")
	}

	return runErr
}
