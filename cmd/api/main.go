// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/app"
	"github.com/sudwiptokm/TravelBuddy/internal/config"
	"github.com/sudwiptokm/TravelBuddy/internal/handler"
	"github.com/sudwiptokm/TravelBuddy/internal/identity"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.Build(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("API server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting API server", zap.String("store", cfg.StoreDriver))

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "travelbuddy-api", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				if err := tracing.Shutdown(context.Background(), tp); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	a, err := app.Open(ctx, cfg, identity.ContextProvider{}, log)
	if err != nil {
		return fmt.Errorf("failed to start messaging core: %w", err)
	}
	defer a.Close()

	ready := map[string]handler.Pinger{
		"store":    a.Store,
		"throttle": a.Throttle,
	}
	if a.NATS != nil {
		ready["nats"] = a.NATS
	}

	server := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: handler.NewRouter(handler.RouterConfig{
			Session:         a.Session,
			JWTSecret:       cfg.JWTSecret,
			RateLimit:       cfg.RateLimitRequests,
			RateLimitWindow: cfg.RateLimitWindow,
			StreamHeartbeat: cfg.StreamHeartbeat,
			Ready:           ready,
			Logger:          log,
		}),
		ReadTimeout: cfg.ServerReadTimeout,
		// zero by default; SSE streams stay open for the life of a room
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
