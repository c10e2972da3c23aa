package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"noteboard/internal/api"
	"noteboard/internal/mcp"
	"noteboard/internal/metrics"
	"noteboard/internal/middleware"
	"noteboard/internal/notes"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	svc := notes.NewService(st, notes.WithLogger(log), notes.WithMetrics(m))

	mux := http.NewServeMux()
	api.NewHandlers(svc, log).RegisterRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())
	if cfg.EnableMCP {
		mux.Handle("/mcp", mcp.NewMCPServer(svc, version).Handler())
	}

	// RequestID -> Logging -> CORS -> Metrics -> mux
	handler := middleware.RequestID(log)(
		middleware.Logging(
			middleware.CORS(cfg.CORSOrigin)(
				middleware.Metrics(m)(mux))))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Str("driver", cfg.DBDriver).
			Bool("mcp", cfg.EnableMCP).
			Msg("server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
