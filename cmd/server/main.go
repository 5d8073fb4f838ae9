package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/rewear/rewear/internal/auth"
	"github.com/rewear/rewear/internal/config"
	"github.com/rewear/rewear/internal/lifecycle"
	"github.com/rewear/rewear/internal/media"
	"github.com/rewear/rewear/internal/middleware"
	"github.com/rewear/rewear/internal/observability"
	"github.com/rewear/rewear/internal/service"
	"github.com/rewear/rewear/internal/storage"
	"github.com/rewear/rewear/internal/storage/postgres"
	"github.com/rewear/rewear/internal/storage/sqlite"
	"github.com/rewear/rewear/pkg/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup structured logging
	logging.SetupWithLevel(logging.ParseLevel(cfg.Logging.Level))

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Storage.SeedDemo {
		if err := storage.SeedDemoData(ctx, store); err != nil {
			slog.Error("Failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("rewear", registry)

	opts := []service.Option{
		service.WithPolicy(swapPolicy(cfg.Swap)),
		service.WithMetrics(metrics),
	}

	presigner, err := media.NewS3Presigner(ctx, media.Config{
		Bucket:   cfg.Media.Bucket,
		Region:   cfg.Media.Region,
		Endpoint: cfg.Media.Endpoint,
		Expiry:   cfg.Media.UploadExpiry,
	})
	switch {
	case errors.Is(err, media.ErrDisabled):
		slog.Info("Photo uploads disabled", "reason", "S3_BUCKET_NAME not set")
	case err != nil:
		slog.Error("Failed to initialize photo uploads", "error", err)
		os.Exit(1)
	default:
		opts = append(opts, service.WithPhotoSigner(presigner))
		slog.Info("Photo uploads enabled", "bucket", cfg.Media.Bucket, "region", cfg.Media.Region)
	}

	// Interceptors run outermost first: metrics and logging see auth failures.
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authInterceptor := middleware.OptionalAuth(jwtManager)
	if cfg.Auth.Required {
		authInterceptor = middleware.RequireAuth(jwtManager)
	} else {
		slog.Warn("Authentication is optional; request user IDs are trusted", "env", "AUTH_REQUIRED")
	}
	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(metrics),
		middleware.LoggingInterceptor(),
		authInterceptor,
	)

	swapPath, swapHandler := service.NewSwapServiceHandler(service.NewSwapService(store, opts...), interceptors)

	router := mux.NewRouter()
	router.PathPrefix(swapPath).Handler(swapHandler)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	if cfg.Metrics.Enabled {
		router.Handle("/metrics", observability.Handler(registry)).Methods(http.MethodGet)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders: []string{"Connect-Protocol-Version", "Connect-Timeout-Ms", service.ErrorKindHeader},
	}).Handler(router)

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(loggingMiddleware(corsHandler), &http2.Server{})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      h2cHandler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", srv.Addr, "storage", cfg.Storage.Driver)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Driver)
		return store, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Driver, "database", cfg.DBPath)
		return store, nil
	}
}

func swapPolicy(cfg config.SwapConfig) lifecycle.Policy {
	policy := lifecycle.DefaultPolicy()
	policy.AllowMethodReselection = cfg.AllowMethodReselection
	policy.AutoCompleteMinRating = cfg.AutoCompleteMinRating
	if cfg.PendingTTL > 0 || cfg.InTransitTTL > 0 {
		policy.Expiry = lifecycle.DurationExpiry{Pending: cfg.PendingTTL, InTransit: cfg.InTransitTTL}
	}
	return policy
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
