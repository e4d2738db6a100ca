package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	imagehandlers "VeryGoods/internal/api/handlers/images"
	"VeryGoods/internal/api/middleware"
	"VeryGoods/internal/api/routes"
	"VeryGoods/internal/core/images"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := images.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid image pipeline configuration:", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := images.NewMetrics(reg)

	store, err := images.NewStoreFromConfig(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to open image cache:", err)
	}
	defer store.Close()
	store.StartCleanup(cfg.CleanupInterval)

	fetcher := images.NewHTTPFetcher(cfg.FetchTimeout, cfg.MaxSourceSizeMB)
	service, err := images.NewService(store, fetcher, metrics)
	if err != nil {
		log.Fatal("Failed to create image service:", err)
	}

	if cfg.CachePath == "" {
		slog.Info("[IMAGES] cache is memory only")
	} else {
		slog.Info("[IMAGES] disk cache enabled",
			"path", cfg.CachePath,
			"max_mb", cfg.CacheMaxMB,
			"ttl_days", cfg.CacheTTLDays,
			"cleanup_interval", cfg.CleanupInterval,
		)
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	// Rate limiting: requests per minute per IP
	requestsPerMinute := 100
	if v := os.Getenv("RATE_LIMIT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			requestsPerMinute = n
		}
	}
	rateLimiter := middleware.NewRateLimiter(requestsPerMinute, 1*time.Minute)

	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		routes.RegisterImageRoutes(r, imagehandlers.NewHandler(service, cfg.AllowedHosts))
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	port := os.Getenv("APPVIEW_PORT")
	if port == "" {
		port = "8081"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("[SERVER] Very Goods image service starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("[SERVER] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("[SERVER] forced shutdown", "error", err)
	}
	// Deferred store.Close waits for pending cache writes.
}
