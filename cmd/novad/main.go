// cmd/novad/main.go
// Package main implements the entry point for the NovaMarket service.
// It initializes all components and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/novamarket/novamarket-go/internal/cache"
	"github.com/novamarket/novamarket-go/internal/config"
	"github.com/novamarket/novamarket-go/internal/event"
	"github.com/novamarket/novamarket-go/internal/media"
	"github.com/novamarket/novamarket-go/internal/requests"
	"github.com/novamarket/novamarket-go/internal/server"
	"github.com/novamarket/novamarket-go/internal/storage"
	"github.com/novamarket/novamarket-go/internal/telemetry"
)

// main is the entry point for the NovaMarket service.
// It initializes all components, starts the HTTP server, and handles graceful shutdown.
func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging for the application
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	_, err = telemetry.InitTracer("novad")
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		// Shutdown the tracer provider
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(ctx)
	}()

	// Initialize storage backend (PostgreSQL or in-memory)
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		// Use PostgreSQL storage for production
		store, err = storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Error("failed to initialize postgres storage", "error", err)
			os.Exit(1)
		}
	} else {
		// Use in-memory storage for development/testing
		store = storage.NewMemory()
	}

	// Initialize event publisher (NATS JetStream or no-op)
	pub := event.NewPublisherFromEnv()
	defer pub.Close() // Ensure publisher is closed on exit

	// Initialize the product read cache (Redis or no-op)
	productCache := cache.NewRedis(cfg.RedisAddr, logger)
	defer productCache.Close()

	// Initialize the request board on the configured backend
	var board *requests.Service
	if cfg.RequestsBackend == "local" {
		board = requests.NewService(requests.NewFileStore(cfg.RequestsPath, logger))
	} else {
		board = requests.NewService(store)
	}

	// Initialize the media client when a bucket is configured
	var mediaClient *media.S3Client
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		mediaClient, err = media.NewS3Client(cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			logger.Error("failed to initialize S3 client", "error", err)
			os.Exit(1)
		}
	}

	// Create HTTP mux with all handlers and middleware
	mux := server.NewMux(store, pub, board, nil, cfg.JWTIssuer, cfg.JWTAudience, productCache, mediaClient, cfg.MaxImageSize, cfg.CORSAllowedOrigins)

	// Create HTTP server with timeout configuration
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,             // Server address
		Handler:      mux,              // Request handler
		ReadTimeout:  5 * time.Second,  // Read timeout
		WriteTimeout: 10 * time.Second, // Write timeout
	}

	// Start server in a separate goroutine
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Handle graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	// Close PostgreSQL storage if used
	if postgresStore, ok := store.(interface{ Close() }); ok {
		postgresStore.Close()
	}

	// Note: pub.Close() is deferred above
	logger.Info("server exited")
}
