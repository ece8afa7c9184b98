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

	"github.com/greg5320/mappool/internal/app"
	"github.com/greg5320/mappool/internal/infra"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/greg5320/mappool/internal/session"
	"github.com/greg5320/mappool/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.RunMigrations {
		if err := infra.RunMigrations(cfg.DSN(), "", logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Connect to Postgres
	db, err := infra.NewPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	logger.Info("connected to postgres")

	// Connect to Redis
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("connected to redis", "addr", cfg.RedisAddr)

	// Connect to MinIO
	minioClient, err := storage.NewMinioClient(ctx, storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("connect minio: %w", err)
	}
	images := storage.NewMinioStore(minioClient, cfg.MinioBucket, cfg.PublicURL(), storage.DefaultBreakerConfig(), logger)
	logger.Info("connected to minio", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)

	r := app.NewRouter(app.RouterDeps{
		DB:                     db,
		Repos:                  repository.NewPgSet(),
		Sessions:               session.NewRedisStore(rdb),
		Images:                 images,
		Logger:                 logger,
		CookieName:             cfg.SessionCookieName,
		SessionTTL:             cfg.SessionTTL,
		CookieSecure:           cfg.SessionCookieSecure,
		CORSAllowedOrigins:     cfg.AllowedOrigins(),
		AllowStaffRegistration: cfg.AllowStaffRegistration,
		MaxUploadBytes:         cfg.MaxUploadBytes,
		LoginRateLimit:         cfg.LoginRateLimit,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
