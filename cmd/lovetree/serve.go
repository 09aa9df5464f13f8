package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lovetree/lovetree/internal/auth"
	"github.com/lovetree/lovetree/internal/cache"
	"github.com/lovetree/lovetree/internal/chat"
	"github.com/lovetree/lovetree/internal/config"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/handlers"
	"github.com/lovetree/lovetree/internal/middleware"
	"github.com/lovetree/lovetree/internal/scheduler"
	"github.com/lovetree/lovetree/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	skipMigrate bool
	listenAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, chat sockets and scheduled jobs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations on startup")
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address, overrides PORT (e.g. :9090)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !skipMigrate {
		if err := database.Migrate(ctx, cfg.DB.DSN()); err != nil {
			return err
		}
	}
	db, err := database.Connect(ctx, cfg.DB.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	ttl, err := cfg.Auth.TokenTTL()
	if err != nil {
		return err
	}
	if cfg.Auth.TokenSecret == "" {
		logger.Warn("TOKEN_SECRET is not set; sessions will not survive a restart")
	}
	sessions, err := auth.NewSessions(cfg.Auth.TokenSecret, ttl)
	if err != nil {
		return err
	}

	files, err := newFileStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	var bus chat.Bus
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		defer rdb.Close()
		bus = rdb
		logger.WithField("addr", cfg.Redis.Addr).Info("chat fan-out via redis")
	}
	hub := chat.NewHub(bus, logger)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("chat hub stopped")
		}
	}()

	limiter := middleware.NewRateLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst, logger)

	srv := &handlers.Server{
		Store:          db,
		Sessions:       sessions,
		Files:          files,
		Hub:            hub,
		Limiter:        limiter,
		Logger:         logger,
		MaxUploadBytes: cfg.Storage.MaxBytes,
		CookieSecure:   cfg.Auth.CookieSecure,
	}
	if cfg.Storage.Driver == "local" {
		srv.UploadDir = cfg.Storage.LocalDir
	}
	if cfg.Auth.GoogleEnabled() {
		redirect := strings.TrimSuffix(cfg.App.BaseURL, "/") + "/auth/google/callback"
		srv.Google = auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, redirect)
	}

	jobs := scheduler.New(db, limiter, logger)
	if err := jobs.Start(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              resolveAddr(cfg, listenAddr),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": httpServer.Addr, "env": cfg.App.Env}).Info("lovetree listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			<-jobs.Stop().Done()
			return fmt.Errorf("server exited: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http drain did not finish")
	}
	select {
	case <-jobs.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduled jobs still running at shutdown")
	}
	return nil
}

// resolveAddr prefers the --addr flag over the configured port.
func resolveAddr(cfg *config.Config, flag string) string {
	if flag = strings.TrimSpace(flag); flag != "" {
		return flag
	}
	return cfg.Addr()
}

func newFileStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			PublicURL:    cfg.S3PublicURL,
		})
	}
	return storage.NewLocalStore(cfg.LocalDir, cfg.PublicPrefix)
}
