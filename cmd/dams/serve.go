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

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/blobstore"
	"github.com/sagarc03/dams/config"
	damshttp "github.com/sagarc03/dams/http"
	"github.com/sagarc03/dams/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the dams HTTP API.

When reconcile.schedule is set, the consistency sweep also runs on that
cron schedule (for example "@every 6h" or "0 3 * * *").`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5000, "HTTP server port")
	serveCmd.Flags().String("session-backend", "", "session store: file, redis (default: file, env: DAMS_SESSION_BACKEND)")
	serveCmd.Flags().String("replace-order", "", "replace sequencing: delete-first, write-first")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := openDatabase(ctx, cfg, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := db.GetRepo()

	blobs, files, err := blobstore.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = blobs.Close() }()
	slog.Info("opened blob store", "type", cfg.Storage.Type)

	sessions, closeSessions, err := session.Open(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer func() { _ = closeSessions() }()
	slog.Info("opened session store", "backend", cfg.Session.Backend)

	svcCfg := cfg.AssetServiceConfig()
	svcCfg.Activity = activityRecorder(cfg, repo)

	service, err := dams.NewAssetService(repo, blobs, svcCfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	scheduler, err := scheduleReconcile(ctx, cfg, dams.NewReconciler(repo, blobs))
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	handlerConfig := damshttp.HandlerConfig{
		Sessions:       sessions,
		CORS:           cfg.CORS,
		MaxUploadBytes: cfg.Server.MaxUploadSize,
	}
	if files != nil {
		handlerConfig.Files = files
	}

	handler := damshttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "storage", cfg.Storage.Type, "replace_order", svcCfg.ReplaceOrder)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// scheduleReconcile registers the sweep on cfg.Reconcile.Schedule. It
// returns nil when no schedule is configured.
func scheduleReconcile(ctx context.Context, cfg *config.Config, r *dams.Reconciler) (*cron.Cron, error) {
	if cfg.Reconcile.Schedule == "" {
		return nil, nil
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	opts := cfg.ReconcileOptions()
	if _, err := c.AddFunc(cfg.Reconcile.Schedule, func() {
		_, _ = sweep(ctx, r, opts)
	}); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", cfg.Reconcile.Schedule, err)
	}

	slog.Info("scheduled reconcile", "schedule", cfg.Reconcile.Schedule)
	return c, nil
}

// cronLogger routes cron's logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
