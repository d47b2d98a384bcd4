package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"opsconsole/internal/api"
	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/scheduler"
	"opsconsole/internal/syncs"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the sync schedules",
	Long: `Serve the HTTP API and run the cron schedules until interrupted.

Schedules are read from .opsconsole/schedules.yaml unless --schedules
points elsewhere. A missing file means no schedules:

  schedules:
    - name: nightly
      cron: "0 3 * * *"
      kind: all
    - name: invoices
      cron: "*/15 * * * *"
      kind: invoices

Endpoints:
  GET  /healthz
  POST /api/v1/sync/:kind
  GET  /api/v1/runs
  GET  /api/v1/runs/:id
  GET  /api/v1/status`,
	RunE: runServe,
}

var (
	serveAddr      string
	serveSchedules string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveSchedules, "schedules", "", "Schedule file (default .opsconsole/schedules.yaml)")
}

func defaultSchedulePath() (string, error) {
	dbPath, err := db.GetDefaultDBPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(dbPath), scheduler.DefaultFile), nil
}

// loadSchedules returns no schedules when the default file is absent.
func loadSchedules() ([]scheduler.Schedule, error) {
	path := serveSchedules
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = defaultSchedulePath(); err != nil {
			return nil, err
		}
	}
	schedules, err := scheduler.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil, nil
	}
	return schedules, err
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	runner := newRunner(syncs.Options{})
	settings := config.LoadSettings(configGetter)

	schedules, err := loadSchedules()
	if err != nil {
		return err
	}
	sched := scheduler.New(runner, logger)
	added := sched.Add(schedules...)

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           api.New(runner, db.GetDB(), logger, settings.MaxRunDuration).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	sched.Start()

	if !IsJSONOutput() {
		fmt.Printf("Listening on %s with %d schedule(s)\n", serveAddr, added)
	}
	logger.Info("server started", "addr", serveAddr, "schedules", added)

	select {
	case err := <-errCh:
		if err != nil {
			sched.Stop(context.Background())
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	// Running syncs get the rest of the timeout to finish
	sched.Stop(shutdownCtx)
	return nil
}
