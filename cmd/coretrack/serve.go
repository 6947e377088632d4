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

	"github.com/spf13/cobra"

	"github.com/999joaquin/CoreTrack/internal/database"
	"github.com/999joaquin/CoreTrack/internal/server"
	"github.com/999joaquin/CoreTrack/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	files, err := storage.New(cfg.Storage.Store())
	if err != nil {
		return fmt.Errorf("configure storage: %w", err)
	}
	if m, ok := files.(*storage.MinIO); ok {
		if err := m.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("prepare bucket: %w", err)
		}
	}
	if files == nil {
		logger.Warn("file storage not configured, avatar uploads disabled")
	}

	srv, err := server.New(db, cfg, files, logger)
	if err != nil {
		return err
	}
	srv.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("coretrack listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		srv.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown error:", err)
	}
	srv.Stop()
	return nil
}
