package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iconidentify/vidembed/internal/api"
	"github.com/iconidentify/vidembed/internal/api/handler"
	"github.com/iconidentify/vidembed/internal/preview"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func serveRun(cmd *cobra.Command, args []string) error {
	logger.Info("starting vidembed",
		"version", Version,
		"build_time", BuildTime,
	)

	c := buildComponents(cfg, logger)

	redirector := handler.NewRedirector(cfg.Preview.SiteURL, logger)
	postHandler := handler.NewPostHandler(
		c.embedSvc,
		preview.NewBuilder(cfg.Preview),
		redirector,
		cfg.Server,
		cfg.Preview,
		logger,
	)
	healthHandler := handler.NewHealthHandler(c.cache)

	router := api.NewRouter(postHandler, healthHandler, redirector, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server error", "error", err)
		return err
	case <-quit:
	}

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
