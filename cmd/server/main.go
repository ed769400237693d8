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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yourname/babysleep/internal"
	api "github.com/yourname/babysleep/internal/api"
	"github.com/yourname/babysleep/internal/auth"
	"github.com/yourname/babysleep/internal/config"
	"github.com/yourname/babysleep/internal/service"
	"github.com/yourname/babysleep/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, backend string
	cmd := &cobra.Command{
		Use:          "babysleep",
		Short:        "Serve the infant sleep tracking API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if backend != "" {
				cfg.DBType = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	cmd.Flags().StringVar(&backend, "backend", "", "storage backend: file, sqlite or postgres (overrides STORAGE_BACKEND)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("failed to close storage: %v", err)
		}
	}()

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	sleep := service.NewSleepService(store, logger, time.Now, cfg.StoreTimeout)
	provider := auth.NewProvider(cfg.Env, cfg.AuthToken, cfg.AuthServiceURL, logger)
	router := api.NewRouter(api.NewServer(logger, sleep, loc), provider, cfg.Env)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server running on %s (backend=%s)", cfg.HTTPAddr, cfg.DBType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
