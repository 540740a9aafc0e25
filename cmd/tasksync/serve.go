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

	tasksynchttp "github.com/jaekwang-park/tasksync/internal/http"
	"github.com/jaekwang-park/tasksync/internal/middleware"
	"github.com/jaekwang-park/tasksync/internal/remote"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API with background sync",
		Long: `Start the local HTTP API for UI clients.

While serving, the network monitor probes connectivity on a fixed
interval and every owner with pending changes is synced as soon as the
network comes back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, opts.configPath, os.Stdout)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, stop, a, origins)
		},
	}

	cmd.Flags().StringSliceVar(&origins, "origin", nil, "Extra origin patterns allowed to open the sync event stream")
	return cmd
}

func serve(ctx context.Context, stop context.CancelFunc, a *app, origins []string) error {
	logger := a.logger
	cfg := a.cfg

	logger.Info("config loaded",
		"env", cfg.AppEnv,
		"port", cfg.ServerPort,
		"auth_dev_mode", cfg.AuthDevMode,
		"log_level", cfg.LogLevel,
		"remote_backend", cfg.RemoteBackend,
		"local_db", cfg.LocalDBPath,
	)

	if pg, ok := a.remote.(*remote.Postgres); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			// the remote may simply be unreachable; sync retries later
			logger.Warn("remote schema check failed", "error", err)
		}
	}

	authCfg := middleware.AuthConfig{
		DevMode: cfg.AuthDevMode,
	}
	if !cfg.AuthDevMode {
		jwksURL := middleware.CognitoJWKSURL(cfg.Cognito.Region, cfg.Cognito.UserPoolID)
		authCfg.JWKSClient = middleware.NewJWKSClient(jwksURL)
		authCfg.Issuer = middleware.CognitoIssuer(cfg.Cognito.Region, cfg.Cognito.UserPoolID)
		authCfg.AppClientID = cfg.Cognito.AppClientID
	}
	auth, err := middleware.NewAuth(authCfg)
	if err != nil {
		return fmt.Errorf("failed to create auth middleware: %w", err)
	}

	srv := tasksynchttp.NewServer(cfg.ServerPort, logger, auth, tasksynchttp.RouterDeps{
		Tasks:          a.tasks,
		Auth:           a.auth,
		Events:         a.orch,
		Network:        a.monitor,
		OriginPatterns: origins,
		Logger:         logger,
	})
	srv.RegisterOnShutdown(a.orch.Close)

	statuses, unsubscribe := a.monitor.Subscribe()
	defer unsubscribe()
	go a.monitor.Run(ctx)
	go a.tasks.WatchConnectivity(ctx, statuses)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}
