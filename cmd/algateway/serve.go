package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/revline/algateway/config"
	"github.com/revline/algateway/observe"
	"github.com/revline/algateway/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tool gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				a.Close(shutdownCtx)
			}()

			caching := a.dispatcher.Policy().ShouldCache()
			if caching {
				a.cache.StartJanitor(ctx, cfg.Cache.JanitorInterval)
			}
			if a.embedder.Configured() {
				a.embedder.StartJanitor(ctx, cfg.Embedding.JanitorInterval)
			}

			srv := server.New(server.Config{
				Listen:          cfg.Server.Listen,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			}, a.dispatcher,
				server.WithAuthenticator(cfg.Auth.Authenticator()),
				server.WithHealth(a.health),
				server.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
				server.WithLogger(a.logger),
			)

			a.logger.Info(ctx, "starting algateway",
				observe.F("listen", cfg.Server.Listen),
				observe.F("version", version),
				observe.F("tools", len(a.dispatcher.Tools())),
				observe.F("cache", caching))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	return cmd
}

// loadConfig reads path, or returns the validated defaults when path is empty.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
