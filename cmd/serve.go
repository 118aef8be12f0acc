package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/envgate/internal/config"
	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/internal/env/builtin"
	"github.com/nextlevelbuilder/envgate/internal/gateway"
	"github.com/nextlevelbuilder/envgate/internal/gateway/methods"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the protocol on stdin/stdout (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		setupLogger(os.Stderr, config.Default().Log)
		slog.Error("startup failed", "error", err)
		return err
	}
	level := setupLogger(os.Stderr, cfg.Log)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel := initOTelExporter(ctx, cfg)
	defer shutdownOTel()

	if flagWatchConfig {
		watchConfig(ctx, level)
	}

	registry := builtin.Registry()
	if _, ok := registry.Get(cfg.Environment); !ok {
		err := fmt.Errorf("%w %q (available: %s)", env.ErrUnknownEnv, cfg.Environment, strings.Join(registry.Names(), ", "))
		slog.Error("startup failed", "error", err)
		return err
	}

	router := gateway.NewMethodRouter()
	methods.RegisterAll(router, registry, cfg)
	srv := gateway.NewServer(router, gateway.Options{
		MaxLineBytes:  cfg.Gateway.MaxLineBytes,
		RatePerSecond: cfg.Gateway.RateLimit.PerSecond,
		RateBurst:     cfg.Gateway.RateLimit.Burst,
	})

	// A blocked read only returns once stdin is closed.
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()

	slog.Info("envgate starting", "version", Version, "env", cfg.Environment, "methods", router.Methods())
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		slog.Error("gateway failed", "error", err)
		return err
	}
	return nil
}

// watchConfig reloads the log level whenever the config file changes, until
// ctx is done.
func watchConfig(ctx context.Context, level *slog.LevelVar) {
	w, err := config.NewWatcher(resolveConfigPath())
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
		return
	}
	w.OnChange(func(cfg *config.Config) {
		if flagLogLevel != "" {
			return
		}
		lv, _ := config.ParseLevel(cfg.Log.Level)
		level.Set(lv)
		slog.Info("log level updated", "level", lv)
	})
	if err := w.Run(ctx); err != nil {
		slog.Warn("config watcher failed to start", "error", err)
	}
}
