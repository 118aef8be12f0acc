// Package cmd implements the envgate command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/envgate/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "0.1.0-dev"

var (
	flagConfig      string
	flagEnv         string
	flagLogLevel    string
	flagWatchConfig bool
)

var rootCmd = &cobra.Command{
	Use:   "envgate",
	Short: "Host turn-based environments over a line-delimited JSON protocol",
	Long: `envgate hosts a turn-based multi-agent environment and speaks a
line-delimited JSON protocol on stdin/stdout: one request per line in, one
response per line out. Logs go to stderr.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default $ENVGATE_CONFIG or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "environment to host (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagWatchConfig, "watch-config", false, "reload the log level when the config file changes")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(episodeCmd())
	rootCmd.AddCommand(envsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config, ENVGATE_CONFIG
// or the default.
func resolveConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if v := os.Getenv("ENVGATE_CONFIG"); v != "" {
		return v
	}
	return config.DefaultPath
}

// loadConfig assembles the effective config: .env, file, environment
// variables, then flags.
func loadConfig() (*config.Config, error) {
	config.LoadDotEnv(".env")

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if flagEnv != "" {
		cfg.Environment = config.NormalizeEnvName(flagEnv)
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger installs the default stderr logger and returns its level so
// config reloads can adjust it.
func setupLogger(w io.Writer, cfg config.LogConfig) *slog.LevelVar {
	level := new(slog.LevelVar)
	lv, _ := config.ParseLevel(cfg.Level)
	level.Set(lv)

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    cfg.NoColor,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Value.Kind() == slog.KindAny {
					if _, ok := a.Value.Any().(error); ok {
						return tint.Attr(9, a)
					}
				}
				return a
			},
		})
	}
	slog.SetDefault(slog.New(handler))
	return level
}
