package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/envgate/internal/config"
	"github.com/nextlevelbuilder/envgate/internal/env/builtin"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and hosted environments",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.OutOrStdout())
		},
	}
}

func runDoctor(w io.Writer) {
	fmt.Fprintln(w, "envgate doctor")
	fmt.Fprintf(w, "  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Fprintf(w, "  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Go:       %s\n", runtime.Version())
	fmt.Fprintln(w)

	// Config
	cfgPath := resolveConfigPath()
	fmt.Fprintf(w, "  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Fprintln(w, " (NOT FOUND, using defaults)")
	} else {
		fmt.Fprintln(w, " (OK)")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "  Config error: %s\n", err)
		return
	}

	// Environments
	registry := builtin.Registry()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Environments:")
	for _, name := range registry.Names() {
		opts, err := cfg.EnvDefaults(name)
		if err != nil {
			checkEnv(w, name, err)
			continue
		}
		e, err := registry.Make(name, opts)
		if err == nil {
			e.Close()
		}
		checkEnv(w, name, err)
	}
	if _, ok := registry.Get(cfg.Environment); !ok {
		fmt.Fprintf(w, "    configured environment %q is NOT AVAILABLE\n", cfg.Environment)
	} else {
		fmt.Fprintf(w, "    default: %s\n", cfg.Environment)
	}

	// Gateway
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Gateway:")
	fmt.Fprintf(w, "    %-12s %d bytes\n", "max line:", cfg.Gateway.MaxLineBytes)
	if cfg.Gateway.RateLimit.PerSecond > 0 {
		fmt.Fprintf(w, "    %-12s %.1f/s (burst %d)\n", "rate limit:", cfg.Gateway.RateLimit.PerSecond, cfg.Gateway.RateLimit.Burst)
	} else {
		fmt.Fprintf(w, "    %-12s off\n", "rate limit:")
	}

	// Telemetry
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Telemetry:")
	checkTelemetry(w, cfg.Telemetry)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Doctor check complete.")
}

func checkEnv(w io.Writer, name string, err error) {
	if err != nil {
		fmt.Fprintf(w, "    %-12s FAILED (%s)\n", name+":", err)
	} else {
		fmt.Fprintf(w, "    %-12s OK\n", name+":")
	}
}

func checkTelemetry(w io.Writer, t config.TelemetryConfig) {
	status := "disabled"
	switch {
	case t.Enabled && !otelBuild:
		status = "enabled in config, but this binary was built without -tags otel"
	case t.Enabled:
		status = fmt.Sprintf("enabled (%s → %s)", t.Protocol, t.Endpoint)
	}
	fmt.Fprintf(w, "    %-12s %s\n", "otlp:", status)
}
