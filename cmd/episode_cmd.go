package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/envgate/internal/config"
	"github.com/nextlevelbuilder/envgate/internal/env/builtin"
	"github.com/nextlevelbuilder/envgate/internal/episode"
	"github.com/nextlevelbuilder/envgate/internal/gateway"
	"github.com/nextlevelbuilder/envgate/internal/gateway/methods"
	"github.com/nextlevelbuilder/envgate/pkg/client"
)

type episodeFlags struct {
	policy     string
	value      float64
	numActions int
	seed       int64
	episodes   int
	maxSteps   int
	envConfigs string
	exec       string
	steps      bool
}

func episodeCmd() *cobra.Command {
	var f episodeFlags
	cmd := &cobra.Command{
		Use:   "episode",
		Short: "Play episodes with a built-in policy and print the outcome as JSON",
		Long: `Play one or more episodes against an environment host and print each
outcome as a JSON line. By default the host runs in-process; --exec drives an
external host command over its stdin/stdout instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEpisodes(cmd.Context(), cmd.OutOrStdout(), f, cmd.Flags().Changed("seed"))
		},
	}
	cmd.Flags().StringVar(&f.policy, "policy", "random", "policy: constant, random or cycle")
	cmd.Flags().Float64Var(&f.value, "value", 0, "action played by the constant policy")
	cmd.Flags().IntVar(&f.numActions, "num-actions", 3, "action count for random and cycle policies")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "seed for the first episode (incremented per episode)")
	cmd.Flags().IntVarP(&f.episodes, "episodes", "n", 1, "number of episodes")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", episode.DefaultMaxSteps, "step cap per episode")
	cmd.Flags().StringVar(&f.envConfigs, "env-configs", "", "environment options as a JSON object")
	cmd.Flags().StringVar(&f.exec, "exec", "", "host command to run instead of the in-process host")
	cmd.Flags().BoolVar(&f.steps, "steps", false, "include every step in the output")
	return cmd
}

func runEpisodes(parent context.Context, out io.Writer, f episodeFlags, seeded bool) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogger(os.Stderr, cfg.Log)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var envConfigs any
	if f.envConfigs != "" {
		if err := json.Unmarshal([]byte(f.envConfigs), &envConfigs); err != nil {
			return fmt.Errorf("--env-configs: %w", err)
		}
	}

	c, closeHost, err := startHost(ctx, cfg, f.exec)
	if err != nil {
		return err
	}
	defer closeHost()

	meta, err := c.InitEnv(ctx, cfg.Environment, envConfigs)
	if err != nil {
		return fmt.Errorf("init: %s", formatHostError(err))
	}
	slog.Info("environment ready", "env", cfg.Environment, "metadata", meta)

	enc := json.NewEncoder(out)
	for i := 0; i < f.episodes; i++ {
		policy, err := episode.NewPolicy(f.policy, f.value, f.numActions, uint64(f.seed)+uint64(i))
		if err != nil {
			return err
		}
		opts := episode.Options{MaxSteps: f.maxSteps}
		if seeded {
			s := f.seed + int64(i)
			opts.Seed = &s
		}

		outcome, err := episode.NewRunner(c, policy).Run(ctx, opts)
		if err != nil {
			return fmt.Errorf("episode %d: %s", i+1, formatHostError(err))
		}
		if !f.steps {
			outcome.Steps = nil
		}
		if err := enc.Encode(outcome); err != nil {
			return err
		}
	}
	return nil
}

// startHost returns a client connected either to an in-process gateway or to
// the external command line, plus a function that shuts the host down.
func startHost(ctx context.Context, cfg *config.Config, commandLine string) (*client.Client, func(), error) {
	if commandLine != "" {
		return startExternalHost(ctx, commandLine)
	}

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	router := gateway.NewMethodRouter()
	methods.RegisterAll(router, builtin.Registry(), cfg)
	srv := gateway.NewServer(router, gateway.Options{
		MaxLineBytes:  cfg.Gateway.MaxLineBytes,
		RatePerSecond: cfg.Gateway.RateLimit.PerSecond,
		RateBurst:     cfg.Gateway.RateLimit.Burst,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx, reqR, respW); err != nil {
			slog.Error("in-process host failed", "error", err)
		}
		respW.Close()
		reqR.Close()
	}()

	c := client.New(respR, reqW)
	return c, func() {
		_ = c.Close()
		reqW.Close()
		<-done
	}, nil
}

func startExternalHost(ctx context.Context, commandLine string) (*client.Client, func(), error) {
	args, err := shellwords.Parse(commandLine)
	if err != nil {
		return nil, nil, fmt.Errorf("--exec: %w", err)
	}
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("--exec: empty command")
	}

	proc := exec.CommandContext(ctx, args[0], args[1:]...)
	proc.Stderr = os.Stderr
	stdin, err := proc.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := proc.Start(); err != nil {
		return nil, nil, fmt.Errorf("start host %q: %w", args[0], err)
	}
	slog.Info("external host started", "cmd", args[0], "pid", proc.Process.Pid)

	c := client.New(stdout, stdin)
	return c, func() {
		_ = c.Close()
		stdin.Close()
		if err := proc.Wait(); err != nil {
			slog.Warn("external host exited", "error", err)
		}
	}, nil
}
