// Package episode runs whole episodes against an environment host through
// the protocol client.
package episode

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// DefaultMaxSteps caps an episode that never reports done.
const DefaultMaxSteps = 10_000

// Host is the part of the protocol client the runner needs.
type Host interface {
	Seed(ctx context.Context, seed *int64) (int64, error)
	Reset(ctx context.Context, state any) (map[string]any, error)
	Step(ctx context.Context, actions any) (map[string]protocol.AgentStep, error)
}

// Options configures one episode.
type Options struct {
	Seed     *int64 // nil lets the host choose
	State    any    // optional reset state
	MaxSteps int    // <= 0 selects DefaultMaxSteps
}

// Record is one step of an episode.
type Record struct {
	Step    int                           `json:"step"`
	Actions map[string]any                `json:"actions"`
	Results map[string]protocol.AgentStep `json:"results"`
}

// Outcome summarises a finished episode.
type Outcome struct {
	ID      string             `json:"id"`
	Seed    int64              `json:"seed"`
	Agents  []string           `json:"agents"`
	Steps   []Record           `json:"steps"`
	Returns map[string]float64 `json:"returns"`
	Done    bool               `json:"done"`
}

// Runner plays episodes with a single policy for every agent.
type Runner struct {
	host   Host
	policy Policy
	retry  RetryConfig
}

func NewRunner(host Host, policy Policy) *Runner {
	return &Runner{host: host, policy: policy, retry: DefaultRetryConfig()}
}

// WithRetry replaces the backoff used for rate-limited requests.
func (r *Runner) WithRetry(cfg RetryConfig) *Runner {
	r.retry = cfg
	return r
}

// Run seeds and resets the host, then steps every agent together until all
// are done or MaxSteps is reached.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	seed, err := withRetry(ctx, r.retry, "seed", func() (int64, error) {
		return r.host.Seed(ctx, opts.Seed)
	})
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	obs, err := withRetry(ctx, r.retry, "reset", func() (map[string]any, error) {
		return r.host.Reset(ctx, opts.State)
	})
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}

	agents := make([]string, 0, len(obs))
	for id := range obs {
		agents = append(agents, id)
	}
	sort.Strings(agents)

	out := &Outcome{
		ID:      uuid.NewString(),
		Seed:    seed,
		Agents:  agents,
		Returns: make(map[string]float64, len(agents)),
	}
	slog.Info("episode started", "episode", out.ID, "seed", seed, "agents", agents)

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		actions := make(map[string]any, len(agents))
		for _, id := range agents {
			actions[id] = r.policy.Act(id, obs[id])
		}
		results, err := withRetry(ctx, r.retry, "step", func() (map[string]protocol.AgentStep, error) {
			return r.host.Step(ctx, actions)
		})
		if err != nil {
			return out, fmt.Errorf("step %d: %w", step, err)
		}
		out.Steps = append(out.Steps, Record{Step: step, Actions: actions, Results: results})

		allDone := true
		for _, id := range agents {
			res := results[id]
			obs[id] = res.Obs
			out.Returns[id] += res.Reward
			allDone = allDone && res.Done
		}
		if allDone {
			out.Done = true
			break
		}
	}

	slog.Info("episode finished", "episode", out.ID, "steps", len(out.Steps), "done", out.Done, "returns", out.Returns)
	return out, nil
}
