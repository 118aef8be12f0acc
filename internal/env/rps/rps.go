// Package rps implements two-player rock-paper-scissors as a turn-cycle
// environment, generalised to any odd number of moves (rock-paper-scissors-
// spock-lizard and beyond).
//
// Agents act one at a time in fixed order. When the last agent of a cycle has
// acted the joint rewards are resolved, every agent observes its opponent's
// move, and the move counter advances. The observation before any move is
// the sentinel value NumActions ("None").
package rps

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/envgate/internal/codec"
	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/internal/selector"
)

// Name is the registry name of the environment.
const Name = "rps"

// Canonical move codes.
const (
	Rock     = 0
	Paper    = 1
	Scissors = 2
)

const (
	DefaultNumActions = 3
	DefaultMaxCycles  = 15

	numAgents = 2
)

// Options are the init parameters. Nil fields take defaults.
type Options struct {
	NumActions *int `json:"num_actions"`
	MaxCycles  *int `json:"max_cycles"`
}

// Env is the rock-paper-scissors state machine.
type Env struct {
	numActions int
	none       int // sentinel "no action" code, equal to numActions
	maxCycles  int
	moves      []string
	agents     []string

	sel        *selector.Selector
	state      [numAgents]int // pending action per agent this cycle
	obs        [numAgents]int
	rewards    [numAgents]float64
	cumulative [numAgents]float64
	dones      [numAgents]bool
	numMoves   int
	seed       int64
}

var _ env.Env = (*Env)(nil)
var _ env.ActionChecker = (*Env)(nil)

// Factory builds an Env from raw init options.
func Factory(cfg json.RawMessage) (env.Env, error) {
	var opts Options
	if err := env.DecodeConfig(cfg, &opts); err != nil {
		return nil, err
	}
	return New(opts)
}

// New validates opts and creates an environment ready for its first episode.
func New(opts Options) (*Env, error) {
	numActions := DefaultNumActions
	if opts.NumActions != nil {
		numActions = *opts.NumActions
	}
	maxCycles := DefaultMaxCycles
	if opts.MaxCycles != nil {
		maxCycles = *opts.MaxCycles
	}
	if numActions < 3 {
		return nil, fmt.Errorf("%w: num_actions must be at least 3, got %d", env.ErrInvalidConfig, numActions)
	}
	if numActions%2 == 0 {
		return nil, fmt.Errorf("%w: num_actions must be odd, got %d", env.ErrInvalidConfig, numActions)
	}
	if maxCycles < 1 {
		return nil, fmt.Errorf("%w: max_cycles must be positive, got %d", env.ErrInvalidConfig, maxCycles)
	}

	e := &Env{
		numActions: numActions,
		none:       numActions,
		maxCycles:  maxCycles,
		moves:      Moves(numActions),
		sel:        selector.New(numAgents),
	}
	for i := 0; i < numAgents; i++ {
		e.agents = append(e.agents, env.PlayerID(i))
	}
	e.reinit()
	return e, nil
}

// Moves returns the move vocabulary for numActions moves followed by the
// sentinel name "None".
func Moves(numActions int) []string {
	moves := []string{"ROCK", "PAPER", "SCISSORS"}
	if numActions > 3 {
		moves = append(moves, "SPOCK", "LIZARD")
		for a := 0; a < numActions-5; a++ {
			moves = append(moves, fmt.Sprintf("ACTION_%d", a+6))
		}
	}
	return append(moves, "None")
}

// Rewards resolves one cycle. Equal moves tie; moves of equal parity are won
// by the lower code, moves of different parity by the higher code.
func Rewards(a0, a1 int) (r0, r1 float64) {
	switch {
	case a0 == a1:
		return 0, 0
	case (a0+a1)%2 == 0:
		if a0 < a1 {
			return 1, -1
		}
		return -1, 1
	default:
		if a0 > a1 {
			return 1, -1
		}
		return -1, 1
	}
}

func (e *Env) reinit() {
	e.sel.Reinit()
	for i := 0; i < numAgents; i++ {
		e.state[i] = e.none
		e.obs[i] = e.none
		e.rewards[i] = 0
		e.cumulative[i] = 0
		e.dones[i] = false
	}
	e.numMoves = 0
}

func (e *Env) Metadata() env.Metadata {
	return env.Metadata{
		"render.modes": []string{"human", "rgb_array"},
		"name":         "rps_v2",
	}
}

func (e *Env) Agents() []string { return append([]string(nil), e.agents...) }

func (e *Env) Selected() int { return e.sel.Current() }

// CheckAction validates action for agent without applying it. Done agents
// accept anything since their step is a no-op.
func (e *Env) CheckAction(agent int, action *codec.Array) error {
	if e.dones[agent] {
		return nil
	}
	_, err := e.decodeAction(agent, action)
	return err
}

func (e *Env) decodeAction(agent int, action *codec.Array) (int, error) {
	if action == nil {
		return 0, fmt.Errorf("%w: %s sent no action", env.ErrInvalidAction, e.agents[agent])
	}
	a, err := action.AsInt()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", env.ErrInvalidAction, e.agents[agent], err)
	}
	if a < 0 || a >= e.numActions {
		return 0, fmt.Errorf("%w: %s: move %d out of range [0, %d)", env.ErrInvalidAction, e.agents[agent], a, e.numActions)
	}
	return a, nil
}

// Step applies the selected agent's move and advances the turn.
func (e *Env) Step(action *codec.Array) error {
	agent := e.sel.Current()
	if e.dones[agent] {
		e.sel.Advance()
		return nil
	}

	a, err := e.decodeAction(agent, action)
	if err != nil {
		return err
	}
	e.state[agent] = a

	if e.sel.IsLast() {
		e.resolveCycle()
	} else {
		e.state[1-agent] = e.none
		e.rewards = [numAgents]float64{}
	}

	e.sel.Advance()
	return nil
}

func (e *Env) resolveCycle() {
	r0, r1 := Rewards(e.state[0], e.state[1])
	e.rewards = [numAgents]float64{r0, r1}
	e.numMoves++

	done := e.numMoves >= e.maxCycles
	for i := 0; i < numAgents; i++ {
		e.dones[i] = e.dones[i] || done
		e.obs[i] = e.state[1-i]
		e.cumulative[i] += e.rewards[i]
	}

	slog.Debug("rps cycle resolved",
		"cycle", e.numMoves,
		"moves", []string{e.moves[e.state[0]], e.moves[e.state[1]]},
		"rewards", []float64{r0, r1},
		"done", done,
	)
	if done {
		slog.Info("rps episode finished",
			"cycles", e.numMoves,
			"cumulative", []float64{e.cumulative[0], e.cumulative[1]},
		)
	}
}

func (e *Env) Result(agent int) env.Result {
	return env.Result{
		Obs:    codec.Int(e.obs[agent]),
		Reward: e.rewards[agent],
		Done:   e.dones[agent],
		Info:   map[string]any{},
	}
}

// Reset starts a new episode. The game has a single initial state, so an
// explicit state is accepted and ignored.
func (e *Env) Reset(state json.RawMessage) error {
	if len(state) > 0 && string(state) != "null" {
		slog.Debug("rps reset state ignored", "state", string(state))
	}
	e.reinit()
	return nil
}

// Seed records the seed; the game itself is deterministic.
func (e *Env) Seed(seed *int64) int64 {
	e.seed = env.ResolveSeed(seed)
	return e.seed
}

func (e *Env) Close() error { return nil }

// NumMoves returns the number of completed cycles in this episode.
func (e *Env) NumMoves() int { return e.numMoves }

// MaxCycles returns the configured episode length in cycles.
func (e *Env) MaxCycles() int { return e.maxCycles }

// NumActions returns the number of valid moves; it is also the sentinel code.
func (e *Env) NumActions() int { return e.numActions }

// CumulativeReward returns agent's total reward over the episode so far.
func (e *Env) CumulativeReward(agent int) float64 { return e.cumulative[agent] }

// MoveName returns the vocabulary name for a move code, including "None"
// for the sentinel.
func (e *Env) MoveName(code int) string {
	if code < 0 || code >= len(e.moves) {
		return fmt.Sprintf("INVALID_%d", code)
	}
	return e.moves[code]
}
