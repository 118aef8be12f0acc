// Package pendulum hosts the classic inverted-pendulum swing-up task as a
// single-agent environment. It exists to exercise the gateway's single-agent
// (flat response) mode with a continuous action space.
package pendulum

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nextlevelbuilder/envgate/internal/codec"
	"github.com/nextlevelbuilder/envgate/internal/env"
)

// Name is the registry name of the environment.
const Name = "pendulum"

const (
	DefaultGravity  = 10.0
	DefaultMaxSteps = 300

	maxSpeed  = 8.0
	maxTorque = 2.0
	dt        = 0.05
	mass      = 1.0
	length    = 1.0
)

// Options are the init parameters. Nil fields take defaults.
type Options struct {
	G        *float64 `json:"g"`
	MaxSteps *int     `json:"max_steps"`
}

// Env is the pendulum simulation. The state is (theta, theta_dot).
type Env struct {
	g        float64
	maxSteps int

	rng  *rand.Rand
	seed int64

	th, thdot float64
	step      int
	reward    float64
	done      bool
}

var _ env.Env = (*Env)(nil)

// Factory builds an Env from raw init options.
func Factory(cfg json.RawMessage) (env.Env, error) {
	var opts Options
	if err := env.DecodeConfig(cfg, &opts); err != nil {
		return nil, err
	}
	return New(opts)
}

// New creates a pendulum with a freshly seeded random source and an initial
// state sampled from it.
func New(opts Options) (*Env, error) {
	e := &Env{g: DefaultGravity, maxSteps: DefaultMaxSteps}
	if opts.G != nil {
		e.g = *opts.G
	}
	if opts.MaxSteps != nil {
		e.maxSteps = *opts.MaxSteps
	}
	if e.maxSteps < 1 {
		return nil, fmt.Errorf("%w: max_steps must be positive, got %d", env.ErrInvalidConfig, e.maxSteps)
	}
	if math.IsNaN(e.g) || math.IsInf(e.g, 0) {
		return nil, fmt.Errorf("%w: g must be finite", env.ErrInvalidConfig)
	}
	e.Seed(nil)
	e.sample()
	return e, nil
}

func (e *Env) Metadata() env.Metadata {
	return env.Metadata{
		"render.modes": []string{"human", "rgb_array"},
		"name":         "Pendulum-v0",
	}
}

func (e *Env) Agents() []string { return []string{env.PlayerID(0)} }

func (e *Env) Selected() int { return 0 }

// CheckAction accepts a scalar torque or null (no torque).
func (e *Env) CheckAction(_ int, action *codec.Array) error {
	_, err := torque(action)
	return err
}

func torque(action *codec.Array) (float64, error) {
	if action == nil {
		return 0, nil
	}
	u, err := action.Float()
	if err != nil {
		return 0, fmt.Errorf("%w: did not receive a proper action: %v", env.ErrInvalidAction, err)
	}
	return u, nil
}

// Step applies a torque, clipped to the allowed range, for one time step.
func (e *Env) Step(action *codec.Array) error {
	if e.done {
		return nil
	}
	u, err := torque(action)
	if err != nil {
		return err
	}
	u = clip(u, -maxTorque, maxTorque)

	costs := angleNormalize(e.th)*angleNormalize(e.th) + 0.1*e.thdot*e.thdot + 0.001*u*u

	newthdot := e.thdot + (-3*e.g/(2*length)*math.Sin(e.th+math.Pi)+3.0/(mass*length*length)*u)*dt
	newth := e.th + newthdot*dt
	newthdot = clip(newthdot, -maxSpeed, maxSpeed)

	e.th, e.thdot = newth, newthdot
	e.step++
	e.reward = -costs
	e.done = e.step >= e.maxSteps
	return nil
}

func (e *Env) Result(int) env.Result {
	return env.Result{
		Obs:    e.observe(),
		Reward: e.reward,
		Done:   e.done,
		Info:   map[string]any{},
	}
}

func (e *Env) observe() codec.Array {
	return codec.Float32s(float32(math.Cos(e.th)), float32(math.Sin(e.th)), float32(e.thdot))
}

// Reset starts a new episode from state [theta, theta_dot] when given,
// otherwise from a state sampled with the seeded source.
func (e *Env) Reset(state json.RawMessage) error {
	if len(state) == 0 || string(state) == "null" {
		e.sample()
	} else {
		s, err := codec.Decode(state)
		if err != nil {
			return fmt.Errorf("%w: %v", env.ErrInvalidState, err)
		}
		if s.IsScalar() || s.Len() != 2 || len(s.Shape()) != 1 {
			return fmt.Errorf("%w: want [theta, theta_dot], got shape %v", env.ErrInvalidState, s.Shape())
		}
		v := s.Values()
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxFloat32 {
				return fmt.Errorf("%w: state %v out of range", env.ErrInvalidState, v)
			}
		}
		e.th, e.thdot = v[0], v[1]
	}
	e.step = 0
	e.reward = 0
	e.done = false
	return nil
}

func (e *Env) sample() {
	e.th = (e.rng.Float64()*2 - 1) * math.Pi
	e.thdot = e.rng.Float64()*2 - 1
}

// Seed reseeds the random source used by Reset.
func (e *Env) Seed(seed *int64) int64 {
	e.seed = env.ResolveSeed(seed)
	e.rng = rand.New(rand.NewPCG(uint64(e.seed), 0x9e3779b97f4a7c15))
	return e.seed
}

func (e *Env) Close() error { return nil }

// State returns the raw (theta, theta_dot) pair.
func (e *Env) State() (theta, thetaDot float64) { return e.th, e.thdot }

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// angleNormalize maps x into [-pi, pi).
func angleNormalize(x float64) float64 {
	r := math.Mod(x+math.Pi, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}
