// Package env defines the contract between the protocol gateway and the
// turn-based environments it hosts.
//
// Every environment is stepped one agent-turn at a time: the gateway submits
// an action for the agent whose turn it is, and the environment advances its
// own turn order. Single-agent environments are the degenerate one-agent case.
package env

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/envgate/internal/codec"
)

// Sentinel error kinds. Environments wrap them so the gateway can classify
// failures with errors.Is.
var (
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidConfig = errors.New("invalid environment config")
	ErrInvalidState  = errors.New("invalid reset state")
	ErrUnknownEnv    = errors.New("unknown environment")
)

// Metadata is echoed in response to init.
type Metadata map[string]any

// Result is what an agent can currently see of the episode.
type Result struct {
	Obs    codec.Array
	Reward float64
	Done   bool
	Info   map[string]any
}

// Env is a turn-based environment. Implementations are not safe for
// concurrent use; the gateway owns them from a single goroutine.
type Env interface {
	// Metadata describes the environment (name, render modes).
	Metadata() Metadata
	// Agents returns the canonical agent ids in turn order.
	Agents() []string
	// Selected returns the index of the agent whose turn it is.
	Selected() int
	// Step submits action for the selected agent and advances one turn.
	// A nil action means "no action" and is only accepted where the
	// environment defines it. Errors leave the environment untouched.
	Step(action *codec.Array) error
	// Result returns the latest observation, reward, done flag and info of
	// the agent at index.
	Result(agent int) Result
	// Reset starts a new episode. A nil state selects the default initial
	// state.
	Reset(state json.RawMessage) error
	// Seed reseeds the environment's randomness. A nil seed picks a fresh
	// one. It returns the seed actually applied.
	Seed(seed *int64) int64
	// Close releases any resources held by the environment.
	Close() error
}

// ActionChecker is implemented by environments that can validate an action
// without applying it, so a whole multi-agent step is checked up front.
type ActionChecker interface {
	CheckAction(agent int, action *codec.Array) error
}

// AgentIndex returns the index of the canonical agent id, or -1.
func AgentIndex(e Env, id string) int {
	for i, a := range e.Agents() {
		if a == id {
			return i
		}
	}
	return -1
}

// AllDone reports whether every agent of e is done.
func AllDone(e Env) bool {
	for i := range e.Agents() {
		if !e.Result(i).Done {
			return false
		}
	}
	return true
}

// PlayerID returns the canonical id of the agent at index i.
func PlayerID(i int) string {
	return fmt.Sprintf("player_%d", i)
}

// DecodeConfig unmarshals environment options into dst, rejecting unknown
// keys. A null or absent raw config leaves dst untouched.
func DecodeConfig(raw json.RawMessage, dst any) error {
	if isNull(raw) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
