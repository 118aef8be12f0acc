package gateway

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// Session is the lifetime of one initialised environment: created on init,
// mutated by step/reset/seed/register_agents, closed on close or re-init.
type Session struct {
	id      string
	envName string
	env     env.Env
	aliases map[string]int // registered external id → agent index
	created time.Time
}

func NewSession(envName string, e env.Env) *Session {
	return &Session{
		id:      uuid.NewString(),
		envName: envName,
		env:     e,
		aliases: make(map[string]int),
		created: time.Now(),
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) EnvName() string { return s.envName }
func (s *Session) Env() env.Env    { return s.env }

// SingleAgent reports whether responses use the flat single-agent shape.
func (s *Session) SingleAgent() bool { return len(s.env.Agents()) == 1 }

// RegisterAgents maps externally proposed ids, in order, onto the
// environment's agents and returns the canonical ids. The count must match
// the environment's agent count and ids must be distinct.
func (s *Session) RegisterAgents(ids []string) ([]string, error) {
	agents := s.env.Agents()
	if len(ids) != len(agents) {
		return nil, protocol.Errorf(protocol.ErrValidationFailed,
			"expected %d agent ids, got %d", len(agents), len(ids))
	}
	aliases := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := aliases[id]; dup {
			return nil, protocol.Errorf(protocol.ErrValidationFailed, "duplicate agent id %q", id)
		}
		aliases[id] = i
	}
	s.aliases = aliases
	return agents, nil
}

// Resolve maps a registered or canonical agent id to its index, or -1.
// Registered ids take precedence over canonical ones.
func (s *Session) Resolve(id string) int {
	if i, ok := s.aliases[id]; ok {
		return i
	}
	return env.AgentIndex(s.env, id)
}

// Close releases the environment.
func (s *Session) Close() error {
	if err := s.env.Close(); err != nil {
		return fmt.Errorf("close env %s: %w", s.envName, err)
	}
	return nil
}

// Age returns how long the session has existed.
func (s *Session) Age() time.Duration { return time.Since(s.created) }
