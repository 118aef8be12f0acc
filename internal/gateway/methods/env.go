// Package methods implements the protocol request handlers that drive a
// hosted environment.
package methods

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nextlevelbuilder/envgate/internal/config"
	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/internal/gateway"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// EnvMethods handles init, reset and seed.
type EnvMethods struct {
	registry *env.Registry
	cfg      *config.Config
}

func NewEnvMethods(registry *env.Registry, cfg *config.Config) *EnvMethods {
	return &EnvMethods{registry: registry, cfg: cfg}
}

func (m *EnvMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodInit, m.handleInit)
	router.Register(protocol.MethodReset, m.handleReset)
	router.Register(protocol.MethodSeed, m.handleSeed)
}

type initParams struct {
	protocol.InitParams
	// Env overrides the configured environment for this session.
	Env string `json:"env"`
}

func (m *EnvMethods) handleInit(_ context.Context, conn *gateway.Conn, req *protocol.RequestFrame) (any, error) {
	var params initParams
	if err := req.Decode(&params); err != nil {
		return nil, protocol.Errorf(protocol.ErrInvalidRequest, "invalid init params: %v", err)
	}
	name := m.cfg.Environment
	if params.Env != "" {
		name = config.NormalizeEnvName(params.Env)
	}

	opts := params.EnvConfigs
	if protocol.IsNull(opts) {
		defaults, err := m.cfg.EnvDefaults(name)
		if err != nil {
			return nil, protocol.Errorf(protocol.ErrValidationFailed, "%v", err)
		}
		opts = defaults
	}

	e, err := m.registry.Make(name, opts)
	if err != nil {
		return nil, gateway.EnvError(err)
	}

	sess := gateway.NewSession(name, e)
	conn.SetSession(sess)
	slog.Info("session started", "session", sess.ID(), "env", name, "agents", len(e.Agents()))
	return e.Metadata(), nil
}

func (m *EnvMethods) handleReset(_ context.Context, conn *gateway.Conn, req *protocol.RequestFrame) (any, error) {
	var params protocol.ResetParams
	if err := req.Decode(&params); err != nil {
		return nil, protocol.Errorf(protocol.ErrInvalidRequest, "invalid reset params: %v", err)
	}
	var state json.RawMessage
	if !protocol.IsNull(params.State) {
		state = params.State
	}

	sess := conn.Session()
	e := sess.Env()
	if err := e.Reset(state); err != nil {
		return nil, gateway.EnvError(err)
	}

	if sess.SingleAgent() {
		return protocol.AgentReset{Obs: e.Result(0).Obs}, nil
	}
	out := make(map[string]protocol.AgentReset, len(e.Agents()))
	for i, id := range e.Agents() {
		out[id] = protocol.AgentReset{Obs: e.Result(i).Obs}
	}
	return out, nil
}

func (m *EnvMethods) handleSeed(_ context.Context, conn *gateway.Conn, req *protocol.RequestFrame) (any, error) {
	var params protocol.SeedParams
	if err := req.Decode(&params); err != nil {
		return nil, protocol.Errorf(protocol.ErrInvalidRequest, "seed must be an integer or null: %v", err)
	}
	applied := conn.Session().Env().Seed(params.Seed)
	slog.Debug("env seeded", "session", conn.Session().ID(), "seed", applied)
	return []int64{applied}, nil
}
