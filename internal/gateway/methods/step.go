package methods

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/nextlevelbuilder/envgate/internal/codec"
	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/internal/gateway"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// StepMethods handles step and its alias action.
type StepMethods struct{}

func NewStepMethods() *StepMethods { return &StepMethods{} }

func (m *StepMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodStep, m.handleStep)
	router.Register(protocol.MethodAction, m.handleStep)
}

func (m *StepMethods) handleStep(_ context.Context, conn *gateway.Conn, req *protocol.RequestFrame) (any, error) {
	var params protocol.StepParams
	if err := req.Decode(&params); err != nil {
		return nil, protocol.Errorf(protocol.ErrInvalidRequest, "invalid step params: %v", err)
	}
	sess := conn.Session()
	payload := bytes.TrimSpace(params.Payload())

	var err error
	if len(payload) > 0 && payload[0] == '{' {
		err = stepAll(sess, payload)
	} else {
		err = stepCurrent(sess, payload)
	}
	if err != nil {
		return nil, err
	}

	if env.AllDone(sess.Env()) {
		slog.Debug("episode done", "session", sess.ID())
	}
	return stepResponse(sess), nil
}

// stepCurrent applies one action for the agent whose turn it is.
func stepCurrent(sess *gateway.Session, payload json.RawMessage) error {
	e := sess.Env()
	action, err := decodeAction(e.Agents()[e.Selected()], payload)
	if err != nil {
		return err
	}
	return gateway.EnvError(e.Step(action))
}

// stepAll applies a full mapping agent id → action, one turn per agent in
// selector order. It is only accepted at the start of a cycle. Every action
// is validated before the environment is touched.
func stepAll(sess *gateway.Session, payload json.RawMessage) error {
	var byID map[string]json.RawMessage
	if err := json.Unmarshal(payload, &byID); err != nil {
		return protocol.Errorf(protocol.ErrInvalidRequest, "actions mapping: %v", err)
	}

	e := sess.Env()
	agents := e.Agents()
	if cur := e.Selected(); cur != 0 && !sess.SingleAgent() {
		return protocol.Errorf(protocol.ErrValidationFailed,
			"cycle in progress; send a single action for %q", agents[cur])
	}
	actions := make([]*codec.Array, len(agents))
	given := make([]bool, len(agents))

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		i := sess.Resolve(id)
		if i < 0 {
			return protocol.Errorf(protocol.ErrValidationFailed, "unknown agent id %q", id)
		}
		if given[i] {
			return protocol.Errorf(protocol.ErrValidationFailed, "more than one action for agent %q", agents[i])
		}
		a, err := decodeAction(agents[i], byID[id])
		if err != nil {
			return err
		}
		actions[i], given[i] = a, true
	}
	for i, ok := range given {
		if !ok {
			return protocol.Errorf(protocol.ErrValidationFailed, "missing action for agent %q", agents[i])
		}
	}

	if chk, ok := e.(env.ActionChecker); ok {
		for i, a := range actions {
			if err := chk.CheckAction(i, a); err != nil {
				return gateway.EnvError(err)
			}
		}
	}

	for range agents {
		if err := e.Step(actions[e.Selected()]); err != nil {
			return gateway.EnvError(err)
		}
	}
	return nil
}

// decodeAction parses one action value; null or absent means no action.
func decodeAction(agent string, raw json.RawMessage) (*codec.Array, error) {
	if protocol.IsNull(raw) {
		return nil, nil
	}
	a, err := codec.Decode(raw)
	if err != nil {
		return nil, protocol.Errorf(protocol.ErrValidationFailed, "action for %q: %v", agent, err)
	}
	return &a, nil
}

func stepResponse(sess *gateway.Session) any {
	e := sess.Env()
	if sess.SingleAgent() {
		r := e.Result(0)
		return protocol.AgentStep{Obs: r.Obs, Reward: r.Reward, Done: r.Done, Info: info(r.Info)}
	}
	out := make(map[string]protocol.AgentStep, len(e.Agents()))
	for i, id := range e.Agents() {
		r := e.Result(i)
		out[id] = protocol.AgentStep{Obs: r.Obs, Reward: r.Reward, Done: r.Done, Info: info(r.Info), PlayerID: id}
	}
	return out
}

func info(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
