package methods

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/nextlevelbuilder/envgate/internal/gateway"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// AgentsMethods handles register_agents.
type AgentsMethods struct{}

func NewAgentsMethods() *AgentsMethods { return &AgentsMethods{} }

func (m *AgentsMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodRegisterAgents, m.handleRegister)
}

func (m *AgentsMethods) handleRegister(_ context.Context, conn *gateway.Conn, req *protocol.RequestFrame) (any, error) {
	var params protocol.RegisterAgentsParams
	if err := req.Decode(&params); err != nil {
		return nil, protocol.Errorf(protocol.ErrInvalidRequest, "ids must be a list: %v", err)
	}

	ids := make([]string, len(params.IDs))
	for i, raw := range params.IDs {
		id, err := agentID(raw)
		if err != nil {
			return nil, protocol.Errorf(protocol.ErrInvalidRequest, "ids[%d]: %v", i, err)
		}
		ids[i] = id
	}

	canonical, err := conn.Session().RegisterAgents(ids)
	if err != nil {
		return nil, err
	}
	return protocol.RegisterAgentsResult{IDs: canonical}, nil
}

// agentID accepts a JSON string or integer.
func agentID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", protocol.Errorf(protocol.ErrInvalidRequest, "agent id must be a string or integer, got %s", raw)
	}
	return strconv.FormatInt(n, 10), nil
}
