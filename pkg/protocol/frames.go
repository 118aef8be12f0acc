// Package protocol defines the wire format spoken between an orchestrator and
// an envgate environment host: one JSON object per line in each direction.
// This package is importable by orchestrators and other clients.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Protocol version reported by `envgate version` and `doctor`.
const ProtocolVersion = 1

// RequestFrame is one decoded request line. Params keeps the whole object so
// each handler can decode the fields it needs.
type RequestFrame struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"-"`
}

// InitParams carries environment options; null or absent means defaults.
type InitParams struct {
	EnvConfigs json.RawMessage `json:"envConfigs"`
}

// StepParams carries either a single action or a mapping agent id → action.
// AgentActions is the field name used by older orchestrators.
type StepParams struct {
	Actions      json.RawMessage `json:"actions"`
	AgentActions json.RawMessage `json:"agentActions"`
}

// Payload returns whichever action field is set, preferring a non-null
// "actions".
func (p StepParams) Payload() json.RawMessage {
	if !IsNull(p.Actions) || IsNull(p.AgentActions) {
		return p.Actions
	}
	return p.AgentActions
}

// ResetParams carries an optional explicit state to reset into.
type ResetParams struct {
	State json.RawMessage `json:"state"`
}

// SeedParams carries the seed; nil asks the environment to pick one.
type SeedParams struct {
	Seed *int64 `json:"seed"`
}

// RegisterAgentsParams carries externally proposed agent identifiers.
// Identifiers may be JSON strings or integers.
type RegisterAgentsParams struct {
	IDs []json.RawMessage `json:"ids"`
}

// RegisterAgentsResult is the response to register_agents.
type RegisterAgentsResult struct {
	IDs []string `json:"ids"`
}

// AgentStep is the per-agent part of a step response.
type AgentStep struct {
	Obs      any            `json:"obs"`
	Reward   float64        `json:"reward"`
	Done     bool           `json:"done"`
	Info     map[string]any `json:"info"`
	PlayerID string         `json:"player_id,omitempty"`
}

// AgentReset is the per-agent part of a reset response.
type AgentReset struct {
	Obs any `json:"obs"`
}

// ErrorFrame is written instead of a result when a request fails.
type ErrorFrame struct {
	Error *ErrorShape `json:"error"`
}

// ErrorShape describes a protocol error.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorFrame creates an error response frame.
func NewErrorFrame(code, message string) *ErrorFrame {
	return &ErrorFrame{Error: &ErrorShape{Code: code, Message: message}}
}

// ParseRequest decodes a request line. It fails when the line is not a JSON
// object or carries no string "type" field.
func ParseRequest(data []byte) (*RequestFrame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("request must be a JSON object")
	}
	var raw struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Type == nil {
		return nil, fmt.Errorf("missing %q field", "type")
	}
	return &RequestFrame{Type: *raw.Type, Params: json.RawMessage(data)}, nil
}

// Decode unmarshals the request's fields into v.
func (r *RequestFrame) Decode(v any) error {
	return json.Unmarshal(r.Params, v)
}

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
