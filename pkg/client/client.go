// Package client drives an envgate environment host from the orchestrator
// side of the line protocol. Any reader/writer pair works: a child process's
// stdout/stdin, a socket, or an io.Pipe in tests.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// ErrBroken is returned once a call was abandoned mid-flight; the stream can
// no longer be matched to requests.
var ErrBroken = errors.New("client: stream out of sync after cancelled call")

// SingleAgentID keys the flat single-agent responses in normalized results.
const SingleAgentID = "player_0"

// Client issues one request at a time and waits for its response line.
type Client struct {
	mu     sync.Mutex
	r      *bufio.Reader
	w      io.Writer
	broken bool
}

func New(r io.Reader, w io.Writer) *Client {
	return &Client{r: bufio.NewReader(r), w: w}
}

// Init builds the host's configured environment. envConfigs may be nil.
func (c *Client) Init(ctx context.Context, envConfigs any) (map[string]any, error) {
	return c.InitEnv(ctx, "", envConfigs)
}

// InitEnv builds the named environment.
func (c *Client) InitEnv(ctx context.Context, name string, envConfigs any) (map[string]any, error) {
	req := map[string]any{"envConfigs": envConfigs}
	if name != "" {
		req["env"] = name
	}
	var meta map[string]any
	if err := c.Call(ctx, protocol.MethodInit, req, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// RegisterAgents proposes external ids (strings or integers) and returns the
// canonical ids.
func (c *Client) RegisterAgents(ctx context.Context, ids ...any) ([]string, error) {
	var res protocol.RegisterAgentsResult
	if err := c.Call(ctx, protocol.MethodRegisterAgents, map[string]any{"ids": ids}, &res); err != nil {
		return nil, err
	}
	return res.IDs, nil
}

// Reset starts a new episode and returns each agent's observation. state may
// be nil.
func (c *Client) Reset(ctx context.Context, state any) (map[string]any, error) {
	var params map[string]any
	if state != nil {
		params = map[string]any{"state": state}
	}
	var raw json.RawMessage
	if err := c.Call(ctx, protocol.MethodReset, params, &raw); err != nil {
		return nil, err
	}
	byAgent, err := normalize[protocol.AgentReset](raw, "obs")
	if err != nil {
		return nil, err
	}
	obs := make(map[string]any, len(byAgent))
	for id, r := range byAgent {
		obs[id] = r.Obs
	}
	return obs, nil
}

// Step submits actions: a single value for the current agent or a map of
// agent id to action. Results are keyed by agent id; a flat single-agent
// response is keyed by SingleAgentID.
func (c *Client) Step(ctx context.Context, actions any) (map[string]protocol.AgentStep, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, protocol.MethodStep, map[string]any{"actions": actions}, &raw); err != nil {
		return nil, err
	}
	return normalize[protocol.AgentStep](raw, "reward")
}

// Seed reseeds the environment; nil lets it choose. It returns the applied
// seed.
func (c *Client) Seed(ctx context.Context, seed *int64) (int64, error) {
	var res []int64
	if err := c.Call(ctx, protocol.MethodSeed, map[string]any{"seed": seed}, &res); err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("seed: unexpected response %v", res)
	}
	return res[0], nil
}

// Close asks the host to exit. No response is expected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(protocol.MethodClose, nil)
}

// Call sends a request of type typ with params merged into the frame and
// decodes the response into out. An error frame is returned as a
// *protocol.Error.
func (c *Client) Call(ctx context.Context, typ string, params map[string]any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return ErrBroken
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.send(typ, params); err != nil {
		return err
	}

	type reply struct {
		line []byte
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		line, err := c.r.ReadBytes('\n')
		ch <- reply{line, err}
	}()

	var rep reply
	select {
	case <-ctx.Done():
		c.broken = true
		return ctx.Err()
	case rep = <-ch:
	}
	if rep.err != nil && len(bytes.TrimSpace(rep.line)) == 0 {
		if errors.Is(rep.err, io.EOF) {
			return fmt.Errorf("%s: host closed the stream: %w", typ, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("%s: read response: %w", typ, rep.err)
	}

	var frame protocol.ErrorFrame
	if err := json.Unmarshal(rep.line, &frame); err == nil && frame.Error != nil {
		return &protocol.Error{Code: frame.Error.Code, Message: frame.Error.Message, Details: frame.Error.Details}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rep.line, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", typ, err)
	}
	return nil
}

func (c *Client) send(typ string, params map[string]any) error {
	frame := make(map[string]any, len(params)+1)
	for k, v := range params {
		frame[k] = v
	}
	frame["type"] = typ
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", typ, err)
	}
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%s: write request: %w", typ, err)
	}
	return nil
}

// normalize decodes a per-agent response. A flat single-agent response is
// recognised by its marker field and keyed by SingleAgentID.
func normalize[T any](raw json.RawMessage, marker string) (map[string]T, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if _, flat := probe[marker]; flat {
		var one T
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return map[string]T{SingleAgentID: one}, nil
	}
	out := make(map[string]T, len(probe))
	for id, v := range probe {
		var one T
		if err := json.Unmarshal(v, &one); err != nil {
			return nil, fmt.Errorf("decode response for %s: %w", id, err)
		}
		out[id] = one
	}
	return out, nil
}
