package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/envgate/internal/codec"
	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

type fakeEnv struct {
	closed bool
}

func (f *fakeEnv) Metadata() env.Metadata      { return env.Metadata{"name": "fake"} }
func (f *fakeEnv) Agents() []string            { return []string{"player_0", "player_1"} }
func (f *fakeEnv) Selected() int               { return 0 }
func (f *fakeEnv) Step(*codec.Array) error     { return nil }
func (f *fakeEnv) Result(int) env.Result       { return env.Result{Obs: codec.Int(0)} }
func (f *fakeEnv) Reset(json.RawMessage) error { return nil }
func (f *fakeEnv) Seed(seed *int64) int64      { return env.ResolveSeed(seed) }
func (f *fakeEnv) Close() error                { f.closed = true; return nil }

func testRouter() *MethodRouter {
	r := NewMethodRouter()
	r.Register(protocol.MethodInit, func(_ context.Context, c *Conn, _ *protocol.RequestFrame) (any, error) {
		c.SetSession(NewSession("fake", &fakeEnv{}))
		return map[string]any{"ok": true}, nil
	})
	r.Register("ping", func(_ context.Context, c *Conn, _ *protocol.RequestFrame) (any, error) {
		return map[string]any{"pong": c.Session().EnvName()}, nil
	})
	r.Register("boom", func(context.Context, *Conn, *protocol.RequestFrame) (any, error) {
		panic("kaboom")
	})
	r.Register("fail", func(context.Context, *Conn, *protocol.RequestFrame) (any, error) {
		return nil, errors.New("plain failure")
	})
	return r
}

func serve(t *testing.T, opts Options, input string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	err := NewServer(testRouter(), opts).Serve(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)

	var frames []map[string]any
	for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line %q", line)
		frames = append(frames, m)
	}
	return frames
}

func errorCode(t *testing.T, frame map[string]any) string {
	t.Helper()
	e, ok := frame["error"].(map[string]any)
	require.True(t, ok, "expected error frame, got %v", frame)
	return e["code"].(string)
}

func TestServe_OneLinePerRequest(t *testing.T) {
	frames := serve(t, Options{}, `{"type":"init"}
{"type":"ping"}
{"type":"ping"}
`)
	require.Len(t, frames, 3)
	assert.Equal(t, true, frames[0]["ok"])
	assert.Equal(t, "fake", frames[1]["pong"])
}

func TestServe_MalformedInputKeepsServing(t *testing.T) {
	frames := serve(t, Options{}, `not json
[1, 2]
{"kind":"init"}
{"type": 7}
{"type":"init"}
`)
	require.Len(t, frames, 5)
	for _, f := range frames[:4] {
		assert.Equal(t, protocol.ErrInvalidRequest, errorCode(t, f))
	}
	assert.Equal(t, true, frames[4]["ok"])
}

func TestServe_PreconditionAndUnknownType(t *testing.T) {
	frames := serve(t, Options{}, `{"type":"ping"}
{"type":"dance"}
`)
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.ErrFailedPrecondition, errorCode(t, frames[0]))
	assert.Equal(t, protocol.ErrInvalidRequest, errorCode(t, frames[1]))
}

func TestServe_BlankLinesIgnored(t *testing.T) {
	frames := serve(t, Options{}, "\n   \n{\"type\":\"init\"}\n\n")
	assert.Len(t, frames, 1)
}

func TestServe_CloseStopsWithoutResponse(t *testing.T) {
	frames := serve(t, Options{}, `{"type":"init"}
{"type":"close"}
{"type":"ping"}
`)
	assert.Len(t, frames, 1)
}

func TestServe_FinalLineWithoutNewline(t *testing.T) {
	frames := serve(t, Options{}, `{"type":"init"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, true, frames[0]["ok"])
}

func TestServe_LineTooLong(t *testing.T) {
	long := `{"type":"init","pad":"` + strings.Repeat("x", 100) + `"}`
	frames := serve(t, Options{MaxLineBytes: 64}, long+"\n"+`{"type":"init"}`+"\n")
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.ErrInvalidRequest, errorCode(t, frames[0]))
	assert.Equal(t, true, frames[1]["ok"])
}

func TestServe_LineAtLimitAccepted(t *testing.T) {
	line := `{"type":"init"}`
	frames := serve(t, Options{MaxLineBytes: len(line)}, line+"\n"+line+"\r\n"+line+" \n")
	require.Len(t, frames, 3)
	assert.Equal(t, true, frames[0]["ok"])
	assert.Equal(t, true, frames[1]["ok"])
	assert.Equal(t, protocol.ErrInvalidRequest, errorCode(t, frames[2]))
}

func TestServe_PanicDropsSession(t *testing.T) {
	frames := serve(t, Options{}, `{"type":"init"}
{"type":"boom"}
{"type":"ping"}
`)
	require.Len(t, frames, 3)
	assert.Equal(t, protocol.ErrInternal, errorCode(t, frames[1]))
	assert.Equal(t, protocol.ErrFailedPrecondition, errorCode(t, frames[2]))
}

func TestServe_PlainErrorIsInternal(t *testing.T) {
	frames := serve(t, Options{}, `{"type":"init"}
{"type":"fail"}
`)
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.ErrInternal, errorCode(t, frames[1]))
}

func TestServe_RateLimited(t *testing.T) {
	frames := serve(t, Options{RatePerSecond: 0.001, RateBurst: 1}, `{"type":"init"}
{"type":"ping"}
`)
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.ErrResourceExhausted, errorCode(t, frames[1]))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestServe_WriteFailureIsFatal(t *testing.T) {
	err := NewServer(testRouter(), Options{}).Serve(context.Background(),
		strings.NewReader(`{"type":"init"}`+"\n"), failingWriter{})
	assert.ErrorContains(t, err, "broken pipe")
}

func TestServe_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := NewServer(testRouter(), Options{}).Serve(ctx, strings.NewReader(`{"type":"init"}`+"\n"), &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestConn_SetSessionClosesPrevious(t *testing.T) {
	c := newConn(NewServer(NewMethodRouter(), Options{}), strings.NewReader(""), &bytes.Buffer{})
	first := &fakeEnv{}
	c.SetSession(NewSession("fake", first))
	c.SetSession(NewSession("fake", &fakeEnv{}))
	assert.True(t, first.closed)
}
