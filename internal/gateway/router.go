package gateway

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// ErrClosed is returned by the close handler to end the stream without a
// response line.
var ErrClosed = errors.New("gateway: close requested")

// MethodHandler processes a single request and returns the response payload.
// Returning an error (ideally a *protocol.Error) produces an error frame.
type MethodHandler func(ctx context.Context, conn *Conn, req *protocol.RequestFrame) (any, error)

// MethodRouter maps request types to handlers.
type MethodRouter struct {
	handlers map[string]MethodHandler
}

func NewMethodRouter() *MethodRouter {
	r := &MethodRouter{
		handlers: make(map[string]MethodHandler),
	}
	r.registerDefaults()
	return r
}

// Register adds a method handler.
func (r *MethodRouter) Register(method string, handler MethodHandler) {
	r.handlers[method] = handler
}

// Methods returns the registered request types, sorted.
func (r *MethodRouter) Methods() []string {
	out := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Handle dispatches a request to the appropriate handler. A panicking
// handler is reported as INTERNAL and the connection's session is dropped,
// since the environment may be left half-updated.
func (r *MethodRouter) Handle(ctx context.Context, conn *Conn, req *protocol.RequestFrame) (result any, err error) {
	handler, ok := r.handlers[req.Type]
	if !ok {
		return nil, protocol.Errorf(protocol.ErrInvalidRequest, "unknown message type: %q", req.Type)
	}

	// Everything except init and close needs an environment.
	if req.Type != protocol.MethodInit && req.Type != protocol.MethodClose && conn.Session() == nil {
		return nil, protocol.Errorf(protocol.ErrFailedPrecondition, "environment not initialized: send %q first", protocol.MethodInit)
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("handler panic", "type", req.Type, "panic", rec, "stack", string(debug.Stack()))
			conn.dropSession()
			result = nil
			err = protocol.Errorf(protocol.ErrInternal, "internal error handling %q; environment dropped, send %q again", req.Type, protocol.MethodInit)
		}
	}()

	slog.Debug("handling request", "type", req.Type, "conn", conn.id)
	return handler(ctx, conn, req)
}

// registerDefaults registers lifecycle handlers that need no environment.
func (r *MethodRouter) registerDefaults() {
	r.Register(protocol.MethodClose, r.handleClose)
}

func (r *MethodRouter) handleClose(_ context.Context, _ *Conn, _ *protocol.RequestFrame) (any, error) {
	return nil, ErrClosed
}
