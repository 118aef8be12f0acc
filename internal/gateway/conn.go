package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/envgate/internal/tracing"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

var errLineTooLong = errors.New("request line too long")

// Conn is one request stream. Requests are handled strictly in order: one
// line in, one line out, flushed before the next line is read.
type Conn struct {
	id      string
	server  *Server
	reader  *bufio.Reader
	writer  *bufio.Writer
	session *Session

	handled int
}

func newConn(s *Server, r io.Reader, w io.Writer) *Conn {
	return &Conn{
		id:     uuid.NewString()[:8],
		server: s,
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
	}
}

// ID returns the short connection id used in logs.
func (c *Conn) ID() string { return c.id }

// Session returns the active session, or nil before init.
func (c *Conn) Session() *Session { return c.session }

// SetSession installs s as the active session, closing any previous one.
func (c *Conn) SetSession(s *Session) {
	c.dropSession()
	c.session = s
}

func (c *Conn) dropSession() {
	if c.session == nil {
		return
	}
	if err := c.session.Close(); err != nil {
		slog.Warn("session close failed", "session", c.session.ID(), "error", err)
	}
	slog.Info("session closed", "session", c.session.ID(), "env", c.session.EnvName(), "age", c.session.Age())
	c.session = nil
}

// Run reads and answers requests until close, end of input or ctx is done.
// It returns an error only when the stream itself fails.
func (c *Conn) Run(ctx context.Context) error {
	defer c.dropSession()
	slog.Info("gateway listening", "conn", c.id)

	for {
		if ctx.Err() != nil {
			slog.Info("gateway stopping", "conn", c.id, "reason", ctx.Err(), "handled", c.handled)
			return nil
		}

		line, rerr := c.readLine()
		if errors.Is(rerr, errLineTooLong) {
			slog.Warn("request line too long", "conn", c.id, "max_bytes", c.server.opts.MaxLineBytes)
			if err := c.write(protocol.NewErrorFrame(protocol.ErrInvalidRequest,
				fmt.Sprintf("request line exceeds %d bytes", c.server.opts.MaxLineBytes))); err != nil {
				return err
			}
			continue
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read request: %w", rerr)
		}

		// A final line without a trailing newline is still a request.
		if len(bytes.TrimSpace(line)) > 0 {
			stop, err := c.handleLine(ctx, line)
			if err != nil {
				return err
			}
			if stop {
				slog.Info("close received", "conn", c.id, "handled", c.handled)
				return nil
			}
		}

		if rerr != nil {
			slog.Info("input closed", "conn", c.id, "handled", c.handled)
			return nil
		}
	}
}

// readLine returns the next newline-terminated line. Lines whose content,
// excluding the line terminator, exceeds MaxLineBytes are consumed up to
// their newline and reported as errLineTooLong.
func (c *Conn) readLine() ([]byte, error) {
	limit := c.server.opts.MaxLineBytes
	var line []byte
	tooLong := false
	for {
		chunk, err := c.reader.ReadSlice('\n')
		n := len(chunk)
		if !errors.Is(err, bufio.ErrBufferFull) {
			n = len(bytes.TrimRight(chunk, "\r\n"))
		}
		if !tooLong {
			if limit > 0 && len(line)+n > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return nil, errLineTooLong
		}
		return line, err
	}
}

// handleLine answers a single request. stop is true after close.
func (c *Conn) handleLine(ctx context.Context, line []byte) (stop bool, err error) {
	c.handled++

	req, perr := protocol.ParseRequest(line)
	if perr != nil {
		slog.Warn("malformed request", "conn", c.id, "error", perr)
		return false, c.write(protocol.NewErrorFrame(protocol.ErrInvalidRequest, "malformed request: "+perr.Error()))
	}

	if req.Type != protocol.MethodClose && !c.server.limiter.Allow() {
		return false, c.write(protocol.NewErrorFrame(protocol.ErrResourceExhausted, "request rate exceeded, retry later"))
	}

	var attrs []attribute.KeyValue
	if s := c.session; s != nil {
		attrs = append(attrs, tracing.AttrSession.String(s.ID()), tracing.AttrEnv.String(s.EnvName()))
	}
	ctx, span := tracing.StartRequest(ctx, req.Type, attrs...)
	start := time.Now()

	result, herr := c.server.router.Handle(ctx, c, req)
	switch {
	case errors.Is(herr, ErrClosed):
		tracing.End(span, "", nil)
		return true, nil
	case herr != nil:
		shape := protocol.Shape(herr, protocol.ErrInternal)
		tracing.End(span, shape.Code, herr)
		slog.Warn("request failed", "conn", c.id, "type", req.Type, "code", shape.Code, "error", shape.Message)
		return false, c.write(&protocol.ErrorFrame{Error: shape})
	}

	tracing.End(span, "", nil)
	slog.Debug("request handled", "conn", c.id, "type", req.Type, "duration", time.Since(start))
	return false, c.write(result)
}

// write encodes v as one line and flushes it. Write failures are fatal to
// the stream.
func (c *Conn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response failed", "conn", c.id, "error", err)
		data, _ = json.Marshal(protocol.NewErrorFrame(protocol.ErrInternal, "encode response: "+err.Error()))
	}
	data = append(data, '\n')
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
