// Package gateway runs the line-delimited JSON protocol between an
// orchestrator and a hosted environment.
package gateway

import (
	"context"
	"io"
)

// DefaultMaxLineBytes bounds a single request line.
const DefaultMaxLineBytes = 1 << 20

// Options configures a Server.
type Options struct {
	// MaxLineBytes bounds a request line; <= 0 selects DefaultMaxLineBytes.
	MaxLineBytes int
	// RatePerSecond and RateBurst bound the request rate; RatePerSecond <= 0
	// disables limiting.
	RatePerSecond float64
	RateBurst     int
}

// Server answers protocol requests using a method router.
type Server struct {
	router  *MethodRouter
	opts    Options
	limiter *RateLimiter
}

func NewServer(router *MethodRouter, opts Options) *Server {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	return &Server{
		router:  router,
		opts:    opts,
		limiter: NewRateLimiter(opts.RatePerSecond, opts.RateBurst),
	}
}

// Router returns the server's method router.
func (s *Server) Router() *MethodRouter { return s.router }

// Serve handles the request stream r, writing responses to w, until close,
// end of input or ctx is cancelled. Cancellation is observed between lines;
// callers that need to interrupt a blocked read should close r.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	return newConn(s, r, w).Run(ctx)
}
