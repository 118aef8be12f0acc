package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/nextlevelbuilder/envgate/pkg/client"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// formatHostError turns an error from an environment host into a one-line
// message for the terminal.
func formatHostError(err error) string {
	var pe *protocol.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case protocol.ErrValidationFailed:
			return "rejected by the environment: " + pe.Message
		case protocol.ErrFailedPrecondition:
			return "environment not ready: " + pe.Message
		case protocol.ErrResourceExhausted:
			return "host rate limit reached; raise gateway.rateLimit or slow down"
		case protocol.ErrInvalidRequest:
			return "host did not understand the request: " + pe.Message
		case protocol.ErrInternal:
			return "host failed internally: " + pe.Message
		}
	}

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "host exited before answering (see its stderr)"
	case errors.Is(err, client.ErrBroken):
		return "connection to host is out of sync"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "interrupted"
	}

	slog.Debug("unclassified host error", "error", err)
	return err.Error()
}
