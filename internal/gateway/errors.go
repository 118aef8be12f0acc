package gateway

import (
	"errors"

	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

// EnvError classifies an environment failure into a protocol error:
// rejected input is VALIDATION_FAILED, anything else is INTERNAL.
func EnvError(err error) error {
	if err == nil {
		return nil
	}
	var pe *protocol.Error
	if errors.As(err, &pe) {
		return err
	}
	switch {
	case errors.Is(err, env.ErrInvalidAction),
		errors.Is(err, env.ErrInvalidConfig),
		errors.Is(err, env.ErrInvalidState),
		errors.Is(err, env.ErrUnknownEnv):
		return &protocol.Error{Code: protocol.ErrValidationFailed, Message: err.Error()}
	default:
		return &protocol.Error{Code: protocol.ErrInternal, Message: err.Error()}
	}
}
