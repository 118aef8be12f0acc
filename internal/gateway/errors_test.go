package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

func TestEnvError(t *testing.T) {
	assert.NoError(t, EnvError(nil))

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: move 9", env.ErrInvalidAction), protocol.ErrValidationFailed},
		{fmt.Errorf("%w: bad key", env.ErrInvalidConfig), protocol.ErrValidationFailed},
		{fmt.Errorf("%w: shape", env.ErrInvalidState), protocol.ErrValidationFailed},
		{fmt.Errorf("%w %q", env.ErrUnknownEnv, "chess"), protocol.ErrValidationFailed},
		{errors.New("disk on fire"), protocol.ErrInternal},
		{protocol.Errorf(protocol.ErrInvalidRequest, "x"), protocol.ErrInvalidRequest},
	}
	for _, tt := range tests {
		got := protocol.Shape(EnvError(tt.err), "")
		assert.Equal(t, tt.want, got.Code, tt.err.Error())
	}
}
