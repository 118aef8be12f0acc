package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

func TestSession_RegisterAgents(t *testing.T) {
	s := NewSession("fake", &fakeEnv{})

	ids, err := s.RegisterAgents([]string{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"player_0", "player_1"}, ids)
	assert.Equal(t, 0, s.Resolve("alice"))
	assert.Equal(t, 1, s.Resolve("bob"))
	assert.Equal(t, 1, s.Resolve("player_1"))
	assert.Equal(t, -1, s.Resolve("carol"))
}

func TestSession_RegisterAgentsRejects(t *testing.T) {
	s := NewSession("fake", &fakeEnv{})

	_, err := s.RegisterAgents([]string{"alice"})
	assert.Equal(t, protocol.ErrValidationFailed, protocol.Shape(err, "").Code)

	_, err = s.RegisterAgents([]string{"alice", "alice"})
	assert.Equal(t, protocol.ErrValidationFailed, protocol.Shape(err, "").Code)
}

func TestSession_RegisteredIDsShadowCanonical(t *testing.T) {
	s := NewSession("fake", &fakeEnv{})
	_, err := s.RegisterAgents([]string{"player_1", "player_0"})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Resolve("player_1"))
	assert.Equal(t, 1, s.Resolve("player_0"))
}

func TestSession_IDsAreUnique(t *testing.T) {
	a := NewSession("fake", &fakeEnv{})
	b := NewSession("fake", &fakeEnv{})
	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.SingleAgent())
}
