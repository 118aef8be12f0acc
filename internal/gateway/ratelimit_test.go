package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	var nilRL *RateLimiter
	assert.True(t, nilRL.Allow())
	assert.False(t, nilRL.Enabled())

	off := NewRateLimiter(0, 5)
	assert.False(t, off.Enabled())
	for i := 0; i < 100; i++ {
		assert.True(t, off.Allow())
	}

	rl := NewRateLimiter(0.001, 2)
	assert.True(t, rl.Enabled())
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}
