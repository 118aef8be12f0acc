package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_CyclesInOrder(t *testing.T) {
	s := New(3)
	assert.Equal(t, 0, s.Current())
	assert.False(t, s.IsLast())

	assert.Equal(t, 1, s.Advance())
	assert.False(t, s.IsLast())

	assert.Equal(t, 2, s.Advance())
	assert.True(t, s.IsLast())

	assert.Equal(t, 0, s.Advance(), "should wrap after the last agent")
	assert.False(t, s.IsLast())
}

func TestSelector_SingleAgentAlwaysLast(t *testing.T) {
	s := New(1)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, s.Current())
		assert.True(t, s.IsLast())
		s.Advance()
	}
}

func TestSelector_Reinit(t *testing.T) {
	s := New(4)
	s.Advance()
	s.Advance()
	s.Reinit()
	assert.Equal(t, 0, s.Current())
}

func TestSelector_Fairness(t *testing.T) {
	for _, k := range []int{1, 2, 3, 5} {
		for _, turns := range []int{0, 1, 7, 20, 33} {
			s := New(k)
			counts := make([]int, k)
			prev := -1
			for i := 0; i < turns; i++ {
				cur := s.Current()
				counts[cur]++
				if k > 1 {
					require.NotEqual(t, prev, cur, "k=%d turn %d selected twice in a row", k, i)
				}
				prev = cur
				s.Advance()
			}
			for agent, n := range counts {
				want := turns / k
				if agent < turns%k {
					want++
				}
				assert.Equal(t, want, n, "k=%d turns=%d agent=%d", k, turns, agent)
			}
		}
	}
}

func TestSelector_OrderIsCopy(t *testing.T) {
	s := New(2)
	order := s.Order()
	order[0] = 9
	assert.Equal(t, []int{0, 1}, s.Order())
	assert.Equal(t, 2, s.Len())
}
