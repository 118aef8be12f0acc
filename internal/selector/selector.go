// Package selector implements the round-robin turn order shared by all
// turn-based environments: a fixed ring of agent indices and a cursor.
package selector

// Selector cycles through agent indices 0..n-1 in fixed order.
type Selector struct {
	order  []int
	cursor int
}

// New creates a selector over n agents, starting at agent 0.
func New(n int) *Selector {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return &Selector{order: order}
}

// Current returns the index of the agent whose turn it is.
func (s *Selector) Current() int {
	return s.order[s.cursor]
}

// Advance moves to the next agent, wrapping after the last, and returns it.
func (s *Selector) Advance() int {
	s.cursor = (s.cursor + 1) % len(s.order)
	return s.order[s.cursor]
}

// IsLast reports whether the current agent is the final one of the cycle.
func (s *Selector) IsLast() bool {
	return s.cursor == len(s.order)-1
}

// Reinit moves the cursor back to the first agent.
func (s *Selector) Reinit() {
	s.cursor = 0
}

// Len returns the number of agents in the ring.
func (s *Selector) Len() int { return len(s.order) }

// Order returns a copy of the turn order.
func (s *Selector) Order() []int {
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}
