package episode

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Policy chooses an agent's next action from its latest observation.
type Policy interface {
	Act(agent string, obs any) any
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(agent string, obs any) any

func (f PolicyFunc) Act(agent string, obs any) any { return f(agent, obs) }

// Constant always plays v.
func Constant(v any) Policy {
	return PolicyFunc(func(string, any) any { return v })
}

// Random plays a uniform move in [0, numActions) from a seeded source.
func Random(numActions int, seed uint64) Policy {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	var mu sync.Mutex
	return PolicyFunc(func(string, any) any {
		mu.Lock()
		defer mu.Unlock()
		return rng.IntN(numActions)
	})
}

// Cycle plays 0, 1, …, numActions-1 and wraps, independently per agent.
func Cycle(numActions int) Policy {
	next := make(map[string]int)
	var mu sync.Mutex
	return PolicyFunc(func(agent string, _ any) any {
		mu.Lock()
		defer mu.Unlock()
		a := next[agent]
		next[agent] = (a + 1) % numActions
		return a
	})
}

// PolicyNames lists the names accepted by NewPolicy.
var PolicyNames = []string{"constant", "random", "cycle"}

// NewPolicy builds a named policy. value is the constant action, numActions
// bounds random and cycle, seed feeds random.
func NewPolicy(name string, value float64, numActions int, seed uint64) (Policy, error) {
	switch name {
	case "constant":
		return Constant(value), nil
	case "random", "cycle":
		if numActions < 1 {
			return nil, fmt.Errorf("policy %s needs at least one action, got %d", name, numActions)
		}
		if name == "random" {
			return Random(numActions, seed), nil
		}
		return Cycle(numActions), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want one of %v)", name, PolicyNames)
	}
}
