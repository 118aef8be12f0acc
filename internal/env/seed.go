package env

import "math/rand/v2"

// ResolveSeed returns *seed, or a fresh non-negative 31-bit seed when seed is
// nil so that the value can be echoed back and replayed.
func ResolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return rand.Int64N(1 << 31)
}
