package deck

import rand "math/rand/v2"

// NewRNG returns a shuffle source derived from a single seed, so a
// session's dealing order can be reproduced from one logged number.
// rand/v2's PCG wants two 64-bit words; the seed is expanded with one
// splitmix64 step per word.
func NewRNG(seed int64) *rand.Rand {
	state := uint64(seed)
	return rand.New(rand.NewPCG(splitmix64(&state), splitmix64(&state)))
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	x := *state
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
