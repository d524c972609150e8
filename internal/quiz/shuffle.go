package quiz

import "math/rand/v2"

// Source is the random source consumed by Shuffle. *rand.Rand satisfies it.
type Source interface {
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// NewSeededSource returns a deterministic source. Two sources built from the
// same seed yield the same sequence.
func NewSeededSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed))
}

// NewDefaultSource returns a source seeded from process entropy.
func NewDefaultSource() Source {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Shuffle permutes s in place with Fisher-Yates, drawing one bounded integer
// per position from the last index down to 1.
func Shuffle[T any](src Source, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
