package engine

import (
	"math/rand"

	"github.com/google/uuid"
)

// rng is the single source of randomness for an engine.
type rng struct {
	r *rand.Rand
}

func newRNG(seed int64) *rng {
	return &rng{r: rand.New(rand.NewSource(seed))}
}

// chance is one Bernoulli trial.
func (g *rng) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return g.r.Float64() < p
}

func (g *rng) intn(n int) int {
	if n <= 1 {
		return 0
	}
	return g.r.Intn(n)
}

// between returns a uniform integer in [lo,hi].
func (g *rng) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + g.r.Int63n(hi-lo+1)
}

// id returns a version 4 UUID drawn from the seeded stream.
func (g *rng) id() string {
	u, err := uuid.NewRandomFromReader(g.r)
	if err != nil {
		// *rand.Rand.Read never fails.
		panic(err)
	}
	return u.String()
}

func pick[T any](g *rng, xs []T) T {
	return xs[g.intn(len(xs))]
}

// sampleWeighted maps roll in [0,1) onto the cumulative weights and returns
// the chosen index, or -1 when no weight is positive.
func sampleWeighted(weights []int, roll float64) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return -1
	}
	target := roll * float64(total)
	acc := 0.0
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += float64(w)
		last = i
		if target < acc {
			return i
		}
	}
	return last
}

// roll returns a uniform float in [0,1).
func (g *rng) roll() float64 { return g.r.Float64() }
