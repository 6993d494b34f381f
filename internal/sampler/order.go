package sampler

import (
	"math/rand/v2"

	"demski/internal/registry"
)

// drawOrder returns vars in random order by repeatedly drawing a uniform
// index into the shrinking list of unvisited variables and removing it.
// vars is not modified.
func drawOrder(vars []*registry.Variable, rng *rand.Rand) []*registry.Variable {
	remaining := make([]*registry.Variable, len(vars))
	copy(remaining, vars)
	out := make([]*registry.Variable, 0, len(vars))
	for len(remaining) > 0 {
		i := rng.IntN(len(remaining))
		out = append(out, remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return out
}
