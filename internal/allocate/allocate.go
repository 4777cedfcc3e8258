// Package allocate distributes a shared cost pool across dimension members
// proportionally to a weight, typically each member's revenue share.
package allocate

import "fmt"

// WeightError reports a negative allocation weight. Weights must be
// non-negative; a negative weight is a contract violation and is never
// silently clamped.
type WeightError struct {
	Member string
	Weight float64
}

func (e *WeightError) Error() string {
	return fmt.Sprintf("negative allocation weight for %q: %g", e.Member, e.Weight)
}

// Allocate splits pool across members in proportion to their weights.
// The pool is a positive cost magnitude; the caller flips the sign of
// ledger postings (stored negative) before calling. When all weights are
// zero every member receives 0, the safe-division policy, not an error. When the weight sum is positive the allocations sum back to the
// pool within floating-point rounding.
func Allocate(pool float64, weights map[string]float64) (map[string]float64, error) {
	var sum float64
	for member, w := range weights {
		if w < 0 {
			return nil, &WeightError{Member: member, Weight: w}
		}
		sum += w
	}

	out := make(map[string]float64, len(weights))
	if sum == 0 {
		for member := range weights {
			out[member] = 0
		}
		return out, nil
	}
	for member, w := range weights {
		out[member] = pool * (w / sum)
	}
	return out, nil
}
