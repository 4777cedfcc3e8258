// Package band maps continuous measure values into ordered categorical
// buckets with stable sort keys.
package band

import "fmt"

// Config pairs ascending breakpoints with labels. Labels must be exactly
// one longer than breakpoints: labels[0] covers values below the first
// breakpoint, the last label covers values at or above the last one.
type Config struct {
	Breakpoints []float64
	Labels      []string
}

// Validate checks label count and breakpoint ordering.
func (c Config) Validate() error {
	if len(c.Labels) != len(c.Breakpoints)+1 {
		return fmt.Errorf("banding needs %d labels for %d breakpoints, got %d",
			len(c.Breakpoints)+1, len(c.Breakpoints), len(c.Labels))
	}
	for i := 1; i < len(c.Breakpoints); i++ {
		if c.Breakpoints[i] <= c.Breakpoints[i-1] {
			return fmt.Errorf("breakpoints not ascending at index %d", i)
		}
	}
	return nil
}

// Band classifies value into its bucket. Intervals are right-open on the
// lower side: breakpoints[i-1] <= value < breakpoints[i]. The sort key is
// the bucket's ordinal index, so downstream ordering never depends on
// label text.
func (c Config) Band(value float64) (label string, sortKey int) {
	idx := len(c.Breakpoints)
	for i, bp := range c.Breakpoints {
		if value < bp {
			idx = i
			break
		}
	}
	return c.Labels[idx], idx
}

// RevenueBands is the domain default used for customer revenue
// classification.
func RevenueBands() Config {
	return Config{
		Breakpoints: []float64{1000, 5000, 10000, 50000, 200000},
		Labels:      []string{"<1K", "1K–5K", "5K–10K", "10K–50K", "50K–200K", "200K+"},
	}
}
