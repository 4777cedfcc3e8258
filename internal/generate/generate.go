// Package generate produces the seeded synthetic star schema: a daily time
// dimension, customers with churn histories, a product portfolio, a fixed
// chart of accounts, cost centers, transaction and GL posting facts, and
// heuristic churn scores standing in for the ML collaborator's output.
package generate

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/finhub/kpi-kit/internal/config"
	"github.com/finhub/kpi-kit/internal/dataset"
)

// Generator produces a reproducible synthetic dataset from one seed.
type Generator struct {
	cfg config.GenerateConfig
	rng *rand.Rand
}

// New returns a generator over the given parameters.
func New(cfg config.GenerateConfig) *Generator {
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Dataset generates all dimensions and facts and finalizes the store.
func (g *Generator) Dataset() (*dataset.Dataset, error) {
	start, err := time.Parse("2006-01-02", g.cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("bad start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", g.cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("bad end_date: %w", err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end_date %s not after start_date %s", g.cfg.EndDate, g.cfg.StartDate)
	}

	ds := &dataset.Dataset{}
	ds.Time = g.timeBuckets(start, end)
	ds.Customers = g.customers(start, end)
	ds.Products = g.products()
	ds.Accounts = accounts()
	ds.CostCenters = costCenters(g.cfg.CostCenters)
	ds.Transactions = g.transactions(ds)
	ds.Postings = g.postings(ds)
	ds.Churn = g.churnPredictions(ds, end)

	if err := ds.Finalize(); err != nil {
		return nil, err
	}
	return ds, nil
}

// poisson draws from a Poisson distribution (Knuth's method; lambdas here
// are small).
func (g *Generator) poisson(lambda float64) int {
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= g.rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// logNormal draws exp(N(0, sigma)).
func (g *Generator) logNormal(sigma float64) float64 {
	return math.Exp(g.rng.NormFloat64() * sigma)
}

// pick draws an index from a discrete distribution.
func (g *Generator) pick(probs []float64) int {
	r := g.rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r < acc {
			return i
		}
	}
	return len(probs) - 1
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
