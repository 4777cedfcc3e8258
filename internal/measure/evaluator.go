package measure

import (
	"fmt"
	"sync"

	"github.com/finhub/kpi-kit/internal/aggregate"
	"github.com/finhub/kpi-kit/internal/allocate"
	"github.com/finhub/kpi-kit/internal/dataset"
)

// SafeDivide is the division policy for the whole measure layer:
// divide(n, 0) is 0, never an error.
func SafeDivide(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}

// Evaluator resolves measures against an immutable dataset and registry.
// It holds no mutable state beyond a lazily checked resolution result, so
// one evaluator may serve many goroutines evaluating independent contexts
// concurrently; each evaluation owns its own memo table.
type Evaluator struct {
	ds  *dataset.Dataset
	reg *Registry

	resolveOnce sync.Once
	resolveErr  error
}

// NewEvaluator wires a registry to a dataset. Registration must be
// finished before the first evaluation.
func NewEvaluator(ds *dataset.Dataset, reg *Registry) *Evaluator {
	return &Evaluator{ds: ds, reg: reg}
}

func (e *Evaluator) resolved() error {
	e.resolveOnce.Do(func() {
		e.resolveErr = e.reg.Resolve()
	})
	return e.resolveErr
}

// Evaluate computes one measure under a context. Dependencies are resolved
// depth-first; each is computed at most once per evaluation thanks to the
// per-context memo table.
func (e *Evaluator) Evaluate(name string, ctx Context) (float64, error) {
	if err := e.resolved(); err != nil {
		return 0, err
	}
	memo := make(map[string]float64)
	return e.eval(name, ctx, memo)
}

// EvaluateAll computes several measures under one shared context, sharing
// a single memo table so common sub-measures are computed once.
func (e *Evaluator) EvaluateAll(names []string, ctx Context) (map[string]float64, error) {
	if err := e.resolved(); err != nil {
		return nil, err
	}
	memo := make(map[string]float64)
	out := make(map[string]float64, len(names))
	for _, name := range names {
		v, err := e.eval(name, ctx, memo)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (e *Evaluator) eval(name string, ctx Context, memo map[string]float64) (float64, error) {
	if v, ok := memo[name]; ok {
		return v, nil
	}
	def, err := e.reg.Get(name)
	if err != nil {
		return 0, err
	}
	v, err := e.evalNode(def.ast, ctx, memo)
	if err != nil {
		return 0, err
	}
	memo[name] = v
	return v, nil
}

func (e *Evaluator) evalNode(n node, ctx Context, memo map[string]float64) (float64, error) {
	switch t := n.(type) {
	case numNode:
		return t.value, nil
	case refNode:
		return e.eval(t.name, ctx, memo)
	case aggNode:
		return aggregate.Total(e.ds, t.metric, ctx.RowFilter(e.ds.Months())), nil
	case binNode:
		left, err := e.evalNode(t.left, ctx, memo)
		if err != nil {
			return 0, err
		}
		right, err := e.evalNode(t.right, ctx, memo)
		if err != nil {
			return 0, err
		}
		switch t.op {
		case '+':
			return left + right, nil
		case '-':
			return left - right, nil
		case '*':
			return left * right, nil
		default:
			return SafeDivide(left, right), nil
		}
	}
	return 0, fmt.Errorf("unknown expression node %T", n)
}

// AllocateOver evaluates a pool measure once and a weight measure per
// member of a dimension column, then distributes the pool proportionally.
// The enumeration table names where the members live (e.g. dim_product /
// product_name). The pool measure must already carry a positive cost
// magnitude.
func (e *Evaluator) AllocateOver(poolMeasure, weightMeasure, table, column string, ctx Context) (map[string]float64, error) {
	pool, err := e.Evaluate(poolMeasure, ctx)
	if err != nil {
		return nil, err
	}
	weights := make(map[string]float64)
	for _, member := range e.ds.DistinctValues(table, column) {
		w, err := e.Evaluate(weightMeasure, ctx.Filter(column, member))
		if err != nil {
			return nil, err
		}
		weights[member] = w
	}
	return allocate.Allocate(pool, weights)
}
