package aggregate

import (
	"strings"

	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/schema"
)

// Op is an aggregation operator over a fact column.
type Op string

const (
	OpSum   Op = "sum"
	OpCount Op = "count"
	OpAvg   Op = "avg"
	OpMin   Op = "min"
	OpMax   Op = "max"
)

// Metric names what to aggregate: a column of a fact (or dimension) table,
// optionally restricted by a row-level equality filter such as
// account_type = "OPEX".
type Metric struct {
	Table  string
	Column string
	Op     Op

	FilterColumn string
	FilterValue  string
}

// Validate checks the metric against the schema catalog. The filter column
// must be an attribute column; a filter on a numeric fact column would
// compare against empty strings and silently match nothing.
func (m Metric) Validate() error {
	if err := schema.CheckColumn(m.Table, m.Column); err != nil {
		return err
	}
	if m.FilterColumn != "" {
		if err := schema.CheckAttrColumn(m.Table, m.FilterColumn); err != nil {
			return err
		}
	}
	return nil
}

// RowFilter narrows aggregation to rows inside a time window and matching
// conjunctive dimension filters. Values within one dimension are
// OR-combined, dimensions AND-combined. A filter on a column the table
// does not carry as an attribute has no effect, matching star-schema
// semantics for unrelated filters. Rows without a time binding (dimension
// tables, churn predictions) ignore the month window.
type RowFilter struct {
	Months map[int]bool        // nil = no time restriction
	Dims   map[string][]string // column -> allowed values
}

func (f RowFilter) matches(ds *dataset.Dataset, table string, i int) bool {
	if f.Months != nil {
		if ym := ds.RowMonth(table, i); ym != 0 && !f.Months[ym] {
			return false
		}
	}
	for column, allowed := range f.Dims {
		if len(allowed) == 0 {
			continue
		}
		if schema.CheckAttrColumn(table, column) != nil {
			continue // unrelated dimension, no effect
		}
		val := ds.Attr(table, i, column)
		ok := false
		for _, want := range allowed {
			if val == want {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// accumulator folds rows for one group.
type accumulator struct {
	sum   float64
	count int
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) value(op Op) float64 {
	if a.count == 0 {
		return 0
	}
	switch op {
	case OpCount:
		return float64(a.count)
	case OpAvg:
		return a.sum / float64(a.count)
	case OpMin:
		return a.min
	case OpMax:
		return a.max
	default:
		return a.sum
	}
}

// Total aggregates a metric over all rows passing the filter. Sums are
// deterministic in row order; empty input yields 0.
func Total(ds *dataset.Dataset, m Metric, f RowFilter) float64 {
	var acc accumulator
	n := ds.RowCount(m.Table)
	for i := 0; i < n; i++ {
		if m.FilterColumn != "" && ds.Attr(m.Table, i, m.FilterColumn) != m.FilterValue {
			continue
		}
		if !f.matches(ds, m.Table, i) {
			continue
		}
		acc.add(ds.Number(m.Table, i, m.Column))
	}
	return acc.value(m.Op)
}

// Aggregate groups rows by the grain columns and aggregates the metric per
// group. Absent groups are simply absent, never materialized as zero.
func Aggregate(ds *dataset.Dataset, m Metric, grain []string, f RowFilter) map[string]float64 {
	if len(grain) == 0 {
		return map[string]float64{"": Total(ds, m, f)}
	}

	accs := make(map[string]*accumulator)
	n := ds.RowCount(m.Table)
	parts := make([]string, len(grain))
	for i := 0; i < n; i++ {
		if m.FilterColumn != "" && ds.Attr(m.Table, i, m.FilterColumn) != m.FilterValue {
			continue
		}
		if !f.matches(ds, m.Table, i) {
			continue
		}
		for gi, col := range grain {
			parts[gi] = ds.Attr(m.Table, i, col)
		}
		key := GroupKey(parts)
		acc := accs[key]
		if acc == nil {
			acc = &accumulator{}
			accs[key] = acc
		}
		acc.add(ds.Number(m.Table, i, m.Column))
	}

	out := make(map[string]float64, len(accs))
	for key, acc := range accs {
		out[key] = acc.value(m.Op)
	}
	return out
}

// GroupKey joins grain values into a stable composite key.
func GroupKey(values []string) string {
	return strings.Join(values, "|")
}
