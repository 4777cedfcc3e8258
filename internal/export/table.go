// Package export turns evaluated measures into flat KPI matrices and loads
// them, together with the star schema itself, into a warehouse file for
// downstream reporting.
package export

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/finhub/kpi-kit/internal/band"
	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/measure"
	"github.com/finhub/kpi-kit/internal/schema"
)

// Matrix is a flat KPI table: one row per grain member, one column per
// measure. Values are raw floats; Formats carries the per-column format
// spec for rendering.
type Matrix struct {
	Name     string // warehouse table name, e.g. "kpi_monthly"
	RowLabel string // grain description, e.g. "month"
	Columns  []string
	Formats  []string
	Rows     []Row
}

// Row is one grain member with its evaluated measure values.
type Row struct {
	Label   string
	SortKey int
	Values  []float64
}

// FormatCell renders the value at column j of row i per the column format.
func (m *Matrix) FormatCell(i, j int) string {
	return measure.FormatValue(m.Rows[i].Values[j], m.Formats[j])
}

// Builder evaluates measure matrices against one dataset and registry.
// Rows are independent evaluations, so the builder fans them out across
// goroutines, one memo table per row.
type Builder struct {
	ds *dataset.Dataset
	ev *measure.Evaluator
}

// NewBuilder wires a builder to a dataset and its evaluator.
func NewBuilder(ds *dataset.Dataset, ev *measure.Evaluator) *Builder {
	return &Builder{ds: ds, ev: ev}
}

// rowSpec pairs a row label with the evaluation context producing it.
type rowSpec struct {
	label   string
	sortKey int
	ctx     measure.Context
}

func (b *Builder) build(ctx context.Context, name, rowLabel string, infos []measure.Info, specs []rowSpec) (*Matrix, error) {
	m := &Matrix{
		Name:     name,
		RowLabel: rowLabel,
		Columns:  make([]string, len(infos)),
		Formats:  make([]string, len(infos)),
		Rows:     make([]Row, len(specs)),
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		m.Columns[i] = info.Name
		m.Formats[i] = info.Format
		names[i] = info.Name
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values, err := b.ev.EvaluateAll(names, spec.ctx)
			if err != nil {
				return fmt.Errorf("row %q: %w", spec.label, err)
			}
			row := Row{Label: spec.label, SortKey: spec.sortKey, Values: make([]float64, len(names))}
			for j, n := range names {
				row.Values[j] = values[n]
			}
			m.Rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// Monthly builds one row per month bucket, each measure evaluated at that
// month's anchor.
func (b *Builder) Monthly(ctx context.Context, infos []measure.Info) (*Matrix, error) {
	months := b.ds.Months()
	specs := make([]rowSpec, len(months))
	for i, ym := range months {
		specs[i] = rowSpec{
			label:   b.ds.MonthLabel(ym),
			sortKey: ym,
			ctx:     measure.NewContext().AtKey(ym),
		}
	}
	return b.build(ctx, "kpi_monthly", "month", infos, specs)
}

// ByDimension builds one row per distinct member of a dimension column,
// measures evaluated over the full period under that member's filter.
func (b *Builder) ByDimension(ctx context.Context, infos []measure.Info, table, column string) (*Matrix, error) {
	members := b.ds.DistinctValues(table, column)
	specs := make([]rowSpec, len(members))
	for i, member := range members {
		specs[i] = rowSpec{
			label:   member,
			sortKey: i,
			ctx:     measure.NewContext().Filter(column, member),
		}
	}
	return b.build(ctx, "kpi_by_"+column, column, infos, specs)
}

// MonthlyByDimension crosses the month grain with a dimension column:
// one row per (month, member) pair.
func (b *Builder) MonthlyByDimension(ctx context.Context, infos []measure.Info, table, column string) (*Matrix, error) {
	months := b.ds.Months()
	members := b.ds.DistinctValues(table, column)
	specs := make([]rowSpec, 0, len(months)*len(members))
	for i, ym := range months {
		for j, member := range members {
			specs = append(specs, rowSpec{
				label:   b.ds.MonthLabel(ym) + " / " + member,
				sortKey: i*len(members) + j,
				ctx:     measure.NewContext().AtKey(ym).Filter(column, member),
			})
		}
	}
	return b.build(ctx, "kpi_monthly_by_"+column, "month / "+column, infos, specs)
}

// RevenueBands classifies every customer by a revenue measure evaluated
// over the full period, then rolls the population up per band: customer
// count and banded revenue total, ordered by band.
func (b *Builder) RevenueBands(ctx context.Context, revenueMeasure string, bands band.Config) (*Matrix, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}

	type bandAcc struct {
		count int
		total float64
	}
	accs := make([]bandAcc, len(bands.Labels))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	values := make([]float64, len(b.ds.Customers))
	for i := range b.ds.Customers {
		i := i
		id := strconv.FormatInt(b.ds.Customers[i].CustomerID, 10)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := b.ev.Evaluate(revenueMeasure, measure.NewContext().Filter("customer_id", id))
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, v := range values {
		_, key := bands.Band(v)
		accs[key].count++
		accs[key].total += v
	}

	m := &Matrix{
		Name:     "kpi_revenue_bands",
		RowLabel: "revenue band",
		Columns:  []string{"Customers", revenueMeasure},
		Formats:  []string{measure.FormatInteger, measure.FormatCurrency},
	}
	for key, acc := range accs {
		m.Rows = append(m.Rows, Row{
			Label:   bands.Labels[key],
			SortKey: key,
			Values:  []float64{float64(acc.count), acc.total},
		})
	}
	return m, nil
}

// Allocation distributes a pool measure over the members of a dimension
// column, month by month, weighted by a second measure. One row per
// (month, member) with the allocated share.
func (b *Builder) Allocation(ctx context.Context, poolMeasure, weightMeasure, table, column string) (*Matrix, error) {
	m := &Matrix{
		Name:     "kpi_allocated_" + column,
		RowLabel: "month / " + column,
		Columns:  []string{poolMeasure},
		Formats:  []string{measure.FormatCurrency},
	}

	months := b.ds.Months()
	type monthAlloc struct {
		ym     int
		shares map[string]float64
	}
	allocs := make([]monthAlloc, len(months))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, ym := range months {
		i, ym := i, ym
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shares, err := b.ev.AllocateOver(poolMeasure, weightMeasure, table, column, measure.NewContext().AtKey(ym))
			if err != nil {
				return fmt.Errorf("month %d: %w", ym, err)
			}
			allocs[i] = monthAlloc{ym: ym, shares: shares}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortKey := 0
	for _, a := range allocs {
		members := make([]string, 0, len(a.shares))
		for member := range a.shares {
			members = append(members, member)
		}
		sort.Strings(members)
		for _, member := range members {
			m.Rows = append(m.Rows, Row{
				Label:   b.ds.MonthLabel(a.ym) + " / " + member,
				SortKey: sortKey,
				Values:  []float64{a.shares[member]},
			})
			sortKey++
		}
	}
	return m, nil
}

// StandardMatrices builds the platform's default export set: the monthly
// P&L and activity overview, segment and category splits, the customer
// revenue bands and the monthly OPEX allocation across departments.
func (b *Builder) StandardMatrices(ctx context.Context, reg *measure.Registry) ([]*Matrix, error) {
	overview := reg.Infos("")

	var out []*Matrix
	steps := []func() (*Matrix, error){
		func() (*Matrix, error) { return b.Monthly(ctx, overview) },
		func() (*Matrix, error) { return b.ByDimension(ctx, overview, schema.TableCustomer, "segment") },
		func() (*Matrix, error) {
			return b.MonthlyByDimension(ctx, reg.Infos(measure.FolderPnL), schema.TableProduct, "category")
		},
		func() (*Matrix, error) { return b.RevenueBands(ctx, "Total Revenue", band.RevenueBands()) },
		func() (*Matrix, error) {
			return b.Allocation(ctx, "OPEX Total", "Total Revenue", schema.TableProduct, "category")
		},
	}
	for _, step := range steps {
		m, err := step()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
