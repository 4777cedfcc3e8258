package measure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/finhub/kpi-kit/internal/aggregate"
)

// WindowKind selects the time-intelligence transform of a context.
type WindowKind int

const (
	WindowAll WindowKind = iota
	WindowYTD
	WindowQTD
	WindowMTD
	WindowRolling
)

// Context is an immutable combination of a time window and dimension
// filters under which a measure is evaluated. The zero value places no
// restriction at all. Every transform returns a new value; applying a
// context never mutates fact data.
type Context struct {
	anchor int // year_month_key of the target bucket; 0 = unanchored
	window WindowKind
	span   int // rolling window length in months
	dims   map[string][]string
}

// NewContext returns the unrestricted context.
func NewContext() Context {
	return Context{}
}

// At anchors the context at a month bucket. An anchored context without a
// further transform covers exactly that month.
func (c Context) At(year, month int) Context {
	c.anchor = year*100 + month
	return c
}

// AtKey anchors the context at a year_month_key.
func (c Context) AtKey(ym int) Context {
	c.anchor = ym
	return c
}

// YearToDate narrows the window to the anchor's year, up to and including
// the anchor month.
func (c Context) YearToDate() Context {
	c.window = WindowYTD
	return c
}

// QuarterToDate narrows the window to the anchor's quarter, up to and
// including the anchor month.
func (c Context) QuarterToDate() Context {
	c.window = WindowQTD
	return c
}

// MonthToDate narrows the window to the anchor month itself.
func (c Context) MonthToDate() Context {
	c.window = WindowMTD
	return c
}

// Rolling covers the n month buckets ending at, and including, the anchor,
// ordered by year_month_key. With fewer than n buckets of history the
// window holds whatever exists: a partial window, never zero-padded.
func (c Context) Rolling(n int) Context {
	c.window = WindowRolling
	c.span = n
	return c
}

// Filter adds a dimension filter. Values within one dimension OR-combine;
// separate dimensions AND-combine with each other and with the time window.
func (c Context) Filter(column string, values ...string) Context {
	dims := make(map[string][]string, len(c.dims)+1)
	for k, v := range c.dims {
		dims[k] = v
	}
	dims[column] = append([]string(nil), values...)
	c.dims = dims
	return c
}

// Anchor returns the anchor year_month_key, 0 when unanchored.
func (c Context) Anchor() int {
	return c.anchor
}

// Months materializes the window as a year_month_key set against the
// available month buckets. nil means no time restriction.
func (c Context) Months(available []int) map[int]bool {
	if c.anchor == 0 {
		return nil
	}
	year := c.anchor / 100
	month := c.anchor % 100

	months := make(map[int]bool)
	switch c.window {
	case WindowYTD:
		for m := 1; m <= month; m++ {
			months[year*100+m] = true
		}
	case WindowQTD:
		start := ((month-1)/3)*3 + 1
		for m := start; m <= month; m++ {
			months[year*100+m] = true
		}
	case WindowRolling:
		var inRange []int
		for _, ym := range available {
			if ym <= c.anchor {
				inRange = append(inRange, ym)
			}
		}
		if len(inRange) > c.span {
			inRange = inRange[len(inRange)-c.span:]
		}
		for _, ym := range inRange {
			months[ym] = true
		}
	default: // WindowAll and WindowMTD: the anchor bucket itself
		months[c.anchor] = true
	}
	return months
}

// RowFilter converts the context into the Base Aggregator's row filter.
func (c Context) RowFilter(available []int) aggregate.RowFilter {
	return aggregate.RowFilter{
		Months: c.Months(available),
		Dims:   c.dims,
	}
}

// Key returns a stable identity for memo tables. Contexts with equal keys
// select the same rows.
func (c Context) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "w%d:a%d:n%d", c.window, c.anchor, c.span)
	if len(c.dims) > 0 {
		cols := make([]string, 0, len(c.dims))
		for col := range c.dims {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			vals := append([]string(nil), c.dims[col]...)
			sort.Strings(vals)
			fmt.Fprintf(&b, ":%s=%s", col, strings.Join(vals, ","))
		}
	}
	return b.String()
}
