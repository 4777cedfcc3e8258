package measure

import (
	"fmt"
	"strings"
)

// UnknownMeasureError reports an expression referencing a measure name that
// was never registered. Fatal at first resolution.
type UnknownMeasureError struct {
	Name     string
	Referrer string // measure whose expression holds the reference, if any
}

func (e *UnknownMeasureError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("unknown measure reference [%s] in %q", e.Name, e.Referrer)
	}
	return fmt.Sprintf("unknown measure reference [%s]", e.Name)
}

// CycleError reports a dependency cycle among registered measures, naming
// every measure on the cycle.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("measure dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}
