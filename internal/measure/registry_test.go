package measure

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustDefine(t *testing.T, r *Registry, name, expr, folder string) {
	t.Helper()
	if err := r.Define(name, expr, FormatNumber, folder); err != nil {
		t.Fatalf("Define %s failed: %v", name, err)
	}
}

func TestDefineAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Define("Total Revenue", `SUM(fact_transactions.net_revenue)`, FormatCurrency, FolderPnL); err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	def, err := r.Get("Total Revenue")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if def.Expression != `SUM(fact_transactions.net_revenue)` {
		t.Errorf("Unexpected expression %q", def.Expression)
	}
	if def.Format != FormatCurrency || def.Folder != FolderPnL {
		t.Errorf("Unexpected metadata: %+v", def)
	}
}

func TestGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("Nope")
	if err == nil {
		t.Fatal("Expected error for unknown measure")
	}
	var uerr *UnknownMeasureError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UnknownMeasureError, got %T", err)
	}
	if uerr.Name != "Nope" {
		t.Errorf("Unexpected name %q", uerr.Name)
	}
}

func TestDefineRejectsBadExpression(t *testing.T) {
	r := NewRegistry()
	if err := r.Define("Bad", `SUM(fact_transactions.margin)`, FormatNumber, ""); err == nil {
		t.Fatal("Expected error at registration, not evaluation")
	}
	if r.Len() != 0 {
		t.Errorf("Failed Define must not register; got %d measures", r.Len())
	}
}

func TestRedefineIsIdempotent(t *testing.T) {
	r := NewRegistry()
	measures := []string{"A", "B", "C"}
	for _, name := range measures {
		if err := r.Define(name, `SUM(fact_transactions.net_revenue)`, FormatCurrency, FolderPnL); err != nil {
			t.Fatalf("Define %s failed: %v", name, err)
		}
	}

	listNames := func() []string {
		var names []string
		for _, d := range r.List("") {
			names = append(names, d.Name)
		}
		return names
	}
	before := listNames()

	// Redefining B must keep its position and change nothing observable.
	if err := r.Define("B", `SUM(fact_transactions.net_revenue)`, FormatCurrency, FolderPnL); err != nil {
		t.Fatalf("Redefine failed: %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Expected 3 measures after redefine, got %d", r.Len())
	}
	if after := listNames(); !reflect.DeepEqual(before, after) {
		t.Errorf("Listing order changed: %v -> %v", before, after)
	}
}

func TestRedefineReplacesExpression(t *testing.T) {
	r := NewRegistry()
	if err := r.Define("X", `1`, FormatNumber, ""); err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	if err := r.Define("X", `2`, FormatNumber, ""); err != nil {
		t.Fatalf("Redefine failed: %v", err)
	}
	def, _ := r.Get("X")
	if def.Expression != `2` {
		t.Errorf("Expected redefined expression, got %q", def.Expression)
	}
}

func TestListByFolder(t *testing.T) {
	r := NewRegistry()
	mustDefine(t, r, "A", `1`, FolderPnL)
	mustDefine(t, r, "B", `2`, FolderRisk)
	mustDefine(t, r, "C", `3`, FolderPnL)

	pnl := r.List(FolderPnL)
	if len(pnl) != 2 || pnl[0].Name != "A" || pnl[1].Name != "C" {
		t.Errorf("Unexpected P&L listing: %+v", pnl)
	}
	if len(r.List("")) != 3 {
		t.Errorf("Expected full listing of 3")
	}
}

func TestResolveUnknownReference(t *testing.T) {
	r := NewRegistry()
	mustDefine(t, r, "A", `[Missing] * 2`, "")

	err := r.Resolve()
	if err == nil {
		t.Fatal("Expected resolve error")
	}
	var uerr *UnknownMeasureError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UnknownMeasureError, got %T", err)
	}
	if uerr.Name != "Missing" || uerr.Referrer != "A" {
		t.Errorf("Unexpected error detail: %+v", uerr)
	}
}

func TestResolveCycle(t *testing.T) {
	r := NewRegistry()
	mustDefine(t, r, "A", `[B] + 1`, "")
	mustDefine(t, r, "B", `[A] + 1`, "")

	err := r.Resolve()
	if err == nil {
		t.Fatal("Expected cycle error")
	}
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected CycleError, got %T: %v", err, err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "A") || !strings.Contains(msg, "B") {
		t.Errorf("Cycle error must name the cycle members: %q", msg)
	}
}

func TestResolveLongerCycle(t *testing.T) {
	r := NewRegistry()
	mustDefine(t, r, "A", `[B]`, "")
	mustDefine(t, r, "B", `[C]`, "")
	mustDefine(t, r, "C", `[A]`, "")
	mustDefine(t, r, "D", `[A] * 2`, "") // depends on the cycle, not in it

	var cerr *CycleError
	if err := r.Resolve(); !errors.As(err, &cerr) {
		t.Fatalf("Expected CycleError, got %v", err)
	}
	for _, name := range []string{"A", "B", "C"} {
		found := false
		for _, member := range cerr.Cycle {
			if member == name {
				found = true
			}
		}
		if !found {
			t.Errorf("Cycle %v missing member %s", cerr.Cycle, name)
		}
	}
}

func TestResolveCycleNamesOnlyCycleMembers(t *testing.T) {
	r := NewRegistry()
	mustDefine(t, r, "Base", `1`, "")
	mustDefine(t, r, "B", `[C] + [Base]`, "") // on the cycle, also uses an acyclic leaf
	mustDefine(t, r, "C", `[B]`, "")

	var cerr *CycleError
	if err := r.Resolve(); !errors.As(err, &cerr) {
		t.Fatalf("Expected CycleError, got %v", err)
	}
	for _, member := range cerr.Cycle {
		if member == "Base" {
			t.Fatalf("Cycle %v names a measure outside the cycle", cerr.Cycle)
		}
	}
	if n := len(cerr.Cycle); n < 3 || cerr.Cycle[0] != cerr.Cycle[n-1] {
		t.Errorf("Cycle %v must close back on its first member", cerr.Cycle)
	}
}

func TestResolveAcyclicCatalog(t *testing.T) {
	r := NewRegistry()
	if err := RegisterStandardMeasures(r); err != nil {
		t.Fatalf("RegisterStandardMeasures failed: %v", err)
	}
	if err := r.Resolve(); err != nil {
		t.Errorf("Standard catalog must resolve: %v", err)
	}
}

func TestStandardCatalogIdempotent(t *testing.T) {
	r := NewRegistry()
	if err := RegisterStandardMeasures(r); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	n := r.Len()
	first := r.List("")

	if err := RegisterStandardMeasures(r); err != nil {
		t.Fatalf("Second registration failed: %v", err)
	}
	if r.Len() != n {
		t.Errorf("Expected %d measures after re-registration, got %d", n, r.Len())
	}
	second := r.List("")
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Errorf("Order changed at %d: %s -> %s", i, first[i].Name, second[i].Name)
		}
	}
}
