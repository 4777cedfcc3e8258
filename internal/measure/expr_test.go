package measure

import (
	"errors"
	"reflect"
	"testing"

	"github.com/finhub/kpi-kit/internal/schema"
)

func TestParseDependencies(t *testing.T) {
	tests := []struct {
		expr string
		deps []string
	}{
		{`SUM(fact_transactions.net_revenue)`, nil},
		{`[Total Revenue] - [Direct Cost]`, []string{"Direct Cost", "Total Revenue"}},
		{`DIVIDE([Gross Margin], [Total Revenue])`, []string{"Gross Margin", "Total Revenue"}},
		{`[A] + [A] * [A]`, []string{"A"}},
		{`1.5 * 2`, nil},
	}
	for _, tt := range tests {
		_, deps, err := parseExpression(tt.expr)
		if err != nil {
			t.Errorf("parse %q failed: %v", tt.expr, err)
			continue
		}
		if !reflect.DeepEqual(deps, tt.deps) {
			t.Errorf("parse %q: deps %v, want %v", tt.expr, deps, tt.deps)
		}
	}
}

func TestParseAggregateFilter(t *testing.T) {
	root, _, err := parseExpression(`SUM(fact_financials.amount, account_type = "OPEX")`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	agg, ok := root.(aggNode)
	if !ok {
		t.Fatalf("Expected aggNode, got %T", root)
	}
	if agg.metric.FilterColumn != "account_type" || agg.metric.FilterValue != "OPEX" {
		t.Errorf("Unexpected filter: %+v", agg.metric)
	}
}

func TestParseNumericFilterLiteral(t *testing.T) {
	root, _, err := parseExpression(`COUNT(dim_customer.customer_id, is_active = 1)`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	agg := root.(aggNode)
	if agg.metric.FilterValue != "1" {
		t.Errorf("Expected filter value \"1\", got %q", agg.metric.FilterValue)
	}
}

func TestParseSchemaViolation(t *testing.T) {
	_, _, err := parseExpression(`SUM(fact_transactions.margin)`)
	if err == nil {
		t.Fatal("Expected schema violation")
	}
	var v *schema.Violation
	if !errors.As(err, &v) {
		t.Fatalf("Expected *schema.Violation, got %T: %v", err, err)
	}
	if v.Ref != "fact_transactions.margin" {
		t.Errorf("Unexpected ref %q", v.Ref)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		``,
		`SUM(fact_transactions.net_revenue`,
		`[Unterminated`,
		`[]`,
		`MEDIAN(fact_transactions.net_revenue)`,
		`1 + + 2`,
		`[A] [B]`,
		`DIVIDE([A])`,
		`SUM(fact_transactions.net_revenue, quantity = 2)`,
	}
	for _, expr := range bad {
		if _, _, err := parseExpression(expr); err == nil {
			t.Errorf("Expected parse error for %q", expr)
		}
	}
}

func TestParsePrecedence(t *testing.T) {
	// 2 + 3 * 4 must parse as 2 + (3 * 4).
	root, _, err := parseExpression(`2 + 3 * 4`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	bin, ok := root.(binNode)
	if !ok || bin.op != '+' {
		t.Fatalf("Expected top-level '+', got %+v", root)
	}
	right, ok := bin.right.(binNode)
	if !ok || right.op != '*' {
		t.Errorf("Expected right side '*', got %+v", bin.right)
	}
}

func TestParseUnaryMinus(t *testing.T) {
	root, _, err := parseExpression(`-1 * SUM(fact_financials.amount, account_type = "OPEX")`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := root.(binNode); !ok {
		t.Fatalf("Expected binNode, got %T", root)
	}
}
