package measure

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/schema"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testDataset is a three-month star schema small enough to verify measure
// values by hand: Jan revenue 150, Feb revenue 200, Mar empty.
func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	churn := day(2023, 6, 1)
	ds := &dataset.Dataset{
		Time: []schema.TimeBucket{
			{DateKey: 20240115, Date: day(2024, 1, 15), Day: 15, Month: 1, Quarter: 1, Year: 2024},
			{DateKey: 20240215, Date: day(2024, 2, 15), Day: 15, Month: 2, Quarter: 1, Year: 2024},
			{DateKey: 20240315, Date: day(2024, 3, 15), Day: 15, Month: 3, Quarter: 1, Year: 2024},
		},
		Customers: []schema.Customer{
			{CustomerID: 1, Segment: "Enterprise", Region: "EU", RiskScore: 700, AcquisitionDate: day(2022, 1, 1), IsActive: true},
			{CustomerID: 2, Segment: "SMB", Region: "US", RiskScore: 650, AcquisitionDate: day(2022, 6, 1), IsActive: true},
			{CustomerID: 3, Segment: "Consumer", Region: "EU", RiskScore: 500, AcquisitionDate: day(2021, 1, 1), ChurnDate: &churn, IsActive: false},
		},
		Products: []schema.Product{
			{ProductID: 1, Name: "Alpha", Category: "Software", BasePrice: 50, DirectCostRatio: 0.4},
			{ProductID: 2, Name: "Beta", Category: "Hardware", BasePrice: 80, DirectCostRatio: 0.6},
		},
		Accounts: []schema.Account{
			{AccountID: 4000, Name: "Product Revenue", Type: schema.AccountRevenue, Group: "Revenue", ReportingLine: "Net Revenue"},
			{AccountID: 5000, Name: "Cost of Goods Sold", Type: schema.AccountCOGS, Group: "COGS", ReportingLine: "Gross Margin"},
			{AccountID: 6000, Name: "Salaries", Type: schema.AccountOPEX, Group: "OPEX", ReportingLine: "EBIT"},
		},
		CostCenters: []schema.CostCenter{
			{CostCenterID: 1, Department: "Engineering", Country: "DE", Manager: "M1"},
		},
		Transactions: []schema.Transaction{
			{TransactionID: 1, DateKey: 20240115, CustomerID: 1, ProductID: 1, Quantity: 2, NetRevenue: 100, DirectCost: 40, Channel: "web"},
			{TransactionID: 2, DateKey: 20240115, CustomerID: 2, ProductID: 2, Quantity: 1, NetRevenue: 50, DirectCost: 30, Channel: "direct"},
			{TransactionID: 3, DateKey: 20240215, CustomerID: 1, ProductID: 1, Quantity: 1, NetRevenue: 200, DirectCost: 80, Channel: "web"},
		},
		Postings: []schema.FinancialPosting{
			{PostingID: 1, DateKey: 20240115, AccountID: 4000, Amount: 150, Currency: "EUR"},
			{PostingID: 2, DateKey: 20240115, AccountID: 5000, Amount: -70, Currency: "EUR"},
			{PostingID: 3, DateKey: 20240115, AccountID: 6000, CostCenterID: 1, Amount: -30, Currency: "EUR"},
			{PostingID: 4, DateKey: 20240215, AccountID: 4000, Amount: 200, Currency: "EUR"},
			{PostingID: 5, DateKey: 20240215, AccountID: 5000, Amount: -80, Currency: "EUR"},
			{PostingID: 6, DateKey: 20240215, AccountID: 6000, CostCenterID: 1, Amount: -50, Currency: "EUR"},
		},
		Churn: []schema.ChurnPrediction{
			{CustomerID: 1, ChurnProbability: 0.2, ChurnLabel: 0, RunID: "r1", RunDate: day(2024, 3, 31)},
			{CustomerID: 2, ChurnProbability: 0.5, ChurnLabel: 1, RunID: "r1", RunDate: day(2024, 3, 31)},
			{CustomerID: 3, ChurnProbability: 0.9, ChurnLabel: 1, RunID: "r1", RunDate: day(2024, 3, 31)},
		},
	}
	if err := ds.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return ds
}

func standardEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterStandardMeasures(reg); err != nil {
		t.Fatalf("RegisterStandardMeasures failed: %v", err)
	}
	return NewEvaluator(testDataset(t), reg)
}

func evalOne(t *testing.T, ev *Evaluator, name string, ctx Context) float64 {
	t.Helper()
	v, err := ev.Evaluate(name, ctx)
	if err != nil {
		t.Fatalf("Evaluate %s failed: %v", name, err)
	}
	return v
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluateBaseMeasure(t *testing.T) {
	ev := standardEvaluator(t)

	if got := evalOne(t, ev, "Total Revenue", NewContext()); got != 350 {
		t.Errorf("Expected Total Revenue 350, got %g", got)
	}
	if got := evalOne(t, ev, "Total Revenue", NewContext().At(2024, 1)); got != 150 {
		t.Errorf("Expected Jan revenue 150, got %g", got)
	}
}

func TestEvaluateDependencyChain(t *testing.T) {
	ev := standardEvaluator(t)
	ctx := NewContext().At(2024, 1)

	if got := evalOne(t, ev, "Gross Margin", ctx); got != 80 {
		t.Errorf("Expected Gross Margin 80, got %g", got)
	}
	if got := evalOne(t, ev, "Gross Margin %", ctx); !approx(got, 80.0/150) {
		t.Errorf("Expected Gross Margin %% %g, got %g", 80.0/150, got)
	}
	// Operating Profit walks three levels: GM - OPEX, OPEX sign-flipped.
	if got := evalOne(t, ev, "Operating Profit", ctx); got != 50 {
		t.Errorf("Expected Operating Profit 50, got %g", got)
	}
}

func TestOpexSignFlip(t *testing.T) {
	ev := standardEvaluator(t)

	if got := evalOne(t, ev, "OPEX Total", NewContext().At(2024, 1)); got != 30 {
		t.Errorf("Expected OPEX Total 30 (positive magnitude), got %g", got)
	}
}

func TestSafeDivideOnEmptyWindow(t *testing.T) {
	ev := standardEvaluator(t)
	ctx := NewContext().At(2024, 3) // March has no transactions

	if got := evalOne(t, ev, "Total Revenue", ctx); got != 0 {
		t.Errorf("Expected empty-month revenue 0, got %g", got)
	}
	// Ratio over an empty window divides by zero and must yield 0.
	if got := evalOne(t, ev, "Gross Margin %", ctx); got != 0 {
		t.Errorf("Expected Gross Margin %% 0 on empty window, got %g", got)
	}
	if got := evalOne(t, ev, "Avg Transaction Value", ctx); got != 0 {
		t.Errorf("Expected Avg Transaction Value 0 on empty window, got %g", got)
	}
}

func TestSafeDivide(t *testing.T) {
	if got := SafeDivide(10, 0); got != 0 {
		t.Errorf("SafeDivide(10, 0) = %g, want 0", got)
	}
	if got := SafeDivide(10, 4); got != 2.5 {
		t.Errorf("SafeDivide(10, 4) = %g, want 2.5", got)
	}
}

func TestChurnMeasures(t *testing.T) {
	ev := standardEvaluator(t)
	ctx := NewContext()

	if got := evalOne(t, ev, "Active Customers", ctx); got != 2 {
		t.Errorf("Expected 2 active customers, got %g", got)
	}
	if got := evalOne(t, ev, "Churned Customers", ctx); got != 1 {
		t.Errorf("Expected 1 churned customer, got %g", got)
	}
	if got := evalOne(t, ev, "Churn Rate", ctx); !approx(got, 1.0/3) {
		t.Errorf("Expected Churn Rate 1/3, got %g", got)
	}

	// Customer counts have no time binding: an anchored context must not
	// change them.
	if got := evalOne(t, ev, "Churn Rate", NewContext().At(2024, 2)); !approx(got, 1.0/3) {
		t.Errorf("Expected anchored Churn Rate 1/3, got %g", got)
	}
}

func TestChurnRateAllChurned(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterStandardMeasures(reg); err != nil {
		t.Fatal(err)
	}

	churn := day(2023, 1, 1)
	ds := testDataset(t)
	for i := range ds.Customers {
		ds.Customers[i].IsActive = false
		ds.Customers[i].ChurnDate = &churn
	}
	if err := ds.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	ev := NewEvaluator(ds, reg)
	if got := evalOne(t, ev, "Churn Rate", NewContext()); got != 1 {
		t.Errorf("Expected Churn Rate 1.0 with every customer churned, got %g", got)
	}
	// ARPC divides by zero active customers.
	if got := evalOne(t, ev, "ARPC", NewContext()); got != 0 {
		t.Errorf("Expected ARPC 0 with no active customers, got %g", got)
	}
}

func TestRiskWeightedExposure(t *testing.T) {
	ev := standardEvaluator(t)

	// 100*0.2 + 50*0.5 + 200*0.2 = 85
	if got := evalOne(t, ev, "Churn Risk Exposure", NewContext()); !approx(got, 85) {
		t.Errorf("Expected exposure 85, got %g", got)
	}
}

func TestDimensionContext(t *testing.T) {
	ev := standardEvaluator(t)

	ctx := NewContext().Filter("category", "Software")
	if got := evalOne(t, ev, "Total Revenue", ctx); got != 300 {
		t.Errorf("Expected Software revenue 300, got %g", got)
	}

	// The same filter must not zero the customer population: dim_customer
	// carries no category column, so the filter is unrelated there.
	if got := evalOne(t, ev, "Active Customers", ctx); got != 2 {
		t.Errorf("Expected 2 active customers under category filter, got %g", got)
	}
}

func TestTimeIntelligenceWindows(t *testing.T) {
	ev := standardEvaluator(t)

	tests := []struct {
		name string
		ctx  Context
		want float64
	}{
		{"YTD Feb", NewContext().At(2024, 2).YearToDate(), 350},
		{"QTD Feb", NewContext().At(2024, 2).QuarterToDate(), 350},
		{"MTD Feb", NewContext().At(2024, 2).MonthToDate(), 200},
		{"Rolling 1 at Feb", NewContext().At(2024, 2).Rolling(1), 200},
		{"Rolling 2 at Feb", NewContext().At(2024, 2).Rolling(2), 350},
		{"Rolling 12 partial", NewContext().At(2024, 3).Rolling(12), 350},
	}
	for _, tt := range tests {
		if got := evalOne(t, ev, "Total Revenue", tt.ctx); got != tt.want {
			t.Errorf("%s: expected %g, got %g", tt.name, tt.want, got)
		}
	}
}

func TestEvaluateAllSharesSubMeasures(t *testing.T) {
	ev := standardEvaluator(t)
	ctx := NewContext().At(2024, 1)

	values, err := ev.EvaluateAll([]string{"Total Revenue", "Gross Margin", "Gross Margin %"}, ctx)
	if err != nil {
		t.Fatalf("EvaluateAll failed: %v", err)
	}
	if values["Total Revenue"] != 150 || values["Gross Margin"] != 80 {
		t.Errorf("Unexpected values: %v", values)
	}
	if !approx(values["Gross Margin %"], 80.0/150) {
		t.Errorf("Expected Gross Margin %% %g, got %g", 80.0/150, values["Gross Margin %"])
	}
}

func TestEvaluateUnknownMeasure(t *testing.T) {
	ev := standardEvaluator(t)
	_, err := ev.Evaluate("No Such KPI", NewContext())
	if err == nil {
		t.Fatal("Expected error for unknown measure")
	}
	var uerr *UnknownMeasureError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UnknownMeasureError, got %T", err)
	}
}

func TestEvaluateCycleSurfacesOnce(t *testing.T) {
	reg := NewRegistry()
	mustDefine(t, reg, "A", `[B] + 1`, "")
	mustDefine(t, reg, "B", `[A] + 1`, "")

	ev := NewEvaluator(testDataset(t), reg)
	_, err := ev.Evaluate("A", NewContext())
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected CycleError, got %v", err)
	}
}

func TestAllocateOver(t *testing.T) {
	ev := standardEvaluator(t)
	ctx := NewContext().At(2024, 1)

	shares, err := ev.AllocateOver("OPEX Total", "Total Revenue", schema.TableProduct, "category", ctx)
	if err != nil {
		t.Fatalf("AllocateOver failed: %v", err)
	}

	// Jan OPEX 30 split by revenue: Software 100, Hardware 50.
	if !approx(shares["Software"], 20) {
		t.Errorf("Expected Software share 20, got %g", shares["Software"])
	}
	if !approx(shares["Hardware"], 10) {
		t.Errorf("Expected Hardware share 10, got %g", shares["Hardware"])
	}

	var sum float64
	for _, v := range shares {
		sum += v
	}
	if !approx(sum, 30) {
		t.Errorf("Allocations must conserve the pool: sum %g, want 30", sum)
	}
}

func TestAllocateOverEmptyMonth(t *testing.T) {
	ev := standardEvaluator(t)
	ctx := NewContext().At(2024, 3) // no transactions, no OPEX

	shares, err := ev.AllocateOver("OPEX Total", "Total Revenue", schema.TableProduct, "category", ctx)
	if err != nil {
		t.Fatalf("AllocateOver failed: %v", err)
	}
	for member, v := range shares {
		if v != 0 {
			t.Errorf("Expected zero allocation for %s, got %g", member, v)
		}
	}
}
