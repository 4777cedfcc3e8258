package aggregate

import (
	"testing"
	"time"

	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/schema"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

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

func TestTotalSum(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}

	if got := Total(ds, m, RowFilter{}); got != 350 {
		t.Errorf("Expected total revenue 350, got %g", got)
	}
}

func TestTotalOps(t *testing.T) {
	ds := testDataset(t)

	tests := []struct {
		op   Op
		want float64
	}{
		{OpSum, 350},
		{OpCount, 3},
		{OpAvg, 350.0 / 3},
		{OpMin, 50},
		{OpMax, 200},
	}
	for _, tt := range tests {
		m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: tt.op}
		if got := Total(ds, m, RowFilter{}); got != tt.want {
			t.Errorf("Op %s: expected %g, got %g", tt.op, tt.want, got)
		}
	}
}

func TestTotalEmptyIsZero(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}
	f := RowFilter{Months: map[int]bool{202412: true}}

	if got := Total(ds, m, f); got != 0 {
		t.Errorf("Expected 0 for empty window, got %g", got)
	}
}

func TestTotalMonthWindow(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}

	jan := RowFilter{Months: map[int]bool{202401: true}}
	if got := Total(ds, m, jan); got != 150 {
		t.Errorf("Expected Jan revenue 150, got %g", got)
	}

	feb := RowFilter{Months: map[int]bool{202402: true}}
	if got := Total(ds, m, feb); got != 200 {
		t.Errorf("Expected Feb revenue 200, got %g", got)
	}
}

func TestMetricFilter(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableFinancial, Column: "amount", Op: OpSum,
		FilterColumn: "account_type", FilterValue: "OPEX"}

	if got := Total(ds, m, RowFilter{}); got != -80 {
		t.Errorf("Expected OPEX sum -80, got %g", got)
	}
}

func TestDimensionFilter(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}

	// Filter on a star-joined customer attribute.
	f := RowFilter{Dims: map[string][]string{"segment": {"Enterprise"}}}
	if got := Total(ds, m, f); got != 300 {
		t.Errorf("Expected Enterprise revenue 300, got %g", got)
	}

	// Values within one dimension OR-combine.
	f = RowFilter{Dims: map[string][]string{"segment": {"Enterprise", "SMB"}}}
	if got := Total(ds, m, f); got != 350 {
		t.Errorf("Expected Enterprise+SMB revenue 350, got %g", got)
	}

	// Dimensions AND-combine.
	f = RowFilter{Dims: map[string][]string{
		"segment":  {"Enterprise"},
		"category": {"Hardware"},
	}}
	if got := Total(ds, m, f); got != 0 {
		t.Errorf("Expected 0 for Enterprise+Hardware, got %g", got)
	}
}

func TestUnrelatedFilterHasNoEffect(t *testing.T) {
	ds := testDataset(t)

	// A product filter does not constrain the customer dimension.
	m := Metric{Table: schema.TableCustomer, Column: "customer_id", Op: OpCount,
		FilterColumn: "is_active", FilterValue: "1"}
	f := RowFilter{Dims: map[string][]string{"category": {"Software"}}}

	if got := Total(ds, m, f); got != 2 {
		t.Errorf("Expected 2 active customers under unrelated filter, got %g", got)
	}
}

func TestTimeUnboundTableIgnoresWindow(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableChurn, Column: "churn_probability", Op: OpAvg}
	f := RowFilter{Months: map[int]bool{202401: true}}

	want := (0.2 + 0.5 + 0.9) / 3
	if got := Total(ds, m, f); got != want {
		t.Errorf("Expected avg churn probability %g, got %g", want, got)
	}
}

func TestAggregateByGrain(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}

	got := Aggregate(ds, m, []string{"category"}, RowFilter{})
	if len(got) != 2 {
		t.Fatalf("Expected 2 groups, got %d: %v", len(got), got)
	}
	if got["Software"] != 300 {
		t.Errorf("Expected Software=300, got %g", got["Software"])
	}
	if got["Hardware"] != 50 {
		t.Errorf("Expected Hardware=50, got %g", got["Hardware"])
	}
}

func TestAggregateAbsentGroupsAbsent(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}
	f := RowFilter{Months: map[int]bool{202402: true}}

	got := Aggregate(ds, m, []string{"category"}, f)
	if _, ok := got["Hardware"]; ok {
		t.Error("Hardware had no Feb rows and must be absent, not zero")
	}
	if got["Software"] != 200 {
		t.Errorf("Expected Software=200, got %g", got["Software"])
	}
}

func TestMetricValidate(t *testing.T) {
	good := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}
	if err := good.Validate(); err != nil {
		t.Errorf("Valid metric rejected: %v", err)
	}

	bad := Metric{Table: schema.TableTransaction, Column: "margin", Op: OpSum}
	if err := bad.Validate(); err == nil {
		t.Error("Expected validation error for unknown column")
	}

	badFilter := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum,
		FilterColumn: "account_type"}
	if err := badFilter.Validate(); err == nil {
		t.Error("Expected validation error for filter column from another table")
	}

	numFilter := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum,
		FilterColumn: "quantity", FilterValue: "2"}
	if err := numFilter.Validate(); err == nil {
		t.Error("Expected validation error for numeric filter column")
	}
}

func TestNumericDimensionFilterHasNoEffect(t *testing.T) {
	ds := testDataset(t)
	m := Metric{Table: schema.TableTransaction, Column: "net_revenue", Op: OpSum}

	// quantity is a measure input, not an attribute; filtering on it must
	// behave like an unrelated filter instead of matching nothing.
	f := RowFilter{Dims: map[string][]string{"quantity": {"2"}}}
	if got := Total(ds, m, f); got != 350 {
		t.Errorf("Expected numeric column filter to have no effect, got %g", got)
	}
}
