package schema

import (
	"fmt"
	"time"
)

// AccountType classifies a GL account in the chart of accounts.
type AccountType string

const (
	AccountRevenue AccountType = "Revenue"
	AccountCOGS    AccountType = "COGS"
	AccountOPEX    AccountType = "OPEX"
	AccountOther   AccountType = "Other"
)

// TimeBucket is one row of the daily time dimension.
type TimeBucket struct {
	DateKey    int // YYYYMMDD
	Date       time.Time
	Day        int
	Month      int
	Quarter    int
	Year       int
	Weekday    int // Monday=0
	IsMonthEnd bool
}

// YearMonthKey returns the sortable month key (year*100 + month).
func (t TimeBucket) YearMonthKey() int {
	return t.Year*100 + t.Month
}

// Label returns a display label like "Jan 2024".
func (t TimeBucket) Label() string {
	return t.Date.Format("Jan 2006")
}

// Customer is one row of the customer dimension.
type Customer struct {
	CustomerID      int64
	Segment         string
	Region          string
	RiskScore       float64
	AcquisitionDate time.Time
	ChurnDate       *time.Time // nil = never churned
	IsActive        bool
}

// Validate checks the dimension invariant: a churn date implies inactive.
func (c Customer) Validate() error {
	if c.ChurnDate != nil && c.IsActive {
		return fmt.Errorf("customer %d has churn_date but is_active=true", c.CustomerID)
	}
	return nil
}

// Product is one row of the product dimension.
type Product struct {
	ProductID       int64
	Name            string
	Category        string
	BasePrice       float64
	DirectCostRatio float64 // fraction of revenue, in [0,1]
}

// Account is one row of the chart-of-accounts dimension.
type Account struct {
	AccountID     int64
	Name          string
	Type          AccountType
	Group         string
	ReportingLine string
}

// CostCenter is one row of the cost center dimension.
type CostCenter struct {
	CostCenterID int64
	Department   string
	Country      string
	Manager      string
}

// Transaction is one row of the transaction fact. Immutable once produced.
type Transaction struct {
	TransactionID int64
	DateKey       int
	CustomerID    int64
	ProductID     int64
	Quantity      int
	NetRevenue    float64
	DirectCost    float64
	Channel       string
}

// FinancialPosting is one GL posting. OPEX and COGS amounts are stored
// negative by convention.
type FinancialPosting struct {
	PostingID    int64
	DateKey      int
	AccountID    int64
	CostCenterID int64 // 0 = no cost center (revenue postings)
	Amount       float64
	Currency     string
}

// ChurnPrediction is an externally produced per-customer churn score,
// consumed read-only by measure evaluation.
type ChurnPrediction struct {
	CustomerID       int64
	ChurnProbability float64 // in [0,1]
	ChurnLabel       int     // 0 or 1
	RunID            string
	RunDate          time.Time
}
