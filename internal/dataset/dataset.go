package dataset

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/finhub/kpi-kit/internal/schema"
)

// Dataset is an immutable in-memory star schema: dimension and fact slices
// plus the lookup indexes measure evaluation needs. Build it once with
// Finalize; after that it is read-only and safe for concurrent readers.
type Dataset struct {
	Time        []schema.TimeBucket
	Customers   []schema.Customer
	Products    []schema.Product
	Accounts    []schema.Account
	CostCenters []schema.CostCenter

	Transactions []schema.Transaction
	Postings     []schema.FinancialPosting
	Churn        []schema.ChurnPrediction

	monthByDateKey map[int]int // date_key -> year_month_key
	customerByID   map[int64]*schema.Customer
	productByID    map[int64]*schema.Product
	accountByID    map[int64]*schema.Account
	costCenterByID map[int64]*schema.CostCenter
	churnProbByID  map[int64]float64
	months         []int // distinct year_month_keys, ascending
	monthLabels    map[int]string
}

// Finalize builds the indexes and checks dimension invariants. Call once
// after the tables are loaded; the dataset must not change afterwards.
func (d *Dataset) Finalize() error {
	d.monthByDateKey = make(map[int]int, len(d.Time))
	d.monthLabels = make(map[int]string)
	d.months = nil
	monthSeen := make(map[int]bool)
	prevKey := 0
	for _, t := range d.Time {
		ym := t.YearMonthKey()
		d.monthByDateKey[t.DateKey] = ym
		if !monthSeen[ym] {
			monthSeen[ym] = true
			d.months = append(d.months, ym)
			d.monthLabels[ym] = t.Label()
		}
		if t.DateKey <= prevKey {
			return fmt.Errorf("dim_time not strictly increasing at date_key %d", t.DateKey)
		}
		prevKey = t.DateKey
	}
	sort.Ints(d.months)

	d.customerByID = make(map[int64]*schema.Customer, len(d.Customers))
	for i := range d.Customers {
		c := &d.Customers[i]
		if err := c.Validate(); err != nil {
			return err
		}
		d.customerByID[c.CustomerID] = c
	}
	d.productByID = make(map[int64]*schema.Product, len(d.Products))
	for i := range d.Products {
		d.productByID[d.Products[i].ProductID] = &d.Products[i]
	}
	d.accountByID = make(map[int64]*schema.Account, len(d.Accounts))
	for i := range d.Accounts {
		d.accountByID[d.Accounts[i].AccountID] = &d.Accounts[i]
	}
	d.costCenterByID = make(map[int64]*schema.CostCenter, len(d.CostCenters))
	for i := range d.CostCenters {
		d.costCenterByID[d.CostCenters[i].CostCenterID] = &d.CostCenters[i]
	}
	d.churnProbByID = make(map[int64]float64, len(d.Churn))
	for _, p := range d.Churn {
		d.churnProbByID[p.CustomerID] = p.ChurnProbability
	}
	return nil
}

// Months returns the distinct year_month_keys in ascending order.
func (d *Dataset) Months() []int {
	return d.months
}

// MonthLabel returns the display label for a year_month_key ("Jan 2024").
func (d *Dataset) MonthLabel(ym int) string {
	if label, ok := d.monthLabels[ym]; ok {
		return label
	}
	return strconv.Itoa(ym)
}

// MonthOfDateKey maps a YYYYMMDD date key to its year_month_key.
func (d *Dataset) MonthOfDateKey(dateKey int) int {
	return d.monthByDateKey[dateKey]
}

// CustomerByID returns the customer dimension row, or nil.
func (d *Dataset) CustomerByID(id int64) *schema.Customer {
	return d.customerByID[id]
}

// ProductByID returns the product dimension row, or nil.
func (d *Dataset) ProductByID(id int64) *schema.Product {
	return d.productByID[id]
}

// AccountByID returns the account dimension row, or nil.
func (d *Dataset) AccountByID(id int64) *schema.Account {
	return d.accountByID[id]
}

// CostCenterByID returns the cost center dimension row, or nil.
func (d *Dataset) CostCenterByID(id int64) *schema.CostCenter {
	return d.costCenterByID[id]
}

// ChurnProbability returns the latest churn probability for a customer,
// or 0 when no prediction exists.
func (d *Dataset) ChurnProbability(customerID int64) float64 {
	return d.churnProbByID[customerID]
}

// DistinctValues returns the sorted distinct values of a column across a
// table, for member enumeration (e.g. every product_name in dim_product).
func (d *Dataset) DistinctValues(table, column string) []string {
	seen := make(map[string]bool)
	var out []string
	n := d.RowCount(table)
	for i := 0; i < n; i++ {
		v := d.Attr(table, i, column)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// RowCount returns the number of rows of a table usable as an aggregation
// source (facts and dimensions alike).
func (d *Dataset) RowCount(table string) int {
	switch table {
	case schema.TableTransaction:
		return len(d.Transactions)
	case schema.TableFinancial:
		return len(d.Postings)
	case schema.TableChurn:
		return len(d.Churn)
	case schema.TableCustomer:
		return len(d.Customers)
	case schema.TableProduct:
		return len(d.Products)
	case schema.TableAccount:
		return len(d.Accounts)
	case schema.TableCostCenter:
		return len(d.CostCenters)
	case schema.TableTime:
		return len(d.Time)
	}
	return 0
}

// RowMonth returns the year_month_key of row i of a table, or 0 for rows
// with no time binding (dimension tables, churn predictions).
func (d *Dataset) RowMonth(table string, i int) int {
	switch table {
	case schema.TableTransaction:
		return d.monthByDateKey[d.Transactions[i].DateKey]
	case schema.TableFinancial:
		return d.monthByDateKey[d.Postings[i].DateKey]
	case schema.TableTime:
		return d.Time[i].YearMonthKey()
	}
	return 0
}

// Number returns the numeric value of column for row i, resolving
// star joins and derived columns. Missing joins count as zero.
func (d *Dataset) Number(table string, i int, column string) float64 {
	switch table {
	case schema.TableTransaction:
		tx := &d.Transactions[i]
		switch column {
		case "net_revenue":
			return tx.NetRevenue
		case "direct_cost":
			return tx.DirectCost
		case "quantity":
			return float64(tx.Quantity)
		case "transaction_id":
			return float64(tx.TransactionID)
		case "customer_id":
			return float64(tx.CustomerID)
		case "product_id":
			return float64(tx.ProductID)
		case "date_key":
			return float64(tx.DateKey)
		case "risk_weighted_revenue":
			return tx.NetRevenue * d.churnProbByID[tx.CustomerID]
		}
	case schema.TableFinancial:
		p := &d.Postings[i]
		switch column {
		case "amount":
			return p.Amount
		case "posting_id":
			return float64(p.PostingID)
		case "account_id":
			return float64(p.AccountID)
		case "cost_center_id":
			return float64(p.CostCenterID)
		case "date_key":
			return float64(p.DateKey)
		}
	case schema.TableChurn:
		cp := &d.Churn[i]
		switch column {
		case "churn_probability":
			return cp.ChurnProbability
		case "churn_label":
			return float64(cp.ChurnLabel)
		case "customer_id":
			return float64(cp.CustomerID)
		}
	case schema.TableCustomer:
		c := &d.Customers[i]
		switch column {
		case "customer_id":
			return float64(c.CustomerID)
		case "risk_score":
			return c.RiskScore
		case "is_active":
			if c.IsActive {
				return 1
			}
			return 0
		}
	case schema.TableProduct:
		p := &d.Products[i]
		switch column {
		case "product_id":
			return float64(p.ProductID)
		case "base_price":
			return p.BasePrice
		case "direct_cost_ratio":
			return p.DirectCostRatio
		}
	case schema.TableTime:
		t := &d.Time[i]
		switch column {
		case "date_key":
			return float64(t.DateKey)
		case "year_month_key":
			return float64(t.YearMonthKey())
		}
	}
	return 0
}

// Attr returns the string value of column for row i, resolving star joins.
// Boolean columns render as "1"/"0"; numeric keys as decimal strings.
func (d *Dataset) Attr(table string, i int, column string) string {
	switch table {
	case schema.TableTransaction:
		tx := &d.Transactions[i]
		switch column {
		case "channel":
			return tx.Channel
		case "customer_id":
			return strconv.FormatInt(tx.CustomerID, 10)
		case "product_id":
			return strconv.FormatInt(tx.ProductID, 10)
		case "segment", "region", "is_active":
			if c := d.customerByID[tx.CustomerID]; c != nil {
				return customerAttr(c, column)
			}
		case "product_name", "category":
			if p := d.productByID[tx.ProductID]; p != nil {
				return productAttr(p, column)
			}
		}
	case schema.TableFinancial:
		p := &d.Postings[i]
		switch column {
		case "currency":
			return p.Currency
		case "account_id":
			return strconv.FormatInt(p.AccountID, 10)
		case "cost_center_id":
			return strconv.FormatInt(p.CostCenterID, 10)
		case "account_name", "account_type", "account_group", "reporting_line":
			if a := d.accountByID[p.AccountID]; a != nil {
				return accountAttr(a, column)
			}
		case "department", "country":
			if cc := d.costCenterByID[p.CostCenterID]; cc != nil {
				if column == "department" {
					return cc.Department
				}
				return cc.Country
			}
		}
	case schema.TableChurn:
		cp := &d.Churn[i]
		switch column {
		case "customer_id":
			return strconv.FormatInt(cp.CustomerID, 10)
		case "churn_label":
			return strconv.Itoa(cp.ChurnLabel)
		case "segment", "region", "is_active":
			if c := d.customerByID[cp.CustomerID]; c != nil {
				return customerAttr(c, column)
			}
		}
	case schema.TableCustomer:
		return customerAttr(&d.Customers[i], column)
	case schema.TableProduct:
		return productAttr(&d.Products[i], column)
	case schema.TableAccount:
		return accountAttr(&d.Accounts[i], column)
	case schema.TableCostCenter:
		cc := &d.CostCenters[i]
		switch column {
		case "cost_center_id":
			return strconv.FormatInt(cc.CostCenterID, 10)
		case "department":
			return cc.Department
		case "country":
			return cc.Country
		case "manager":
			return cc.Manager
		}
	}
	return ""
}

func customerAttr(c *schema.Customer, column string) string {
	switch column {
	case "customer_id":
		return strconv.FormatInt(c.CustomerID, 10)
	case "segment":
		return c.Segment
	case "region":
		return c.Region
	case "is_active":
		if c.IsActive {
			return "1"
		}
		return "0"
	}
	return ""
}

func productAttr(p *schema.Product, column string) string {
	switch column {
	case "product_id":
		return strconv.FormatInt(p.ProductID, 10)
	case "product_name":
		return p.Name
	case "category":
		return p.Category
	}
	return ""
}

func accountAttr(a *schema.Account, column string) string {
	switch column {
	case "account_id":
		return strconv.FormatInt(a.AccountID, 10)
	case "account_name":
		return a.Name
	case "account_type":
		return string(a.Type)
	case "account_group":
		return a.Group
	case "reporting_line":
		return a.ReportingLine
	}
	return ""
}
