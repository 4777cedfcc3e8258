package schema

import (
	"fmt"
	"sort"
)

// Violation reports an invalid schema reference. It is fatal at measure
// registration time.
type Violation struct {
	Ref    string
	Reason string // empty means the reference is unknown
}

func (e *Violation) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schema violation: %s %s", e.Ref, e.Reason)
	}
	return fmt.Sprintf("unknown schema reference: %s", e.Ref)
}

// Table names as used in measure expressions and exports.
const (
	TableTime        = "dim_time"
	TableCustomer    = "dim_customer"
	TableProduct     = "dim_product"
	TableAccount     = "dim_account"
	TableCostCenter  = "dim_cost_center"
	TableTransaction = "fact_transactions"
	TableFinancial   = "fact_financials"
	TableChurn       = "fact_churn"
)

// catalog lists every addressable column per table. Fact tables include the
// attributes of dimensions they reference by key (star-join resolution) and
// derived columns materialized by the dataset.
var catalog = map[string]map[string]bool{
	TableTime: set(
		"date_key", "date", "day", "month", "quarter", "year", "weekday",
		"is_month_end", "year_month_key",
	),
	TableCustomer: set(
		"customer_id", "segment", "region", "risk_score",
		"acquisition_date", "churn_date", "is_active",
	),
	TableProduct: set(
		"product_id", "product_name", "category", "base_price", "direct_cost_ratio",
	),
	TableAccount: set(
		"account_id", "account_name", "account_type", "account_group", "reporting_line",
	),
	TableCostCenter: set(
		"cost_center_id", "department", "country", "manager",
	),
	TableTransaction: set(
		"transaction_id", "date_key", "customer_id", "product_id",
		"quantity", "net_revenue", "direct_cost", "channel",
		// via dim_customer
		"segment", "region", "is_active",
		// via dim_product
		"product_name", "category",
		// derived: net_revenue weighted by the customer's churn probability
		"risk_weighted_revenue",
	),
	TableFinancial: set(
		"posting_id", "date_key", "account_id", "cost_center_id", "amount", "currency",
		// via dim_account
		"account_name", "account_type", "account_group", "reporting_line",
		// via dim_cost_center
		"department", "country",
	),
	TableChurn: set(
		"customer_id", "churn_probability", "churn_label", "run_date",
		// via dim_customer
		"segment", "region", "is_active",
	),
}

// attrCatalog lists the columns with a string rendering, the only columns
// usable in row filters and grouping grains. Numeric fact columns such as
// quantity or amount are measure inputs, not attributes.
var attrCatalog = map[string]map[string]bool{
	TableTime: set(),
	TableCustomer: set(
		"customer_id", "segment", "region", "is_active",
	),
	TableProduct: set(
		"product_id", "product_name", "category",
	),
	TableAccount: set(
		"account_id", "account_name", "account_type", "account_group", "reporting_line",
	),
	TableCostCenter: set(
		"cost_center_id", "department", "country", "manager",
	),
	TableTransaction: set(
		"customer_id", "product_id", "channel",
		"segment", "region", "is_active",
		"product_name", "category",
	),
	TableFinancial: set(
		"account_id", "cost_center_id", "currency",
		"account_name", "account_type", "account_group", "reporting_line",
		"department", "country",
	),
	TableChurn: set(
		"customer_id", "churn_label",
		"segment", "region", "is_active",
	),
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// HasTable reports whether name is a known dimension or fact table.
func HasTable(name string) bool {
	_, ok := catalog[name]
	return ok
}

// CheckColumn validates a table.column reference against the catalog.
func CheckColumn(table, column string) error {
	cols, ok := catalog[table]
	if !ok {
		return &Violation{Ref: table}
	}
	if !cols[column] {
		return &Violation{Ref: table + "." + column}
	}
	return nil
}

// CheckAttrColumn validates that table.column is an attribute column, so a
// row filter or grain on it compares against real values.
func CheckAttrColumn(table, column string) error {
	if err := CheckColumn(table, column); err != nil {
		return err
	}
	if !attrCatalog[table][column] {
		return &Violation{Ref: table + "." + column, Reason: "is not an attribute column"}
	}
	return nil
}

// Tables returns the known table names in sorted order.
func Tables() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
