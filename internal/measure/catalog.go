package measure

// Folder labels grouping the standard catalog in presentation layers.
const (
	FolderPnL      = "P&L"
	FolderActivity = "Activity"
	FolderCustomer = "Customer"
	FolderRisk     = "Risk"
)

type catalogEntry struct {
	name       string
	expression string
	format     string
	folder     string
}

// standardCatalog mirrors the platform's KPI views: monthly P&L, customer
// profitability and churn-risk exposure. OPEX postings are stored negative,
// so OPEX Total flips the sign to a positive cost magnitude.
var standardCatalog = []catalogEntry{
	{"Total Revenue", `SUM(fact_transactions.net_revenue)`, FormatCurrency, FolderPnL},
	{"Direct Cost", `SUM(fact_transactions.direct_cost)`, FormatCurrency, FolderPnL},
	{"Gross Margin", `[Total Revenue] - [Direct Cost]`, FormatCurrency, FolderPnL},
	{"Gross Margin %", `DIVIDE([Gross Margin], [Total Revenue])`, FormatPercent, FolderPnL},
	{"OPEX Total", `-1 * SUM(fact_financials.amount, account_type = "OPEX")`, FormatCurrency, FolderPnL},
	{"Operating Profit", `[Gross Margin] - [OPEX Total]`, FormatCurrency, FolderPnL},
	{"Operating Margin %", `DIVIDE([Operating Profit], [Total Revenue])`, FormatPercent, FolderPnL},

	{"Transaction Count", `COUNT(fact_transactions.transaction_id)`, FormatInteger, FolderActivity},
	{"Units Sold", `SUM(fact_transactions.quantity)`, FormatInteger, FolderActivity},
	{"Avg Transaction Value", `DIVIDE([Total Revenue], [Transaction Count])`, FormatCurrency, FolderActivity},

	{"Active Customers", `COUNT(dim_customer.customer_id, is_active = 1)`, FormatInteger, FolderCustomer},
	{"Churned Customers", `COUNT(dim_customer.customer_id, is_active = 0)`, FormatInteger, FolderCustomer},
	{"Churn Rate", `DIVIDE([Churned Customers], [Active Customers] + [Churned Customers])`, FormatPercent, FolderCustomer},
	{"ARPC", `DIVIDE([Total Revenue], [Active Customers])`, FormatCurrency, FolderCustomer},

	{"Avg Churn Probability", `AVG(fact_churn.churn_probability)`, FormatPercent, FolderRisk},
	{"Churn Risk Exposure", `SUM(fact_transactions.risk_weighted_revenue)`, FormatCurrency, FolderRisk},
}

// RegisterStandardMeasures loads the built-in KPI catalog into a registry.
// Safe to call repeatedly; definitions upsert by name.
func RegisterStandardMeasures(r *Registry) error {
	for _, m := range standardCatalog {
		if err := r.Define(m.name, m.expression, m.format, m.folder); err != nil {
			return err
		}
	}
	return nil
}
