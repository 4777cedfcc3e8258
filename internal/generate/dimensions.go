package generate

import (
	"fmt"
	"time"

	"github.com/finhub/kpi-kit/internal/schema"
)

// timeBuckets builds one row per calendar date, inclusive of both ends.
func (g *Generator) timeBuckets(start, end time.Time) []schema.TimeBucket {
	var out []schema.TimeBucket
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		next := d.AddDate(0, 0, 1)
		out = append(out, schema.TimeBucket{
			DateKey:    dateKey(d),
			Date:       d,
			Day:        d.Day(),
			Month:      int(d.Month()),
			Quarter:    (int(d.Month())-1)/3 + 1,
			Year:       d.Year(),
			Weekday:    (int(d.Weekday()) + 6) % 7, // Monday=0
			IsMonthEnd: next.Day() == 1,
		})
	}
	return out
}

func dateKey(d time.Time) int {
	return d.Year()*10000 + int(d.Month())*100 + d.Day()
}

var (
	segments     = []string{"Retail", "SME", "Corporate"}
	segmentProbs = []float64{0.6, 0.3, 0.1}
	regions      = []string{"North", "South", "West", "East", "Central", "International"}
	regionProbs  = []float64{0.2, 0.25, 0.2, 0.15, 0.15, 0.05}
)

// customers spreads acquisitions over the first three years and simulates
// churn as one Bernoulli trial per year of tenure. A churn date after the
// dataset end is dropped (the customer is still active as of the end).
func (g *Generator) customers(start, end time.Time) []schema.Customer {
	acqEnd := start.AddDate(3, 0, 0)
	if acqEnd.After(end) {
		acqEnd = end
	}
	acqSpan := acqEnd.Sub(start)

	out := make([]schema.Customer, 0, g.cfg.Customers)
	for i := 0; i < g.cfg.Customers; i++ {
		acq := start.Add(time.Duration(g.rng.Float64() * float64(acqSpan))).Truncate(24 * time.Hour)

		var churn *time.Time
		for year := acq.Year(); year <= end.Year(); year++ {
			if g.rng.Float64() < g.cfg.AnnualChurnRate {
				month := 1 + g.rng.Intn(12)
				candidate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
				if candidate.After(acq) && !candidate.After(end) {
					churn = &candidate
				}
				break
			}
		}

		// FICO-like score for ML realism
		risk := clip(600+g.rng.NormFloat64()*100, 300, 850)

		out = append(out, schema.Customer{
			CustomerID:      int64(i + 1),
			Segment:         segments[g.pick(segmentProbs)],
			Region:          regions[g.pick(regionProbs)],
			RiskScore:       risk,
			AcquisitionDate: acq,
			ChurnDate:       churn,
			IsActive:        churn == nil,
		})
	}
	return out
}

// products draws a portfolio across four categories with category-specific
// price ranges and direct-cost ratios centered on 1 - base margin.
func (g *Generator) products() []schema.Product {
	categories := []string{"Subscription", "Service", "Loan", "Advisory"}
	catProbs := []float64{0.40, 0.30, 0.20, 0.10}

	out := make([]schema.Product, 0, g.cfg.Products)
	for i := 0; i < g.cfg.Products; i++ {
		cat := categories[g.pick(catProbs)]
		base := 1 - g.cfg.BaseMargin

		var price, dcr float64
		switch cat {
		case "Subscription":
			price = 50 + g.rng.Float64()*150
			dcr = clip(base+g.rng.NormFloat64()*0.04, 0.25, 0.70)
		case "Service":
			price = 100 + g.rng.Float64()*300
			dcr = clip(base+0.05+g.rng.NormFloat64()*0.05, 0.30, 0.75)
		case "Loan":
			price = 300 + g.rng.Float64()*500
			dcr = clip(base-0.05+g.rng.NormFloat64()*0.05, 0.20, 0.65)
		default: // Advisory
			price = 150 + g.rng.Float64()*450
			dcr = clip(base+0.02+g.rng.NormFloat64()*0.05, 0.25, 0.72)
		}

		out = append(out, schema.Product{
			ProductID:       int64(i + 1),
			Name:            fmt.Sprintf("Product %d", i+1),
			Category:        cat,
			BasePrice:       price,
			DirectCostRatio: dcr,
		})
	}
	return out
}

// accounts returns the fixed P&L-style chart of accounts.
func accounts() []schema.Account {
	return []schema.Account{
		{AccountID: 4000, Name: "Revenue - Subscription", Type: schema.AccountRevenue, Group: "Operating Revenue", ReportingLine: "Revenue"},
		{AccountID: 4001, Name: "Revenue - Service", Type: schema.AccountRevenue, Group: "Operating Revenue", ReportingLine: "Revenue"},
		{AccountID: 4002, Name: "Revenue - Other", Type: schema.AccountRevenue, Group: "Operating Revenue", ReportingLine: "Revenue"},
		{AccountID: 5000, Name: "Cost of Goods Sold", Type: schema.AccountCOGS, Group: "Direct Costs", ReportingLine: "Gross Profit"},
		{AccountID: 6000, Name: "Sales & Marketing", Type: schema.AccountOPEX, Group: "Indirect Costs", ReportingLine: "Operating Profit"},
		{AccountID: 6100, Name: "Operations", Type: schema.AccountOPEX, Group: "Indirect Costs", ReportingLine: "Operating Profit"},
		{AccountID: 6200, Name: "IT & Infrastructure", Type: schema.AccountOPEX, Group: "Indirect Costs", ReportingLine: "Operating Profit"},
		{AccountID: 6300, Name: "HQ & Admin", Type: schema.AccountOPEX, Group: "Indirect Costs", ReportingLine: "Operating Profit"},
	}
}

// costCenters returns n departments, extending past the base six with
// generic names when asked for more.
func costCenters(n int) []schema.CostCenter {
	base := []string{"Sales", "Marketing", "Operations", "IT", "HR", "HQ"}
	departments := base
	if n <= len(base) {
		departments = base[:n]
	} else {
		for i := len(base) + 1; i <= n; i++ {
			departments = append(departments, fmt.Sprintf("Dept%d", i))
		}
	}

	out := make([]schema.CostCenter, len(departments))
	for i, dept := range departments {
		out[i] = schema.CostCenter{
			CostCenterID: int64(i + 1),
			Department:   dept,
			Country:      "DE",
			Manager:      fmt.Sprintf("Manager %s", dept),
		}
	}
	return out
}
