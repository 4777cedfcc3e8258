package generate

import (
	"sort"

	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/schema"
)

var (
	segmentRevenueMult = map[string]float64{"Retail": 1.0, "SME": 1.2, "Corporate": 1.5}
	segmentCostMult    = map[string]float64{"Retail": 1.00, "SME": 0.95, "Corporate": 0.88}
	segmentLambda      = map[string]float64{"Retail": 0.4, "SME": 0.8, "Corporate": 1.2}

	spendTiers     = []float64{0.5, 1.0, 2.0, 4.0}
	spendTierProbs = []float64{0.25, 0.45, 0.25, 0.05}

	channels     = []string{"Online", "Branch", "Partner"}
	channelProbs = []float64{0.6, 0.25, 0.15}
)

// transactions draws Poisson-distributed monthly purchase counts per
// customer between acquisition and churn (or dataset end), scaled by
// segment, spend tier, quarterly seasonality and yearly macro shocks.
func (g *Generator) transactions(ds *dataset.Dataset) []schema.Transaction {
	dateKeysByMonth := make(map[int][]int)
	for _, t := range ds.Time {
		ym := t.YearMonthKey()
		dateKeysByMonth[ym] = append(dateKeysByMonth[ym], t.DateKey)
	}
	lastDate := ds.Time[len(ds.Time)-1].Date

	// Customer heterogeneity: a fixed spend tier per customer.
	tiers := make(map[int64]float64, len(ds.Customers))
	for _, c := range ds.Customers {
		tiers[c.CustomerID] = spendTiers[g.pick(spendTierProbs)]
	}

	var out []schema.Transaction
	var nextID int64 = 1

	for _, cust := range ds.Customers {
		until := lastDate
		if cust.ChurnDate != nil {
			until = *cust.ChurnDate
		}

		lam := segmentLambda[cust.Segment] * tiers[cust.CustomerID]
		if lam < 0.05 {
			lam = 0.05
		}

		for ym := cust.AcquisitionDate.Year()*100 + int(cust.AcquisitionDate.Month()); ym <= until.Year()*100+int(until.Month()); ym = nextMonth(ym) {
			dates := dateKeysByMonth[ym]
			if len(dates) == 0 {
				continue
			}
			quarter := (ym%100-1)/3 + 1
			seas := g.cfg.Seasonality[quarter]
			if seas == 0 {
				seas = 1
			}
			macro := g.cfg.MacroShocks[ym/100]
			if macro == 0 {
				macro = 1
			}

			nTx := g.poisson(lam)
			for t := 0; t < nTx; t++ {
				prod := &ds.Products[g.rng.Intn(len(ds.Products))]
				qty := g.poisson(1.1)
				if qty < 1 {
					qty = 1
				}

				unitPrice := prod.BasePrice * segmentRevenueMult[cust.Segment] *
					tiers[cust.CustomerID] * seas * macro * g.logNormal(0.15)
				revenue := unitPrice * float64(qty)
				cost := revenue * prod.DirectCostRatio * segmentCostMult[cust.Segment]

				out = append(out, schema.Transaction{
					TransactionID: nextID,
					DateKey:       dates[g.rng.Intn(len(dates))],
					CustomerID:    cust.CustomerID,
					ProductID:     prod.ProductID,
					Quantity:      qty,
					NetRevenue:    revenue,
					DirectCost:    cost,
					Channel:       channels[g.pick(channelProbs)],
				})
				nextID++
			}
		}
	}
	return out
}

func nextMonth(ym int) int {
	if ym%100 == 12 {
		return (ym/100+1)*100 + 1
	}
	return ym + 1
}

func revenueAccountFor(category string) int64 {
	switch category {
	case "Subscription":
		return 4000
	case "Service":
		return 4001
	}
	return 4002
}

func opexAccountFor(department string) int64 {
	switch department {
	case "Sales", "Marketing":
		return 6000
	case "Operations":
		return 6100
	case "IT":
		return 6200
	}
	return 6300
}

// postings derives GL entries from the transactions: daily revenue by
// category account, daily COGS (negative), and monthly OPEX allocated
// across cost centers with noisy weights, posted at month end. OPEX totals
// track revenue times the configured ratio.
func (g *Generator) postings(ds *dataset.Dataset) []schema.FinancialPosting {
	productCat := make(map[int64]string, len(ds.Products))
	for _, p := range ds.Products {
		productCat[p.ProductID] = p.Category
	}
	monthOf := make(map[int]int, len(ds.Time))
	monthEnd := make(map[int]int)
	for _, t := range ds.Time {
		ym := t.YearMonthKey()
		monthOf[t.DateKey] = ym
		if t.IsMonthEnd {
			monthEnd[ym] = t.DateKey
		}
	}

	type revKey struct {
		dateKey   int
		accountID int64
	}
	revenue := make(map[revKey]float64)
	cogs := make(map[int]float64)
	monthlyRevenue := make(map[int]float64)

	for _, tx := range ds.Transactions {
		account := revenueAccountFor(productCat[tx.ProductID])
		revenue[revKey{tx.DateKey, account}] += tx.NetRevenue
		cogs[tx.DateKey] += tx.DirectCost
		monthlyRevenue[monthOf[tx.DateKey]] += tx.NetRevenue
	}

	var out []schema.FinancialPosting
	var nextID int64 = 1
	add := func(dateKey int, accountID, costCenterID int64, amount float64) {
		out = append(out, schema.FinancialPosting{
			PostingID:    nextID,
			DateKey:      dateKey,
			AccountID:    accountID,
			CostCenterID: costCenterID,
			Amount:       amount,
			Currency:     "EUR",
		})
		nextID++
	}

	// Deterministic posting order: sorted by date, then account.
	revKeys := make([]revKey, 0, len(revenue))
	for k := range revenue {
		revKeys = append(revKeys, k)
	}
	sort.Slice(revKeys, func(i, j int) bool {
		if revKeys[i].dateKey != revKeys[j].dateKey {
			return revKeys[i].dateKey < revKeys[j].dateKey
		}
		return revKeys[i].accountID < revKeys[j].accountID
	})
	for _, k := range revKeys {
		add(k.dateKey, k.accountID, 0, revenue[k])
	}

	cogsKeys := make([]int, 0, len(cogs))
	for k := range cogs {
		cogsKeys = append(cogsKeys, k)
	}
	sort.Ints(cogsKeys)
	for _, dk := range cogsKeys {
		add(dk, 5000, 0, -cogs[dk]) // costs stored negative
	}

	baseWeights := []float64{0.2, 0.15, 0.25, 0.15, 0.1, 0.15}
	nCC := len(ds.CostCenters)
	if nCC < len(baseWeights) {
		baseWeights = baseWeights[:nCC]
	}
	for len(baseWeights) < nCC {
		baseWeights = append(baseWeights, 0.1)
	}

	months := make([]int, 0, len(monthlyRevenue))
	for ym := range monthlyRevenue {
		months = append(months, ym)
	}
	sort.Ints(months)

	for _, ym := range months {
		postDate, ok := monthEnd[ym]
		if !ok {
			continue
		}
		totalOpex := -(monthlyRevenue[ym] * g.cfg.OpexRatio)

		weights := make([]float64, nCC)
		sum := 0.0
		for i, w := range baseWeights {
			weights[i] = w * (1 + g.rng.NormFloat64()*0.05)
			sum += weights[i]
		}
		for i, cc := range ds.CostCenters {
			add(postDate, opexAccountFor(cc.Department), cc.CostCenterID, totalOpex*weights[i]/sum)
		}
	}

	return out
}
