package generate

import (
	"time"

	"github.com/google/uuid"

	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/schema"
)

// churnPredictions produces the per-customer churn scores the platform
// normally receives from the ML collaborator. The heuristic blends the
// risk score with observed activity so that the scores behave like a
// trained classifier's output without training one here: low-scoring,
// low-activity customers come out high-risk.
func (g *Generator) churnPredictions(ds *dataset.Dataset, asOf time.Time) []schema.ChurnPrediction {
	txCount := make(map[int64]int)
	for _, tx := range ds.Transactions {
		txCount[tx.CustomerID]++
	}

	runID := uuid.NewString()
	out := make([]schema.ChurnPrediction, 0, len(ds.Customers))
	for _, c := range ds.Customers {
		// Higher FICO-like score lowers risk; 300..850 maps to 1..0.
		riskFactor := (850 - c.RiskScore) / 550

		tenureMonths := monthsBetween(c.AcquisitionDate, asOf)
		activity := 0.0
		if tenureMonths > 0 {
			activity = float64(txCount[c.CustomerID]) / float64(tenureMonths)
		}
		activityFactor := 1 / (1 + activity)

		prob := clip(0.05+0.35*riskFactor+0.35*activityFactor+g.rng.NormFloat64()*0.03, 0, 1)
		label := 0
		if prob >= 0.5 {
			label = 1
		}

		out = append(out, schema.ChurnPrediction{
			CustomerID:       c.CustomerID,
			ChurnProbability: prob,
			ChurnLabel:       label,
			RunID:            runID,
			RunDate:          asOf,
		})
	}
	return out
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
