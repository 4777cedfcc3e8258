package export

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/db"
)

const dateLayout = "2006-01-02"

// Warehouse loads datasets and KPI matrices into a warehouse database.
// Each table loads inside one transaction; a failed load leaves the
// previous contents untouched.
type Warehouse struct {
	db db.Database
}

// NewWarehouse wraps an open warehouse database.
func NewWarehouse(d db.Database) *Warehouse {
	return &Warehouse{db: d}
}

// WriteDataset replaces the star schema tables with the dataset contents.
func (w *Warehouse) WriteDataset(ds *dataset.Dataset) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"dim_time", "dim_customer", "dim_product", "dim_account",
		"dim_cost_center", "fact_transactions", "fact_financials",
		"predicted_churn",
	} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertRows(tx, "dim_time", 8, len(ds.Time), func(i int) []interface{} {
		t := ds.Time[i]
		return []interface{}{t.DateKey, t.Date.Format(dateLayout), t.Day, t.Month, t.Quarter, t.Year, t.Weekday, boolInt(t.IsMonthEnd)}
	}); err != nil {
		return err
	}

	if err := insertRows(tx, "dim_customer", 7, len(ds.Customers), func(i int) []interface{} {
		c := ds.Customers[i]
		var churn interface{}
		if c.ChurnDate != nil {
			churn = c.ChurnDate.Format(dateLayout)
		}
		return []interface{}{c.CustomerID, c.Segment, c.Region, c.RiskScore, c.AcquisitionDate.Format(dateLayout), churn, boolInt(c.IsActive)}
	}); err != nil {
		return err
	}

	if err := insertRows(tx, "dim_product", 5, len(ds.Products), func(i int) []interface{} {
		p := ds.Products[i]
		return []interface{}{p.ProductID, p.Name, p.Category, p.BasePrice, p.DirectCostRatio}
	}); err != nil {
		return err
	}

	if err := insertRows(tx, "dim_account", 5, len(ds.Accounts), func(i int) []interface{} {
		a := ds.Accounts[i]
		return []interface{}{a.AccountID, a.Name, string(a.Type), a.Group, a.ReportingLine}
	}); err != nil {
		return err
	}

	if err := insertRows(tx, "dim_cost_center", 4, len(ds.CostCenters), func(i int) []interface{} {
		cc := ds.CostCenters[i]
		return []interface{}{cc.CostCenterID, cc.Department, cc.Country, cc.Manager}
	}); err != nil {
		return err
	}

	if err := insertRows(tx, "fact_transactions", 8, len(ds.Transactions), func(i int) []interface{} {
		t := ds.Transactions[i]
		return []interface{}{t.TransactionID, t.DateKey, t.CustomerID, t.ProductID, t.Quantity, t.NetRevenue, t.DirectCost, t.Channel}
	}); err != nil {
		return err
	}

	if err := insertRows(tx, "fact_financials", 6, len(ds.Postings), func(i int) []interface{} {
		p := ds.Postings[i]
		return []interface{}{p.PostingID, p.DateKey, p.AccountID, p.CostCenterID, p.Amount, p.Currency}
	}); err != nil {
		return err
	}

	if err := insertRows(tx, "predicted_churn", 5, len(ds.Churn), func(i int) []interface{} {
		c := ds.Churn[i]
		return []interface{}{c.CustomerID, c.ChurnProbability, c.ChurnLabel, c.RunID, c.RunDate.Format(dateLayout)}
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// WriteMatrix replaces a KPI matrix table. Measure names become quoted
// column names, so the warehouse table reads like the catalog.
func (w *Warehouse) WriteMatrix(m *Matrix) error {
	cols := make([]string, 0, len(m.Columns)+2)
	cols = append(cols, quoteIdent(m.RowLabel)+" TEXT", "sort_key INTEGER")
	for _, c := range m.Columns {
		cols = append(cols, quoteIdent(c)+" DOUBLE")
	}

	if _, err := w.db.Exec("DROP TABLE IF EXISTS " + quoteIdent(m.Name)); err != nil {
		return fmt.Errorf("drop %s: %w", m.Name, err)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(m.Name), strings.Join(cols, ", "))
	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("create %s: %w", m.Name, err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertRows(tx, quoteIdent(m.Name), len(m.Columns)+2, len(m.Rows), func(i int) []interface{} {
		row := m.Rows[i]
		args := make([]interface{}, 0, len(row.Values)+2)
		args = append(args, row.Label, row.SortKey)
		for _, v := range row.Values {
			args = append(args, v)
		}
		return args
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// WriteAll loads the dataset and every matrix.
func (w *Warehouse) WriteAll(ds *dataset.Dataset, matrices []*Matrix) error {
	if err := w.WriteDataset(ds); err != nil {
		return err
	}
	for _, m := range matrices {
		if err := w.WriteMatrix(m); err != nil {
			return err
		}
	}
	return nil
}

func insertRows(tx *sql.Tx, table string, nCols, nRows int, args func(i int) []interface{}) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", nCols), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	defer stmt.Close()
	for i := 0; i < nRows; i++ {
		if _, err := stmt.Exec(args(i)...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
