package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/finhub/kpi-kit/internal/schema"
)

const dateLayout = "2006-01-02"

// SaveCSV writes every dimension and fact table as <table>.csv under dir,
// column layout matching the raw interchange format.
func SaveCSV(ds *Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tables := []struct {
		name  string
		write func(w *csv.Writer) error
	}{
		{schema.TableTime, ds.writeTime},
		{schema.TableCustomer, ds.writeCustomers},
		{schema.TableProduct, ds.writeProducts},
		{schema.TableAccount, ds.writeAccounts},
		{schema.TableCostCenter, ds.writeCostCenters},
		{schema.TableTransaction, ds.writeTransactions},
		{schema.TableFinancial, ds.writePostings},
		{schema.TableChurn, ds.writeChurn},
	}
	for _, t := range tables {
		if err := writeTable(filepath.Join(dir, t.name+".csv"), t.write); err != nil {
			return fmt.Errorf("write %s: %w", t.name, err)
		}
	}
	return nil
}

func writeTable(path string, write func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := write(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (ds *Dataset) writeTime(w *csv.Writer) error {
	if err := w.Write([]string{"date_key", "date", "day", "month", "quarter", "year", "weekday", "is_month_end"}); err != nil {
		return err
	}
	for _, t := range ds.Time {
		err := w.Write([]string{
			strconv.Itoa(t.DateKey), t.Date.Format(dateLayout),
			strconv.Itoa(t.Day), strconv.Itoa(t.Month), strconv.Itoa(t.Quarter),
			strconv.Itoa(t.Year), strconv.Itoa(t.Weekday), boolField(t.IsMonthEnd),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) writeCustomers(w *csv.Writer) error {
	if err := w.Write([]string{"customer_id", "segment", "region", "risk_score", "acquisition_date", "churn_date", "is_active"}); err != nil {
		return err
	}
	for _, c := range ds.Customers {
		churn := ""
		if c.ChurnDate != nil {
			churn = c.ChurnDate.Format(dateLayout)
		}
		err := w.Write([]string{
			strconv.FormatInt(c.CustomerID, 10), c.Segment, c.Region,
			floatField(c.RiskScore), c.AcquisitionDate.Format(dateLayout),
			churn, boolField(c.IsActive),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) writeProducts(w *csv.Writer) error {
	if err := w.Write([]string{"product_id", "product_name", "category", "base_price", "direct_cost_ratio"}); err != nil {
		return err
	}
	for _, p := range ds.Products {
		err := w.Write([]string{
			strconv.FormatInt(p.ProductID, 10), p.Name, p.Category,
			floatField(p.BasePrice), floatField(p.DirectCostRatio),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) writeAccounts(w *csv.Writer) error {
	if err := w.Write([]string{"account_id", "account_name", "account_type", "account_group", "reporting_line"}); err != nil {
		return err
	}
	for _, a := range ds.Accounts {
		err := w.Write([]string{
			strconv.FormatInt(a.AccountID, 10), a.Name, string(a.Type), a.Group, a.ReportingLine,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) writeCostCenters(w *csv.Writer) error {
	if err := w.Write([]string{"cost_center_id", "department", "country", "manager"}); err != nil {
		return err
	}
	for _, cc := range ds.CostCenters {
		err := w.Write([]string{
			strconv.FormatInt(cc.CostCenterID, 10), cc.Department, cc.Country, cc.Manager,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) writeTransactions(w *csv.Writer) error {
	if err := w.Write([]string{"transaction_id", "date_key", "customer_id", "product_id", "quantity", "net_revenue", "direct_cost", "channel"}); err != nil {
		return err
	}
	for _, tx := range ds.Transactions {
		err := w.Write([]string{
			strconv.FormatInt(tx.TransactionID, 10), strconv.Itoa(tx.DateKey),
			strconv.FormatInt(tx.CustomerID, 10), strconv.FormatInt(tx.ProductID, 10),
			strconv.Itoa(tx.Quantity), floatField(tx.NetRevenue), floatField(tx.DirectCost), tx.Channel,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) writePostings(w *csv.Writer) error {
	if err := w.Write([]string{"posting_id", "date_key", "account_id", "cost_center_id", "amount", "currency"}); err != nil {
		return err
	}
	for _, p := range ds.Postings {
		cc := ""
		if p.CostCenterID != 0 {
			cc = strconv.FormatInt(p.CostCenterID, 10)
		}
		err := w.Write([]string{
			strconv.FormatInt(p.PostingID, 10), strconv.Itoa(p.DateKey),
			strconv.FormatInt(p.AccountID, 10), cc, floatField(p.Amount), p.Currency,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Dataset) writeChurn(w *csv.Writer) error {
	if err := w.Write([]string{"customer_id", "churn_probability", "churn_label", "run_id", "run_date"}); err != nil {
		return err
	}
	for _, p := range ds.Churn {
		err := w.Write([]string{
			strconv.FormatInt(p.CustomerID, 10), floatField(p.ChurnProbability),
			strconv.Itoa(p.ChurnLabel), p.RunID, p.RunDate.Format(dateLayout),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func floatField(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LoadCSV reads all star schema tables from dir and finalizes the dataset.
// The churn table is optional; everything else must exist.
func LoadCSV(dir string) (*Dataset, error) {
	ds := &Dataset{}

	rows, err := readTable(filepath.Join(dir, schema.TableTime+".csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		date, err := time.Parse(dateLayout, r["date"])
		if err != nil {
			return nil, fmt.Errorf("dim_time: bad date %q: %w", r["date"], err)
		}
		ds.Time = append(ds.Time, schema.TimeBucket{
			DateKey:    intField(r["date_key"]),
			Date:       date,
			Day:        intField(r["day"]),
			Month:      intField(r["month"]),
			Quarter:    intField(r["quarter"]),
			Year:       intField(r["year"]),
			Weekday:    intField(r["weekday"]),
			IsMonthEnd: r["is_month_end"] == "1",
		})
	}

	rows, err = readTable(filepath.Join(dir, schema.TableCustomer+".csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		acq, err := time.Parse(dateLayout, r["acquisition_date"])
		if err != nil {
			return nil, fmt.Errorf("dim_customer: bad acquisition_date %q: %w", r["acquisition_date"], err)
		}
		var churn *time.Time
		if r["churn_date"] != "" {
			t, err := time.Parse(dateLayout, r["churn_date"])
			if err != nil {
				return nil, fmt.Errorf("dim_customer: bad churn_date %q: %w", r["churn_date"], err)
			}
			churn = &t
		}
		ds.Customers = append(ds.Customers, schema.Customer{
			CustomerID:      int64Field(r["customer_id"]),
			Segment:         r["segment"],
			Region:          r["region"],
			RiskScore:       floatFieldVal(r["risk_score"]),
			AcquisitionDate: acq,
			ChurnDate:       churn,
			IsActive:        r["is_active"] == "1",
		})
	}

	rows, err = readTable(filepath.Join(dir, schema.TableProduct+".csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		ds.Products = append(ds.Products, schema.Product{
			ProductID:       int64Field(r["product_id"]),
			Name:            r["product_name"],
			Category:        r["category"],
			BasePrice:       floatFieldVal(r["base_price"]),
			DirectCostRatio: floatFieldVal(r["direct_cost_ratio"]),
		})
	}

	rows, err = readTable(filepath.Join(dir, schema.TableAccount+".csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		ds.Accounts = append(ds.Accounts, schema.Account{
			AccountID:     int64Field(r["account_id"]),
			Name:          r["account_name"],
			Type:          schema.AccountType(r["account_type"]),
			Group:         r["account_group"],
			ReportingLine: r["reporting_line"],
		})
	}

	rows, err = readTable(filepath.Join(dir, schema.TableCostCenter+".csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		ds.CostCenters = append(ds.CostCenters, schema.CostCenter{
			CostCenterID: int64Field(r["cost_center_id"]),
			Department:   r["department"],
			Country:      r["country"],
			Manager:      r["manager"],
		})
	}

	rows, err = readTable(filepath.Join(dir, schema.TableTransaction+".csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		ds.Transactions = append(ds.Transactions, schema.Transaction{
			TransactionID: int64Field(r["transaction_id"]),
			DateKey:       intField(r["date_key"]),
			CustomerID:    int64Field(r["customer_id"]),
			ProductID:     int64Field(r["product_id"]),
			Quantity:      intField(r["quantity"]),
			NetRevenue:    floatFieldVal(r["net_revenue"]),
			DirectCost:    floatFieldVal(r["direct_cost"]),
			Channel:       r["channel"],
		})
	}

	rows, err = readTable(filepath.Join(dir, schema.TableFinancial+".csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		ds.Postings = append(ds.Postings, schema.FinancialPosting{
			PostingID:    int64Field(r["posting_id"]),
			DateKey:      intField(r["date_key"]),
			AccountID:    int64Field(r["account_id"]),
			CostCenterID: int64Field(r["cost_center_id"]),
			Amount:       floatFieldVal(r["amount"]),
			Currency:     r["currency"],
		})
	}

	churnPath := filepath.Join(dir, schema.TableChurn+".csv")
	if _, err := os.Stat(churnPath); err == nil {
		rows, err = readTable(churnPath)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			runDate, _ := time.Parse(dateLayout, r["run_date"])
			ds.Churn = append(ds.Churn, schema.ChurnPrediction{
				CustomerID:       int64Field(r["customer_id"]),
				ChurnProbability: floatFieldVal(r["churn_probability"]),
				ChurnLabel:       intField(r["churn_label"]),
				RunID:            r["run_id"],
				RunDate:          runDate,
			})
		}
	}

	if err := ds.Finalize(); err != nil {
		return nil, err
	}
	return ds, nil
}

// readTable reads a CSV file into header-keyed row maps.
func readTable(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func intField(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func int64Field(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func floatFieldVal(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
