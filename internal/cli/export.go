package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/finhub/kpi-kit/internal/config"
	"github.com/finhub/kpi-kit/internal/db"
	"github.com/finhub/kpi-kit/internal/export"
	"github.com/finhub/kpi-kit/internal/measure"
)

var (
	exportEngine string
	exportCSVDir string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Load the dataset and KPI matrices into a warehouse",
	Long: `Evaluates the standard KPI matrices (monthly overview, segment and
category splits, revenue bands, OPEX allocation) and loads them together
with the star schema into a SQLite or DuckDB file.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportEngine, "engine", "", "warehouse engine: sqlite or duckdb (default from config)")
	exportCmd.Flags().StringVar(&exportCSVDir, "csv-dir", "", "also dump each matrix as CSV into this directory")
	rootCmd.AddCommand(exportCmd)
}

func openWarehouse(cfg *config.Config) (db.Database, error) {
	engine := cfg.Export.Engine
	if exportEngine != "" {
		engine = config.Engine(exportEngine)
	}
	switch engine {
	case config.EngineSQLite:
		return db.Open(joinBase(cfg.Export.SQLitePath))
	case config.EngineDuckDB:
		return db.OpenDuckDB(joinBase(cfg.Export.DuckDBPath))
	default:
		return nil, fmt.Errorf("unknown export engine %q", engine)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := standardRegistry()
	if err != nil {
		return err
	}
	ds, err := loadDataset(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	vlogf("evaluating KPI matrices")
	builder := export.NewBuilder(ds, measure.NewEvaluator(ds, reg))
	matrices, err := builder.StandardMatrices(ctx, reg)
	if err != nil {
		return err
	}

	if exportCSVDir != "" {
		if err := os.MkdirAll(exportCSVDir, 0755); err != nil {
			return err
		}
		for _, m := range matrices {
			f, err := os.Create(filepath.Join(exportCSVDir, m.Name+".csv"))
			if err != nil {
				return err
			}
			if err := export.WriteCSV(f, m); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}

	wh, err := openWarehouse(cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	vlogf("loading warehouse %s", wh.Path())
	if err := export.NewWarehouse(wh).WriteAll(ds, matrices); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Export complete"))
	fmt.Printf("  Warehouse: %s\n", wh.Path())
	for _, m := range matrices {
		fmt.Printf("  %-24s %d rows\n", m.Name, len(m.Rows))
	}
	return nil
}
