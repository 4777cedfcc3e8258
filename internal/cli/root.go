// Package cli implements the kpikit command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finhub/kpi-kit/internal/config"
	"github.com/finhub/kpi-kit/internal/dataset"
	"github.com/finhub/kpi-kit/internal/measure"
)

var (
	baseDir string
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "kpikit",
	Short: "Financial KPI toolkit",
	Long: `kpikit - financial semantic measure layer

Generates a synthetic finance star schema, evaluates a dependency-aware
KPI catalog under time and dimension contexts, and exports the results
to a SQLite or DuckDB warehouse.

Typical flow:
  kpikit init          write a default kpikit.yaml
  kpikit generate      produce the seeded dataset as CSV
  kpikit measures      list the KPI catalog
  kpikit evaluate      compute measures under a context
  kpikit export        load dataset and KPI matrices into a warehouse`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseDir, "dir", ".", "project directory holding kpikit.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON output")
}

func loadConfig() (*config.Config, error) {
	return config.Load(baseDir)
}

// loadDataset reads the star schema CSVs referenced by the config.
func loadDataset(cfg *config.Config) (*dataset.Dataset, error) {
	ds, err := dataset.LoadCSV(rawDir(cfg))
	if err != nil {
		return nil, fmt.Errorf("load dataset (run 'kpikit generate' first?): %w", err)
	}
	return ds, nil
}

func rawDir(cfg *config.Config) string {
	return joinBase(cfg.Data.RawDir)
}

// standardRegistry builds the measure catalog every command works from.
func standardRegistry() (*measure.Registry, error) {
	reg := measure.NewRegistry()
	if err := measure.RegisterStandardMeasures(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
