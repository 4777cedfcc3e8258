package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Engine selects the warehouse backend for exports.
type Engine string

const (
	EngineSQLite Engine = "sqlite"
	EngineDuckDB Engine = "duckdb"
)

// Config represents kpikit.yaml.
type Config struct {
	Version  string         `yaml:"version"`
	Data     DataConfig     `yaml:"data"`
	Generate GenerateConfig `yaml:"generate"`
	Export   ExportConfig   `yaml:"export"`
}

// DataConfig holds dataset file locations.
type DataConfig struct {
	RawDir string `yaml:"raw_dir"` // CSV directory for the star schema tables
}

// GenerateConfig holds the synthetic data parameters.
type GenerateConfig struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	Customers   int `yaml:"customers"`
	Products    int `yaml:"products"`
	CostCenters int `yaml:"cost_centers"`

	AnnualChurnRate float64 `yaml:"annual_churn_rate"`
	BaseMargin      float64 `yaml:"base_margin"`
	OpexRatio       float64 `yaml:"opex_ratio"`

	// Macro shocks per year (COVID dip, recovery, inflation, stabilization)
	MacroShocks map[int]float64 `yaml:"macro_shocks"`
	// Quarterly revenue seasonality multipliers
	Seasonality map[int]float64 `yaml:"seasonality"`

	Seed int64 `yaml:"seed"`
}

// ExportConfig holds warehouse export settings.
type ExportConfig struct {
	Engine     Engine `yaml:"engine"`
	SQLitePath string `yaml:"sqlite_path"`
	DuckDBPath string `yaml:"duckdb_path"`
}

// Default returns the configuration used when no kpikit.yaml exists.
func Default() *Config {
	return &Config{
		Version: "0.1.0",
		Data: DataConfig{
			RawDir: "data/raw",
		},
		Generate: GenerateConfig{
			StartDate:       "2020-01-01",
			EndDate:         "2024-12-31",
			Customers:       3000,
			Products:        20,
			CostCenters:     6,
			AnnualChurnRate: 0.12,
			BaseMargin:      0.45,
			OpexRatio:       0.25,
			MacroShocks: map[int]float64{
				2020: 0.80,
				2021: 0.90,
				2022: 1.15,
				2023: 1.05,
				2024: 1.02,
			},
			Seasonality: map[int]float64{1: 1.00, 2: 0.95, 3: 1.05, 4: 1.20},
			Seed:        42,
		},
		Export: ExportConfig{
			Engine:     EngineSQLite,
			SQLitePath: "finance.sqlite",
			DuckDBPath: "finance.duckdb",
		},
	}
}

// Path returns the config file path under a base directory.
func Path(baseDir string) string {
	return filepath.Join(baseDir, "kpikit.yaml")
}

// Load reads kpikit.yaml from baseDir, falling back to defaults when the
// file does not exist. Missing generation maps are filled from defaults.
func Load(baseDir string) (*Config, error) {
	data, err := os.ReadFile(Path(baseDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Generate.MacroShocks == nil {
		cfg.Generate.MacroShocks = Default().Generate.MacroShocks
	}
	if cfg.Generate.Seasonality == nil {
		cfg.Generate.Seasonality = Default().Generate.Seasonality
	}
	return cfg, nil
}

// Save writes the config to baseDir/kpikit.yaml.
func Save(baseDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(Path(baseDir), data, 0644)
}
