package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/finhub/kpi-kit/internal/measure"
)

var (
	evalMonth   string
	evalWindow  string
	evalRolling int
	evalFilters []string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [measure...]",
	Short: "Evaluate measures under a context",
	Long: `Evaluates measures from the KPI catalog against the generated
dataset. Without arguments the whole catalog is evaluated.

The context is built from flags:
  --month 2024-03              anchor at March 2024
  --window ytd|qtd|mtd         time-intelligence window at the anchor
  --rolling 12                 rolling window of N months ending at the anchor
  --filter segment=Enterprise  dimension filter (repeatable; val1,val2 ORs)`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalMonth, "month", "", "anchor month (YYYY-MM; empty = whole period)")
	evaluateCmd.Flags().StringVar(&evalWindow, "window", "", "window: ytd, qtd or mtd")
	evaluateCmd.Flags().IntVar(&evalRolling, "rolling", 0, "rolling window length in months")
	evaluateCmd.Flags().StringArrayVar(&evalFilters, "filter", nil, "dimension filter column=value[,value...]")
	rootCmd.AddCommand(evaluateCmd)
}

// buildContext translates the evaluate flags into a measure context.
func buildContext() (measure.Context, error) {
	ctx := measure.NewContext()

	if evalMonth != "" {
		t, err := time.Parse("2006-01", evalMonth)
		if err != nil {
			return ctx, fmt.Errorf("bad --month %q, want YYYY-MM", evalMonth)
		}
		ctx = ctx.At(t.Year(), int(t.Month()))
	}

	switch evalWindow {
	case "":
	case "ytd":
		ctx = ctx.YearToDate()
	case "qtd":
		ctx = ctx.QuarterToDate()
	case "mtd":
		ctx = ctx.MonthToDate()
	default:
		return ctx, fmt.Errorf("unknown --window %q", evalWindow)
	}
	if evalRolling > 0 {
		if evalWindow != "" {
			return ctx, fmt.Errorf("--rolling and --window are mutually exclusive")
		}
		ctx = ctx.Rolling(evalRolling)
	}
	if (evalWindow != "" || evalRolling > 0) && evalMonth == "" {
		return ctx, fmt.Errorf("--window and --rolling need --month")
	}

	for _, f := range evalFilters {
		col, vals, ok := strings.Cut(f, "=")
		if !ok {
			return ctx, fmt.Errorf("bad --filter %q, want column=value", f)
		}
		ctx = ctx.Filter(col, strings.Split(vals, ",")...)
	}
	return ctx, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
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
	ctx, err := buildContext()
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		for _, info := range reg.Infos("") {
			names = append(names, info.Name)
		}
	}

	ev := measure.NewEvaluator(ds, reg)
	values, err := ev.EvaluateAll(names, ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(values)
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		def, err := reg.Get(name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{name, measure.FormatValue(values[name], def.Format)})
	}
	os.Stdout.WriteString(renderTable([]string{"MEASURE", "VALUE"}, rows))
	return nil
}
