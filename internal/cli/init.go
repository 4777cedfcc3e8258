package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finhub/kpi-kit/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default kpikit.yaml",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.Path(baseDir)
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(baseDir, config.Default()); err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("kpikit initialized"))
	fmt.Printf("  Config: %s\n", path)
	return nil
}
