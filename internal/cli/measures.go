package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var measuresFolder string

var measuresCmd = &cobra.Command{
	Use:   "measures",
	Short: "List the KPI catalog",
	RunE:  runMeasures,
}

func init() {
	measuresCmd.Flags().StringVar(&measuresFolder, "folder", "", "only show measures in this folder")
	rootCmd.AddCommand(measuresCmd)
}

func runMeasures(cmd *cobra.Command, args []string) error {
	reg, err := standardRegistry()
	if err != nil {
		return err
	}

	defs := reg.List(measuresFolder)
	if jsonOut {
		type entry struct {
			Name         string   `json:"name"`
			Folder       string   `json:"folder"`
			Format       string   `json:"format"`
			Expression   string   `json:"expression"`
			Dependencies []string `json:"dependencies,omitempty"`
		}
		out := make([]entry, len(defs))
		for i, d := range defs {
			out[i] = entry{d.Name, d.Folder, d.Format, d.Expression, d.Dependencies()}
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	rows := make([][]string, len(defs))
	for i, d := range defs {
		deps := strings.Join(d.Dependencies(), ", ")
		rows[i] = []string{d.Name, d.Folder, d.Format, d.Expression, deps}
	}
	os.Stdout.WriteString(renderTable(
		[]string{"MEASURE", "FOLDER", "FORMAT", "EXPRESSION", "DEPENDS ON"}, rows))
	return nil
}
