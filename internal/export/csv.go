package export

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV renders a matrix as CSV with raw numeric values.
func WriteCSV(w io.Writer, m *Matrix) error {
	cw := csv.NewWriter(w)

	header := append([]string{m.RowLabel}, m.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range m.Rows {
		rec := make([]string, 0, len(row.Values)+1)
		rec = append(rec, row.Label)
		for _, v := range row.Values {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
