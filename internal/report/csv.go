package report

import (
	"encoding/csv"
	"io"

	"github.com/bayanihan-data/povassess/types"
)

// WriteCSV writes one row per area under the summary header.
func WriteCSV(w io.Writer, r types.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, area := range r.Areas {
		if err := cw.Write(Row(area)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
