// Package report renders area risk summaries as CSV, XLSX and PDF.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bayanihan-data/povassess/types"
)

// Format names an output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Header lists the summary table columns shared by every format.
var Header = []string{
	"Barangay",
	"Low",
	"Moderate",
	"High",
	"Total Households",
	"Average Score",
	"Average Income",
}

// Meta carries document-level details.
type Meta struct {
	Title        string
	Municipality string
	GeneratedAt  time.Time
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported report format %q", name)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Render writes r to w in format f.
func Render(w io.Writer, f Format, r types.Report, meta Meta) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r, meta)
	case FormatPDF:
		return WritePDF(w, r, meta)
	}
	return fmt.Errorf("unsupported report format %q", f)
}

// Row formats one area summary as table cells. Averages use two decimals.
func Row(s types.AreaSummary) []string {
	return []string{
		s.AreaName,
		strconv.Itoa(s.Low),
		strconv.Itoa(s.Moderate),
		strconv.Itoa(s.High),
		strconv.Itoa(s.Total),
		Decimal(s.AverageScore),
		Decimal(s.AverageIncome),
	}
}

// Decimal formats v with exactly two decimals.
func Decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
