package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/bayanihan-data/povassess/types"
)

var pdfColumnWidths = []float64{52, 18, 22, 18, 26, 24, 30}

// WritePDF renders the analytics document: overview totals, narrative
// insights, then the per-area table, continuing across pages as needed.
func WritePDF(w io.Writer, r types.Report, meta Meta) error {
	title := meta.Title
	if title == "" {
		title = "Poverty Assessment Report"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("povassess", true)
	if !meta.GeneratedAt.IsZero() {
		pdf.SetCreationDate(meta.GeneratedAt)
	}
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if meta.Municipality != "" {
		pdf.CellFormat(0, 6, meta.Municipality, "", 1, "L", false, 0, "")
	}
	if !meta.GeneratedAt.IsZero() {
		pdf.CellFormat(0, 6, "Generated "+meta.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "Overview")
	t := r.Totals
	overview := [][2]string{
		{"Households", fmt.Sprintf("%d", t.Households)},
		{"High risk", fmt.Sprintf("%d", t.High)},
		{"Moderate risk", fmt.Sprintf("%d", t.Moderate)},
		{"Low risk", fmt.Sprintf("%d", t.Low)},
		{"Average score", Decimal(t.AverageScore)},
		{"Average income", Decimal(t.AverageIncome)},
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range overview {
		pdf.CellFormat(50, 7, line[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, line[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "Insights")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range insightLines(r.Insights) {
		pdf.MultiCell(0, 6, line, "", "L", false)
	}

	pdf.AddPage()
	section(pdf, "Risk by Barangay")
	tableHeader(pdf)
	pdf.SetFont("Helvetica", "", 10)
	for _, area := range r.Areas {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			tableHeader(pdf)
			pdf.SetFont("Helvetica", "", 10)
		}
		for i, cell := range Row(area) {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(pdfColumnWidths[i], 7, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func section(pdf *fpdf.Fpdf, name string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, name, "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func tableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 243, 255)
	for i, name := range Header {
		pdf.CellFormat(pdfColumnWidths[i], 8, name, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func insightLines(in types.Insights) []string {
	if in.HighestRiskArea == nil && in.LowestIncomeArea == nil {
		return []string{"No households have been assessed yet."}
	}
	var lines []string
	if a := in.HighestRiskArea; a != nil {
		lines = append(lines, fmt.Sprintf("%s has the highest average poverty score (%s) with %d of %d households at high risk.",
			a.AreaName, Decimal(a.AverageScore), a.High, a.Total))
	}
	if a := in.LowestIncomeArea; a != nil {
		lines = append(lines, fmt.Sprintf("%s has the lowest average family income (%s).", a.AreaName, Decimal(a.AverageIncome)))
	}
	return lines
}
