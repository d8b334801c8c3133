package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/bayanihan-data/povassess/types"
)

const summarySheet = "Summary"

var columnWidths = []float64{28, 10, 12, 10, 18, 16, 18}

// WriteXLSX writes the summary as a workbook with a styled, frozen header
// and a totals row.
func WriteXLSX(w io.Writer, r types.Report, meta Meta) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if meta.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: meta.Title, Creator: "povassess"}); err != nil {
			return fmt.Errorf("failed to set document properties: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create totals style: %w", err)
	}

	if err := setRow(f, 1, toCells(Header)); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", lastCell(1), headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(summarySheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	row := 2
	for _, area := range r.Areas {
		cells := []any{area.AreaName, area.Low, area.Moderate, area.High, area.Total, Decimal(area.AverageScore), Decimal(area.AverageIncome)}
		if err := setRow(f, row, cells); err != nil {
			return err
		}
		row++
	}

	t := r.Totals
	totals := []any{"Total", t.Low, t.Moderate, t.High, t.Households, Decimal(t.AverageScore), Decimal(t.AverageIncome)}
	if err := setRow(f, row, totals); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetCellStyle(summarySheet, first, lastCell(row), totalStyle); err != nil {
		return fmt.Errorf("failed to set totals style: %w", err)
	}

	if err := f.SetPanes(summarySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(summarySheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func lastCell(row int) string {
	cell, _ := excelize.CoordinatesToCellName(len(Header), row)
	return cell
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
