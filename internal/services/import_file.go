package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/types"
)

// Import file column headers. Matching is case-sensitive.
const (
	colBarangay             = "barangay"
	colHouseholdHead        = "householdHead"
	colAddress              = "address"
	colFamilyIncome         = "familyIncome"
	colEmploymentStatus     = "employmentStatus"
	colEducationLevel       = "educationLevel"
	colHousingType          = "housingType"
	colWater                = "water"
	colElectricity          = "electricity"
	colSanitation           = "sanitation"
	colGovernmentAssistance = "governmentAssistance"
)

var requiredImportColumns = []string{
	colHouseholdHead,
	colAddress,
	colFamilyIncome,
	colEmploymentStatus,
	colEducationLevel,
	colHousingType,
}

var utf8BOM = []byte("\xef\xbb\xbf")

// tableRow is one data row and the file line it came from.
type tableRow struct {
	Line  int
	Cells []string
}

// importRecord is a parsed household row before area resolution.
type importRecord struct {
	Line      int
	Barangay  string
	Household types.Household
}

// importFile is a fully validated upload.
type importFile struct {
	Name    string
	SHA256  string
	Records []importRecord
}

// parseImportFile reads and validates every row of an upload. Any invalid
// row fails the whole file before anything is written. needArea makes the
// barangay column mandatory.
func parseImportFile(filename string, data []byte, needArea bool) (importFile, error) {
	if len(data) == 0 {
		return importFile{}, apperr.Validation("file", "file is empty")
	}
	hash := sha256.Sum256(data)
	out := importFile{Name: filename, SHA256: hex.EncodeToString(hash[:])}

	header, rows, err := readImportTable(filename, data)
	if err != nil {
		return importFile{}, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; dup {
			return importFile{}, apperr.Validation("file", fmt.Sprintf("duplicate column %q", name))
		}
		cols[name] = i
	}
	required := requiredImportColumns
	if needArea {
		required = append([]string{colBarangay}, required...)
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return importFile{}, apperr.Validation("file", fmt.Sprintf("missing column %q", name))
		}
	}

	for _, row := range rows {
		if blankRow(row.Cells) {
			continue
		}
		record, err := parseImportRow(row, cols, needArea)
		if err != nil {
			return importFile{}, err
		}
		out.Records = append(out.Records, record)
	}
	return out, nil
}

// readImportTable dispatches on the file extension. Anything that is not
// an .xlsx workbook is read as CSV.
func readImportTable(filename string, data []byte) ([]string, []tableRow, error) {
	switch strings.ToLower(path.Ext(strings.TrimSpace(filename))) {
	case ".xlsx":
		return readXLSXTable(data)
	case ".xls":
		return nil, nil, apperr.Validation("file", "legacy .xls workbooks are not supported, save as .xlsx or .csv")
	default:
		return readCSVTable(data)
	}
}

func readCSVTable(data []byte) ([]string, []tableRow, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, apperr.Validation("file", "file has no header row")
	}
	if err != nil {
		return nil, nil, apperr.Validation("file", fmt.Sprintf("invalid CSV: %v", err))
	}

	var rows []tableRow
	for {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, apperr.Validation("file", fmt.Sprintf("invalid CSV: %v", err))
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, tableRow{Line: line, Cells: cells})
	}
	return header, rows, nil
}

func readXLSXTable(data []byte) ([]string, []tableRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, apperr.Validation("file", "invalid XLSX workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, apperr.Validation("file", "workbook has no sheets")
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, apperr.Validation("file", fmt.Sprintf("failed to read rows: %v", err))
	}
	if len(all) == 0 {
		return nil, nil, apperr.Validation("file", "file has no header row")
	}

	rows := make([]tableRow, 0, len(all)-1)
	for i, cells := range all[1:] {
		line := i + 2
		if err := normalizeXLSXBools(f, sheet, line, cells); err != nil {
			return nil, nil, apperr.Validation("file", fmt.Sprintf("failed to read row %d: %v", line, err))
		}
		rows = append(rows, tableRow{Line: line, Cells: cells})
	}
	return all[0], rows, nil
}

// normalizeXLSXBools rewrites boolean cells to the lowercase text a CSV
// export would carry. GetRows returns the displayed TRUE/FALSE instead.
// Text cells are left untouched, so a typed "TRUE" string stays literal.
func normalizeXLSXBools(f *excelize.File, sheet string, line int, cells []string) error {
	for col, value := range cells {
		if value == "" {
			continue
		}
		name, err := excelize.CoordinatesToCellName(col+1, line)
		if err != nil {
			return err
		}
		kind, err := f.GetCellType(sheet, name)
		if err != nil {
			return err
		}
		if kind != excelize.CellTypeBool {
			continue
		}
		if value == "1" || strings.EqualFold(value, "TRUE") {
			cells[col] = "true"
		} else {
			cells[col] = "false"
		}
	}
	return nil
}

func parseImportRow(row tableRow, cols map[string]int, needArea bool) (importRecord, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row.Cells) {
			return ""
		}
		return row.Cells[i]
	}
	rowErr := func(field, message string) error {
		return apperr.Validation(field, fmt.Sprintf("row %d: %s", row.Line, message))
	}

	record := importRecord{Line: row.Line, Barangay: get(colBarangay)}
	if needArea && FormatAreaName(record.Barangay) == "" {
		return importRecord{}, rowErr(colBarangay, "barangay is required")
	}

	income, err := parseIncome(get(colFamilyIncome))
	if err != nil {
		return importRecord{}, rowErr(colFamilyIncome, err.Error())
	}

	h := types.Household{
		HeadName:         strings.TrimSpace(get(colHouseholdHead)),
		Address:          strings.TrimSpace(get(colAddress)),
		FamilyIncome:     income,
		EmploymentStatus: types.EmploymentStatus(strings.TrimSpace(get(colEmploymentStatus))),
		EducationLevel:   types.EducationLevel(strings.TrimSpace(get(colEducationLevel))),
		HousingType:      types.HousingType(strings.TrimSpace(get(colHousingType))),
		AccessToServices: types.ServiceAccess{
			Water:       parseServiceFlag(get(colWater)),
			Electricity: parseServiceFlag(get(colElectricity)),
			Sanitation:  parseServiceFlag(get(colSanitation)),
		},
		GovernmentAssistance: splitAssistance(get(colGovernmentAssistance)),
	}
	if err := ValidateHousehold(h); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return importRecord{}, rowErr(appErr.Field, appErr.Message)
		}
		return importRecord{}, err
	}
	record.Household = h
	return record, nil
}

func parseIncome(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("family income is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("family income must be a number")
	}
	if v < 0 {
		return 0, errors.New("family income must not be negative")
	}
	return v, nil
}

// parseServiceFlag accepts only the exact string "true".
func parseServiceFlag(raw string) bool {
	return raw == "true"
}

// splitAssistance splits a comma separated program list. Entries are
// trimmed but empty ones are kept, so "4Ps," yields two entries.
func splitAssistance(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// FormatAreaName trims and collapses whitespace and upper-cases the first
// letter of every word. The rest of each word keeps its casing, so
// "sAN jose" becomes "SAN Jose".
func FormatAreaName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func areaKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
