package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header row plus data rows read from a spreadsheet or CSV file.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadFile loads a table from an .xlsx/.xlsm workbook or a .csv file. For
// workbooks the named sheet is used, or the first sheet when sheet is empty.
func ReadFile(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()
		return readWorkbook(f, sheet)
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer file.Close()
		return ReadCSV(file)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// ReadWorkbook loads a table from workbook bytes.
func ReadWorkbook(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, sheet)
}

func readWorkbook(f *excelize.File, sheet string) (*Table, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}

	// raw values keep dates as serial numbers instead of locale formatted text
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return newTable(rows)
}

// ReadCSV loads a table from comma separated text.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return newTable(rows)
}

func newTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{Field: "header", Reason: "is missing"}
	}
	return &Table{Header: rows[0], Rows: rows[1:]}, nil
}

// columns maps normalised header names to their position and reports the
// required columns that are absent.
func (t *Table) columns(required []string) (map[string]int, error) {
	index := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		key := normaliseHeader(name)
		if _, seen := index[key]; !seen && key != "" {
			index[key] = i
		}
	}

	missing := make([]string, 0)
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Field: strings.Join(missing, ","), Reason: "required column missing"}
	}
	return index, nil
}

func normaliseHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
