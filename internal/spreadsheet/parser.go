package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrInvalidSpreadsheet means the payload is not a readable workbook.
	ErrInvalidSpreadsheet = errors.New("invalid_spreadsheet")
	// ErrInsufficientData means the caller required at least one data
	// row beneath the header and none was present.
	ErrInsufficientData = errors.New("insufficient_data")
)

// RowData maps a column header to the cell value of one data row.
type RowData map[string]string

// Sheet is the parsed first worksheet of an uploaded workbook.
type Sheet struct {
	Headers []string
	Rows    []RowData
}

// Parse reads an uploaded tabular payload. CSV content types select the
// CSV reader; everything else is opened as an xlsx workbook, first
// worksheet only. The first row is the header row; every following row
// becomes a RowData keyed by those headers. Cells beyond the header
// width are dropped, missing trailing cells read as empty strings. A
// sheet with a header row and no data rows parses successfully with
// zero rows.
func Parse(data []byte, contentType string) (*Sheet, error) {
	if len(data) == 0 {
		return nil, ErrInvalidSpreadsheet
	}
	if isCSVContentType(contentType) {
		return parseCSV(data)
	}
	return parseWorkbook(data)
}

func isCSVContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "text/csv", "application/csv", "text/comma-separated-values":
		return true
	}
	return false
}

func parseWorkbook(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidSpreadsheet
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrInvalidSpreadsheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ErrInvalidSpreadsheet
	}
	return buildSheet(rows)
}

func parseCSV(data []byte) (*Sheet, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, ErrInvalidSpreadsheet
	}
	return buildSheet(records)
}

func buildSheet(rows [][]string) (*Sheet, error) {
	if len(rows) == 0 {
		return nil, ErrInvalidSpreadsheet
	}

	headers := make([]string, 0, len(rows[0]))
	for _, cell := range rows[0] {
		headers = append(headers, strings.TrimSpace(cell))
	}
	if !hasAnyHeader(headers) {
		return nil, ErrInvalidSpreadsheet
	}

	dataRows := make([]RowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RowData, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = row[i]
			}
			rowData[header] = value
		}
		dataRows = append(dataRows, rowData)
	}

	return &Sheet{Headers: headers, Rows: dataRows}, nil
}

func hasAnyHeader(headers []string) bool {
	for _, h := range headers {
		if h != "" {
			return true
		}
	}
	return false
}
