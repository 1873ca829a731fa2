package spreadsheet

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseHeadersAndRows(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"to", "name", "amount"},
		{"alice@example.com", "Alice", "10"},
		{"bob@example.com", "Bob", "20"},
	})

	sheet, err := Parse(data, "")
	require.NoError(t, err)
	require.Equal(t, []string{"to", "name", "amount"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)
	require.Equal(t, "alice@example.com", sheet.Rows[0]["to"])
	require.Equal(t, "Bob", sheet.Rows[1]["name"])
	require.Equal(t, "20", sheet.Rows[1]["amount"])
}

func TestParseShortRowReadsEmpty(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"to", "name", "amount"},
		{"carol@example.com"},
	})

	sheet, err := Parse(data, "")
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	require.Equal(t, "carol@example.com", sheet.Rows[0]["to"])
	require.Equal(t, "", sheet.Rows[0]["name"])
	require.Equal(t, "", sheet.Rows[0]["amount"])
}

func TestParseTrimsHeaderWhitespace(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{" to ", "  name"},
		{"dave@example.com", "Dave"},
	})

	sheet, err := Parse(data, "")
	require.NoError(t, err)
	require.Equal(t, []string{"to", "name"}, sheet.Headers)
	require.Equal(t, "dave@example.com", sheet.Rows[0]["to"])
}

func TestParseGarbageBytes(t *testing.T) {
	_, err := Parse([]byte("definitely not a zip archive"), "")
	require.ErrorIs(t, err, ErrInvalidSpreadsheet)
}

func TestParseEmptyPayload(t *testing.T) {
	_, err := Parse(nil, "")
	require.ErrorIs(t, err, ErrInvalidSpreadsheet)
}

func TestParseHeaderOnly(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"to", "name"},
	})

	sheet, err := Parse(data, "")
	require.NoError(t, err)
	require.Equal(t, []string{"to", "name"}, sheet.Headers)
	require.Empty(t, sheet.Rows)
}

func TestParseEmptyWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := Parse(buf.Bytes(), "")
	require.ErrorIs(t, err, ErrInvalidSpreadsheet)
}

func TestParseWorkbookWithoutSheets(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>` +
			`</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>` +
			`</Relationships>`,
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheets/></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
	}
	for name, body := range parts {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	_, err := Parse(buf.Bytes(), "")
	require.ErrorIs(t, err, ErrInvalidSpreadsheet)
}

func TestParseCSV(t *testing.T) {
	data := []byte("to, name ,amount\nalice@example.com,Alice,10\nbob@example.com\n")

	sheet, err := Parse(data, "text/csv")
	require.NoError(t, err)
	require.Equal(t, []string{"to", "name", "amount"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)
	require.Equal(t, "alice@example.com", sheet.Rows[0]["to"])
	require.Equal(t, "10", sheet.Rows[0]["amount"])
	require.Equal(t, "bob@example.com", sheet.Rows[1]["to"])
	require.Equal(t, "", sheet.Rows[1]["name"])
}

func TestParseCSVWithCharsetParameter(t *testing.T) {
	data := []byte("email\ncarol@example.com\n")

	sheet, err := Parse(data, "text/csv; charset=utf-8")
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	require.Equal(t, "carol@example.com", sheet.Rows[0]["email"])
}

func TestParseCSVHeaderOnly(t *testing.T) {
	sheet, err := Parse([]byte("to,name\n"), "text/csv")
	require.NoError(t, err)
	require.Equal(t, []string{"to", "name"}, sheet.Headers)
	require.Empty(t, sheet.Rows)
}

func TestParseCSVMalformedQuoting(t *testing.T) {
	_, err := Parse([]byte("to,name\n\"unterminated,x\n"), "text/csv")
	require.ErrorIs(t, err, ErrInvalidSpreadsheet)
}
