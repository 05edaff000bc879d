package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV reads a CSV payload. Ragged rows are padded or truncated to the
// header width; a leading UTF-8 BOM is ignored.
func DecodeCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return buildTable(records, FormatCSV)
}

// DecodeXLSX reads the first sheet of a workbook.
func DecodeXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return buildTable(rows, FormatXLSX)
}

func buildTable(records [][]string, format Format) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	header := records[0]
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}

	return &Table{Columns: header, Rows: rows, Format: format}, nil
}
