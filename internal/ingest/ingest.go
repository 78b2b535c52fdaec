// Package ingest loads provider records from CSV and XLSX files and
// writes cleaned results back out as CSV. Column headers become record
// field names, lowercased, so arbitrary extra columns survive the
// round trip.
package ingest

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/clearcare/provider-cli/internal/model"
)

// ReadCSV parses provider records from CSV data. The first row is the
// header; empty rows are skipped.
func ReadCSV(r io.Reader) ([]model.ProviderRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv")
	}
	return rowsToRecords(rows)
}

// ReadXLSX parses provider records from the first sheet of an XLSX
// file. The first row is the header.
func ReadXLSX(path string) ([]model.ProviderRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	rows, err := sheetRows(f)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows)
}

// ReadXLSXReader parses records from XLSX data held in memory, for
// uploads that never touch disk.
func ReadXLSXReader(r io.Reader) ([]model.ProviderRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read xlsx data")
	}

	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx data")
	}
	rows, err := sheetRows(f)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows)
}

// sheetRows flattens the first sheet into string cells.
func sheetRows(f *xlsx.File) ([][]string, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx file has no sheets")
	}
	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func rowsToRecords(rows [][]string) ([]model.ProviderRecord, error) {
	if len(rows) == 0 {
		return nil, eris.New("ingest: file is empty")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var records []model.ProviderRecord
	for _, row := range rows[1:] {
		rec := model.ProviderRecord{}
		empty := true
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			v := strings.TrimSpace(cell)
			rec[header[i]] = v
			if v != "" {
				empty = false
			}
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records, nil
}

// WriteCSV renders cleaned results as CSV. Columns are the union of all
// cleaned fields in sorted order, followed by accuracy_score and a
// joined issues column.
func WriteCSV(w io.Writer, results []*model.CleaningResult) error {
	fieldSet := map[string]bool{}
	for _, res := range results {
		for k := range res.CleanedData {
			fieldSet[k] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	writer := csv.NewWriter(w)
	header := append(append([]string{}, fields...), "accuracy_score", "issues")
	if err := writer.Write(header); err != nil {
		return eris.Wrap(err, "ingest: write csv header")
	}

	for _, res := range results {
		flat := res.Flatten()
		row := make([]string, 0, len(header))
		for _, f := range fields {
			row = append(row, res.CleanedData[f])
		}
		row = append(row, toCell(flat["accuracy_score"]), toCell(flat["issues"]))
		if err := writer.Write(row); err != nil {
			return eris.Wrap(err, "ingest: write csv row")
		}
	}

	writer.Flush()
	return eris.Wrap(writer.Error(), "ingest: flush csv")
}

func toCell(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}
