// ingest/xlsx_parser.go
package ingest

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// ParseFlightsXlsx reads the named worksheet of an .xlsx workbook and returns
// the decoded flights. An empty sheet name selects the first worksheet.
func ParseFlightsXlsx(reader io.Reader, sheet string) (*FlightSet, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no worksheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet %q is empty", sheet)
	}

	rr := newRowReader(rows)
	set, err := decodeFlights(rr, rr.pos)
	if err != nil {
		return nil, fmt.Errorf("failed to decode worksheet %q: %w", sheet, err)
	}
	slog.Debug("Parsed flights from workbook.", "sheet", sheet, "rows", set.Len(), "labeled", set.Labeled)
	return set, nil
}

// rowReader feeds spreadsheet rows to csvutil. excelize trims trailing empty
// cells, so short rows are padded to the header width.
type rowReader struct {
	rows  [][]string
	width int
	next  int
}

// pos is the 0-based sheet index of the row Read returned last.
func (r *rowReader) pos() int { return r.next - 1 }

func newRowReader(rows [][]string) *rowReader {
	return &rowReader{rows: rows, width: len(rows[0])}
}

func (r *rowReader) Read() ([]string, error) {
	for r.next < len(r.rows) {
		row := r.rows[r.next]
		r.next++
		if r.next > 1 && isBlank(row) {
			continue // fully empty rows between records
		}
		if len(row) < r.width {
			padded := make([]string, r.width)
			copy(padded, row)
			row = padded
		}
		return row[:r.width], nil
	}
	return nil, io.EOF
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
