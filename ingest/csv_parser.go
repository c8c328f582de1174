// ingest/csv_parser.go
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/gewnthar/fareprice/models"
	"github.com/jszwec/csvutil"
)

// FlightSet is a loaded fare sheet.
type FlightSet struct {
	Flights []models.Flight
	Labeled bool // True when the sheet carries a Price column
}

// Len returns the number of records.
func (s *FlightSet) Len() int { return len(s.Flights) }

// ParseFlightsCsv takes an io.Reader containing fare CSV data
// and returns the decoded flights.
func ParseFlightsCsv(reader io.Reader) (*FlightSet, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	set, err := decodeFlights(r, func() int {
		line, _ := r.FieldPos(0)
		return line
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode flight CSV data: %w", err)
	}
	slog.Debug("Parsed flights from CSV.", "rows", set.Len(), "labeled", set.Labeled)
	return set, nil
}

// decodeFlights maps records onto models.Flight by header name.
// Columns the struct doesn't know (e.g. an index column) are ignored.
// posOf reports the source position of the record r returned last; each
// flight's Line is its distance from the header, so skipped blank rows
// still count.
func decodeFlights(r csvutil.Reader, posOf func() int) (*FlightSet, error) {
	// csvutil assumes the first line is a header and uses it to map to struct fields
	// based on the `csv:"..."` tags in models.Flight.
	decoder, err := csvutil.NewDecoder(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("sheet is empty: no header row")
		}
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	header := decoder.Header()
	if missing := missingHeaders(header); len(missing) > 0 {
		return nil, fmt.Errorf("sheet is missing columns %v", missing)
	}

	headerPos := posOf()
	set := &FlightSet{Labeled: slices.Contains(header, models.PriceHeader)}
	for {
		var f models.Flight
		if err := decoder.Decode(&f); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(set.Flights)+1, err)
		}
		f.Line = posOf() - headerPos
		set.Flights = append(set.Flights, f)
	}
	return set, nil
}

func missingHeaders(header []string) []string {
	var missing []string
	for _, h := range models.FlightHeaders {
		if !slices.Contains(header, h) {
			missing = append(missing, h)
		}
	}
	return missing
}
