// ingest/loader.go
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gewnthar/fareprice/models"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor a workbook.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// LoadFlights opens a fare sheet from disk, choosing the parser by extension.
// sheet is only consulted for workbooks.
func LoadFlights(path, sheet string) (*FlightSet, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".xlsx", ".xlsm":
	default:
		return nil, fmt.Errorf("%s: %w %q", path, ErrUnsupportedFormat, ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer file.Close()

	var set *FlightSet
	if ext == ".csv" {
		set, err = ParseFlightsCsv(file)
	} else {
		set, err = ParseFlightsXlsx(file, sheet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}

	slog.Info("Dataset loaded.", "path", path, "rows", set.Len(), "labeled", set.Labeled)
	return set, nil
}

// DropMissing removes every record with a missing field and reports how many
// were removed. Records are never imputed. The input set is not modified.
func DropMissing(set *FlightSet) (*FlightSet, int) {
	kept := make([]models.Flight, 0, len(set.Flights))
	for _, f := range set.Flights {
		if f.HasMissing(set.Labeled) {
			continue
		}
		kept = append(kept, f)
	}
	dropped := len(set.Flights) - len(kept)
	if dropped > 0 {
		slog.Info("Dropped records with missing values.", "dropped", dropped, "kept", len(kept))
	}
	return &FlightSet{Flights: kept, Labeled: set.Labeled}, dropped
}
