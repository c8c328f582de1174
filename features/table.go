// features/table.go
package features

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"
)

// TargetColumn names the label column in exports.
const TargetColumn = "Price"

// Table is an engineered, purely numeric record set.
type Table struct {
	Columns []string
	X       *mat.Dense // rows x len(Columns)
	Target  []float64  // nil for unlabeled data
}

// Rows returns the number of records.
func (t *Table) Rows() int {
	if t.X == nil {
		return 0
	}
	r, _ := t.X.Dims()
	return r
}

// column returns a copy of the named column, or an error when absent.
func (t *Table) column(name string) ([]float64, error) {
	for j, c := range t.Columns {
		if c == name {
			return mat.Col(nil, j, t.X), nil
		}
	}
	return nil, fmt.Errorf("no column %q", name)
}

// DataFrame exposes the table as a gota DataFrame, target last when present.
func (t *Table) DataFrame() dataframe.DataFrame {
	cols := make([]series.Series, 0, len(t.Columns)+1)
	for j, name := range t.Columns {
		var values []float64
		if t.Rows() > 0 {
			values = mat.Col(nil, j, t.X)
		}
		cols = append(cols, series.New(values, series.Float, name))
	}
	if t.Target != nil {
		cols = append(cols, series.New(t.Target, series.Float, TargetColumn))
	}
	return dataframe.New(cols...)
}

// WriteCSV exports the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	df := t.DataFrame()
	if df.Err != nil {
		return fmt.Errorf("failed to build feature frame: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write feature frame: %w", err)
	}
	return nil
}
