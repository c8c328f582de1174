// features/encoder.go
package features

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gewnthar/fareprice/utils"
)

// ErrUnseenCategory is returned when a strict encoder meets a category it was not fitted on.
var ErrUnseenCategory = errors.New("unseen category")

// OneHotEncoder turns one nominal field into indicator columns. The first
// category (in sorted order) is the reference level and gets no column.
type OneHotEncoder struct {
	Prefix     string
	Categories []string // sorted, distinct; set by Fit
	Strict     bool     // unseen values fail instead of encoding as all zeros

	index map[string]int
}

// NewOneHotEncoder returns an unfitted encoder whose columns are named "<prefix>_<category>".
func NewOneHotEncoder(prefix string, strict bool) *OneHotEncoder {
	return &OneHotEncoder{Prefix: prefix, Strict: strict}
}

// Fit remembers the distinct normalized values.
func (e *OneHotEncoder) Fit(values []string) {
	seen := make(map[string]struct{}, 16)
	var cats []string
	for _, v := range values {
		v = utils.NormalizeLabel(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		cats = append(cats, v)
	}
	slices.Sort(cats)
	e.Categories = cats
	e.buildIndex()
}

func (e *OneHotEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Categories))
	for i, c := range e.Categories {
		e.index[c] = i
	}
}

// Fitted reports whether Fit (or a restore) has run.
func (e *OneHotEncoder) Fitted() bool { return e.index != nil }

// Width is the number of indicator columns: distinct categories minus one.
func (e *OneHotEncoder) Width() int {
	if len(e.Categories) == 0 {
		return 0
	}
	return len(e.Categories) - 1
}

// Columns names the indicator columns in order.
func (e *OneHotEncoder) Columns() []string {
	cols := make([]string, 0, e.Width())
	for _, c := range e.Categories[min(1, len(e.Categories)):] {
		cols = append(cols, e.Prefix+"_"+c)
	}
	return cols
}

// Encode writes the indicators for value into dst (len Width) and reports
// whether the value was known. dst is zeroed first, so the reference category
// and ignored unseen values both encode as all zeros.
func (e *OneHotEncoder) Encode(value string, dst []float64) (known bool, err error) {
	if !e.Fitted() {
		return false, fmt.Errorf("encoder %s used before Fit", e.Prefix)
	}
	if len(dst) != e.Width() {
		return false, fmt.Errorf("encoder %s: destination has %d slots, want %d", e.Prefix, len(dst), e.Width())
	}
	clear(dst)
	i, ok := e.index[utils.NormalizeLabel(value)]
	if !ok {
		if e.Strict {
			return false, fmt.Errorf("%w: %s=%q", ErrUnseenCategory, e.Prefix, value)
		}
		return false, nil
	}
	if i > 0 {
		dst[i-1] = 1
	}
	return true, nil
}
