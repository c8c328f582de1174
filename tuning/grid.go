// tuning/grid.go
package tuning

import (
	"errors"

	"github.com/gewnthar/fareprice/forest"
)

// Grid is the discrete search space. Every axis must be non-empty.
type Grid struct {
	NEstimators     []int    `json:"n_estimators"`
	MaxFeatures     []string `json:"max_features"`
	MaxDepth        []int    `json:"max_depth"`
	MinSamplesSplit []int    `json:"min_samples_split"`
	MinSamplesLeaf  []int    `json:"min_samples_leaf"`
}

// DefaultGrid is 100..1200 trees, auto/sqrt features, depth 5..30 and the
// usual split/leaf minimums: 2880 points.
func DefaultGrid() Grid {
	return Grid{
		NEstimators:     linspace(100, 1200, 12),
		MaxFeatures:     []string{"auto", "sqrt"},
		MaxDepth:        linspace(5, 30, 6),
		MinSamplesSplit: []int{2, 5, 10, 15, 100},
		MinSamplesLeaf:  []int{1, 2, 5, 10},
	}
}

// linspace returns num evenly spaced integers from start to stop inclusive.
func linspace(start, stop, num int) []int {
	if num == 1 {
		return []int{start}
	}
	out := make([]int, num)
	for i := range out {
		out[i] = start + (stop-start)*i/(num-1)
	}
	return out
}

func (g Grid) dims() []int {
	return []int{len(g.NEstimators), len(g.MaxFeatures), len(g.MaxDepth), len(g.MinSamplesSplit), len(g.MinSamplesLeaf)}
}

// Validate rejects empty axes.
func (g Grid) Validate() error {
	for _, d := range g.dims() {
		if d == 0 {
			return errors.New("search grid has an empty axis")
		}
	}
	return nil
}

// Size is the number of grid points.
func (g Grid) Size() int {
	size := 1
	for _, d := range g.dims() {
		size *= d
	}
	return size
}

// At decodes grid point i (0 <= i < Size) onto base. The last axis varies fastest.
func (g Grid) At(i int, base forest.Params) forest.Params {
	dims := g.dims()
	coords := make([]int, len(dims))
	for a := len(dims) - 1; a >= 0; a-- {
		coords[a] = i % dims[a]
		i /= dims[a]
	}
	p := base
	p.NEstimators = g.NEstimators[coords[0]]
	p.MaxFeatures = g.MaxFeatures[coords[1]]
	p.MaxDepth = g.MaxDepth[coords[2]]
	p.MinSamplesSplit = g.MinSamplesSplit[coords[3]]
	p.MinSamplesLeaf = g.MinSamplesLeaf[coords[4]]
	return p
}
