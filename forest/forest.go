// forest/forest.go
package forest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Forest is an averaging ensemble of regression trees.
type Forest struct {
	Params      Params    `msgpack:"params"`
	NFeatures   int       `msgpack:"n_features"`
	Trees       []Tree    `msgpack:"trees"`
	Importances []float64 `msgpack:"importances"`
}

// NewRandomForest returns an unfitted forest of bootstrapped best-split trees.
func NewRandomForest(p Params) *Forest {
	p.Bootstrap = true
	p.Splitter = SplitterBest
	return &Forest{Params: p}
}

// NewExtraTrees returns an unfitted ensemble of extremely randomized trees:
// every tree sees the full sample and splits on random thresholds.
func NewExtraTrees(p Params) *Forest {
	p.Bootstrap = false
	p.Splitter = SplitterRandom
	return &Forest{Params: p}
}

// Fitted reports whether the forest holds trees.
func (f *Forest) Fitted() bool { return len(f.Trees) > 0 }

// Fit grows the ensemble on X (rows x features) and y.
func (f *Forest) Fit(X mat.Matrix, y []float64) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation between trees. Trees are grown
// concurrently, each from a seed drawn up front, so the result only depends
// on Params.Seed and not on scheduling.
func (f *Forest) FitContext(ctx context.Context, X mat.Matrix, y []float64) error {
	if err := f.Params.Validate(); err != nil {
		return fmt.Errorf("invalid forest params: %w", err)
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.New("cannot fit on an empty matrix")
	}
	if len(y) != rows {
		return fmt.Errorf("target has %d values for %d rows", len(y), rows)
	}
	maxFeatures, err := f.Params.featuresPerSplit(cols)
	if err != nil {
		return err
	}

	dense := asDense(X)
	raw := dense.RawMatrix()

	master := rand.New(rand.NewSource(f.Params.Seed))
	seeds := make([]int64, f.Params.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]Tree, f.Params.NEstimators)
	perTree := make([][]float64, f.Params.NEstimators)

	jobs := f.Params.NJobs
	if jobs == 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				data:        raw.Data,
				stride:      raw.Stride,
				nCols:       cols,
				y:           y,
				p:           f.Params,
				maxFeatures: maxFeatures,
				rng:         rand.New(rand.NewSource(seeds[i])),
				importance:  make([]float64, cols),
			}
			idx := make([]int, rows)
			if f.Params.Bootstrap {
				for j := range idx {
					idx[j] = b.rng.Intn(rows)
				}
			} else {
				for j := range idx {
					idx[j] = j
				}
			}
			b.build(idx, 0)
			trees[i] = Tree{Nodes: b.nodes}
			perTree[i] = b.importance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.NFeatures = cols
	f.Trees = trees
	f.Importances = averageImportances(perTree, cols)
	return nil
}

// averageImportances normalizes each tree's decrease vector, averages over
// trees, and renormalizes. Single-leaf trees contribute nothing.
func averageImportances(perTree [][]float64, cols int) []float64 {
	out := make([]float64, cols)
	for _, imp := range perTree {
		total := floats.Sum(imp)
		if total <= 0 {
			continue
		}
		floats.AddScaled(out, 1/total, imp)
	}
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// Predict returns the mean tree prediction for every row of X.
func (f *Forest) Predict(X mat.Matrix) ([]float64, error) {
	if !f.Fitted() {
		return nil, errors.New("forest used before Fit")
	}
	rows, cols := X.Dims()
	if cols != f.NFeatures {
		return nil, fmt.Errorf("matrix has %d features, forest was fitted on %d", cols, f.NFeatures)
	}
	dense := asDense(X)
	out := make([]float64, rows)
	for i := range out {
		x := dense.RawRowView(i)
		var sum float64
		for t := range f.Trees {
			sum += f.Trees[t].predictRow(x)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// FeatureImportances returns the normalized impurity-decrease importances, one per column.
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}

func asDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}
