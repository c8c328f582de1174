package tuning

import (
	"context"
	"math/rand"
	"testing"

	"github.com/gewnthar/fareprice/forest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func linearData(n int) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(11))
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b, c := float64(i%12), float64(i%5), rng.Float64()
		X.SetRow(i, []float64{a, b, c})
		y[i] = 1000*a + 50*b
	}
	return X, y
}

func TestTrainTestSplit(t *testing.T) {
	X, y := linearData(50)
	s, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)

	assert.Len(t, s.YTest, 10)
	assert.Len(t, s.YTrain, 40)
	r, c := s.XTrain.Dims()
	assert.Equal(t, 40, r)
	assert.Equal(t, 3, c)

	// Rows stay aligned with their targets.
	for i, v := range s.YTrain {
		assert.Equal(t, 1000*s.XTrain.At(i, 0)+50*s.XTrain.At(i, 1), v)
	}

	again, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, s.YTest, again.YTest, "same seed, same split")

	other, err := TrainTestSplit(X, y, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, s.YTest, other.YTest)
}

func TestTrainTestSplitErrors(t *testing.T) {
	X, y := linearData(5)
	_, err := TrainTestSplit(X, y[:4], 0.2, 1)
	assert.Error(t, err)
	_, err = TrainTestSplit(X, y, 0, 1)
	assert.Error(t, err)
	_, err = TrainTestSplit(mat.NewDense(1, 1, nil), []float64{1}, 0.2, 1)
	assert.Error(t, err)
}

func TestKFoldCoversEveryRowOnce(t *testing.T) {
	folds, err := KFold(12, 5)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	sizes := []int{}
	seen := map[int]int{}
	for _, f := range folds {
		sizes = append(sizes, len(f.Test))
		assert.Equal(t, 12, len(f.Test)+len(f.Train))
		for _, r := range f.Test {
			seen[r]++
			assert.NotContains(t, f.Train, r)
		}
	}
	assert.Equal(t, []int{3, 3, 2, 2, 2}, sizes)
	assert.Len(t, seen, 12)
	for r, n := range seen {
		assert.Equal(t, 1, n, r)
	}
	assert.Equal(t, []int{0, 1, 2}, folds[0].Test)

	_, err = KFold(3, 5)
	assert.Error(t, err)
	_, err = KFold(10, 1)
	assert.Error(t, err)
}

func TestDefaultGrid(t *testing.T) {
	g := DefaultGrid()
	assert.Equal(t, []int{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200}, g.NEstimators)
	assert.Equal(t, []int{5, 10, 15, 20, 25, 30}, g.MaxDepth)
	assert.Equal(t, 2880, g.Size())
	require.NoError(t, g.Validate())

	base := forest.DefaultParams()
	base.Seed = 3
	first := g.At(0, base)
	assert.Equal(t, 100, first.NEstimators)
	assert.Equal(t, "auto", first.MaxFeatures)
	assert.Equal(t, 5, first.MaxDepth)
	assert.Equal(t, 2, first.MinSamplesSplit)
	assert.Equal(t, 1, first.MinSamplesLeaf)
	assert.Equal(t, int64(3), first.Seed)

	last := g.At(g.Size()-1, base)
	assert.Equal(t, 1200, last.NEstimators)
	assert.Equal(t, "sqrt", last.MaxFeatures)
	assert.Equal(t, 30, last.MaxDepth)
	assert.Equal(t, 100, last.MinSamplesSplit)
	assert.Equal(t, 10, last.MinSamplesLeaf)

	assert.Equal(t, 2, g.At(1, base).MinSamplesLeaf)

	assert.Error(t, Grid{}.Validate())
}

func TestSampleDrawsDistinctPoints(t *testing.T) {
	s := &RandomizedSearch{Grid: DefaultGrid(), NIter: 10, Seed: 42}
	points := s.Sample()
	require.Len(t, points, 10)
	seen := map[int]bool{}
	for _, p := range points {
		assert.False(t, seen[p])
		seen[p] = true
		assert.Less(t, p, 2880)
	}
	assert.Equal(t, points, s.Sample())

	small := &RandomizedSearch{Grid: Grid{
		NEstimators: []int{5}, MaxFeatures: []string{"auto"}, MaxDepth: []int{2, 4},
		MinSamplesSplit: []int{2}, MinSamplesLeaf: []int{1},
	}, NIter: 10}
	assert.Len(t, small.Sample(), 2)
}

func smallSearch() *RandomizedSearch {
	base := forest.DefaultParams()
	base.Seed = 5
	return &RandomizedSearch{
		Grid: Grid{
			NEstimators:     []int{5, 10},
			MaxFeatures:     []string{"auto", "sqrt"},
			MaxDepth:        []int{1, 8},
			MinSamplesSplit: []int{2},
			MinSamplesLeaf:  []int{1},
		},
		NIter: 4,
		Folds: 3,
		Seed:  42,
		Base:  base,
	}
}

func TestRandomizedSearchFit(t *testing.T) {
	X, y := linearData(60)
	res, err := smallSearch().Fit(context.Background(), X, y)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 4)
	ranks := map[int]bool{}
	for _, c := range res.Candidates {
		assert.Len(t, c.FoldScores, 3)
		assert.LessOrEqual(t, c.MeanScore, 0.0)
		ranks[c.Rank] = true
	}
	assert.True(t, ranks[1])
	for _, c := range res.Candidates {
		assert.LessOrEqual(t, c.MeanScore, res.Best.MeanScore)
	}
	assert.Equal(t, 1, res.Best.Rank)
	require.NotNil(t, res.Estimator)
	assert.Equal(t, res.Best.Params.NEstimators, len(res.Estimator.Trees))

	again, err := smallSearch().Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, res.Best, again.Best, "seeded search is reproducible")
}

func TestRandomizedSearchErrors(t *testing.T) {
	X, y := linearData(10)

	s := smallSearch()
	s.NIter = 0
	_, err := s.Fit(context.Background(), X, y)
	assert.Error(t, err)

	s = smallSearch()
	s.Folds = 20
	_, err = s.Fit(context.Background(), X, y)
	assert.Error(t, err)

	s = smallSearch()
	s.Grid.MaxDepth = nil
	_, err = s.Fit(context.Background(), X, y)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = smallSearch().Fit(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankCandidates(t *testing.T) {
	cs := []Candidate{{MeanScore: -3}, {MeanScore: -1}, {MeanScore: -3}, {MeanScore: -2}}
	rankCandidates(cs)
	assert.Equal(t, []int{3, 1, 3, 2}, []int{cs[0].Rank, cs[1].Rank, cs[2].Rank, cs[3].Rank})
}
