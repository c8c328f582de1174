// tuning/search.go
package tuning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/gewnthar/fareprice/forest"
	"github.com/gewnthar/fareprice/metrics"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RandomizedSearch samples NIter distinct grid points and scores each by
// k-fold negative mean squared error.
type RandomizedSearch struct {
	Grid  Grid
	NIter int
	Folds int
	Seed  int64
	Base  forest.Params // fields the grid doesn't cover (seed, jobs)
}

// Candidate is one scored grid point.
type Candidate struct {
	Params     forest.Params `json:"params"`
	FoldScores []float64     `json:"fold_scores"`
	MeanScore  float64       `json:"mean_score"`
	StdScore   float64       `json:"std_score"`
	Rank       int           `json:"rank"` // 1 is best
}

// SearchResult holds every candidate, the winner, and the winner refit on all rows.
type SearchResult struct {
	Candidates []Candidate
	Best       Candidate
	Estimator  *forest.Forest
}

// Sample returns the grid indices to evaluate: NIter distinct points drawn
// without replacement, or the whole grid when it is smaller.
func (s *RandomizedSearch) Sample() []int {
	size := s.Grid.Size()
	perm := rand.New(rand.NewSource(s.Seed)).Perm(size)
	if s.NIter < size {
		perm = perm[:s.NIter]
	}
	return perm
}

// Fit runs the search on X, y. Context cancellation is checked between fits.
func (s *RandomizedSearch) Fit(ctx context.Context, X mat.Matrix, y []float64) (*SearchResult, error) {
	if err := s.Grid.Validate(); err != nil {
		return nil, err
	}
	if s.NIter < 1 {
		return nil, errors.New("n_iter must be positive")
	}
	n, _ := X.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("target has %d values for %d rows", len(y), n)
	}
	folds, err := KFold(n, s.Folds)
	if err != nil {
		return nil, err
	}

	points := s.Sample()
	slog.Info("Randomized search started.", "candidates", len(points), "folds", len(folds), "fits", len(points)*len(folds))

	candidates := make([]Candidate, 0, len(points))
	for ci, point := range points {
		params := s.Grid.At(point, s.Base)
		scores := make([]float64, len(folds))
		for fi, fold := range folds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			score, err := fitAndScore(ctx, params, X, y, fold)
			if err != nil {
				return nil, fmt.Errorf("candidate %d fold %d: %w", ci+1, fi+1, err)
			}
			scores[fi] = score
		}
		mean, std := stat.PopMeanStdDev(scores, nil)
		c := Candidate{Params: params, FoldScores: scores, MeanScore: mean, StdScore: std}
		candidates = append(candidates, c)
		slog.Debug("Candidate scored.",
			"candidate", ci+1,
			"n_estimators", params.NEstimators,
			"max_features", params.MaxFeatures,
			"max_depth", params.MaxDepth,
			"min_samples_split", params.MinSamplesSplit,
			"min_samples_leaf", params.MinSamplesLeaf,
			"mean_neg_mse", mean,
			"std", std)
	}

	rankCandidates(candidates)
	best := candidates[0]
	for _, c := range candidates {
		if c.Rank == 1 {
			best = c
			break
		}
	}

	estimator := forest.NewRandomForest(best.Params)
	if err := estimator.FitContext(ctx, X, y); err != nil {
		return nil, fmt.Errorf("refit best candidate: %w", err)
	}
	slog.Info("Randomized search finished.", "best_mean_neg_mse", best.MeanScore, "best_params", best.Params)

	return &SearchResult{Candidates: candidates, Best: best, Estimator: estimator}, nil
}

func fitAndScore(ctx context.Context, params forest.Params, X mat.Matrix, y []float64, fold Fold) (float64, error) {
	model := forest.NewRandomForest(params)
	if err := model.FitContext(ctx, takeRows(X, fold.Train), take(y, fold.Train)); err != nil {
		return 0, err
	}
	pred, err := model.Predict(takeRows(X, fold.Test))
	if err != nil {
		return 0, err
	}
	return metrics.NegMSE(take(y, fold.Test), pred)
}

// rankCandidates assigns Rank by descending mean score; ties share the lower
// rank and earlier candidates win among equals.
func rankCandidates(cs []Candidate) {
	order := make([]int, len(cs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return cs[order[a]].MeanScore > cs[order[b]].MeanScore })
	for pos, i := range order {
		if pos > 0 && cs[i].MeanScore == cs[order[pos-1]].MeanScore {
			cs[i].Rank = cs[order[pos-1]].Rank
			continue
		}
		cs[i].Rank = pos + 1
	}
}
