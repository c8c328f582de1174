// tuning/split.go
package tuning

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Split is a train/held-out partition of a design matrix.
type Split struct {
	XTrain *mat.Dense
	YTrain []float64
	XTest  *mat.Dense
	YTest  []float64
}

// TrainTestSplit shuffles rows with a seeded source and holds out
// ceil(testSize*n) of them. Both sides keep at least one row.
func TrainTestSplit(X mat.Matrix, y []float64, testSize float64, seed int64) (*Split, error) {
	n, _ := X.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("target has %d values for %d rows", len(y), n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if n < 2 || nTest >= n {
		return nil, fmt.Errorf("cannot hold out %d of %d rows", nTest, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]
	return &Split{
		XTrain: takeRows(X, trainIdx),
		YTrain: take(y, trainIdx),
		XTest:  takeRows(X, testIdx),
		YTest:  take(y, testIdx),
	}, nil
}

func takeRows(X mat.Matrix, idx []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

func take(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}

// Fold is one cross-validation partition, as row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold partitions n rows into k contiguous, unshuffled folds. The first n%k
// folds hold one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", n, k)
	}
	folds := make([]Fold, k)
	start := 0
	for i := range folds {
		size := n / k
		if i < n%k {
			size++
		}
		end := start + size
		test := make([]int, 0, size)
		train := make([]int, 0, n-size)
		for r := 0; r < n; r++ {
			if r >= start && r < end {
				test = append(test, r)
			} else {
				train = append(train, r)
			}
		}
		folds[i] = Fold{Train: train, Test: test}
		start = end
	}
	return folds, nil
}
