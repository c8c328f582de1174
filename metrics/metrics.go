// metrics/metrics.go
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Report bundles the regression scores printed after each evaluation.
type Report struct {
	R2   float64 `json:"r2"`
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
}

func check(yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.New("no samples to score")
	}
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("length mismatch: %d true values, %d predictions", len(yTrue), len(yPred))
	}
	return nil
}

// MSE is the mean squared error.
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue)), nil
}

// NegMSE is -MSE, so that larger is better when ranking candidates.
func NegMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	return -mse, err
}

// RMSE is the root mean squared error.
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	return math.Sqrt(mse), err
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	diff := make([]float64, len(yTrue))
	floats.SubTo(diff, yTrue, yPred)
	return floats.Norm(diff, 1) / float64(len(yTrue)), nil
}

// R2 is the coefficient of determination. A constant yTrue scores 1 for a
// perfect prediction and 0 otherwise.
func R2(yTrue, yPred []float64) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	if stat.Variance(yTrue, nil) == 0 || len(yTrue) == 1 {
		if floats.Equal(yTrue, yPred) {
			return 1, nil
		}
		return 0, nil
	}
	return stat.RSquaredFrom(yPred, yTrue, nil), nil
}

// Evaluate computes every score at once.
func Evaluate(yTrue, yPred []float64) (Report, error) {
	if err := check(yTrue, yPred); err != nil {
		return Report{}, err
	}
	r2, _ := R2(yTrue, yPred)
	mae, _ := MAE(yTrue, yPred)
	mse, _ := MSE(yTrue, yPred)
	return Report{R2: r2, MAE: mae, MSE: mse, RMSE: math.Sqrt(mse)}, nil
}
