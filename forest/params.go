// forest/params.go
package forest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Splitter picks how a node chooses its threshold.
type Splitter int

const (
	// SplitterBest scans every threshold of each candidate feature.
	SplitterBest Splitter = iota
	// SplitterRandom draws one uniform threshold per candidate feature (extremely randomized trees).
	SplitterRandom
)

func (s Splitter) String() string {
	switch s {
	case SplitterBest:
		return "best"
	case SplitterRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Params configures an ensemble. The zero value is not valid; start from DefaultParams.
type Params struct {
	NEstimators     int      `msgpack:"n_estimators" json:"n_estimators"`
	MaxFeatures     string   `msgpack:"max_features" json:"max_features"` // "auto", "sqrt", "log2" or a count
	MaxDepth        int      `msgpack:"max_depth" json:"max_depth"`       // 0 grows until leaves are pure
	MinSamplesSplit int      `msgpack:"min_samples_split" json:"min_samples_split"`
	MinSamplesLeaf  int      `msgpack:"min_samples_leaf" json:"min_samples_leaf"`
	Bootstrap       bool     `msgpack:"bootstrap" json:"bootstrap"`
	Splitter        Splitter `msgpack:"splitter" json:"splitter"`
	Seed            int64    `msgpack:"seed" json:"seed"`
	NJobs           int      `msgpack:"-" json:"-"` // 0 uses GOMAXPROCS
}

// DefaultParams matches a stock random forest regressor: 100 bootstrapped
// trees over all features, grown to purity.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MaxFeatures:     "auto",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Splitter:        SplitterBest,
	}
}

// Validate rejects settings no tree can be grown with.
func (p Params) Validate() error {
	if p.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be positive, got %d", p.NEstimators)
	}
	if p.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2, got %d", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be positive, got %d", p.MinSamplesLeaf)
	}
	if p.NJobs < 0 {
		return fmt.Errorf("n_jobs must not be negative, got %d", p.NJobs)
	}
	if p.Splitter != SplitterBest && p.Splitter != SplitterRandom {
		return errors.New("unknown splitter")
	}
	_, err := p.featuresPerSplit(1)
	return err
}

// featuresPerSplit resolves MaxFeatures for nFeatures columns.
func (p Params) featuresPerSplit(nFeatures int) (int, error) {
	switch p.MaxFeatures {
	case "", "auto":
		return nFeatures, nil
	case "sqrt":
		return max(1, int(math.Sqrt(float64(nFeatures)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(nFeatures)))), nil
	}
	k, err := strconv.Atoi(p.MaxFeatures)
	if err != nil || k < 1 {
		return 0, fmt.Errorf("max_features must be 'auto', 'sqrt', 'log2' or a positive count, got %q", p.MaxFeatures)
	}
	return min(k, nFeatures), nil
}
