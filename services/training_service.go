// services/training_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gewnthar/fareprice/config"
	"github.com/gewnthar/fareprice/database"
	"github.com/gewnthar/fareprice/features"
	"github.com/gewnthar/fareprice/forest"
	"github.com/gewnthar/fareprice/ingest"
	"github.com/gewnthar/fareprice/metrics"
	"github.com/gewnthar/fareprice/models"
	"github.com/gewnthar/fareprice/persist"
	"github.com/gewnthar/fareprice/tuning"
)

const (
	kindBaseline = "baseline"
	kindTuned    = "tuned"
)

// Importance is one feature's extra-trees importance score.
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// TrainingReport is everything a training run measured and wrote.
type TrainingReport struct {
	RowsLoaded    int
	RowsDropped   int
	Columns       []string
	Baseline      metrics.Report
	Importances   []Importance // descending
	Search        *tuning.SearchResult
	Tuned         *metrics.Report
	PersistedKind string
	ModelPath     string
	ReloadR2      float64
	Predictions   []models.FarePrediction
	RunID         int64
}

// RunTraining executes the full training pipeline described by cfg.
func RunTraining(ctx context.Context, cfg *config.Config) (*TrainingReport, error) {
	started := time.Now().UTC()
	report := &TrainingReport{}

	slog.Info("Loading training sheet.", "path", cfg.Data.TrainPath)
	raw, err := ingest.LoadFlights(cfg.Data.TrainPath, cfg.Data.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to load training sheet: %w", err)
	}
	if !raw.Labeled {
		return nil, fmt.Errorf("training sheet %s has no %s column", cfg.Data.TrainPath, models.PriceHeader)
	}
	clean, dropped := ingest.DropMissing(raw)
	report.RowsLoaded, report.RowsDropped = raw.Len(), dropped
	slog.Info("Training sheet loaded.", "rows", raw.Len(), "dropped_missing", dropped)

	pipeline := features.NewPipeline(cfg.Features.UnknownCategory == "error")
	table, err := pipeline.Fit(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to engineer features: %w", err)
	}
	report.Columns = table.Columns
	slog.Info("Features engineered.", "rows", table.Rows(), "columns", len(table.Columns))

	if cfg.Data.FeaturesOut != "" {
		if err := writeFeatureTable(cfg.Data.FeaturesOut, table); err != nil {
			return nil, err
		}
	}

	split, err := tuning.TrainTestSplit(table.X, table.Target, cfg.Model.TestSize, cfg.Model.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to split training data: %w", err)
	}

	params := forest.DefaultParams()
	params.NEstimators = cfg.Model.NEstimators
	params.Seed = cfg.Model.Seed
	params.NJobs = cfg.Model.NJobs

	baseline := forest.NewRandomForest(params)
	slog.Info("Fitting baseline random forest.", "trees", params.NEstimators, "train_rows", len(split.YTrain))
	if err := baseline.FitContext(ctx, split.XTrain, split.YTrain); err != nil {
		return nil, fmt.Errorf("failed to fit baseline forest: %w", err)
	}
	report.Baseline, err = evaluate(baseline, split)
	if err != nil {
		return nil, err
	}
	logReport("Baseline evaluated.", report.Baseline)

	report.Importances, err = rankImportances(ctx, table, params, cfg.Model.ImportanceEstimators)
	if err != nil {
		return nil, err
	}
	for i, imp := range report.Importances {
		if i >= cfg.Model.TopImportances {
			break
		}
		slog.Info("Feature importance.", "rank", i+1, "feature", imp.Feature, "score", imp.Score)
	}

	if cfg.Search.Enabled {
		search := &tuning.RandomizedSearch{
			Grid: tuning.Grid{
				NEstimators:     cfg.Search.NEstimators,
				MaxFeatures:     cfg.Search.MaxFeatures,
				MaxDepth:        cfg.Search.MaxDepth,
				MinSamplesSplit: cfg.Search.MinSamplesSplit,
				MinSamplesLeaf:  cfg.Search.MinSamplesLeaf,
			},
			NIter: cfg.Search.NIter,
			Folds: cfg.Search.Folds,
			Seed:  cfg.Search.Seed,
			Base:  params,
		}
		res, err := search.Fit(ctx, split.XTrain, split.YTrain)
		if err != nil {
			return nil, fmt.Errorf("hyperparameter search failed: %w", err)
		}
		report.Search = res
		tuned, err := evaluate(res.Estimator, split)
		if err != nil {
			return nil, err
		}
		report.Tuned = &tuned
		logReport("Tuned model evaluated.", tuned)
	}

	chosen := baseline
	report.PersistedKind = kindBaseline
	if cfg.Model.Persist == kindTuned {
		if report.Search == nil {
			return nil, errors.New("model.persist is tuned but the search is disabled")
		}
		chosen = report.Search.Estimator
		report.PersistedKind = kindTuned
	}

	report.ModelPath = cfg.Model.OutputPath
	if err := persist.Save(report.ModelPath, persist.NewArtifact(report.PersistedKind, pipeline, chosen)); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	// Reload and re-score the held-out rows to prove the file is usable.
	artifact, err := persist.Load(report.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to reload saved model: %w", err)
	}
	reloaded, err := artifact.Forest.Predict(split.XTest)
	if err != nil {
		return nil, fmt.Errorf("failed to predict with reloaded model: %w", err)
	}
	report.ReloadR2, err = metrics.R2(split.YTest, reloaded)
	if err != nil {
		return nil, err
	}
	slog.Info("Reloaded model re-scored.", "kind", artifact.Kind, "r2", report.ReloadR2)

	if cfg.Data.TestPath != "" {
		report.Predictions, err = predictPath(ctx, artifact, cfg.Data.TestPath, cfg.Data.TestSheet)
		if err != nil {
			return nil, err
		}
		if cfg.Predictions.OutputPath != "" {
			if err := writePredictionsFile(cfg.Predictions.OutputPath, report.Predictions); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Database.Enabled {
		run := buildRun(cfg, report, started)
		report.RunID, err = database.LogTrainingRun(run)
		if err != nil {
			return nil, err
		}
		if len(report.Predictions) > 0 {
			if err := database.SavePredictions(report.Predictions, filepath.Base(cfg.Data.TestPath)); err != nil {
				return nil, err
			}
		}
	}

	slog.Info("Training run finished.", "elapsed", time.Since(started).Round(time.Millisecond), "model", report.ModelPath)
	return report, nil
}

func evaluate(f *forest.Forest, split *tuning.Split) (metrics.Report, error) {
	pred, err := f.Predict(split.XTest)
	if err != nil {
		return metrics.Report{}, fmt.Errorf("failed to predict held-out rows: %w", err)
	}
	return metrics.Evaluate(split.YTest, pred)
}

func logReport(msg string, r metrics.Report) {
	slog.Info(msg, "r2", r.R2, "mae", r.MAE, "mse", r.MSE, "rmse", r.RMSE)
}

// rankImportances fits an extra-trees ensemble on the whole table and returns
// its impurity importances, highest first. The scores are informational; no
// column is dropped because of them.
func rankImportances(ctx context.Context, table *features.Table, base forest.Params, trees int) ([]Importance, error) {
	p := base
	p.NEstimators = trees
	p.MaxDepth = 0
	p.MaxFeatures = "auto"
	et := forest.NewExtraTrees(p)
	if err := et.FitContext(ctx, table.X, table.Target); err != nil {
		return nil, fmt.Errorf("failed to fit importance ensemble: %w", err)
	}
	scores := et.FeatureImportances()
	out := make([]Importance, len(table.Columns))
	for i, name := range table.Columns {
		out[i] = Importance{Feature: name, Score: scores[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out, nil
}

func writeFeatureTable(path string, table *features.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create feature dump %s: %w", path, err)
	}
	defer f.Close()
	if err := table.WriteCSV(f); err != nil {
		return err
	}
	slog.Info("Feature table written.", "path", path)
	return f.Close()
}

func buildRun(cfg *config.Config, r *TrainingReport, started time.Time) models.TrainingRun {
	run := models.TrainingRun{
		StartedAt:     started,
		FinishedAt:    time.Now().UTC(),
		TrainFile:     cfg.Data.TrainPath,
		RowsLoaded:    r.RowsLoaded,
		RowsDropped:   r.RowsDropped,
		FeatureCount:  len(r.Columns),
		BaselineR2:    r.Baseline.R2,
		BaselineMAE:   r.Baseline.MAE,
		BaselineRMSE:  r.Baseline.RMSE,
		ModelPath:     r.ModelPath,
		PersistedKind: r.PersistedKind,
		ReloadR2:      r.ReloadR2,
	}
	if r.Tuned != nil {
		v := r.Tuned.R2
		run.TunedR2 = &v
	}
	if r.Search != nil {
		if b, err := json.Marshal(r.Search.Best.Params); err == nil {
			run.BestParamsJSON = string(b)
		}
		if score := r.Search.Best.MeanScore; !math.IsInf(score, 0) && !math.IsNaN(score) {
			run.BestCVScore = &score
		}
	}
	return run
}
