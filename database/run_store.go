// database/run_store.go
package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/gewnthar/fareprice/models"
)

// LogTrainingRun inserts one row into training_runs and returns its id.
func LogTrainingRun(run models.TrainingRun) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database connection is not initialized")
	}

	var tunedR2, bestCV sql.NullFloat64
	if run.TunedR2 != nil {
		tunedR2 = sql.NullFloat64{Float64: *run.TunedR2, Valid: true}
	}
	if run.BestCVScore != nil {
		bestCV = sql.NullFloat64{Float64: *run.BestCVScore, Valid: true}
	}
	var bestParams sql.NullString
	if run.BestParamsJSON != "" {
		bestParams = sql.NullString{String: run.BestParamsJSON, Valid: true}
	}

	query := `
		INSERT INTO training_runs (
			started_at, finished_at, train_file, rows_loaded, rows_dropped,
			feature_count, baseline_r2, baseline_mae, baseline_rmse,
			tuned_r2, best_params_json, best_cv_score,
			model_path, persisted_kind, reload_r2, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`
	res, err := DB.Exec(query,
		run.StartedAt, run.FinishedAt, run.TrainFile, run.RowsLoaded, run.RowsDropped,
		run.FeatureCount, run.BaselineR2, run.BaselineMAE, run.BaselineRMSE,
		tunedR2, bestParams, bestCV,
		run.ModelPath, run.PersistedKind, run.ReloadR2,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to log training run for %s: %w", run.TrainFile, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read training run id: %w", err)
	}

	slog.Info("Training run logged.", "id", id, "train_file", run.TrainFile, "persisted", run.PersistedKind)
	return id, nil
}

// GetTrainingRuns returns the most recent runs, newest first.
func GetTrainingRuns(limit int) ([]models.TrainingRun, error) {
	if DB == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := DB.Query(`
		SELECT id, started_at, finished_at, train_file, rows_loaded, rows_dropped,
		       feature_count, baseline_r2, baseline_mae, baseline_rmse,
		       tuned_r2, best_params_json, best_cv_score,
		       model_path, persisted_kind, reload_r2, created_at
		FROM training_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training_runs: %w", err)
	}
	defer rows.Close()

	var runs []models.TrainingRun
	for rows.Next() {
		var r models.TrainingRun
		var tunedR2, bestCV sql.NullFloat64
		var bestParams sql.NullString

		err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.TrainFile, &r.RowsLoaded, &r.RowsDropped,
			&r.FeatureCount, &r.BaselineR2, &r.BaselineMAE, &r.BaselineRMSE,
			&tunedR2, &bestParams, &bestCV,
			&r.ModelPath, &r.PersistedKind, &r.ReloadR2, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training_runs row: %w", err)
		}
		if tunedR2.Valid {
			v := tunedR2.Float64
			r.TunedR2 = &v
		}
		if bestCV.Valid {
			v := bestCV.Float64
			r.BestCVScore = &v
		}
		r.BestParamsJSON = bestParams.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating training_runs rows: %w", err)
	}
	return runs, nil
}
