// models/run.go
package models

import "time"

// TrainingRun summarizes one execution of the training pipeline.
type TrainingRun struct {
	ID             int64     `db:"id" json:"id"`
	StartedAt      time.Time `db:"started_at" json:"started_at"`
	FinishedAt     time.Time `db:"finished_at" json:"finished_at"`
	TrainFile      string    `db:"train_file" json:"train_file"`
	RowsLoaded     int       `db:"rows_loaded" json:"rows_loaded"`
	RowsDropped    int       `db:"rows_dropped" json:"rows_dropped"`
	FeatureCount   int       `db:"feature_count" json:"feature_count"`
	BaselineR2     float64   `db:"baseline_r2" json:"baseline_r2"`
	BaselineMAE    float64   `db:"baseline_mae" json:"baseline_mae"`
	BaselineRMSE   float64   `db:"baseline_rmse" json:"baseline_rmse"`
	TunedR2        *float64  `db:"tuned_r2" json:"tuned_r2,omitempty"`       // Nil when the search was skipped
	BestParamsJSON string    `db:"best_params_json" json:"best_params_json"` // Store as JSON string
	BestCVScore    *float64  `db:"best_cv_score" json:"best_cv_score,omitempty"`
	ModelPath      string    `db:"model_path" json:"model_path"`
	PersistedKind  string    `db:"persisted_kind" json:"persisted_kind"` // "baseline" or "tuned"
	ReloadR2       float64   `db:"reload_r2" json:"reload_r2"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// FarePrediction is a predicted price for one row of an unlabeled sheet.
type FarePrediction struct {
	Row         int     `csv:"row" db:"row_index"` // Flight.Line of the scored record
	Airline     string  `csv:"Airline" db:"airline"`
	Source      string  `csv:"Source" db:"source"`
	Destination string  `csv:"Destination" db:"destination"`
	Date        string  `csv:"Date_of_Journey" db:"date_of_journey"`
	DepTime     string  `csv:"Dep_Time" db:"dep_time"`
	Price       float64 `csv:"Predicted_Price" db:"predicted_price"`
}
