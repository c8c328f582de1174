package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gewnthar/fareprice/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	DB = mockDB
	t.Cleanup(func() {
		mockDB.Close()
		DB = nil
	})
	return mock
}

func TestStoresRequireConnection(t *testing.T) {
	DB = nil
	_, err := LogTrainingRun(models.TrainingRun{})
	assert.Error(t, err)
	_, err = GetTrainingRuns(5)
	assert.Error(t, err)
	assert.Error(t, SavePredictions([]models.FarePrediction{{Row: 1}}, "Test_set.xlsx"))
	CloseDB()
}

func TestLogTrainingRun(t *testing.T) {
	mock := withMockDB(t)
	tuned := 0.81
	cv := -4.2e6
	run := models.TrainingRun{
		StartedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt:     time.Date(2026, 1, 2, 3, 9, 0, 0, time.UTC),
		TrainFile:      "flight_price_data.xlsx",
		RowsLoaded:     10683,
		RowsDropped:    1,
		FeatureCount:   29,
		BaselineR2:     0.79,
		BaselineMAE:    1180,
		BaselineRMSE:   2090,
		TunedR2:        &tuned,
		BestParamsJSON: `{"n_estimators":700}`,
		BestCVScore:    &cv,
		ModelPath:      "flight_price_save.msgpack",
		PersistedKind:  "baseline",
		ReloadR2:       0.79,
	}

	mock.ExpectExec("INSERT INTO training_runs").
		WithArgs(run.StartedAt, run.FinishedAt, "flight_price_data.xlsx", 10683, 1,
			29, 0.79, 1180.0, 2090.0,
			0.81, `{"n_estimators":700}`, -4.2e6,
			"flight_price_save.msgpack", "baseline", 0.79).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := LogTrainingRun(run)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogTrainingRunWithoutSearch(t *testing.T) {
	mock := withMockDB(t)
	run := models.TrainingRun{TrainFile: "train.csv", PersistedKind: "baseline"}

	mock.ExpectExec("INSERT INTO training_runs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "train.csv", 0, 0,
			0, 0.0, 0.0, 0.0,
			nil, nil, nil,
			"", "baseline", 0.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := LogTrainingRun(run)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogTrainingRunError(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectExec("INSERT INTO training_runs").WillReturnError(errors.New("table missing"))

	_, err := LogTrainingRun(models.TrainingRun{TrainFile: "train.csv"})
	assert.ErrorContains(t, err, "table missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTrainingRuns(t *testing.T) {
	mock := withMockDB(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "started_at", "finished_at", "train_file", "rows_loaded", "rows_dropped",
		"feature_count", "baseline_r2", "baseline_mae", "baseline_rmse",
		"tuned_r2", "best_params_json", "best_cv_score",
		"model_path", "persisted_kind", "reload_r2", "created_at",
	}
	rows := sqlmock.NewRows(cols).
		AddRow(2, started, started.Add(time.Minute), "b.xlsx", 100, 0, 20, 0.9, 10.0, 12.0,
			0.92, `{"max_depth":20}`, -150.0, "m.msgpack", "tuned", 0.92, started).
		AddRow(1, started.Add(-time.Hour), started, "a.xlsx", 90, 3, 18, 0.8, 11.0, 13.0,
			nil, nil, nil, "m.msgpack", "baseline", 0.8, started)
	mock.ExpectQuery("SELECT (.+) FROM training_runs").WithArgs(5).WillReturnRows(rows)

	runs, err := GetTrainingRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, int64(2), runs[0].ID)
	require.NotNil(t, runs[0].TunedR2)
	assert.Equal(t, 0.92, *runs[0].TunedR2)
	assert.Equal(t, `{"max_depth":20}`, runs[0].BestParamsJSON)
	assert.True(t, runs[0].StartedAt.Equal(started))

	assert.Nil(t, runs[1].TunedR2)
	assert.Nil(t, runs[1].BestCVScore)
	assert.Empty(t, runs[1].BestParamsJSON)
	assert.Equal(t, 3, runs[1].RowsDropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTrainingRunsDefaultLimit(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM training_runs").WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	runs, err := GetTrainingRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePredictionsClearsAndLoads(t *testing.T) {
	mock := withMockDB(t)
	preds := []models.FarePrediction{
		{Row: 1, Airline: "Jet Airways", Source: "Delhi", Destination: "Cochin", Date: "6/06/2019", DepTime: "17:30", Price: 13021.5},
		{Row: 2, Airline: "IndiGo", Source: "Kolkata", Destination: "Banglore", Date: "12/05/2019", DepTime: "06:20", Price: 4512},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM fare_predictions").
		WithArgs("Test_set.xlsx").
		WillReturnResult(sqlmock.NewResult(0, 40))
	prep := mock.ExpectPrepare("INSERT INTO fare_predictions")
	prep.ExpectExec().
		WithArgs("Test_set.xlsx", 1, "Jet Airways", "Delhi", "Cochin", "6/06/2019", "17:30", 13021.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("Test_set.xlsx", 2, "IndiGo", "Kolkata", "Banglore", "12/05/2019", "06:20", 4512.0).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, SavePredictions(preds, "Test_set.xlsx"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePredictionsRollsBackOnInsertError(t *testing.T) {
	mock := withMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM fare_predictions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("INSERT INTO fare_predictions").
		ExpectExec().WillReturnError(errors.New("data too long"))
	mock.ExpectRollback()

	err := SavePredictions([]models.FarePrediction{{Row: 9, Airline: "Vistara"}}, "Test_set.xlsx")
	assert.ErrorContains(t, err, "row 9")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePredictionsEmptyIsNoop(t *testing.T) {
	mock := withMockDB(t)
	require.NoError(t, SavePredictions(nil, "Test_set.xlsx"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
