// services/prediction_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gewnthar/fareprice/config"
	"github.com/gewnthar/fareprice/database"
	"github.com/gewnthar/fareprice/ingest"
	"github.com/gewnthar/fareprice/metrics"
	"github.com/gewnthar/fareprice/models"
	"github.com/gewnthar/fareprice/persist"
	"github.com/jszwec/csvutil"
)

// PredictFile scores inputPath with the model stored at modelPath and writes
// the predictions to outPath. Empty arguments fall back to cfg.
func PredictFile(ctx context.Context, cfg *config.Config, modelPath, inputPath, outPath string) ([]models.FarePrediction, error) {
	if modelPath == "" {
		modelPath = cfg.Model.OutputPath
	}
	if inputPath == "" {
		inputPath = cfg.Data.TestPath
	}
	if outPath == "" {
		outPath = cfg.Predictions.OutputPath
	}
	if inputPath == "" {
		return nil, fmt.Errorf("no input sheet to predict")
	}

	artifact, err := persist.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	slog.Info("Model loaded.", "path", modelPath, "kind", artifact.Kind, "created_at", artifact.CreatedAt, "trees", len(artifact.Forest.Trees))

	preds, err := predictPath(ctx, artifact, inputPath, cfg.Data.TestSheet)
	if err != nil {
		return nil, err
	}
	if outPath != "" {
		if err := writePredictionsFile(outPath, preds); err != nil {
			return nil, err
		}
	}
	if cfg.Database.Enabled {
		if err := database.SavePredictions(preds, filepath.Base(inputPath)); err != nil {
			return nil, err
		}
	}
	return preds, nil
}

func predictPath(ctx context.Context, a *persist.Artifact, path, sheet string) ([]models.FarePrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := ingest.LoadFlights(path, sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to load sheet to predict: %w", err)
	}
	clean, dropped := ingest.DropMissing(raw)
	if dropped > 0 {
		slog.Info("Rows with missing values dropped before prediction.", "path", path, "dropped", dropped)
	}
	return predictFlights(a, clean)
}

// predictFlights runs set through the stored pipeline and forest. When the
// set carries prices the R² against them is logged.
func predictFlights(a *persist.Artifact, set *ingest.FlightSet) ([]models.FarePrediction, error) {
	table, err := a.FeaturePipeline().Transform(set)
	if err != nil {
		return nil, fmt.Errorf("failed to engineer features: %w", err)
	}
	if table.Rows() == 0 {
		return nil, nil
	}
	prices, err := a.Forest.Predict(table.X)
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}

	preds := make([]models.FarePrediction, len(prices))
	for i, f := range set.Flights {
		row := f.Line
		if row == 0 {
			row = i + 1 // built in memory, not parsed
		}
		preds[i] = models.FarePrediction{
			Row:         row,
			Airline:     f.Airline,
			Source:      f.Source,
			Destination: f.Destination,
			Date:        f.DateOfJourney,
			DepTime:     f.DepTime,
			Price:       prices[i],
		}
	}

	if table.Target != nil {
		if r2, err := metrics.R2(table.Target, prices); err == nil {
			slog.Info("Sheet carries prices; scored predictions.", "rows", len(prices), "r2", r2)
		}
	}
	slog.Info("Predictions computed.", "rows", len(preds))
	return preds, nil
}

// WritePredictionsCsv writes preds with a header row.
func WritePredictionsCsv(w io.Writer, preds []models.FarePrediction) error {
	b, err := csvutil.Marshal(preds)
	if err != nil {
		return fmt.Errorf("failed to encode predictions: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	return nil
}

func writePredictionsFile(path string, preds []models.FarePrediction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create predictions file %s: %w", path, err)
	}
	defer f.Close()
	if err := WritePredictionsCsv(f, preds); err != nil {
		return err
	}
	slog.Info("Predictions written.", "path", path, "rows", len(preds))
	return f.Close()
}
