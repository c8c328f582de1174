// database/prediction_store.go
package database

import (
	"fmt"
	"log/slog"

	"github.com/gewnthar/fareprice/models"
)

// SavePredictions replaces every stored prediction for sourceFile with preds
// in a single transaction.
func SavePredictions(preds []models.FarePrediction, sourceFile string) error {
	if DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	if len(preds) == 0 {
		slog.Info("No predictions provided to save.", "source_file", sourceFile)
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for predictions: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.Exec("DELETE FROM fare_predictions WHERE source_file = ?", sourceFile); err != nil {
		return fmt.Errorf("failed to delete old predictions for source %s: %w", sourceFile, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO fare_predictions (
			source_file, row_index, airline, source, destination,
			date_of_journey, dep_time, predicted_price, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prediction insert statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range preds {
		_, err := stmt.Exec(
			sourceFile, p.Row, p.Airline, p.Source, p.Destination,
			p.Date, p.DepTime, p.Price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert prediction for row %d: %w", p.Row, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction for predictions: %w", err)
	}

	slog.Info("Predictions saved.", "count", len(preds), "source_file", sourceFile)
	return nil
}
