// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gewnthar/fareprice/cli"
	"github.com/gewnthar/fareprice/config"
	"github.com/gewnthar/fareprice/database"
	"github.com/gewnthar/fareprice/fetch"
	"github.com/gewnthar/fareprice/models"
	"github.com/gewnthar/fareprice/services"
	"github.com/gewnthar/fareprice/utils"
)

func main() {
	// Minimal logger until the config is read.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args, loads the config and dispatches the command. Results go to
// outW, logs to logW.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	slog.SetDefault(utils.NewLogger(cfg.Log.Level, cfg.Log.Format, logW))
	slog.Debug("Configuration loaded.", "command", opts.Command, "train_path", cfg.Data.TrainPath, "db_enabled", cfg.Database.Enabled)

	if opts.Command == cli.CommandRuns && !cfg.Database.Enabled {
		return errors.New("the runs command needs database.enabled")
	}
	if cfg.Database.Enabled && opts.Command != cli.CommandFetch {
		if err := database.InitDB(cfg.Database); err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}
		defer database.CloseDB()
	}

	switch opts.Command {
	case cli.CommandFetch:
		written, err := fetch.FetchDatasets(ctx, cfg.Fetch, cfg.Data)
		if err != nil {
			return err
		}
		for _, p := range written {
			fmt.Fprintf(outW, "downloaded %s\n", p)
		}
		return nil

	case cli.CommandRuns:
		runs, err := database.GetTrainingRuns(opts.Limit)
		if err != nil {
			return err
		}
		printRuns(outW, runs)
		return nil

	case cli.CommandPredict:
		preds, err := services.PredictFile(ctx, cfg, opts.ModelPath, opts.InputPath, opts.OutputPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(outW, "predicted %d rows\n", len(preds))
		return nil

	default:
		report, err := services.RunTraining(ctx, cfg)
		if err != nil {
			return err
		}
		printReport(outW, report)
		return nil
	}
}

func printReport(w io.Writer, r *services.TrainingReport) {
	fmt.Fprintf(w, "rows: %d loaded, %d dropped; features: %d\n", r.RowsLoaded, r.RowsDropped, len(r.Columns))
	fmt.Fprintf(w, "baseline: R2=%.4f MAE=%.2f MSE=%.2f RMSE=%.2f\n", r.Baseline.R2, r.Baseline.MAE, r.Baseline.MSE, r.Baseline.RMSE)
	if r.Tuned != nil {
		fmt.Fprintf(w, "tuned:    R2=%.4f MAE=%.2f MSE=%.2f RMSE=%.2f\n", r.Tuned.R2, r.Tuned.MAE, r.Tuned.MSE, r.Tuned.RMSE)
		fmt.Fprintf(w, "best params: %+v (mean neg MSE %.2f)\n", r.Search.Best.Params, r.Search.Best.MeanScore)
	}
	fmt.Fprintf(w, "saved %s model to %s; reloaded R2=%.4f\n", r.PersistedKind, r.ModelPath, r.ReloadR2)
	if len(r.Predictions) > 0 {
		fmt.Fprintf(w, "predicted %d test rows\n", len(r.Predictions))
	}
}

func printRuns(w io.Writer, runs []models.TrainingRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no training runs recorded")
		return
	}
	for _, r := range runs {
		tuned := "-"
		if r.TunedR2 != nil {
			tuned = fmt.Sprintf("%.4f", *r.TunedR2)
		}
		fmt.Fprintf(w, "#%d %s %s rows=%d dropped=%d baseline_r2=%.4f tuned_r2=%s persisted=%s model=%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.TrainFile, r.RowsLoaded, r.RowsDropped,
			r.BaselineR2, tuned, r.PersistedKind, r.ModelPath)
	}
}
