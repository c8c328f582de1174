// cli/cli.go
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	CommandTrain   = "train"
	CommandPredict = "predict"
	CommandFetch   = "fetch"
	CommandRuns    = "runs"
)

// ExitError is an error that carries the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Options is the parsed command line. Empty strings mean "use the config value".
type Options struct {
	Command    string
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// predict only
	ModelPath  string
	InputPath  string
	OutputPath string

	// runs only
	Limit int
}

// Parse processes command-line arguments. It returns the options, whether the
// program should exit cleanly (help was printed), or an ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("fareprice", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
fareprice - train and apply a flight fare regression model.

Usage:
  fareprice [options] [train|predict|fetch|runs] [command options]

Commands:
  train    Load the training sheet, fit, evaluate, tune and save the model (default).
  predict  Score a sheet with a saved model.
  fetch    Download the training and test sheets.
  runs     List recorded training runs (requires database.enabled).

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to a YAML config file. Built-in defaults are used when empty.")
	logLevelFlag := flagSet.String("log-level", "", "Override the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "", "Override the log output format. Options: 'text' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	opts := &Options{
		Command:    CommandTrain,
		ConfigPath: *configFlag,
		LogLevel:   strings.ToLower(*logLevelFlag),
		LogFormat:  strings.ToLower(*logFormatFlag),
	}

	switch opts.LogFormat {
	case "", "text", "json":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	rest := flagSet.Args()
	if len(rest) > 0 {
		opts.Command = rest[0]
		rest = rest[1:]
	}
	slog.Debug("Command determined.", "command", opts.Command)

	switch opts.Command {
	case CommandTrain, CommandFetch:
		if len(rest) > 0 {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("%s takes no arguments, got %q", opts.Command, rest)}
		}
	case CommandPredict:
		exit, err := parsePredict(opts, rest, output)
		if err != nil || exit {
			return nil, exit, err
		}
	case CommandRuns:
		exit, err := parseRuns(opts, rest, output)
		if err != nil || exit {
			return nil, exit, err
		}
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", opts.Command)}
	}

	slog.Debug("CLI parser finished successfully.", "options", opts)
	return opts, false, nil
}

func parsePredict(opts *Options, args []string, output io.Writer) (bool, error) {
	fs := flag.NewFlagSet("fareprice predict", flag.ContinueOnError)
	fs.SetOutput(output)
	modelFlag := fs.String("model", "", "Saved model file. Defaults to model.output_path.")
	inputFlag := fs.String("input", "", "Sheet to score (.xlsx or .csv). Defaults to data.test_path.")
	outFlag := fs.String("out", "", "Predictions CSV. Defaults to predictions.output_path.")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		if *inputFlag != "" {
			return false, &ExitError{Code: 2, Message: "give the input sheet either as -input or as an argument, not both"}
		}
		*inputFlag = fs.Arg(0)
	}
	opts.ModelPath = *modelFlag
	opts.InputPath = *inputFlag
	opts.OutputPath = *outFlag
	return false, nil
}

func parseRuns(opts *Options, args []string, output io.Writer) (bool, error) {
	fs := flag.NewFlagSet("fareprice runs", flag.ContinueOnError)
	fs.SetOutput(output)
	limitFlag := fs.Int("limit", 20, "Number of most recent runs to list.")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return false, &ExitError{Code: 2, Message: fmt.Sprintf("runs takes no arguments, got %q", fs.Args())}
	}
	if *limitFlag < 1 {
		return false, &ExitError{Code: 2, Message: "invalid limit: must be positive"}
	}
	opts.Limit = *limitFlag
	return false, nil
}
