// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DataConfig struct {
	TrainPath   string `yaml:"train_path"`
	TestPath    string `yaml:"test_path"`
	Sheet       string `yaml:"sheet"`        // Training workbook sheet; empty means the first sheet
	TestSheet   string `yaml:"test_sheet"`   // Sheet of the workbook being scored; empty means the first sheet
	FeaturesOut string `yaml:"features_out"` // Optional CSV dump of the engineered training table
}

type FeaturesConfig struct {
	UnknownCategory string `yaml:"unknown_category"` // "ignore" or "error"
}

type ModelConfig struct {
	OutputPath           string  `yaml:"output_path"`
	Persist              string  `yaml:"persist"` // "baseline" or "tuned"
	TestSize             float64 `yaml:"test_size"`
	Seed                 int64   `yaml:"seed"`
	NJobs                int     `yaml:"n_jobs"` // 0 uses every CPU
	NEstimators          int     `yaml:"n_estimators"`
	ImportanceEstimators int     `yaml:"importance_estimators"`
	TopImportances       int     `yaml:"top_importances"`
}

type SearchConfig struct {
	Enabled         bool     `yaml:"enabled"`
	NIter           int      `yaml:"n_iter"`
	Folds           int      `yaml:"folds"`
	Seed            int64    `yaml:"seed"`
	NEstimators     []int    `yaml:"n_estimators"`
	MaxFeatures     []string `yaml:"max_features"`
	MaxDepth        []int    `yaml:"max_depth"`
	MinSamplesSplit []int    `yaml:"min_samples_split"`
	MinSamplesLeaf  []int    `yaml:"min_samples_leaf"`
}

type PredictionsConfig struct {
	OutputPath string `yaml:"output_path"`
}

type FetchConfig struct {
	PageURL      string        `yaml:"page_url"`      // HTML page listing the dataset files
	LinkSelector string        `yaml:"link_selector"` // goquery selector for candidate anchors
	TrainURL     string        `yaml:"train_url"`
	TestURL      string        `yaml:"test_url"`
	TimeoutStr   string        `yaml:"timeout"`
	Timeout      time.Duration `yaml:"-"` // Parsed duration
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Data        DataConfig        `yaml:"data"`
	Features    FeaturesConfig    `yaml:"features"`
	Model       ModelConfig       `yaml:"model"`
	Search      SearchConfig      `yaml:"search"`
	Predictions PredictionsConfig `yaml:"predictions"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
}

// Default returns the configuration of a plain run: the two workbooks in the
// working directory, a seeded 80/20 split and a 10 x 5-fold search.
func Default() Config {
	return Config{
		Data: DataConfig{
			TrainPath: "flight_price_data.xlsx",
			TestPath:  "Test_set.xlsx",
		},
		Features: FeaturesConfig{UnknownCategory: "ignore"},
		Model: ModelConfig{
			OutputPath:           "flight_price_save.msgpack",
			Persist:              "baseline",
			TestSize:             0.2,
			Seed:                 42,
			NEstimators:          100,
			ImportanceEstimators: 100,
			TopImportances:       10,
		},
		Search: SearchConfig{
			Enabled:         true,
			NIter:           10,
			Folds:           5,
			Seed:            42,
			NEstimators:     []int{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200},
			MaxFeatures:     []string{"auto", "sqrt"},
			MaxDepth:        []int{5, 10, 15, 20, 25, 30},
			MinSamplesSplit: []int{2, 5, 10, 15, 100},
			MinSamplesLeaf:  []int{1, 2, 5, 10},
		},
		Predictions: PredictionsConfig{OutputPath: "test_predictions.csv"},
		Fetch: FetchConfig{
			LinkSelector: "a[href]",
			TimeoutStr:   "30s",
		},
		Database: DatabaseConfig{
			Host:   "127.0.0.1",
			Port:   "3306",
			DBName: "fareprice",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from the YAML file at configPath (optional), then
// applies a .env file and FAREPRICE_* environment overrides.
// An empty configPath yields the defaults plus environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// A missing .env is normal; anything else is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	if cfg.Fetch.TimeoutStr != "" {
		d, err := time.ParseDuration(cfg.Fetch.TimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fetch timeout: %w", err)
		}
		cfg.Fetch.Timeout = d
	} else {
		cfg.Fetch.Timeout = 30 * time.Second // Default
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	strVars := map[string]*string{
		"FAREPRICE_TRAIN_PATH":  &cfg.Data.TrainPath,
		"FAREPRICE_TEST_PATH":   &cfg.Data.TestPath,
		"FAREPRICE_SHEET":       &cfg.Data.Sheet,
		"FAREPRICE_TEST_SHEET":  &cfg.Data.TestSheet,
		"FAREPRICE_MODEL_PATH":  &cfg.Model.OutputPath,
		"FAREPRICE_LOG_LEVEL":   &cfg.Log.Level,
		"FAREPRICE_LOG_FORMAT":  &cfg.Log.Format,
		"FAREPRICE_DB_HOST":     &cfg.Database.Host,
		"FAREPRICE_DB_PORT":     &cfg.Database.Port,
		"FAREPRICE_DB_USER":     &cfg.Database.User,
		"FAREPRICE_DB_PASSWORD": &cfg.Database.Password,
		"FAREPRICE_DB_NAME":     &cfg.Database.DBName,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("FAREPRICE_DB_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FAREPRICE_DB_ENABLED %q: %w", v, err)
		}
		cfg.Database.Enabled = enabled
	}
	if v, ok := os.LookupEnv("FAREPRICE_N_JOBS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FAREPRICE_N_JOBS %q: %w", v, err)
		}
		cfg.Model.NJobs = n
	}
	return nil
}

// Validate checks value ranges that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Data.TrainPath == "" {
		return errors.New("data.train_path must not be empty")
	}
	if c.Model.TestSize <= 0 || c.Model.TestSize >= 1 {
		return fmt.Errorf("model.test_size must be in (0, 1), got %v", c.Model.TestSize)
	}
	if c.Model.NEstimators < 1 || c.Model.ImportanceEstimators < 1 {
		return errors.New("model.n_estimators and model.importance_estimators must be positive")
	}
	if c.Model.NJobs < 0 {
		return fmt.Errorf("model.n_jobs must not be negative, got %d", c.Model.NJobs)
	}
	switch c.Model.Persist {
	case "baseline", "tuned":
	default:
		return fmt.Errorf("model.persist must be 'baseline' or 'tuned', got %q", c.Model.Persist)
	}
	if c.Model.Persist == "tuned" && !c.Search.Enabled {
		return errors.New("model.persist 'tuned' requires search.enabled")
	}
	switch c.Features.UnknownCategory {
	case "ignore", "error":
	default:
		return fmt.Errorf("features.unknown_category must be 'ignore' or 'error', got %q", c.Features.UnknownCategory)
	}
	if c.Search.Enabled {
		if c.Search.NIter < 1 {
			return fmt.Errorf("search.n_iter must be positive, got %d", c.Search.NIter)
		}
		if c.Search.Folds < 2 {
			return fmt.Errorf("search.folds must be at least 2, got %d", c.Search.Folds)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// DSN builds the MySQL data source name. DSN: username:password@protocol(address)/dbname?param=value
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
	)
}
