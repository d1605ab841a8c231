// Package config loads FlipSave settings from .env, the environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/flipsave/flipsave/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting of the CLI and the API server.
type Config struct {
	GoogleAPIKey string `mapstructure:"google_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`
	// GeminiTimeout bounds one model call.
	GeminiTimeout time.Duration `mapstructure:"gemini_timeout"`

	NewsAPIKey string `mapstructure:"news_api_key"`

	RawDataPath        string        `mapstructure:"raw_data_path"`
	OutputPath         string        `mapstructure:"output_path"`
	PipelinePace       time.Duration `mapstructure:"pipeline_pace"`
	PipelineLimit      int           `mapstructure:"pipeline_limit"`
	ExtractMaxAttempts int           `mapstructure:"extract_max_attempts"`
	ExtractRetryDelay  time.Duration `mapstructure:"extract_retry_delay"`

	APIPort      int     `mapstructure:"api_port"`
	APIRateLimit float64 `mapstructure:"api_rate_limit"`
	APIRateBurst int     `mapstructure:"api_rate_burst"`
	APIKey       string  `mapstructure:"api_key"`

	JobMaxRetries int           `mapstructure:"job_max_retries"`
	JobRetryDelay time.Duration `mapstructure:"job_retry_delay"`

	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`

	BQProject string `mapstructure:"bq_project"`
	BQDataset string `mapstructure:"bq_dataset"`

	NotionToken      string `mapstructure:"notion_token"`
	NotionDatabaseID string `mapstructure:"notion_database_id"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// defaults lists every key with its default value. Keys double as lower-case env names.
var defaults = map[string]interface{}{
	"google_api_key":       "",
	"gemini_model":         pipeline.DefaultModelName,
	"gemini_timeout":       "60s",
	"news_api_key":         "",
	"raw_data_path":        pipeline.DefaultRawDataPath,
	"output_path":          pipeline.DefaultOutputPath,
	"pipeline_pace":        pipeline.DefaultPace.String(),
	"pipeline_limit":       pipeline.DefaultLimit,
	"extract_max_attempts": pipeline.DefaultMaxAttempts,
	"extract_retry_delay":  "0s",
	"api_port":             8000,
	"api_rate_limit":       1.0,
	"api_rate_burst":       5,
	"api_key":              "",
	"job_max_retries":      0,
	"job_retry_delay":      "30s",
	"gcs_bucket":           "",
	"gcs_prefix":           "offers",
	"bq_project":           "",
	"bq_dataset":           "flipsave",
	"notion_token":         "",
	"notion_database_id":   "",
	"log_level":            "info",
	"log_format":           "console",
}

// Load reads .env (if present), then flipsave.yaml or cfgFile, then the environment.
// Environment variables take precedence over the file.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("google_api_key", "GOOGLE_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("flipsave")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.flipsave")
	}

	// Try to read config file (not required unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OutputPaths splits output_path on commas, so one run can write e.g. both
// a .csv and an .xlsx file. The first path is the primary dataset.
func (c *Config) OutputPaths() []string {
	var paths []string
	for _, p := range strings.Split(c.OutputPath, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Validate checks values that would make the pipeline misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.PipelinePace < 0 {
		errs = append(errs, fmt.Errorf("pipeline_pace must not be negative, got %s", c.PipelinePace))
	}
	if c.JobMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("job_max_retries must not be negative, got %d", c.JobMaxRetries))
	}
	if c.JobRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("job_retry_delay must not be negative, got %s", c.JobRetryDelay))
	}
	if c.PipelineLimit < 0 {
		errs = append(errs, fmt.Errorf("pipeline_limit must not be negative, got %d", c.PipelineLimit))
	}
	if c.ExtractMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("extract_max_attempts must be at least 1, got %d", c.ExtractMaxAttempts))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api_port out of range: %d", c.APIPort))
	}
	if c.APIRateLimit < 0 || c.APIRateBurst < 0 {
		errs = append(errs, errors.New("api_rate_limit and api_rate_burst must not be negative"))
	}
	if c.RawDataPath == "" || len(c.OutputPaths()) == 0 {
		errs = append(errs, errors.New("raw_data_path and output_path must be set"))
	}
	return errors.Join(errs...)
}
