package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Errorf("Expected default model, got %q", cfg.GeminiModel)
	}
	if cfg.PipelinePace != time.Second {
		t.Errorf("Expected default pace 1s, got %s", cfg.PipelinePace)
	}
	if cfg.PipelineLimit != 10 {
		t.Errorf("Expected default limit 10, got %d", cfg.PipelineLimit)
	}
	if cfg.ExtractMaxAttempts != 2 {
		t.Errorf("Expected default max attempts 2, got %d", cfg.ExtractMaxAttempts)
	}
	if cfg.APIPort != 8000 {
		t.Errorf("Expected default port 8000, got %d", cfg.APIPort)
	}
	if cfg.JobMaxRetries != 0 || cfg.JobRetryDelay != 30*time.Second {
		t.Errorf("Expected no job retries with a 30s delay, got %d and %s", cfg.JobMaxRetries, cfg.JobRetryDelay)
	}
	if cfg.RawDataPath != "data/raw_api_data.json" || cfg.OutputPath != "data/processed_offers_from_api.csv" {
		t.Errorf("Unexpected default paths: %q, %q", cfg.RawDataPath, cfg.OutputPath)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PIPELINE_PACE", "0s")
	t.Setenv("PIPELINE_LIMIT", "0")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("JOB_MAX_RETRIES", "2")
	t.Setenv("JOB_RETRY_DELAY", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PipelinePace != 0 || cfg.PipelineLimit != 0 {
		t.Errorf("Expected pace 0 and limit 0, got %s and %d", cfg.PipelinePace, cfg.PipelineLimit)
	}
	if cfg.GoogleAPIKey != "gem-key" {
		t.Errorf("Expected GEMINI_API_KEY to populate the API key, got %q", cfg.GoogleAPIKey)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected log format json, got %q", cfg.LogFormat)
	}
	if cfg.JobMaxRetries != 2 || cfg.JobRetryDelay != 5*time.Second {
		t.Errorf("Expected job retries 2 after 5s, got %d and %s", cfg.JobMaxRetries, cfg.JobRetryDelay)
	}
}

func TestLoad_DotEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(".env", []byte("NEWS_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("NEWS_API_KEY") })

	cfgFile := filepath.Join(dir, "custom.yaml")
	yaml := "output_path: out/offers.xlsx\napi_port: 9090\ngcs_bucket: flipsave-data\n"
	if err := os.WriteFile(cfgFile, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.NewsAPIKey != "from-dotenv" {
		t.Errorf("Expected news key from .env, got %q", cfg.NewsAPIKey)
	}
	if cfg.OutputPath != "out/offers.xlsx" || cfg.APIPort != 9090 || cfg.GCSBucket != "flipsave-data" {
		t.Errorf("Expected values from config file, got %+v", cfg)
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("Expected error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{
		RawDataPath:        "raw.json",
		OutputPath:         "out.csv",
		ExtractMaxAttempts: 0,
		PipelineLimit:      -1,
		JobMaxRetries:      -1,
		APIPort:            8000,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"extract_max_attempts", "pipeline_limit", "job_max_retries"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %v", want, err)
		}
	}
}

func TestOutputPaths(t *testing.T) {
	cfg := Config{OutputPath: "data/offers.csv, data/offers.xlsx,"}
	got := cfg.OutputPaths()
	if len(got) != 2 || got[0] != "data/offers.csv" || got[1] != "data/offers.xlsx" {
		t.Errorf("Unexpected output paths %v", got)
	}
}
