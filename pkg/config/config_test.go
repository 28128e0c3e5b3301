package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigMissingFile falls back to defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Dataset.Pattern != def.Dataset.Pattern {
		t.Errorf("Expected pattern %q, got %q", def.Dataset.Pattern, cfg.Dataset.Pattern)
	}
	if cfg.Execution.Scheduler != "parallel" {
		t.Errorf("Expected parallel scheduler, got %q", cfg.Execution.Scheduler)
	}
}

// TestSaveAndLoad round trips through YAML
func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "lazystack.yaml")
	cfg := DefaultConfig()
	cfg.Dataset.Dir = "/data/run1"
	cfg.Execution.Workers = 3
	cfg.Output.Chunks = []int{1, 1, 128, 128}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Dataset.Dir != "/data/run1" || loaded.Execution.Workers != 3 {
		t.Errorf("Expected saved values, got dir=%q workers=%d", loaded.Dataset.Dir, loaded.Execution.Workers)
	}
	if len(loaded.Output.Chunks) != 4 || loaded.Output.Chunks[3] != 128 {
		t.Errorf("Expected chunks [1 1 128 128], got %v", loaded.Output.Chunks)
	}
}

// TestEnvOverrides applies LAZYSTACK_* variables over the file
func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazystack.yaml")
	data := []byte("execution:\n  scheduler: parallel\n  workers: 8\ntelemetry:\n  endpoint: \"\"\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LAZYSTACK_SCHEDULER", "sequential")
	t.Setenv("LAZYSTACK_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("LAZYSTACK_OUTPUT_CHUNKS", "2,2,32,32")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Execution.Scheduler != "sequential" {
		t.Errorf("Expected env scheduler, got %q", cfg.Execution.Scheduler)
	}
	if cfg.Execution.Workers != 8 {
		t.Errorf("Expected file workers 8, got %d", cfg.Execution.Workers)
	}
	if cfg.Telemetry.Endpoint != "http://localhost:4318" {
		t.Errorf("Expected env endpoint, got %q", cfg.Telemetry.Endpoint)
	}
	if len(cfg.Output.Chunks) != 4 || cfg.Output.Chunks[2] != 32 {
		t.Errorf("Expected chunks [2 2 32 32], got %v", cfg.Output.Chunks)
	}
}

// TestValidate rejects bad settings
func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"scheduler": func(c *Config) { c.Execution.Scheduler = "processes" },
		"workers":   func(c *Config) { c.Execution.Workers = 0 },
		"format":    func(c *Config) { c.Output.ImageFormat = "bmp" },
		"gzip":      func(c *Config) { c.Output.Gzip = 12 },
		"sigma":     func(c *Config) { c.Filter.Sigma = []float64{-1} },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	t.Setenv("LAZYSTACK_WORKERS", "many")
	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for non-numeric LAZYSTACK_WORKERS")
	}
}
