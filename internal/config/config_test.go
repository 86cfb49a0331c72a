package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

func TestGodotenvQuoting(t *testing.T) {
	content := `RULES_FILE='rules with "quotes".yaml'`
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}

	expected := `rules with "quotes".yaml`
	if env["RULES_FILE"] != expected {
		t.Errorf("Expected %s, got %s", expected, env["RULES_FILE"])
	}
}

func TestFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("ENABLE_MERMAID_CHARTS", "true")
	t.Setenv("CONFIDENCE_LEVEL", "90")

	cfg, err := FromEnv("")
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.DataPath != dir {
		t.Errorf("DataPath = %s, want %s", cfg.DataPath, dir)
	}
	if cfg.StoreBackend != "sqlite" || !cfg.EnableMermaidCharts || cfg.ConfidenceLevel != 90 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ReportDir != filepath.Join(dir, "reports") {
		t.Errorf("ReportDir = %s", cfg.ReportDir)
	}
	if _, err := os.Stat(cfg.LogDir); err != nil {
		t.Errorf("log dir not created: %v", err)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Backend", "STORE_BACKEND", "postgres"},
		{"ConfidenceLevel", "CONFIDENCE_LEVEL", "150"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATA_PATH", t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(""); err == nil {
				t.Errorf("FromEnv() with %s=%s expected error", tt.key, tt.value)
			}
		})
	}
}
