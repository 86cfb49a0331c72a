package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath            string
	LogDir              string
	ReportDir           string
	StoreBackend        string // json or sqlite
	RulesFile           string // optional override of the embedded scoring rules
	ConfidenceLevel     float64
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	return FromEnv(exeDir)
}

// FromEnv builds the configuration from the process environment alone.
// baseDir is used for DATA_PATH when the variable is unset.
func FromEnv(baseDir string) (*AppConfig, error) {
	dataPath := getEnv("DATA_PATH", "")
	if dataPath == "" {
		if baseDir != "" {
			dataPath = baseDir
		} else {
			dataPath = "."
		}
	}

	cfg := &AppConfig{
		DataPath:            dataPath,
		LogDir:              getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs")),
		ReportDir:           getEnv("REPORT_DIR", filepath.Join(dataPath, "reports")),
		StoreBackend:        getEnv("STORE_BACKEND", "json"),
		RulesFile:           getEnv("RULES_FILE", ""),
		ConfidenceLevel:     getEnvFloat("CONFIDENCE_LEVEL", 80),
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
	}

	switch cfg.StoreBackend {
	case "json", "sqlite":
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be json or sqlite, got %q", cfg.StoreBackend)
	}
	if cfg.ConfidenceLevel < 0 || cfg.ConfidenceLevel > 100 {
		return nil, fmt.Errorf("CONFIDENCE_LEVEL must be within 0-100, got %v", cfg.ConfidenceLevel)
	}

	for _, dir := range []string{cfg.DataPath, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create directory")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric value")
	}
	return fallback
}
