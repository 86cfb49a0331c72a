package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file written under the log directory.
const FileName = "strategy-mcp.log"

// Init installs the global logger writing to stderr and a rotating file.
// Stdout is left untouched because the MCP stdio transport owns it.
func Init(verbose bool) error {
	// 0. Load .env from binary directory so LOGS_FOLDER is visible before config.Load.
	if exePath, err := os.Executable(); err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	// 1. Determine log level
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// 2. Console sink
	isTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	// 3. Rotating file sink
	logDir, err := ResolveDir()
	if err != nil {
		return err
	}
	fileWriter := NewFileWriter(logDir)

	// 4. Global logger over both sinks
	log.Logger = New(zerolog.MultiLevelWriter(io.Writer(consoleWriter), fileWriter))
	return nil
}

// New builds a timestamped logger over w.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// ResolveDir returns LOGS_FOLDER or a logs directory beside the binary,
// creating it and checking that it accepts writes.
func ResolveDir() (string, error) {
	logDir := os.Getenv("LOGS_FOLDER")
	if logDir == "" {
		if exePath, err := os.Executable(); err == nil {
			logDir = filepath.Join(filepath.Dir(exePath), "logs")
		} else {
			logDir = "logs"
		}
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}

	probe := filepath.Join(logDir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
		return "", fmt.Errorf("log directory %q is not writable: %w", logDir, err)
	}
	_ = os.Remove(probe)

	return logDir, nil
}

// NewFileWriter returns the rotating file sink inside dir.
func NewFileWriter(dir string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    16, // megabytes
		MaxBackups: 32,
		MaxAge:     365, // days
		Compress:   true,
	}
}
