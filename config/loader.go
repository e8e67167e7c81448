package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Environment variables recognized by the loader. They take precedence
// over file values, matching how the tool is typically driven from CI or
// a shell.
const (
	EnvAPIKey          = "GEMINI_API_KEY"
	EnvSpreadsheetID   = "SPREADSHEET_ID"
	EnvWorksheetIndex  = "WORKSHEET_INDEX"
	EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvDocsDir         = "DOCS_DIR"
	EnvMaxWorkers      = "GEMINI_MAX_WORKERS"
	EnvVerifyWrites    = "VERIFY_WRITES"
	EnvModel           = "GEMINI_MODEL"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Config file (when path is non-empty)
// 3. Environment variables
// The result is validated before being returned.
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", path))
		config.Merge(fileConfig)
	}

	if err := l.applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays environment variables onto the config.
func (l *Loader) applyEnv(config *Config) error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		config.Gemini.Model = v
	}
	if v := os.Getenv(EnvSpreadsheetID); v != "" {
		config.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv(EnvCredentialsFile); v != "" {
		config.Sheets.CredentialsFile = v
	}
	if v := os.Getenv(EnvDocsDir); v != "" {
		config.Docs.Dir = v
	}

	if v := os.Getenv(EnvWorksheetIndex); v != "" {
		index, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorksheetIndex, v, err)
		}
		config.Sheets.WorksheetIndex = index
	}

	if v := os.Getenv(EnvMaxWorkers); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxWorkers, v, err)
		}
		config.Run.Workers = workers
	}

	if v := os.Getenv(EnvVerifyWrites); v != "" {
		config.Sheets.VerifyWrites = parseBool(v)
	}

	return nil
}

// parseBool accepts the loose truthy spellings commonly used in shells.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
