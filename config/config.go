// Package config provides configuration loading for sheetcomply.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sheetcomply configuration. Everything is
// read once at startup; there is no runtime reconfiguration.
type Config struct {
	Gemini GeminiConfig `yaml:"gemini"`
	Sheets SheetsConfig `yaml:"sheets"`
	Docs   DocsConfig   `yaml:"docs"`
	Run    RunConfig    `yaml:"run"`
}

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API. Environment only
	// (GEMINI_API_KEY); never read from or written to a config file.
	APIKey string `yaml:"-"`
	// Model is the Gemini model used for generation
	Model string `yaml:"model"`
	// BaseURL is the Gemini API endpoint
	BaseURL string `yaml:"base_url"`
	// Temperature controls randomness; nil uses the model default
	Temperature *float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for one generation
	Timeout time.Duration `yaml:"timeout"`
	// UploadPollInterval is the delay between file state checks
	UploadPollInterval time.Duration `yaml:"upload_poll_interval"`
	// UploadDeadline bounds how long uploaded files may stay in processing
	UploadDeadline time.Duration `yaml:"upload_deadline"`
}

// SheetsConfig configures the spreadsheet being processed.
type SheetsConfig struct {
	// SpreadsheetID identifies the Google Sheet (from its URL)
	SpreadsheetID string `yaml:"spreadsheet_id"`
	// WorksheetIndex selects the worksheet within the spreadsheet
	WorksheetIndex int `yaml:"worksheet_index"`
	// CredentialsFile is the path to the service account JSON key
	CredentialsFile string `yaml:"credentials_file"`
	// RequirementColumn is the header of the column holding requirements
	RequirementColumn string `yaml:"requirement_column"`
	// ComplianceColumn is the header of the column receiving statements
	ComplianceColumn string `yaml:"compliance_column"`
	// BaseURL is the Sheets API endpoint
	BaseURL string `yaml:"base_url"`
	// VerifyWrites reads each written cell back and retries once if empty
	VerifyWrites bool `yaml:"verify_writes"`
}

// DocsConfig configures document discovery.
type DocsConfig struct {
	// Dir is the directory holding context documents
	Dir string `yaml:"dir"`
	// Patterns are doublestar patterns matched against file names
	// (empty = the built-in document formats)
	Patterns []string `yaml:"patterns"`
}

// RunConfig configures the processing run.
type RunConfig struct {
	// Workers bounds the number of rows processed concurrently
	Workers int `yaml:"workers"`
	// Retry is the policy applied to Gemini and Sheets calls
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig is the retry policy shared by all outbound API calls.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:              "gemini-1.5-pro",
			BaseURL:            "https://generativelanguage.googleapis.com",
			Timeout:            3 * time.Minute,
			UploadPollInterval: 2 * time.Second,
			UploadDeadline:     3 * time.Minute,
		},
		Sheets: SheetsConfig{
			WorksheetIndex:    0,
			RequirementColumn: "Requirement",
			ComplianceColumn:  "Compliance Statement",
			BaseURL:           "https://sheets.googleapis.com",
		},
		Docs: DocsConfig{
			Dir: "./docs",
		},
		Run: RunConfig{
			Workers: 8,
			Retry: RetryConfig{
				MaxAttempts:       5,
				BackoffBase:       2 * time.Second,
				BackoffMultiplier: 2.0,
				MaxBackoff:        30 * time.Second,
			},
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model is required")
	}
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets.spreadsheet_id is required")
	}
	if c.Sheets.CredentialsFile == "" {
		return fmt.Errorf("sheets.credentials_file is required")
	}
	if c.Sheets.WorksheetIndex < 0 {
		return fmt.Errorf("sheets.worksheet_index must not be negative")
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("run.workers must be at least 1")
	}
	if c.Run.Retry.MaxAttempts < 1 {
		return fmt.Errorf("run.retry.max_attempts must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Gemini
	if other.Gemini.APIKey != "" {
		c.Gemini.APIKey = other.Gemini.APIKey
	}
	if other.Gemini.Model != "" {
		c.Gemini.Model = other.Gemini.Model
	}
	if other.Gemini.BaseURL != "" {
		c.Gemini.BaseURL = other.Gemini.BaseURL
	}
	if other.Gemini.Temperature != nil {
		c.Gemini.Temperature = other.Gemini.Temperature
	}
	if other.Gemini.Timeout != 0 {
		c.Gemini.Timeout = other.Gemini.Timeout
	}
	if other.Gemini.UploadPollInterval != 0 {
		c.Gemini.UploadPollInterval = other.Gemini.UploadPollInterval
	}
	if other.Gemini.UploadDeadline != 0 {
		c.Gemini.UploadDeadline = other.Gemini.UploadDeadline
	}

	// Sheets
	if other.Sheets.SpreadsheetID != "" {
		c.Sheets.SpreadsheetID = other.Sheets.SpreadsheetID
	}
	if other.Sheets.WorksheetIndex != 0 {
		c.Sheets.WorksheetIndex = other.Sheets.WorksheetIndex
	}
	if other.Sheets.CredentialsFile != "" {
		c.Sheets.CredentialsFile = other.Sheets.CredentialsFile
	}
	if other.Sheets.RequirementColumn != "" {
		c.Sheets.RequirementColumn = other.Sheets.RequirementColumn
	}
	if other.Sheets.ComplianceColumn != "" {
		c.Sheets.ComplianceColumn = other.Sheets.ComplianceColumn
	}
	if other.Sheets.BaseURL != "" {
		c.Sheets.BaseURL = other.Sheets.BaseURL
	}
	if other.Sheets.VerifyWrites {
		c.Sheets.VerifyWrites = true
	}

	// Docs
	if other.Docs.Dir != "" {
		c.Docs.Dir = other.Docs.Dir
	}
	if len(other.Docs.Patterns) > 0 {
		c.Docs.Patterns = other.Docs.Patterns
	}

	// Run
	if other.Run.Workers != 0 {
		c.Run.Workers = other.Run.Workers
	}
	if other.Run.Retry.MaxAttempts != 0 {
		c.Run.Retry.MaxAttempts = other.Run.Retry.MaxAttempts
	}
	if other.Run.Retry.BackoffBase != 0 {
		c.Run.Retry.BackoffBase = other.Run.Retry.BackoffBase
	}
	if other.Run.Retry.BackoffMultiplier != 0 {
		c.Run.Retry.BackoffMultiplier = other.Run.Retry.BackoffMultiplier
	}
	if other.Run.Retry.MaxBackoff != 0 {
		c.Run.Retry.MaxBackoff = other.Run.Retry.MaxBackoff
	}
}
