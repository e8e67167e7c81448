// Package main provides the sheetcomply binary entry point.
// Sheetcomply answers a compliance questionnaire held in a Google Sheet:
// it uploads local evidence documents to the Gemini file store, generates a
// compliance statement per requirement row, and writes each statement back.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "sheetcomply"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		docsDir    string
		workers    int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "sheetcomply",
		Short: "Generate compliance statements for a questionnaire spreadsheet",
		Long: `Sheetcomply fills in the Compliance Statement column of a security
questionnaire held in a Google Sheet.

It uploads the documents in the docs directory to the Gemini file store,
asks Gemini to evaluate each requirement row against those documents, and
writes the generated statement back into the row. Rows that already have a
statement are left alone, so the run is safe to repeat.

Credentials come from the environment: GEMINI_API_KEY for Gemini and
GOOGLE_APPLICATION_CREDENTIALS for the Sheets service account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, docsDir, workers, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&docsDir, "docs-dir", "", "Directory of context documents (default ./docs)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (default 8)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// setupLogging configures the process-wide logger and returns it.
func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadDotEnv loads a .env file when present. A missing file is fine; the
// environment itself is the primary source.
func loadDotEnv(logger *slog.Logger) {
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded .env file")
	}
}
