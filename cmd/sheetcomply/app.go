package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/attestware/sheetcomply/config"
	"github.com/attestware/sheetcomply/docs"
	"github.com/attestware/sheetcomply/gemini"
	"github.com/attestware/sheetcomply/runner"
	"github.com/attestware/sheetcomply/sheets"
)

// run wires the clients together and executes one questionnaire pass.
// Setup failures return an error (non-zero exit); per-row failures are
// reported in the summary and exit zero.
func run(configPath, docsDir string, workers int, logLevel string) error {
	logger := setupLogging(logLevel)
	loadDotEnv(logger)

	cfg, err := config.NewLoader(logger).Load(configPath)
	if err != nil {
		return &runner.SetupError{Err: err}
	}

	// Flag overrides beat file and environment
	if docsDir != "" {
		cfg.Docs.Dir = docsDir
	}
	if workers > 0 {
		cfg.Run.Workers = workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetClient, err := sheets.NewServiceAccountClient(ctx, cfg.Sheets.CredentialsFile,
		sheets.WithBaseURL(cfg.Sheets.BaseURL),
		sheets.WithRetryConfig(sheetsRetry(cfg.Run.Retry)),
		sheets.WithLogger(logger))
	if err != nil {
		return &runner.SetupError{Err: err}
	}

	// Reachability check doubles as worksheet resolution
	title, worksheets, err := sheetClient.Worksheets(ctx, cfg.Sheets.SpreadsheetID)
	if err != nil {
		return &runner.SetupError{Err: fmt.Errorf("open spreadsheet %s: %w", cfg.Sheets.SpreadsheetID, err)}
	}
	if len(worksheets) == 0 {
		return &runner.SetupError{Err: fmt.Errorf("spreadsheet %s has no worksheets", cfg.Sheets.SpreadsheetID)}
	}

	sheetTitle := selectWorksheet(worksheets, cfg.Sheets.WorksheetIndex, logger)
	logger.Info("Opened spreadsheet",
		"title", title,
		"worksheet", sheetTitle,
		"worksheets", len(worksheets))

	generator := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model,
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithRetryConfig(geminiRetry(cfg.Run.Retry)),
		gemini.WithHTTPClient(&http.Client{Timeout: cfg.Gemini.Timeout}),
		gemini.WithLogger(logger))

	paths, err := docs.Discover(cfg.Docs.Dir, cfg.Docs.Patterns)
	if err != nil {
		return &runner.SetupError{Err: err}
	}
	if len(paths) == 0 {
		logger.Warn("No documents found, the model will have no evidence to cite", "dir", cfg.Docs.Dir)
	}

	uploader := docs.NewUploader(generator,
		docs.WithPollInterval(cfg.Gemini.UploadPollInterval),
		docs.WithDeadline(cfg.Gemini.UploadDeadline),
		docs.WithLogger(logger))

	documents, err := uploader.Upload(ctx, paths)
	if err != nil {
		return err
	}

	r := runner.New(generator, sheetClient, runner.Config{
		SpreadsheetID:      cfg.Sheets.SpreadsheetID,
		SheetTitle:         sheetTitle,
		RequirementColumns: columnCandidates(cfg.Sheets.RequirementColumn),
		ComplianceColumns:  columnCandidates(cfg.Sheets.ComplianceColumn),
		Workers:            cfg.Run.Workers,
		Temperature:        cfg.Gemini.Temperature,
		VerifyWrites:       cfg.Sheets.VerifyWrites,
	}, runner.WithLogger(logger))

	summary, err := r.Run(ctx, documents)
	if err != nil {
		return err
	}

	reportSummary(logger, summary, documents)
	return nil
}

// selectWorksheet picks the configured worksheet, falling back to the first
// one when the index is out of range.
func selectWorksheet(worksheets []sheets.Worksheet, index int, logger *slog.Logger) string {
	if index < 0 || index >= len(worksheets) {
		logger.Warn("Worksheet index out of range, defaulting to first worksheet",
			"index", index, "worksheets", len(worksheets))
		index = 0
	}
	return worksheets[index].Title
}

// columnCandidates expands a configured header name into the spellings
// matched against the sheet: the name itself plus its space/underscore
// variants.
func columnCandidates(name string) []string {
	candidates := []string{name}
	if v := strings.ReplaceAll(name, " ", "_"); v != name {
		candidates = append(candidates, v)
	}
	if v := strings.ReplaceAll(name, "_", " "); v != name {
		candidates = append(candidates, v)
	}
	return candidates
}

func geminiRetry(r config.RetryConfig) gemini.RetryConfig {
	return gemini.RetryConfig{
		MaxAttempts:       r.MaxAttempts,
		BackoffBase:       r.BackoffBase,
		BackoffMultiplier: r.BackoffMultiplier,
		MaxBackoff:        r.MaxBackoff,
	}
}

func sheetsRetry(r config.RetryConfig) sheets.RetryConfig {
	return sheets.RetryConfig{
		MaxAttempts:       r.MaxAttempts,
		BackoffBase:       r.BackoffBase,
		BackoffMultiplier: r.BackoffMultiplier,
		MaxBackoff:        r.MaxBackoff,
	}
}

// reportSummary logs the final per-run report: totals plus one line per
// failed row and per dropped document.
func reportSummary(logger *slog.Logger, summary *runner.Summary, documents *docs.Set) {
	logger.Info("Processing complete",
		"run_id", summary.RunID,
		"rows", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"documents", len(documents.Files))

	for _, failure := range summary.Failures {
		logger.Warn("Row failed", "row", failure.Row, "stage", failure.Stage, "error", failure.Err)
	}
	for _, uploadErr := range documents.Failures {
		logger.Warn("Document unavailable this run", "document", uploadErr.Path, "error", uploadErr.Err)
	}
}
