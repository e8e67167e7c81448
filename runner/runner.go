// Package runner coordinates one questionnaire run: snapshot the sheet,
// dispatch requirement rows to a bounded worker pool, and write generated
// compliance statements back. Rows are independent; one bad row never
// blocks the others.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/attestware/sheetcomply/docs"
	"github.com/attestware/sheetcomply/gemini"
	"github.com/attestware/sheetcomply/sheets"
	"github.com/google/uuid"
)

// headerRow is the 1-based row holding column headers; data starts below it.
const headerRow = 1

// Generator produces a compliance statement for one prompt. Implemented by
// *gemini.Client; retry on transient provider errors happens inside.
type Generator interface {
	Generate(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResponse, error)
}

// Spreadsheet is the slice of the sheets client the runner depends on. It
// must be safe for concurrent use across workers.
type Spreadsheet interface {
	RowValues(ctx context.Context, spreadsheetID, sheetTitle string, row int) ([]string, error)
	ColumnValues(ctx context.Context, spreadsheetID, sheetTitle string, col int) ([]string, error)
	UpdateCell(ctx context.Context, spreadsheetID, sheetTitle string, row, col int, value string) error
	CellValue(ctx context.Context, spreadsheetID, sheetTitle string, row, col int) (string, error)
}

// Task is one unit of work: a requirement paired with the sheet row whose
// compliance cell receives the answer.
type Task struct {
	Row         int
	Requirement string
}

// RowFailure records why one row produced no written statement.
type RowFailure struct {
	Row   int
	Stage string // "generate" or "write"
	Err   error
}

// Summary is the final report of a run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []RowFailure
}

// Config holds the per-run settings read once at startup.
type Config struct {
	SpreadsheetID string
	SheetTitle    string

	// RequirementColumns and ComplianceColumns are header name candidates,
	// matched case-insensitively in order.
	RequirementColumns []string
	ComplianceColumns  []string

	// Workers bounds the number of rows processed concurrently.
	Workers int

	// Instruction overrides the prompt template; empty uses the default.
	Instruction string

	// Temperature is passed through to the generator. nil uses the model
	// default.
	Temperature *float64

	// VerifyWrites reads each written cell back and retries once if the
	// write did not land.
	VerifyWrites bool
}

// Runner drives one run end to end.
type Runner struct {
	generator Generator
	sheet     Spreadsheet
	cfg       Config
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner.
func New(generator Generator, sheet Spreadsheet, cfg Config, opts ...Option) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if len(cfg.RequirementColumns) == 0 {
		cfg.RequirementColumns = []string{"Requirement"}
	}
	if len(cfg.ComplianceColumns) == 0 {
		cfg.ComplianceColumns = []string{"Compliance Statement", "Compliance_Statement"}
	}

	r := &Runner{
		generator: generator,
		sheet:     sheet,
		cfg:       cfg,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes one pass: snapshot the sheet, generate a statement per
// pending row, and write each result back. Per-row failures are collected
// in the summary; the returned error is reserved for setup failures and
// cancellation.
func (r *Runner) Run(ctx context.Context, documents *docs.Set) (*Summary, error) {
	runID := uuid.New().String()
	logger := r.logger.With("run_id", runID)

	tasks, compCol, skipped, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:   runID,
		Total:   len(tasks),
		Skipped: skipped,
	}

	if len(tasks) == 0 {
		logger.Info("No new requirements to process", "skipped", skipped)
		return summary, nil
	}

	logger.Info("Dispatching requirements",
		"rows", len(tasks),
		"skipped", skipped,
		"workers", r.cfg.Workers,
		"documents", len(documents.Files))

	names := documents.Names()

	taskCh := make(chan Task)
	resultCh := make(chan RowFailure, len(tasks))

	var processed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				processed.Add(1)
				if failure := r.processRow(ctx, logger, task, compCol, documents, names); failure != nil {
					resultCh <- *failure
				}
			}
		}()
	}

	// Dispatch; stop handing out new rows once the run is cancelled.
dispatch:
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			break dispatch
		case taskCh <- task:
		}
	}
	close(taskCh)
	wg.Wait()
	close(resultCh)

	for failure := range resultCh {
		summary.Failures = append(summary.Failures, failure)
	}
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Row < summary.Failures[j].Row
	})

	summary.Failed = len(summary.Failures)
	// Rows never dispatched count as neither succeeded nor failed
	summary.Succeeded = int(processed.Load()) - summary.Failed

	if err := ctx.Err(); err != nil {
		logger.Warn("Run cancelled",
			"dispatched", processed.Load(),
			"total", summary.Total)
		return summary, err
	}

	logger.Info("Run complete",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)

	return summary, nil
}

// snapshot reads the sheet once and builds the task list. Re-reading during
// the run would let concurrent edits shift row indexes under us.
func (r *Runner) snapshot(ctx context.Context) (tasks []Task, complianceCol int, skipped int, err error) {
	headers, err := r.sheet.RowValues(ctx, r.cfg.SpreadsheetID, r.cfg.SheetTitle, headerRow)
	if err != nil {
		return nil, 0, 0, &SetupError{Err: fmt.Errorf("read header row: %w", err)}
	}

	reqCol := sheets.FindHeaderColumn(headers, r.cfg.RequirementColumns)
	if reqCol == 0 {
		return nil, 0, 0, &SetupError{Err: fmt.Errorf("no %q column header in row %d", r.cfg.RequirementColumns[0], headerRow)}
	}

	compCol := sheets.FindHeaderColumn(headers, r.cfg.ComplianceColumns)
	if compCol == 0 {
		return nil, 0, 0, &SetupError{Err: fmt.Errorf("no %q column header in row %d", r.cfg.ComplianceColumns[0], headerRow)}
	}

	r.logger.Debug("Resolved columns", "requirement", reqCol, "compliance", compCol)

	requirements, err := r.sheet.ColumnValues(ctx, r.cfg.SpreadsheetID, r.cfg.SheetTitle, reqCol)
	if err != nil {
		return nil, 0, 0, &SetupError{Err: fmt.Errorf("read requirement column: %w", err)}
	}
	statements, err := r.sheet.ColumnValues(ctx, r.cfg.SpreadsheetID, r.cfg.SheetTitle, compCol)
	if err != nil {
		return nil, 0, 0, &SetupError{Err: fmt.Errorf("read compliance column: %w", err)}
	}

	// Pad both columns to the same length so physical row numbers line up
	maxLen := max(len(requirements), len(statements))
	for len(requirements) < maxLen {
		requirements = append(requirements, "")
	}
	for len(statements) < maxLen {
		statements = append(statements, "")
	}

	for row := headerRow + 1; row <= maxLen; row++ {
		requirement := trimmed(requirements[row-1])
		statement := trimmed(statements[row-1])

		if requirement == "" || statement != "" {
			r.logger.Debug("Skipping row", "row", row, "reason", skipReason(requirement))
			skipped++
			continue
		}

		tasks = append(tasks, Task{Row: row, Requirement: requirement})
	}

	return tasks, compCol, skipped, nil
}

// processRow performs Generate -> Normalize -> Write for one row. A nil
// return means the compliance cell now holds the generated statement.
func (r *Runner) processRow(ctx context.Context, logger *slog.Logger, task Task, compCol int, documents *docs.Set, names []string) *RowFailure {
	prompt := BuildPrompt(r.cfg.Instruction, task.Requirement, names)

	resp, err := r.generator.Generate(ctx, gemini.GenerateRequest{
		Prompt:      prompt,
		Files:       documents.Files,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		genErr := &GenerationError{Row: task.Row, Err: err}
		logger.Warn("Generation failed, leaving row untouched", "row", task.Row, "error", err)
		return &RowFailure{Row: task.Row, Stage: "generate", Err: genErr}
	}

	statement := Normalize(resp.Content, names)

	logger.Info("Generated statement",
		"row", task.Row,
		"request_id", resp.RequestID,
		"tokens", resp.Usage.TotalTokens)

	if err := r.writeCell(ctx, logger, task.Row, compCol, statement); err != nil {
		writeErr := &WriteError{Row: task.Row, Err: err}
		logger.Warn("Write failed, generation lost for this run", "row", task.Row, "error", err)
		return &RowFailure{Row: task.Row, Stage: "write", Err: writeErr}
	}

	logger.Info("Updated row", "row", task.Row)
	return nil
}

// writeCell updates the compliance cell, optionally verifying the write
// landed and retrying once when the read-back comes up empty.
func (r *Runner) writeCell(ctx context.Context, logger *slog.Logger, row, col int, value string) error {
	if err := r.sheet.UpdateCell(ctx, r.cfg.SpreadsheetID, r.cfg.SheetTitle, row, col, value); err != nil {
		return err
	}

	if !r.cfg.VerifyWrites {
		return nil
	}

	readBack, err := r.sheet.CellValue(ctx, r.cfg.SpreadsheetID, r.cfg.SheetTitle, row, col)
	if err != nil {
		logger.Warn("Write verification read failed", "row", row, "error", err)
		return nil
	}
	if trimmed(readBack) != "" {
		return nil
	}

	logger.Warn("Write verification found empty cell, retrying", "row", row,
		"range", sheets.A1(r.cfg.SheetTitle, row, col))
	return r.sheet.UpdateCell(ctx, r.cfg.SpreadsheetID, r.cfg.SheetTitle, row, col, value)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

func skipReason(requirement string) string {
	if requirement == "" {
		return "empty requirement"
	}
	return "already processed"
}
