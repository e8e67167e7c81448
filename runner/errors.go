package runner

import "fmt"

// SetupError is a fatal pre-run failure: bad credentials, unreachable
// spreadsheet, missing headers. The process exits non-zero without touching
// any row.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// GenerationError is a per-row failure after retry exhaustion. The row is
// skipped and its compliance cell left untouched; the run continues.
type GenerationError struct {
	Row int
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate row %d: %v", e.Row, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// WriteError is a per-row failure writing a generated statement back. The
// generation is lost for this run; the run continues.
type WriteError struct {
	Row int
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write row %d: %v", e.Row, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
