package docs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/attestware/sheetcomply/gemini"
)

// UploadError reports a per-document upload or processing failure. The
// affected document is excluded from generation context; the run continues
// with the remaining documents.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// FileStore is the slice of the Gemini client the uploader depends on.
type FileStore interface {
	UploadFile(ctx context.Context, path, mimeType string) (*gemini.File, error)
	GetFile(ctx context.Context, name string) (*gemini.File, error)
}

// Set holds the documents available as generation context after an upload
// pass, plus the per-document failures encountered along the way.
type Set struct {
	// Files are the handles that reached the active state.
	Files []*gemini.File

	// Failures are the documents that could not be made available.
	Failures []*UploadError
}

// Names returns the display names of the active documents, used for
// citation enforcement in prompts.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		name := f.DisplayName
		if name == "" {
			name = filepath.Base(f.Name)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Uploader pushes local documents to the Gemini file store and waits for
// them to finish processing.
type Uploader struct {
	store        FileStore
	pollInterval time.Duration
	deadline     time.Duration
	logger       *slog.Logger
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithPollInterval sets the delay between file state checks.
func WithPollInterval(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.pollInterval = d
	}
}

// WithDeadline bounds how long to wait for uploaded files to become active.
func WithDeadline(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.deadline = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// NewUploader creates an Uploader backed by the given file store.
func NewUploader(store FileStore, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		store:        store,
		pollInterval: 2 * time.Second,
		deadline:     3 * time.Minute,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Upload pushes each unique path exactly once, waits for processing, and
// returns the set of active handles. Per-document failures degrade the set
// rather than aborting: the error return is reserved for context
// cancellation.
func (u *Uploader) Upload(ctx context.Context, paths []string) (*Set, error) {
	set := &Set{}

	seen := make(map[string]struct{}, len(paths))
	var uploaded []*gemini.File

	for _, path := range paths {
		clean := filepath.Clean(path)
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		u.logger.Info("Uploading document", "path", clean)

		file, err := u.store.UploadFile(ctx, clean, MIMEType(clean))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			uploadErr := &UploadError{Path: clean, Err: err}
			u.logger.Warn("Document upload failed, continuing without it",
				"path", clean, "error", err)
			set.Failures = append(set.Failures, uploadErr)
			continue
		}

		uploaded = append(uploaded, file)
	}

	active, failures, err := u.waitActive(ctx, uploaded)
	if err != nil {
		return nil, err
	}

	set.Files = active
	set.Failures = append(set.Failures, failures...)

	if len(set.Files) > 0 {
		u.logger.Info("Documents ready", "count", len(set.Files), "names", set.Names())
	} else {
		u.logger.Warn("No documents became active, continuing without document context")
	}

	return set, nil
}

// waitActive polls uploaded files until they become active, fail, or the
// deadline passes. Files still processing at the deadline are dropped.
func (u *Uploader) waitActive(ctx context.Context, files []*gemini.File) ([]*gemini.File, []*UploadError, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	pending := make(map[string]*gemini.File, len(files))
	for _, f := range files {
		pending[f.Name] = f
	}

	var active []*gemini.File
	var failures []*UploadError

	deadline := time.Now().Add(u.deadline)

	for len(pending) > 0 && time.Now().Before(deadline) {
		for name, f := range pending {
			current, err := u.store.GetFile(ctx, name)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				u.logger.Warn("Failed to check file state", "file", name, "error", err)
				continue
			}

			switch {
			case current.Active():
				active = append(active, current)
				delete(pending, name)
			case current.Failed():
				failures = append(failures, &UploadError{
					Path: f.DisplayName,
					Err:  fmt.Errorf("file store processing failed"),
				})
				u.logger.Warn("File processing failed", "file", name, "display_name", f.DisplayName)
				delete(pending, name)
			}
		}

		if len(pending) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(u.pollInterval):
		}
	}

	for name, f := range pending {
		failures = append(failures, &UploadError{
			Path: f.DisplayName,
			Err:  fmt.Errorf("file %s still processing at deadline", name),
		})
		u.logger.Warn("File not active at deadline, dropping", "file", name)
	}

	// Preserve upload order for deterministic prompt construction
	ordered := make([]*gemini.File, 0, len(active))
	for _, f := range files {
		for _, a := range active {
			if a.Name == f.Name {
				ordered = append(ordered, a)
				break
			}
		}
	}

	return ordered, failures, nil
}
