// Package docs discovers local compliance documents and uploads them to the
// Gemini file store, producing the set of active document handles used as
// generation context.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// mimeTypes maps recognized document extensions to their MIME types.
// Files with other extensions are uploaded as octet-stream only if a
// pattern explicitly matches them.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
}

// DefaultPatterns matches the document formats the tool knows how to label.
var DefaultPatterns = []string{"*.pdf", "*.xlsx", "*.xls", "*.csv", "*.tsv", "*.ods"}

// MIMEType returns the MIME type for a document path based on its
// extension, or "" when the extension is not recognized.
func MIMEType(path string) string {
	return mimeTypes[strings.ToLower(filepath.Ext(path))]
}

// Discover returns the files under dir whose base names match any of the
// doublestar patterns, sorted and deduplicated. A missing directory yields
// an empty result rather than an error, so a run without documents can
// still proceed.
func Discover(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read docs directory %s: %w", dir, err)
	}

	seen := make(map[string]struct{})
	var paths []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		for _, pattern := range patterns {
			ok, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(name))
			if err != nil {
				return nil, fmt.Errorf("bad document pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}

			path := filepath.Join(dir, name)
			if _, dup := seen[path]; !dup {
				seen[path] = struct{}{}
				paths = append(paths, path)
			}
			break
		}
	}

	sort.Strings(paths)
	return paths, nil
}
