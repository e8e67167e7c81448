package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMIMEType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"soc2.pdf", "application/pdf"},
		{"controls.XLSX", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"legacy.xls", "application/vnd.ms-excel"},
		{"export.csv", "text/csv"},
		{"export.tsv", "text/tab-separated-values"},
		{"matrix.ods", "application/vnd.oasis.opendocument.spreadsheet"},
		{"notes.txt", ""},
		{"README", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MIMEType(tt.path))
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"soc2.pdf", "iso-soa.XLSX", "notes.txt", "policy.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.pdf"), 0755)) // directory, must be skipped

	paths, err := Discover(dir, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "iso-soa.XLSX"),
		filepath.Join(dir, "policy.pdf"),
		filepath.Join(dir, "soc2.pdf"),
	}, paths)
}

func TestDiscover_CustomPatterns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"soc2.pdf", "policy.pdf", "matrix.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	paths, err := Discover(dir, []string{"soc2*"})

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "soc2.pdf")}, paths)
}

func TestDiscover_MissingDir(t *testing.T) {
	paths, err := Discover(filepath.Join(t.TempDir(), "nope"), nil)

	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDiscover_BadPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("x"), 0644))

	_, err := Discover(dir, []string{"[unclosed"})
	require.Error(t, err)
}
