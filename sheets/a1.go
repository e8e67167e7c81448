package sheets

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a 1-based column index to its A1 letter form
// (1 -> A, 26 -> Z, 27 -> AA).
func ColumnLetter(col int) string {
	var result string
	n := col
	for n > 0 {
		n--
		result = string(rune('A'+n%26)) + result
		n /= 26
	}
	return result
}

// A1 builds a single-cell A1 range reference like 'Sheet1'!B4.
func A1(sheetTitle string, row, col int) string {
	return fmt.Sprintf("'%s'!%s%d", sheetTitle, ColumnLetter(col), row)
}

// FindHeaderColumn returns the 1-based index of the first header matching
// any of the candidate names, compared case-insensitively after trimming.
// Returns 0 when no candidate matches.
func FindHeaderColumn(headers []string, candidates []string) int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, candidate := range candidates {
		want := strings.ToLower(strings.TrimSpace(candidate))
		for i, h := range normalized {
			if h == want {
				return i + 1
			}
		}
	}
	return 0
}
