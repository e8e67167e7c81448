package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("", "Data encrypted at rest?", []string{"soc2.pdf", "iso-soa.xlsx"})

	assert.Contains(t, prompt, `"Data encrypted at rest?"`)
	assert.Contains(t, prompt, "- soc2.pdf\n- iso-soa.xlsx")
	assert.NotContains(t, prompt, "{{requirement}}")
	assert.NotContains(t, prompt, "{{documents}}")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	a := BuildPrompt("", "Access reviews quarterly?", []string{"soc2.pdf"})
	b := BuildPrompt("", "Access reviews quarterly?", []string{"soc2.pdf"})
	assert.Equal(t, a, b)
}

func TestBuildPrompt_CustomInstruction(t *testing.T) {
	prompt := BuildPrompt("Answer {{requirement}} using {{documents}}", "Q?", []string{"a.pdf"})
	assert.Equal(t, "Answer Q? using - a.pdf", prompt)
}

func TestBuildPrompt_NoDocuments(t *testing.T) {
	prompt := BuildPrompt("", "Q?", nil)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "):"),
		"document list should be empty, prompt ends with the list header")
}

func TestNormalize(t *testing.T) {
	allowed := []string{"soc2.pdf", "iso-soa.xlsx"}

	tests := []struct {
		name      string
		statement string
		allowed   []string
		want      string
	}{
		{
			name:      "valid statement with citation",
			statement: "Compliant - AES-256 at rest (Reference: soc2.pdf, Page 12)",
			allowed:   allowed,
			want:      "Compliant - AES-256 at rest (Reference: soc2.pdf, Page 12)",
		},
		{
			name:      "empty reply",
			statement: "",
			allowed:   allowed,
			want:      NotFound,
		},
		{
			name:      "whitespace reply",
			statement: "   \n",
			allowed:   allowed,
			want:      NotFound,
		},
		{
			name:      "explicit not_found",
			statement: "not_found",
			allowed:   allowed,
			want:      NotFound,
		},
		{
			name:      "insufficient evidence phrasing",
			statement: "There is insufficient evidence to assess this requirement.",
			allowed:   allowed,
			want:      NotFound,
		},
		{
			name:      "cannot be found phrasing",
			statement: "The control cannot be found in the documents.",
			allowed:   allowed,
			want:      NotFound,
		},
		{
			name:      "uncited claim rejected",
			statement: "Compliant - encryption enabled (Reference: some-other-doc.pdf, Page 3)",
			allowed:   allowed,
			want:      NotFound,
		},
		{
			name:      "citation match is case-insensitive",
			statement: "Compliant - see SOC2.PDF page 4",
			allowed:   allowed,
			want:      "Compliant - see SOC2.PDF page 4",
		},
		{
			name:      "no allowed names skips citation check",
			statement: "Compliant - generic reasoning",
			allowed:   nil,
			want:      "Compliant - generic reasoning",
		},
		{
			name:      "trims surrounding whitespace",
			statement: "  Compliant - ok (Reference: soc2.pdf, Page 1)  ",
			allowed:   allowed,
			want:      "Compliant - ok (Reference: soc2.pdf, Page 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.statement, tt.allowed))
		})
	}
}
