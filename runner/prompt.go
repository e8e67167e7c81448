package runner

import (
	"fmt"
	"strings"
)

// DefaultInstruction is the evaluation instruction sent with every
// requirement. The {{requirement}} and {{documents}} placeholders are
// substituted per row.
const DefaultInstruction = `Using only the provided documents as sources, evaluate this requirement:

"{{requirement}}"

Rules:
- Use only the provided documents; do not use external knowledge.
- Choose exactly one source. Prefer in this order when multiple match: SOC 2 report > ISO Statement of Applicability > policy/procedure > overview/FAQ.
- Ground the reasoning in a specific clause/section; be concrete, not generic.
- Keep the entire response on a single line (no newlines).
- Keep the reasoning concise (40 words or fewer).
- If the requirement is multi-part and only some parts are covered, answer Partially Compliant and name the covered parts succinctly.
- If you cannot confidently cite one allowed document name verbatim with a page (and section when applicable), respond with exactly: not_found.

Provide a compliance statement in this exact format:
"[Compliant/Non-compliant/Partially Compliant] - [brief reasoning] (Reference: [Document name], Page [number], Section [if applicable])"

If any single document contains an exact textual match or a definitive section that directly addresses the requirement, STOP. Use only that one document for your answer and citation. Do not consult or reference other documents. Do not merge sources.

If and only if the provided documents do not contain sufficient evidence to assess the requirement, respond with exactly:
not_found

Allowed document names (you must cite exactly one of these when providing a reference):
{{documents}}`

// NotFound is the sentinel statement written when the documents contain no
// usable evidence for a requirement.
const NotFound = "not_found"

// notFoundIndicators are model phrasings treated as "no evidence" and
// normalized to the sentinel.
var notFoundIndicators = []string{
	NotFound,
	"insufficient information",
	"insufficient evidence",
	"cannot be found",
	"not found in the provided documents",
}

// BuildPrompt renders the instruction template for one requirement against
// the allowed document names. The result is deterministic: the same inputs
// always produce the same prompt.
func BuildPrompt(instruction, requirement string, documentNames []string) string {
	if instruction == "" {
		instruction = DefaultInstruction
	}

	var docList strings.Builder
	for _, name := range documentNames {
		fmt.Fprintf(&docList, "- %s\n", name)
	}

	out := strings.ReplaceAll(instruction, "{{requirement}}", requirement)
	out = strings.ReplaceAll(out, "{{documents}}", strings.TrimSuffix(docList.String(), "\n"))
	return out
}

// Normalize reduces a model reply to either a usable compliance statement
// or the not_found sentinel. A statement that fails to cite one of the
// allowed document names is rejected: an uncited claim is worse than an
// honest gap in a questionnaire answer.
func Normalize(statement string, allowedNames []string) string {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return NotFound
	}

	lower := strings.ToLower(statement)
	for _, indicator := range notFoundIndicators {
		if strings.Contains(lower, indicator) {
			return NotFound
		}
	}

	if len(allowedNames) > 0 {
		cited := false
		for _, name := range allowedNames {
			if name != "" && strings.Contains(lower, strings.ToLower(name)) {
				cited = true
				break
			}
		}
		if !cited {
			return NotFound
		}
	}

	return statement
}
