// Package commitprompt renders the instruction template sent to a backend
// and cleans up what comes back.
package commitprompt

import (
	"regexp"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/randalmurphal/llmkit/template"
)

// Placeholder is the variable the diff is bound to in a template.
const Placeholder = "diff"

var engine = template.NewEngine()

// HasPlaceholder reports whether tmpl references {{diff}}.
func HasPlaceholder(tmpl string) bool {
	vars, err := engine.Parse(tmpl)
	if err != nil {
		return strings.Contains(tmpl, "{{"+Placeholder+"}}")
	}
	return slices.Contains(vars, Placeholder)
}

// Render substitutes diff into tmpl. A template without the placeholder
// gets the diff appended, so the changes are always part of the prompt.
// An empty diff is rendered like any other.
func Render(tmpl, diff string) (string, error) {
	if !HasPlaceholder(tmpl) {
		return appendDiff(tmpl, diff), nil
	}
	out, err := engine.Render(tmpl, map[string]any{Placeholder: diff})
	if err != nil {
		return "", errors.Wrap(err, "render prompt template")
	}
	return out, nil
}

// Literal does a plain text substitution of {{diff}}, for templates the
// template engine rejects.
func Literal(tmpl, diff string) string {
	if !strings.Contains(tmpl, "{{"+Placeholder+"}}") {
		return appendDiff(tmpl, diff)
	}
	return strings.ReplaceAll(tmpl, "{{"+Placeholder+"}}", diff)
}

func appendDiff(tmpl, diff string) string {
	if tmpl == "" {
		return diff
	}
	return strings.TrimRight(tmpl, "\n") + "\n\n" + diff
}

var reTextBlock = regexp.MustCompile("(?ms)^```(?:\\w+)?\\s*([\\s\\S]+?)\\s*```$")

// Returns (contentToPrint, okExactOneTextBlock)
func ExtractOneTextCodeBlock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	m := reTextBlock.FindStringSubmatch(s)
	if len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}
	return s, false
}

// Clean turns a raw backend reply into a commit message: a fenced block is
// unwrapped, everything else is trimmed.
func Clean(raw string) string {
	msg, _ := ExtractOneTextCodeBlock(raw)
	return msg
}
