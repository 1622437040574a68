// Package template resolves {{step.output}} placeholders in step prompts.
//
// Substitution is textual only. There are no expressions, filters or
// control constructs, and substituted text is never rescanned, so an output
// that itself contains a placeholder is inserted verbatim.
package template

import (
	"regexp"
	"strings"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
)

// placeholderPattern matches {{name.output}}, tolerating inner whitespace.
// Step names follow the identifier rule enforced on definitions.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9][A-Za-z0-9_-]*)\.output\s*\}\}`)

// OutputLookup returns the output of a step that has succeeded.
type OutputLookup func(step string) (string, bool)

// Outputs is an OutputLookup backed by a map.
type Outputs map[string]string

// Lookup implements OutputLookup.
func (o Outputs) Lookup(step string) (string, bool) {
	v, ok := o[step]
	return v, ok
}

// References returns the distinct step names referenced by prompt,
// in order of first appearance.
func References(prompt string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(prompt, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

// HasPlaceholders reports whether prompt contains any placeholder.
func HasPlaceholders(prompt string) bool {
	return placeholderPattern.MatchString(prompt)
}

// Resolve substitutes every placeholder in prompt with the referenced output.
// step names the step being resolved and is used for error reporting.
// If any referenced output is unavailable, Resolve returns a RES_001 error
// naming the first missing step and the prompt is left unresolved.
func Resolve(step, prompt string, lookup OutputLookup) (string, error) {
	if !strings.Contains(prompt, "{{") {
		return prompt, nil
	}

	var missing []string
	resolved := placeholderPattern.ReplaceAllStringFunc(prompt, func(match string) string {
		ref := placeholderPattern.FindStringSubmatch(match)[1]
		out, ok := lookup(ref)
		if !ok {
			missing = append(missing, ref)
			return match
		}
		return out
	})

	if len(missing) > 0 {
		return prompt, serrors.MissingOutput(step, missing[0]).WithDetail("missing", missing)
	}
	return resolved, nil
}
