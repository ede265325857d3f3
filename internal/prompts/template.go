package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
)

// variablePattern matches top-level template references like {{.text}}, {{ .labels }}
// or the field position in {{range .prompt_examples}} and {{if .max_n_words}}.
var variablePattern = regexp.MustCompile(`\{\{-?\s*(?:(?:range|if|with)\s+)?\$?\.([a-zA-Z_][a-zA-Z0-9_]*)`)

// ExtractVariables extracts template variable names from a Go template string.
// For example, "Hello {{.name}}, {{range .items}}{{end}}" returns ["items", "name"].
// References inside range blocks are included too, since the pattern cannot
// tell the dot apart from the top-level data.
func ExtractVariables(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var vars []string

	for _, match := range matches {
		if len(match) > 1 {
			varName := match[1]
			if !seen[varName] {
				seen[varName] = true
				vars = append(vars, varName)
			}
		}
	}

	// Sort for consistent ordering
	sort.Strings(vars)
	return vars
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
