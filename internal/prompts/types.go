// Package prompts provides prompt templates with embedded defaults and per-task overrides.
//
// The package supports a hybrid model where:
//   - Embedded .tmpl files in code are the source of truth for defaults
//   - A task may carry its own template text (from config or a loaded task state)
//     which overrides the embedded default for that task only
//
// Resolution order for a task:
//  1. Override text (if non-empty)
//  2. Embedded default (from .tmpl files in code)
//
// Templates are Go text/template documents rendered against plain data only:
// maps, slices, strings and numbers supplied by the caller.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: tasks.ner.v1
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// ResolvedPrompt is the result of resolving a prompt for a task.
type ResolvedPrompt struct {
	Key        string   `json:"key" yaml:"key"`
	Text       string   `json:"text" yaml:"text"`
	Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	IsOverride bool     `json:"is_override" yaml:"is_override"` // true if the task supplied its own text
	Hash       string   `json:"hash" yaml:"hash"`               // traceability of the exact template used
}
