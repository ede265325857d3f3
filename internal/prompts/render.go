package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Keys of the built-in task templates.
const (
	NERKey           = "tasks.ner.v1"
	SummarizationKey = "tasks.summarization.v1"
	EntityLinkerKey  = "tasks.entity_linker.v1"
)

var defaults = []struct {
	key, file, description string
}{
	{NERKey, "templates/ner.v1.tmpl", "Named entity recognition: label: comma separated phrases per line"},
	{SummarizationKey, "templates/summarization.v1.tmpl", "Summarization with optional word limit"},
	{EntityLinkerKey, "templates/entity_linker.v1.tmpl", "Entity linking over ranked knowledge-base candidates"},
}

// RegisterDefaults registers the embedded task templates with the resolver.
func RegisterDefaults(r *Resolver) {
	for _, d := range defaults {
		text, err := templateFS.ReadFile(d.file)
		if err != nil {
			// Embedded at build time; a missing file is a programming error.
			panic(fmt.Sprintf("embedded template %s: %v", d.file, err))
		}
		r.Register(EmbeddedPrompt{Key: d.key, Text: string(text), Description: d.description})
	}
}

// funcs is the complete function set available to templates.
var funcs = template.FuncMap{
	"join":  join,
	"add":   func(a, b int) int { return a + b },
	"lower": strings.ToLower,
}

// Template is a compiled prompt template.
type Template struct {
	text string
	tmpl *template.Template
}

// Compile parses a prompt template. Missing map keys render as empty values.
func Compile(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return &Template{text: text, tmpl: tmpl}, nil
}

// Text returns the template source.
func (t *Template) Text() string {
	return t.text
}

// Execute renders the template against data.
func (t *Template) Execute(data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t.tmpl.Name(), err)
	}
	return buf.String(), nil
}

// Render compiles and executes text in one step.
func Render(text string, data map[string]any) (string, error) {
	t, err := Compile("prompt", text)
	if err != nil {
		return "", err
	}
	return t.Execute(data)
}

func join(items any, sep string) string {
	switch v := items.(type) {
	case []string:
		return strings.Join(v, sep)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
