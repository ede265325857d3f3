// Package summarize implements the summarization task. The model's reply is
// written verbatim (trimmed) to a named document field.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/prompts"
	"github.com/jackzampolin/annotator/internal/task"
)

// lengthSlack is how far an example summary may exceed its limits before a warning.
const lengthSlack = 1.2

// Example is a summarization prompt example.
type Example struct {
	Text    string `json:"text" yaml:"text"`
	Summary string `json:"summary" yaml:"summary"`
}

const exampleSchema = `{
  "type": "object",
  "required": ["text", "summary"],
  "properties": {
    "text": {"type": "string"},
    "summary": {"type": "string"}
  }
}`

// Variant is the summarization task strategy.
type Variant struct{}

// New creates a summarization task.
func New(cfg task.Config, opts ...task.Option) (*task.Task[Example], error) {
	cfg.Kind = task.KindSummarization
	return task.New[Example](Variant{}, cfg, opts...)
}

func (Variant) Kind() task.Kind       { return task.KindSummarization }
func (Variant) TemplateKey() string   { return prompts.SummarizationKey }
func (Variant) ExampleSchema() []byte { return []byte(exampleSchema) }

func (Variant) Preprocess(ctx context.Context, s *task.State, docs []*doc.Doc) ([]*doc.Doc, error) {
	return docs, nil
}

// RenderContext supplies max_n_words; zero renders no limit.
func (Variant) RenderContext(s *task.State, d *doc.Doc) (map[string]any, error) {
	return map[string]any{"max_n_words": s.Config.MaxNWords}, nil
}

// Parse stores the summary in the configured field.
func (Variant) Parse(ctx context.Context, s *task.State, d *doc.Doc, response string) error {
	d.SetField(s.Config.Field, Clean(response))
	return nil
}

// ExampleFrom reads the reference summary from the configured field.
func (Variant) ExampleFrom(s *task.State, eg doc.Example) (Example, error) {
	v, ok := eg.Reference.Field(s.Config.Field)
	if !ok {
		return Example{}, fmt.Errorf("reference has no %q field", s.Config.Field)
	}
	summary, ok := v.(string)
	if !ok {
		return Example{}, fmt.Errorf("reference field %q is %T, want string", s.Config.Field, v)
	}
	return Example{Text: eg.Reference.Text(), Summary: summary}, nil
}

// CheckExamples warns about example summaries that are long compared to their
// text or to max_n_words. Only runs when a word limit is configured.
func (Variant) CheckExamples(s *task.State, examples []Example) {
	limit := s.Config.MaxNWords
	if limit <= 0 {
		return
	}
	for _, ex := range examples {
		summaryWords := len(strings.Fields(ex.Summary))
		textWords := len(strings.Fields(ex.Text))
		if float64(summaryWords) >= float64(textWords)*lengthSlack {
			s.Logger.Warn("example summary is not shorter than its text",
				"example", preview(ex.Text, 30),
				"summary_words", summaryWords,
				"text_words", textWords)
		}
		if float64(summaryWords) > float64(limit)*lengthSlack {
			s.Logger.Warn("example summary exceeds max_n_words",
				"example", preview(ex.Text, 20),
				"summary_words", summaryWords,
				"max_n_words", limit)
		}
	}
}

// Clean strips quote fences and surrounding whitespace from a model reply.
func Clean(response string) string {
	return strings.TrimSpace(strings.ReplaceAll(response, "'''", ""))
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
