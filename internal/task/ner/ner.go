// Package ner implements the named entity recognition task.
//
// The model answers with one line per label, "Label: phrase one, phrase two".
// Phrases are located in the document text, snapped to token boundaries and
// the overlapping candidates across all labels are reduced to the longest
// non-overlapping set.
package ner

import (
	"context"
	"sort"
	"strings"

	"github.com/jackzampolin/annotator/internal/align"
	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/prompts"
	"github.com/jackzampolin/annotator/internal/task"
)

// Example is a NER prompt example: the text and the phrases found per label.
type Example struct {
	Text     string              `json:"text" yaml:"text"`
	Entities map[string][]string `json:"entities" yaml:"entities"`
}

const exampleSchema = `{
  "type": "object",
  "required": ["text", "entities"],
  "properties": {
    "text": {"type": "string"},
    "entities": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    }
  }
}`

// Variant is the NER task strategy.
type Variant struct{}

// New creates a NER task.
func New(cfg task.Config, opts ...task.Option) (*task.Task[Example], error) {
	cfg.Kind = task.KindNER
	return task.New[Example](Variant{}, cfg, opts...)
}

func (Variant) Kind() task.Kind       { return task.KindNER }
func (Variant) TemplateKey() string   { return prompts.NERKey }
func (Variant) ExampleSchema() []byte { return []byte(exampleSchema) }

// Preprocess leaves documents untouched.
func (Variant) Preprocess(ctx context.Context, s *task.State, docs []*doc.Doc) ([]*doc.Doc, error) {
	return docs, nil
}

// RenderContext adds nothing beyond the shared fields.
func (Variant) RenderContext(s *task.State, d *doc.Doc) (map[string]any, error) {
	return nil, nil
}

// Parse aligns the phrases claimed per label and writes the resolved spans to d.Ents.
func (Variant) Parse(ctx context.Context, s *task.State, d *doc.Doc, response string) error {
	aligner, err := align.NewAligner(s.Config.AlignmentMode, align.MatchOptions{
		CaseSensitive: s.Config.CaseSensitive,
		SingleMatch:   s.Config.SingleMatch,
		Lang:          s.Config.Lang,
	})
	if err != nil {
		return err
	}

	var candidates []doc.Span
	for _, line := range ParseLines(response) {
		label, ok := s.Labels.Lookup(line.Label)
		if !ok {
			s.Logger.Warn("ignoring unknown label in response", "label", line.Label)
			continue
		}
		candidates = append(candidates, aligner.Spans(d, label, line.Phrases)...)
	}
	d.SetEnts(align.Resolve(candidates))
	return nil
}

// ExampleFrom groups the reference entities by label.
func (Variant) ExampleFrom(s *task.State, eg doc.Example) (Example, error) {
	ref := eg.Reference
	entities := make(map[string][]string)
	for _, ent := range ref.Ents {
		label := ent.Label
		if canonical, ok := s.Labels.Lookup(label); ok {
			label = canonical
		}
		entities[label] = append(entities[label], ref.SpanText(ent))
	}
	return Example{Text: ref.Text(), Entities: entities}, nil
}

// LabelsFrom returns the labels of the reference entities.
func (Variant) LabelsFrom(eg doc.Example) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ent := range eg.Reference.Ents {
		if _, ok := seen[ent.Label]; ok || ent.Label == "" {
			continue
		}
		seen[ent.Label] = struct{}{}
		out = append(out, ent.Label)
	}
	sort.Strings(out)
	return out
}

// Line is one "Label: phrases" line of a model response.
type Line struct {
	Label   string
	Phrases []string
}

// ParseLines splits a response into label lines. Lines without a colon and
// empty phrases are skipped.
func ParseLines(response string) []Line {
	var out []Line
	for _, raw := range strings.Split(response, "\n") {
		raw = strings.TrimSpace(raw)
		label, rest, ok := strings.Cut(raw, ":")
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		var phrases []string
		for _, p := range strings.Split(rest, ",") {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		out = append(out, Line{Label: label, Phrases: phrases})
	}
	return out
}
