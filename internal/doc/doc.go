// Package doc holds the document model shared by every annotation task.
//
// A Doc owns its text and an immutable token sequence. Tasks never retokenize a
// document; they read the text and tokens and write back entity spans or named
// fields. Character offsets throughout the module are byte offsets into the
// UTF-8 text.
package doc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidAlignment is returned for an alignment mode outside strict/contract/expand.
var ErrInvalidAlignment = errors.New("unsupported alignment mode")

// ErrInvalidSpan is returned for an entity span that is empty, reversed or
// outside the document text.
var ErrInvalidSpan = errors.New("invalid span")

// Alignment controls how raw character offsets snap to token boundaries.
type Alignment string

const (
	// AlignStrict accepts offsets only when they coincide with token boundaries.
	AlignStrict Alignment = "strict"
	// AlignContract shrinks the range to the tokens fully inside it.
	AlignContract Alignment = "contract"
	// AlignExpand grows the range to every token it touches.
	AlignExpand Alignment = "expand"
)

// Alignments lists the supported modes in display order.
var Alignments = []Alignment{AlignStrict, AlignContract, AlignExpand}

// ParseAlignment validates s as an alignment mode.
func ParseAlignment(s string) (Alignment, error) {
	for _, a := range Alignments {
		if string(a) == s {
			return a, nil
		}
	}
	names := make([]string, len(Alignments))
	for i, a := range Alignments {
		names[i] = string(a)
	}
	return "", fmt.Errorf("%w %q, supported modes: %s", ErrInvalidAlignment, s, strings.Join(names, ", "))
}

// Token is a single token with its byte offsets in the document text.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Span is a labeled character range. KBID is set by entity linking.
type Span struct {
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
	Label string `json:"label" yaml:"label"`
	KBID  string `json:"kb_id,omitempty" yaml:"kb_id,omitempty"`
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Within reports whether s is a non-empty range inside a text of textLen bytes.
func (s Span) Within(textLen int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= textLen
}

// Overlaps reports whether the two half-open ranges share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Doc is a tokenized document plus the annotation fields written by tasks.
type Doc struct {
	text   string
	tokens []Token

	// Ents holds entity spans sorted by start offset.
	Ents []Span

	// Fields holds named scalar annotations (e.g. "summary").
	Fields map[string]any
}

// New tokenizes text with tok and returns a document with no annotations.
func New(text string, tok Tokenizer) *Doc {
	if tok == nil {
		tok = DefaultTokenizer()
	}
	return &Doc{
		text:   text,
		tokens: tok.Tokenize(text),
		Fields: make(map[string]any),
	}
}

// Text returns the document text.
func (d *Doc) Text() string {
	return d.text
}

// Tokens returns a copy of the token sequence.
func (d *Doc) Tokens() []Token {
	out := make([]Token, len(d.tokens))
	copy(out, d.tokens)
	return out
}

// SpanText returns the text covered by s.
func (d *Doc) SpanText(s Span) string {
	if s.Start < 0 || s.End > len(d.text) || s.Start > s.End {
		return ""
	}
	return d.text[s.Start:s.End]
}

// SetEnts replaces the entity spans, ordering them by start offset.
func (d *Doc) SetEnts(spans []Span) {
	ents := make([]Span, len(spans))
	copy(ents, spans)
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].Start < ents[j].Start })
	d.Ents = ents
}

// SetField writes a named annotation field.
func (d *Doc) SetField(name string, value any) {
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	d.Fields[name] = value
}

// Field reads a named annotation field.
func (d *Doc) Field(name string) (any, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

// CharSpan materializes a span from raw offsets under the given alignment mode.
// It returns false when no valid token-aligned span exists.
func (d *Doc) CharSpan(start, end int, mode Alignment, label string) (Span, bool) {
	if start < 0 || end > len(d.text) || start >= end || len(d.tokens) == 0 {
		return Span{}, false
	}

	first, last := -1, -1
	switch mode {
	case AlignStrict:
		for i, t := range d.tokens {
			if t.Start == start {
				first = i
			}
			if t.End == end {
				last = i
			}
		}
	case AlignContract:
		for i, t := range d.tokens {
			if first < 0 && t.Start >= start {
				first = i
			}
			if t.End <= end {
				last = i
			}
		}
	case AlignExpand:
		for i, t := range d.tokens {
			if first < 0 && t.End > start {
				first = i
			}
			if t.Start < end {
				last = i
			}
		}
	default:
		return Span{}, false
	}

	if first < 0 || last < 0 || first > last {
		return Span{}, false
	}
	return Span{Start: d.tokens[first].Start, End: d.tokens[last].End, Label: label}, true
}

// Example pairs an unannotated document with its gold reference.
type Example struct {
	Predicted *Doc
	Reference *Doc
}

// NewExample builds an example whose predicted side is a fresh copy of the reference text.
func NewExample(reference *Doc, tok Tokenizer) Example {
	return Example{Predicted: New(reference.Text(), tok), Reference: reference}
}
