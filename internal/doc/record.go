package doc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Record is the serialized form of a document used for file input and output.
type Record struct {
	Text   string         `json:"text" yaml:"text"`
	Ents   []Span         `json:"ents,omitempty" yaml:"ents,omitempty"`
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Record returns the serialized form of d.
func (d *Doc) Record() Record {
	r := Record{Text: d.text}
	if len(d.Ents) > 0 {
		r.Ents = make([]Span, len(d.Ents))
		copy(r.Ents, d.Ents)
	}
	if len(d.Fields) > 0 {
		r.Fields = make(map[string]any, len(d.Fields))
		for k, v := range d.Fields {
			r.Fields[k] = v
		}
	}
	return r
}

// FromRecord tokenizes a record's text and restores its annotations.
// Entity spans must lie within the text.
func FromRecord(r Record, tok Tokenizer) (*Doc, error) {
	for _, ent := range r.Ents {
		if !ent.Within(len(r.Text)) {
			return nil, fmt.Errorf("%w: [%d, %d) in text of %d bytes", ErrInvalidSpan, ent.Start, ent.End, len(r.Text))
		}
	}
	d := New(r.Text, tok)
	if len(r.Ents) > 0 {
		d.SetEnts(r.Ents)
	}
	for k, v := range r.Fields {
		d.SetField(k, v)
	}
	return d, nil
}

// ReadJSONL reads one Record per non-empty line.
func ReadJSONL(r io.Reader, tok Tokenizer) ([]*Doc, error) {
	var docs []*Doc
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, err := FromRecord(rec, tok)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
