package doc

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseAlignment(t *testing.T) {
	for _, a := range Alignments {
		got, err := ParseAlignment(string(a))
		if err != nil {
			t.Fatalf("ParseAlignment(%q) error = %v", a, err)
		}
		if got != a {
			t.Errorf("ParseAlignment(%q) = %q", a, got)
		}
	}

	_, err := ParseAlignment("fuzzy")
	if !errors.Is(err, ErrInvalidAlignment) {
		t.Errorf("expected ErrInvalidAlignment, got %v", err)
	}
}

func TestWhitespaceTokenizer(t *testing.T) {
	tokens := TokenizerFor(LangWhitespace).Tokenize("New York, NY.")
	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}
	want := []string{"New", "York", ",", "NY", "."}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
	if tokens[1].Start != 4 || tokens[1].End != 8 {
		t.Errorf("unexpected offsets for York: %+v", tokens[1])
	}
}

func TestUnicodeTokenizer(t *testing.T) {
	text := "The New York Times is based in New York."
	tokens := DefaultTokenizer().Tokenize(text)
	if len(tokens) != 10 {
		t.Fatalf("expected 10 tokens, got %d: %+v", len(tokens), tokens)
	}
	for _, tok := range tokens {
		if text[tok.Start:tok.End] != tok.Text {
			t.Errorf("token %q does not match its offsets %d:%d", tok.Text, tok.Start, tok.End)
		}
		if strings.TrimSpace(tok.Text) == "" {
			t.Errorf("whitespace token emitted at %d", tok.Start)
		}
	}
}

func TestCharSpan(t *testing.T) {
	// "Barack Obama visited Paris"
	//  0      7     13      21
	d := New("Barack Obama visited Paris", TokenizerFor(LangWhitespace))

	tests := []struct {
		name       string
		start, end int
		mode       Alignment
		want       Span
		ok         bool
	}{
		{"strict exact", 0, 12, AlignStrict, Span{Start: 0, End: 12, Label: "PER"}, true},
		{"strict misaligned", 1, 12, AlignStrict, Span{}, false},
		{"contract shrinks", 1, 14, AlignContract, Span{Start: 7, End: 12, Label: "PER"}, true},
		{"contract inside one token", 1, 4, AlignContract, Span{}, false},
		{"expand grows", 1, 14, AlignExpand, Span{Start: 0, End: 20, Label: "PER"}, true},
		{"expand inside one token", 22, 24, AlignExpand, Span{Start: 21, End: 26, Label: "PER"}, true},
		{"empty range", 5, 5, AlignExpand, Span{}, false},
		{"out of bounds", 0, 99, AlignStrict, Span{}, false},
		{"unknown mode", 0, 12, Alignment("loose"), Span{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.CharSpan(tt.start, tt.end, tt.mode, "PER")
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("CharSpan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSpanOverlaps(t *testing.T) {
	a := Span{Start: 0, End: 5}
	if !a.Overlaps(Span{Start: 4, End: 8}) {
		t.Error("expected overlap")
	}
	if a.Overlaps(Span{Start: 5, End: 8}) {
		t.Error("adjacent spans must not overlap")
	}
}

func TestReadJSONL(t *testing.T) {
	input := `{"text": "Alice met Bob.", "ents": [{"start": 10, "end": 13, "label": "PER"}, {"start": 0, "end": 5, "label": "PER"}]}

{"text": "Second doc", "fields": {"summary": "short"}}
`
	docs, err := ReadJSONL(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Ents[0].Start != 0 {
		t.Errorf("expected ents sorted by start, got %+v", docs[0].Ents)
	}
	if got := docs[0].SpanText(docs[0].Ents[1]); got != "Bob" {
		t.Errorf("SpanText() = %q, want Bob", got)
	}
	if v, _ := docs[1].Field("summary"); v != "short" {
		t.Errorf("expected summary field, got %v", v)
	}

	rec := docs[0].Record()
	if diff := cmp.Diff(docs[0].Ents, rec.Ents); diff != "" {
		t.Errorf("record ents mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadJSONL(strings.NewReader("{not json}\n"), nil); err == nil {
		t.Error("expected error for malformed line")
	}

	for _, line := range []string{
		`{"text": "Alice met Bob.", "ents": [{"start": 10, "end": 4, "label": "PER"}]}`,
		`{"text": "Alice met Bob.", "ents": [{"start": 10, "end": 40, "label": "PER"}]}`,
		`{"text": "Alice met Bob.", "ents": [{"start": -1, "end": 3, "label": "PER"}]}`,
		`{"text": "Alice met Bob.", "ents": [{"start": 3, "end": 3, "label": "PER"}]}`,
	} {
		if _, err := ReadJSONL(strings.NewReader(line), nil); !errors.Is(err, ErrInvalidSpan) {
			t.Errorf("ReadJSONL(%s) error = %v, want ErrInvalidSpan", line, err)
		}
	}
}

func TestSpanWithin(t *testing.T) {
	tests := []struct {
		span Span
		want bool
	}{
		{Span{Start: 0, End: 5}, true},
		{Span{Start: 5, End: 10}, true},
		{Span{Start: 10, End: 4}, false},
		{Span{Start: 3, End: 3}, false},
		{Span{Start: -1, End: 2}, false},
		{Span{Start: 8, End: 11}, false},
	}
	for _, tt := range tests {
		if got := tt.span.Within(10); got != tt.want {
			t.Errorf("%+v.Within(10) = %v, want %v", tt.span, got, tt.want)
		}
	}
}
