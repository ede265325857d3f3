package ner

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/task"
)

const nyText = "The New York Times is based in New York."

func newTask(t *testing.T, cfg task.Config, opts ...task.Option) *task.Task[Example] {
	t.Helper()
	tk, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tk
}

func spans(d *doc.Doc) []string {
	var out []string
	for _, e := range d.Ents {
		out = append(out, e.Label+"="+d.SpanText(e))
	}
	return out
}

func TestParseLines(t *testing.T) {
	got := ParseLines("PER: Jack, Jill\n\nno colon here\nLOC:\n  ORG : Acme ,  , Initech  \n: orphan")
	want := []Line{
		{Label: "PER", Phrases: []string{"Jack", "Jill"}},
		{Label: "LOC"},
		{Label: "ORG", Phrases: []string{"Acme", "Initech"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseLines() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseResponses(t *testing.T) {
	tests := []struct {
		name     string
		cfg      task.Config
		response string
		want     []string
		wantOffs [][2]int
	}{
		{
			name:     "overlap keeps longest",
			cfg:      task.Config{Labels: []string{"ORG", "LOC"}},
			response: "LOC: New York\nORG: New York Times",
			want:     []string{"ORG=New York Times", "LOC=New York"},
			wantOffs: [][2]int{{4, 18}, {31, 39}},
		},
		{
			name:     "every occurrence",
			cfg:      task.Config{Labels: []string{"LOC"}},
			response: "LOC: New York",
			want:     []string{"LOC=New York", "LOC=New York"},
			wantOffs: [][2]int{{4, 12}, {31, 39}},
		},
		{
			name:     "single match",
			cfg:      task.Config{Labels: []string{"LOC"}, SingleMatch: true},
			response: "LOC: New York",
			want:     []string{"LOC=New York"},
			wantOffs: [][2]int{{4, 12}},
		},
		{
			name:     "label lookup is normalized",
			cfg:      task.Config{Labels: []string{"LOC"}},
			response: "loc: new york",
			want:     []string{"LOC=New York", "LOC=New York"},
			wantOffs: [][2]int{{4, 12}, {31, 39}},
		},
		{
			name:     "case sensitive misses lowercase phrase",
			cfg:      task.Config{Labels: []string{"LOC"}, CaseSensitive: true},
			response: "LOC: new york",
		},
		{
			name:     "hallucinated phrase dropped",
			cfg:      task.Config{Labels: []string{"PER"}},
			response: "PER: Barack Obama",
		},
		{
			name:     "unknown label ignored",
			cfg:      task.Config{Labels: []string{"PER"}},
			response: "LOC: New York",
		},
		{
			name:     "blank reply",
			cfg:      task.Config{Labels: []string{"LOC"}},
			response: "  \n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			tk := newTask(t, tt.cfg, task.WithLogger(logger))

			d := doc.New(nyText, nil)
			out, err := tk.ParseResponses(context.Background(), []*doc.Doc{d}, []string{tt.response})
			if err != nil {
				t.Fatalf("ParseResponses() error = %v", err)
			}
			if out[0] != d {
				t.Fatal("ParseResponses() did not return the input document")
			}
			if diff := cmp.Diff(tt.want, spans(d)); diff != "" {
				t.Errorf("spans mismatch (-want +got):\n%s", diff)
			}
			var offs [][2]int
			for _, e := range d.Ents {
				offs = append(offs, [2]int{e.Start, e.End})
			}
			if diff := cmp.Diff(tt.wantOffs, offs); diff != "" {
				t.Errorf("offsets mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnknownLabelWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tk := newTask(t, task.Config{Labels: []string{"PER"}}, task.WithLogger(logger))

	d := doc.New(nyText, nil)
	if _, err := tk.ParseResponses(context.Background(), []*doc.Doc{d}, []string{"GPE: New York"}); err != nil {
		t.Fatalf("ParseResponses() error = %v", err)
	}
	if !strings.Contains(buf.String(), "unknown label") || !strings.Contains(buf.String(), "GPE") {
		t.Errorf("expected warning for GPE, got %q", buf.String())
	}
}

func TestAlignmentModes(t *testing.T) {
	ws := doc.TokenizerFunc(func(text string) []doc.Token {
		var toks []doc.Token
		start := 0
		for i := 0; i <= len(text); i++ {
			if i == len(text) || text[i] == ' ' {
				if i > start {
					toks = append(toks, doc.Token{Text: text[start:i], Start: start, End: i})
				}
				start = i + 1
			}
		}
		return toks
	})

	tests := []struct {
		mode doc.Alignment
		want []string
	}{
		{doc.AlignStrict, nil},
		{doc.AlignContract, []string{"LOC=New"}},
		{doc.AlignExpand, []string{"LOC=New York."}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			tk := newTask(t, task.Config{Labels: []string{"LOC"}, AlignmentMode: tt.mode})
			d := doc.New("I love New York.", ws)
			if _, err := tk.ParseResponses(context.Background(), []*doc.Doc{d}, []string{"LOC: New York"}); err != nil {
				t.Fatalf("ParseResponses() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, spans(d)); diff != "" {
				t.Errorf("spans mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGeneratePrompts(t *testing.T) {
	tk := newTask(t, task.Config{
		Labels:           []string{"PER", "LOC"},
		LabelDefinitions: map[string]string{"PER": "a named person"},
	})
	tk.SetPromptExamples([]Example{{
		Text:     "Jack went to Paris",
		Entities: map[string][]string{"PER": {"Jack"}, "LOC": {"Paris"}},
	}})

	prompts, err := tk.GeneratePrompts(context.Background(), []*doc.Doc{doc.New(nyText, nil), doc.New("Hi", nil)})
	if err != nil {
		t.Fatalf("GeneratePrompts() error = %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("got %d prompts, want 2", len(prompts))
	}
	for _, want := range []string{
		"LOC: <comma delimited list of strings>",
		"PER: <comma delimited list of strings>",
		"PER: a named person",
		"Jack went to Paris",
		"LOC: Paris",
		"'''\n" + nyText + "\n'''",
	} {
		if !strings.Contains(prompts[0], want) {
			t.Errorf("prompt missing %q:\n%s", want, prompts[0])
		}
	}
	if !strings.Contains(prompts[1], "'''\nHi\n'''") {
		t.Errorf("second prompt does not carry its own text:\n%s", prompts[1])
	}
}

func TestInitialize(t *testing.T) {
	mk := func(text string, ents ...doc.Span) doc.Example {
		ref := doc.New(text, nil)
		ref.SetEnts(ents)
		return doc.NewExample(ref, nil)
	}
	training := func() []doc.Example {
		return []doc.Example{
			mk("Jack went to Paris", doc.Span{Start: 0, End: 4, Label: "PER"}, doc.Span{Start: 13, End: 18, Label: "LOC"}),
			mk("Jill met Jack", doc.Span{Start: 0, End: 4, Label: "PER"}, doc.Span{Start: 9, End: 13, Label: "PER"}),
		}
	}

	tk := newTask(t, task.Config{})
	if err := tk.Initialize(training, task.InitOptions{NPromptExamples: 1}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if diff := cmp.Diff([]string{"LOC", "PER"}, tk.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
	want := []Example{{
		Text:     "Jack went to Paris",
		Entities: map[string][]string{"PER": {"Jack"}, "LOC": {"Paris"}},
	}}
	if diff := cmp.Diff(want, tk.PromptExamples()); diff != "" {
		t.Errorf("PromptExamples() mismatch (-want +got):\n%s", diff)
	}

	explicit := newTask(t, task.Config{Labels: []string{"ORG"}})
	if err := explicit.Initialize(training, task.InitOptions{Labels: []string{"MISC"}}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if diff := cmp.Diff([]string{"MISC"}, explicit.Labels()); diff != "" {
		t.Errorf("explicit Labels() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPromptExamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "examples.yml")
	data := "- text: Jack went to Paris\n  entities:\n    PER: [Jack]\n    LOC: [Paris]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tk := newTask(t, task.Config{Labels: []string{"PER", "LOC"}})
	if err := tk.LoadPromptExamples(path); err != nil {
		t.Fatalf("LoadPromptExamples() error = %v", err)
	}
	if got := tk.PromptExamples(); len(got) != 1 || got[0].Entities["LOC"][0] != "Paris" {
		t.Errorf("PromptExamples() = %+v", got)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"text": "no entities"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := tk.LoadPromptExamples(bad); err == nil {
		t.Error("expected schema error for example without entities")
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	src := newTask(t, task.Config{Labels: []string{"PER", "LOC"}, AlignmentMode: doc.AlignExpand})
	src.SetPromptExamples([]Example{{Text: "Jack", Entities: map[string][]string{"PER": {"Jack"}}}})

	dir := t.TempDir()
	if err := src.ToDisk(dir); err != nil {
		t.Fatalf("ToDisk() error = %v", err)
	}
	dst := newTask(t, task.Config{})
	if err := dst.FromDisk(dir); err != nil {
		t.Fatalf("FromDisk() error = %v", err)
	}
	if diff := cmp.Diff(src.Config(), dst.Config()); diff != "" {
		t.Errorf("Config() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src.PromptExamples(), dst.PromptExamples()); diff != "" {
		t.Errorf("PromptExamples() mismatch (-want +got):\n%s", diff)
	}

	// Restored labels drive parsing.
	d := doc.New(nyText, nil)
	if _, err := dst.ParseResponses(context.Background(), []*doc.Doc{d}, []string{"loc: York"}); err != nil {
		t.Fatalf("ParseResponses() error = %v", err)
	}
	if diff := cmp.Diff([]string{"LOC=York", "LOC=York"}, spans(d)); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
}
