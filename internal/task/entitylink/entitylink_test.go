package entitylink

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/kb"
	"github.com/jackzampolin/annotator/internal/task"
)

// countingKB wraps a knowledge base and counts batch calls.
type countingKB struct {
	kb.KnowledgeBase
	calls int
}

func (c *countingKB) CandidatesBatch(ctx context.Context, mentions []string) ([][]kb.RawCandidate, error) {
	c.calls++
	return c.KnowledgeBase.CandidatesBatch(ctx, mentions)
}

func newKB() *countingKB {
	return &countingKB{KnowledgeBase: kb.NewMemoryKB(map[string][]kb.RawCandidate{
		"paris": {
			{ID: "Q90", PriorProb: 0.8},
			{ID: "Q167646", PriorProb: 0.15},
			{ID: "Q830149", PriorProb: 0.05},
		},
		"jack": {{ID: "Q1", PriorProb: 1}},
	})}
}

func newDoc(text string, ents ...doc.Span) *doc.Doc {
	d := doc.New(text, nil)
	d.SetEnts(ents)
	return d
}

func kbids(d *doc.Doc) []string {
	var out []string
	for _, e := range d.Ents {
		out = append(out, e.KBID)
	}
	return out
}

func TestNewRequiresKnowledgeBase(t *testing.T) {
	_, err := New(task.Config{}, nil, nil)
	if !errors.Is(err, task.ErrMissingComponent) {
		t.Fatalf("err = %v, want ErrMissingComponent", err)
	}
}

func TestGeneratePrompts(t *testing.T) {
	base := newKB()
	descs := kb.NewDescriptions(map[string]string{"Q90": "capital of France", "Q167646": "city in Texas"}, nil)
	tk, err := New(task.Config{TopN: 2}, base, descs)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	docs := []*doc.Doc{
		newDoc("Jack went to Paris", doc.Span{Start: 0, End: 4, Label: "PER"}, doc.Span{Start: 13, End: 18, Label: "LOC"}),
		newDoc("Nobody knows Zorblax", doc.Span{Start: 13, End: 20, Label: "MISC"}),
	}
	prompts, err := tk.GeneratePrompts(context.Background(), docs)
	if err != nil {
		t.Fatalf("GeneratePrompts() error = %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("got %d prompts, want 2", len(prompts))
	}
	if base.calls != 1 {
		t.Errorf("knowledge base called %d times, want 1", base.calls)
	}

	for _, want := range []string{
		"*Jack* went to *Paris*",
		"1. *Jack*",
		"2. *Paris*",
		"Q90: capital of France",
		"Q167646: city in Texas",
	} {
		if !strings.Contains(prompts[0], want) {
			t.Errorf("prompt missing %q:\n%s", want, prompts[0])
		}
	}
	if strings.Contains(prompts[0], "Q830149") {
		t.Errorf("prompt includes candidate beyond top_n:\n%s", prompts[0])
	}
	if !strings.Contains(prompts[1], "NIL: "+kb.UnavailableDescription) {
		t.Errorf("mention without candidates should list NIL:\n%s", prompts[1])
	}
}

func TestParseResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"numbered", "1. Q1\n2. Q90", []string{"Q1", "Q90"}},
		{"legacy format", "--- 1: Q1\n--- 2: Q167646", []string{"Q1", "Q167646"}},
		{"outside candidates", "1. Q1\n2. Q999", []string{"Q1", kb.NIL}},
		{"beyond top_n", "1. Q1\n2. Q830149", []string{"Q1", kb.NIL}},
		{"missing answer", "1. Q1", []string{"Q1", kb.NIL}},
		{"explicit nil", "1. NIL\n2. *Q90*", []string{kb.NIL, "Q90"}},
		{"chatter ignored", "Sure! Here you go:\n1. Q1\n2. Q90\nHope that helps.", []string{"Q1", "Q90"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk, err := New(task.Config{TopN: 2}, newKB(), nil)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			d := newDoc("Jack went to Paris", doc.Span{Start: 0, End: 4, Label: "PER"}, doc.Span{Start: 13, End: 18, Label: "LOC"})
			if _, err := tk.GeneratePrompts(context.Background(), []*doc.Doc{d}); err != nil {
				t.Fatalf("GeneratePrompts() error = %v", err)
			}
			if _, err := tk.ParseResponses(context.Background(), []*doc.Doc{d}, []string{tt.response}); err != nil {
				t.Fatalf("ParseResponses() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, kbids(d)); diff != "" {
				t.Errorf("KBIDs mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("without prompting", func(t *testing.T) {
		base := newKB()
		tk, err := New(task.Config{}, base, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		d := newDoc("Paris", doc.Span{Start: 0, End: 5, Label: "LOC"})
		if _, err := tk.ParseResponses(context.Background(), []*doc.Doc{d}, []string{"1. Q830149"}); err != nil {
			t.Fatalf("ParseResponses() error = %v", err)
		}
		if diff := cmp.Diff([]string{"Q830149"}, kbids(d)); diff != "" {
			t.Errorf("KBIDs mismatch (-want +got):\n%s", diff)
		}
		if base.calls != 1 {
			t.Errorf("knowledge base called %d times, want 1", base.calls)
		}
	})
}

func TestParseAnswers(t *testing.T) {
	got := ParseAnswers("1. Q1\n1. Q2\n 3) `Q3`\n0. Q0\nfoo 4. Q4\n--- 2: Q5")
	want := map[int]string{0: "Q1", 2: "Q3", 1: "Q5"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseAnswers() mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkMentions(t *testing.T) {
	d := newDoc("New York Times in New York",
		doc.Span{Start: 0, End: 14}, doc.Span{Start: 4, End: 8}, doc.Span{Start: 18, End: 26})
	if got, want := MarkMentions(d), "*New York Times* in *New York*"; got != want {
		t.Errorf("MarkMentions() = %q, want %q", got, want)
	}

	bad := newDoc("Paris is big", doc.Span{Start: 10, End: 4}, doc.Span{Start: 9, End: 40}, doc.Span{Start: 0, End: 5})
	if got, want := MarkMentions(bad), "*Paris* is big"; got != want {
		t.Errorf("MarkMentions() = %q, want %q", got, want)
	}
}

func TestInitialize(t *testing.T) {
	ref := newDoc("Jack went to Paris",
		doc.Span{Start: 0, End: 4, Label: "PER"},
		doc.Span{Start: 13, End: 18, Label: "LOC", KBID: "Q90"})

	tk, err := New(task.Config{}, newKB(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := tk.Initialize(func() []doc.Example { return []doc.Example{doc.NewExample(ref, nil)} },
		task.InitOptions{NPromptExamples: 1}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	want := []Example{{
		Text:     "Jack went to Paris",
		Mentions: []Mention{{Text: "Jack", EntityID: kb.NIL}, {Text: "Paris", EntityID: "Q90"}},
	}}
	if diff := cmp.Diff(want, tk.PromptExamples()); diff != "" {
		t.Errorf("PromptExamples() mismatch (-want +got):\n%s", diff)
	}

	d := newDoc("Paris", doc.Span{Start: 0, End: 5})
	prompts, err := tk.GeneratePrompts(context.Background(), []*doc.Doc{d})
	if err != nil {
		t.Fatalf("GeneratePrompts() error = %v", err)
	}
	if !strings.Contains(prompts[0], "2. Q90") || !strings.Contains(prompts[0], "1. NIL") {
		t.Errorf("prompt missing example solution:\n%s", prompts[0])
	}
}
