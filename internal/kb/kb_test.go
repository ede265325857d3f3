package kb

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type stubKB struct {
	lists [][]RawCandidate
	err   error
	calls int
}

func (s *stubKB) CandidatesBatch(ctx context.Context, mentions []string) ([][]RawCandidate, error) {
	s.calls++
	return s.lists, s.err
}

func priors(cands []Candidate) []float64 {
	out := make([]float64, len(cands))
	for i, c := range cands {
		out[i] = c.PriorProb
	}
	return out
}

func TestRankerRank(t *testing.T) {
	t.Run("sorts by prior and truncates", func(t *testing.T) {
		kb := &stubKB{lists: [][]RawCandidate{{
			{ID: "Q1", PriorProb: 0.1},
			{ID: "Q2", PriorProb: 0.9},
			{ID: "Q3", PriorProb: 0.5},
		}}}
		r := NewRanker(kb, nil, 2, nil)

		got, err := r.Rank(context.Background(), []string{"Paris"})
		if err != nil {
			t.Fatalf("Rank() error = %v", err)
		}
		if diff := cmp.Diff([]float64{0.9, 0.5}, priors(got[0])); diff != "" {
			t.Errorf("priors mismatch (-want +got):\n%s", diff)
		}
		if got[0][0].ID != "Q2" {
			t.Errorf("expected Q2 first, got %s", got[0][0].ID)
		}
	})

	t.Run("ties keep retrieval order", func(t *testing.T) {
		kb := &stubKB{lists: [][]RawCandidate{{
			{ID: "A", PriorProb: 0.5},
			{ID: "B", PriorProb: 0.5},
			{ID: "C", PriorProb: 0.7},
		}}}
		got, err := NewRanker(kb, nil, 0, nil).Rank(context.Background(), []string{"x"})
		if err != nil {
			t.Fatalf("Rank() error = %v", err)
		}
		var ids []string
		for _, c := range got[0] {
			ids = append(ids, c.ID)
		}
		if diff := cmp.Diff([]string{"C", "A", "B"}, ids); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty list yields NIL", func(t *testing.T) {
		kb := &stubKB{lists: [][]RawCandidate{{}, {{ID: "Q5", PriorProb: 1}}}}
		got, err := NewRanker(kb, nil, 3, nil).Rank(context.Background(), []string{"nobody", "Q"})
		if err != nil {
			t.Fatalf("Rank() error = %v", err)
		}
		want := []Candidate{{ID: NIL, Description: UnavailableDescription}}
		if diff := cmp.Diff(want, got[0]); diff != "" {
			t.Errorf("NIL fallback mismatch (-want +got):\n%s", diff)
		}
		if kb.calls != 1 {
			t.Errorf("expected one knowledge base call per batch, got %d", kb.calls)
		}
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewRanker(&stubKB{err: boom}, nil, 1, nil).Rank(context.Background(), []string{"x"})
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped boom, got %v", err)
		}
	})

	t.Run("rejects misaligned batches", func(t *testing.T) {
		_, err := NewRanker(&stubKB{}, nil, 1, nil).Rank(context.Background(), []string{"x"})
		if err == nil {
			t.Error("expected error for missing candidate list")
		}
	})
}

func TestDescriptions(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	descs, err := ReadDescriptions(strings.NewReader("Q90;Capital of France\nQ64;Capital of Germany\nbroken\n"), 0, logger)
	if err != nil {
		t.Fatalf("ReadDescriptions() error = %v", err)
	}
	if descs.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", descs.Len())
	}
	if got := descs.Get("Q90"); got != "Capital of France" {
		t.Errorf("Get(Q90) = %q", got)
	}
	if got := descs.Get("Q1"); got != UnavailableDescription {
		t.Errorf("Get(Q1) = %q, want placeholder", got)
	}
	if !strings.Contains(logs.String(), "entity_id=Q1") {
		t.Errorf("expected warning for Q1, got logs: %s", logs.String())
	}
}

func TestLoadDescriptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desc.csv")
	if err := os.WriteFile(path, []byte("Q90,\"Paris, France\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	descs, err := LoadDescriptions(path, ',', nil)
	if err != nil {
		t.Fatalf("LoadDescriptions() error = %v", err)
	}
	if got := descs.Get("Q90"); got != "Paris, France" {
		t.Errorf("Get(Q90) = %q", got)
	}

	if _, err := LoadDescriptions(filepath.Join(t.TempDir(), "missing.csv"), ',', nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMemoryKB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	content := `aliases:
  Paris:
    - id: Q90
      prior_prob: 0.8
    - id: Q167646
      prior_prob: 0.2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	kb, err := LoadMemoryKB(path)
	if err != nil {
		t.Fatalf("LoadMemoryKB() error = %v", err)
	}

	got, err := kb.CandidatesBatch(context.Background(), []string{" paris ", "Berlin"})
	if err != nil {
		t.Fatalf("CandidatesBatch() error = %v", err)
	}
	if len(got) != 2 || len(got[0]) != 2 || len(got[1]) != 0 {
		t.Fatalf("unexpected candidates: %+v", got)
	}

	descs := NewDescriptions(map[string]string{"Q90": "Capital of France"}, nil)
	ranked, err := NewRanker(kb, descs, 1, nil).Rank(context.Background(), []string{"Paris", "Berlin"})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	want := [][]Candidate{
		{{ID: "Q90", Description: "Capital of France", PriorProb: 0.8}},
		{{ID: NIL, Description: UnavailableDescription}},
	}
	if diff := cmp.Diff(want, ranked); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}
}
