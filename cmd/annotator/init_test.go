package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/annotator/internal/config"
	"github.com/jackzampolin/annotator/internal/home"
	"github.com/jackzampolin/annotator/internal/pipeline"
	"github.com/jackzampolin/annotator/internal/task"
	"github.com/jackzampolin/annotator/internal/task/ner"
)

const goldDocs = `{"text": "Jack lives in Paris", "ents": [{"start": 0, "end": 4, "label": "PER"}, {"start": 14, "end": 19, "label": "LOC"}]}
{"text": "Acme hired Jill", "ents": [{"start": 0, "end": 4, "label": "ORG"}, {"start": 11, "end": 15, "label": "PER"}]}
`

// useHome points the command globals at a fresh home directory.
func useHome(t *testing.T) {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	homes = h
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	taskName = ""
	t.Cleanup(func() { taskName = "" })
}

func nerExamples(t *testing.T, a pipeline.Annotator) []ner.Example {
	t.Helper()
	tk, ok := a.(*task.Task[ner.Example])
	if !ok {
		t.Fatalf("expected ner task, got %T", a)
	}
	return tk.PromptExamples()
}

func TestSaveTask_Reload(t *testing.T) {
	training := writeFile(t, "gold.jsonl", goldDocs)

	tests := []struct {
		name         string
		exclude      []string
		wantLabels   []string
		wantExamples int
	}{
		{"everything", nil, []string{"LOC", "PER"}, 2},
		{"without cfg", []string{task.ChannelConfig}, []string{"LOC", "ORG", "PER"}, 2},
		{"without prompt examples", []string{task.ChannelExamples}, []string{"LOC", "PER"}, 0},
		{"without labels", []string{task.FieldLabels}, []string{"LOC", "ORG", "PER"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useHome(t)
			name := strings.ReplaceAll(tt.name, " ", "-")

			_, _, err := saveTask(config.DefaultConfig(), name, saveOptions{
				Training: training,
				Labels:   []string{"PER", "LOC"},
				N:        -1,
				Excludes: tt.exclude,
			})
			if err != nil {
				t.Fatalf("saveTask() error = %v", err)
			}

			taskName = name
			a, err := buildAnnotator(config.DefaultConfig())
			if err != nil {
				t.Fatalf("buildAnnotator() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantLabels, a.Labels()); diff != "" {
				t.Errorf("labels mismatch (-want +got):\n%s", diff)
			}
			if got := len(nerExamples(t, a)); got != tt.wantExamples {
				t.Errorf("prompt examples = %d, want %d", got, tt.wantExamples)
			}
		})
	}
}

func TestBuildAnnotator_SavedKind(t *testing.T) {
	useHome(t)

	cfg := config.DefaultConfig()
	cfg.Task.Kind = string(task.KindSummarization)
	cfg.Task.MaxNWords = 12
	if _, _, err := saveTask(cfg, "digest", saveOptions{}); err != nil {
		t.Fatalf("saveTask() error = %v", err)
	}

	taskName = "digest"
	a, err := buildAnnotator(config.DefaultConfig())
	if err != nil {
		t.Fatalf("buildAnnotator() error = %v", err)
	}
	if a.Kind() != task.KindSummarization {
		t.Errorf("Kind() = %q, want %q", a.Kind(), task.KindSummarization)
	}
	if a.Config().MaxNWords != 12 {
		t.Errorf("MaxNWords = %d, want 12", a.Config().MaxNWords)
	}
}

func TestBuildAnnotator_MissingTask(t *testing.T) {
	useHome(t)
	taskName = "nope"
	if _, err := buildAnnotator(config.DefaultConfig()); err == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestSaveOptions_ApplyConfig(t *testing.T) {
	tc := config.TaskCfg{TrainingPath: "gold.jsonl", NPromptExamples: 4}

	t.Run("unset flags take config", func(t *testing.T) {
		opts := saveOptions{}
		opts.applyConfig(tc, func(string) bool { return false })
		if opts.Training != "gold.jsonl" || opts.N != 4 {
			t.Errorf("unexpected options %+v", opts)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		opts := saveOptions{Training: "other.jsonl", N: 1}
		opts.applyConfig(tc, func(string) bool { return true })
		if opts.Training != "other.jsonl" || opts.N != 1 {
			t.Errorf("unexpected options %+v", opts)
		}
	})
}

func TestSaveTask_TrainingPathFromConfig(t *testing.T) {
	useHome(t)

	cfg := config.DefaultConfig()
	cfg.Task.Labels = nil
	cfg.Task.TrainingPath = writeFile(t, "gold.jsonl", goldDocs)
	cfg.Task.NPromptExamples = 1

	opts := saveOptions{}
	opts.applyConfig(cfg.Task, func(string) bool { return false })
	a, _, err := saveTask(cfg, "from-config", opts)
	if err != nil {
		t.Fatalf("saveTask() error = %v", err)
	}
	if diff := cmp.Diff([]string{"LOC", "ORG", "PER"}, a.Labels()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if got := len(nerExamples(t, a)); got != 1 {
		t.Errorf("prompt examples = %d, want 1", got)
	}
}
