package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/llm"
	"github.com/jackzampolin/annotator/internal/prompts"
	"github.com/jackzampolin/annotator/internal/task"
)

// Annotator is the kind-independent surface of a task.Task.
type Annotator interface {
	Kind() task.Kind
	Config() task.Config
	Labels() []string
	Prompt() prompts.ResolvedPrompt
	Shards() (task.ShardMapper, task.ShardReducer)
	GeneratePrompts(ctx context.Context, docs []*doc.Doc) ([]string, error)
	ParseResponses(ctx context.Context, docs []*doc.Doc, responses []string) ([]*doc.Doc, error)
	LoadPromptExamples(path string) error
	Initialize(getExamples func() []doc.Example, opts task.InitOptions) error
	ToDisk(dir string, exclude ...string) error
	FromDisk(dir string, exclude ...string) error
}

// RunOptions configures Run.
type RunOptions struct {
	// BatchSize is the number of shards prompted per model call. 0 sends all at once.
	BatchSize int
	Logger    *slog.Logger
}

// Run annotates docs end to end: shard, prompt, invoke, parse, reduce.
// Documents are annotated in place and returned in input order.
func Run(ctx context.Context, a Annotator, inv llm.Invoker, docs []*doc.Doc, opts RunOptions) ([]*doc.Doc, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mapper, reducer := a.Shards()

	// Flatten shards, remembering which document owns each.
	perDoc := make([][]*doc.Doc, len(docs))
	var flat []*doc.Doc
	for i, d := range docs {
		shards, err := mapper.Map(d)
		if err != nil {
			return nil, fmt.Errorf("doc %d: shard failed: %w", i, err)
		}
		perDoc[i] = shards
		flat = append(flat, shards...)
	}

	size := opts.BatchSize
	if size <= 0 || size > len(flat) {
		size = len(flat)
	}
	for start := 0; start < len(flat); start += size {
		end := min(start+size, len(flat))
		batch := flat[start:end]
		batchStart := time.Now()

		prompts, err := a.GeneratePrompts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("generate prompts: %w", err)
		}
		responses, err := inv.Invoke(ctx, prompts)
		if err != nil {
			return nil, fmt.Errorf("invoke model: %w", err)
		}
		if err := llm.CheckOutputs(prompts, responses); err != nil {
			return nil, err
		}
		if _, err := a.ParseResponses(ctx, batch, responses); err != nil {
			return nil, fmt.Errorf("parse responses: %w", err)
		}

		logger.Info("annotated batch",
			"kind", a.Kind(),
			"shards", fmt.Sprintf("%d-%d/%d", start+1, end, len(flat)),
			"duration", time.Since(batchStart))
	}

	out := make([]*doc.Doc, len(docs))
	for i, d := range docs {
		merged, err := reducer.Reduce(d, perDoc[i])
		if err != nil {
			return nil, fmt.Errorf("doc %d: reduce failed: %w", i, err)
		}
		out[i] = merged
	}
	return out, nil
}
