// Package task implements the generic contract shared by every annotation task.
//
// A Task renders one prompt per document, parses one model response per
// document back into annotations, seeds few-shot examples and labels from
// training data, and (de)serializes its configuration and examples. The
// task-specific behavior lives in a Variant; the Task itself never knows which
// kind of annotation it is producing.
//
// Model invocation happens between GeneratePrompts and ParseResponses and is
// entirely the caller's concern. Responses must be supplied in prompt order.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/fewshot"
	"github.com/jackzampolin/annotator/internal/labels"
	"github.com/jackzampolin/annotator/internal/prompts"
)

// State is the shared, read-mostly state handed to variant hooks.
type State struct {
	Config Config
	// Labels is nil for variants that do not use labels.
	Labels *labels.Registry
	Logger *slog.Logger
}

// Variant supplies the task-specific behavior for a Task.
type Variant[E any] interface {
	// Kind identifies the variant.
	Kind() Kind
	// TemplateKey is the embedded template used when the config carries none.
	TemplateKey() string
	// Preprocess runs once per GeneratePrompts call and may enrich documents.
	// It must return one document per input document, in order.
	Preprocess(ctx context.Context, s *State, docs []*doc.Doc) ([]*doc.Doc, error)
	// RenderContext returns the task-specific template fields for d.
	RenderContext(s *State, d *doc.Doc) (map[string]any, error)
	// Parse writes the annotations found in response onto d.
	Parse(ctx context.Context, s *State, d *doc.Doc, response string) error
	// ExampleFrom converts a gold training example into a prompt example.
	ExampleFrom(s *State, eg doc.Example) (E, error)
	// ExampleSchema is the JSON schema prompt example records must satisfy.
	ExampleSchema() []byte
}

// ExampleChecker is implemented by variants that inspect prompt examples
// before they are first rendered. Problems are logged, never returned.
type ExampleChecker[E any] interface {
	CheckExamples(s *State, examples []E)
}

// LabelDiscoverer is implemented by variants that use labels.
type LabelDiscoverer interface {
	LabelsFrom(eg doc.Example) []string
}

// InitOptions configures Initialize.
type InitOptions struct {
	// NPromptExamples caps the prompt examples taken from training data.
	// 0 leaves the current examples untouched, -1 takes every example.
	NPromptExamples int
	// Labels overrides both configured and discovered labels.
	Labels []string
}

// Option configures a Task.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	resolver   *prompts.Resolver
	normalizer labels.Normalizer
	mapper     ShardMapper
	reducer    ShardReducer
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithResolver sets the prompt resolver. A nil resolver is rejected by New.
func WithResolver(r *prompts.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithNormalizer sets the label normalizer. Defaults to labels.Lowercase.
func WithNormalizer(n labels.Normalizer) Option {
	return func(o *options) { o.normalizer = n }
}

// WithShards sets the shard mapper and reducer used by callers around context limits.
func WithShards(m ShardMapper, r ShardReducer) Option {
	return func(o *options) {
		o.mapper = m
		o.reducer = r
	}
}

// Task is the generic orchestrator over a Variant.
type Task[E any] struct {
	variant  Variant[E]
	state    *State
	resolver *prompts.Resolver
	prompt   *prompts.ResolvedPrompt
	template *prompts.Template
	examples *fewshot.Store[E]
	mapper   ShardMapper
	reducer  ShardReducer

	// checked is reset whenever the examples change.
	checked bool
}

// New creates a task for variant v with configuration cfg.
func New[E any](v Variant[E], cfg Config, opts ...Option) (*Task[E], error) {
	if v == nil {
		return nil, fmt.Errorf("%w: variant", ErrMissingComponent)
	}

	o := options{
		resolver:   prompts.DefaultResolver(nil),
		normalizer: labels.Lowercase(),
		mapper:     NoopMapper{},
		reducer:    NoopReducer{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.resolver == nil {
		return nil, fmt.Errorf("%w: prompt resolver", ErrMissingComponent)
	}
	if o.mapper == nil || o.reducer == nil {
		return nil, fmt.Errorf("%w: shard mapper/reducer", ErrMissingComponent)
	}
	if o.normalizer == nil {
		o.normalizer = labels.Lowercase()
	}

	cfg = cfg.WithDefaults()
	if cfg.Kind == "" {
		cfg.Kind = v.Kind()
	}
	if cfg.Kind != v.Kind() {
		return nil, fmt.Errorf("config kind %q does not match task kind %q", cfg.Kind, v.Kind())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Task[E]{
		variant:  v,
		state:    &State{Config: cfg, Logger: o.logger},
		resolver: o.resolver,
		examples: fewshot.NewStore[E](fewshot.Unbounded),
		mapper:   o.mapper,
		reducer:  o.reducer,
	}
	if _, ok := v.(LabelDiscoverer); ok {
		t.state.Labels = labels.New(cfg.Labels, o.normalizer)
		t.syncLabels()
	}
	if err := t.compileTemplate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Task[E]) compileTemplate() error {
	override := t.state.Config.Template
	if embedded, ok := t.resolver.GetEmbedded(t.variant.TemplateKey()); ok && embedded.Text == override {
		override = ""
	}
	resolved, err := t.resolver.Resolve(t.variant.TemplateKey(), override)
	if err != nil {
		return err
	}
	tmpl, err := prompts.Compile(resolved.Key, resolved.Text)
	if err != nil {
		return err
	}
	t.prompt = resolved
	t.template = tmpl
	t.state.Config.Template = resolved.Text
	return nil
}

func (t *Task[E]) syncLabels() {
	if t.state.Labels != nil {
		t.state.Config.Labels = t.state.Labels.Labels()
		if len(t.state.Config.Labels) == 0 {
			t.state.Config.Labels = nil
		}
	}
}

// Kind returns the variant kind.
func (t *Task[E]) Kind() Kind {
	return t.variant.Kind()
}

// Config returns a copy of the current configuration.
func (t *Task[E]) Config() Config {
	return t.state.Config
}

// Template returns the template source in use.
func (t *Task[E]) Template() string {
	return t.template.Text()
}

// Prompt returns the resolved prompt metadata (key, hash, override flag).
func (t *Task[E]) Prompt() prompts.ResolvedPrompt {
	return *t.prompt
}

// Shards returns the shard mapper and reducer callers use around context limits.
func (t *Task[E]) Shards() (ShardMapper, ShardReducer) {
	return t.mapper, t.reducer
}

// PromptExamples returns a copy of the prompt examples.
func (t *Task[E]) PromptExamples() []E {
	return t.examples.All()
}

// SetPromptExamples replaces the prompt examples.
func (t *Task[E]) SetPromptExamples(examples []E) {
	t.examples.Replace(examples)
	t.checked = false
}

// LoadPromptExamples replaces the prompt examples with those read from path.
// Records are validated against the variant's example schema.
func (t *Task[E]) LoadPromptExamples(path string) error {
	examples, err := fewshot.ReadFile[E](path, t.variant.ExampleSchema())
	if err != nil {
		return err
	}
	t.SetPromptExamples(examples)
	t.state.Logger.Debug("loaded prompt examples", "path", path, "count", len(examples))
	return nil
}

// Labels returns the canonical labels, or nil for unlabeled tasks.
func (t *Task[E]) Labels() []string {
	if t.state.Labels == nil {
		return nil
	}
	return t.state.Labels.Labels()
}

// LabelRegistry returns the label registry, or nil for unlabeled tasks.
func (t *Task[E]) LabelRegistry() *labels.Registry {
	return t.state.Labels
}

// AddLabel adds a label after construction. It returns 1 if inserted, 0 if present.
func (t *Task[E]) AddLabel(label any) (int, error) {
	if t.state.Labels == nil {
		return 0, ErrUnlabeled
	}
	n, err := t.state.Labels.Add(label)
	if err != nil {
		return 0, err
	}
	t.syncLabels()
	return n, nil
}

// GeneratePrompts renders exactly one prompt per document, in input order.
func (t *Task[E]) GeneratePrompts(ctx context.Context, docs []*doc.Doc) ([]string, error) {
	prepared, err := t.variant.Preprocess(ctx, t.state, docs)
	if err != nil {
		return nil, fmt.Errorf("preprocess failed: %w", err)
	}
	if len(prepared) != len(docs) {
		return nil, fmt.Errorf("preprocess returned %d docs for %d inputs", len(prepared), len(docs))
	}

	if checker, ok := t.variant.(ExampleChecker[E]); ok && !t.checked {
		checker.CheckExamples(t.state, t.examples.All())
		t.checked = true
	}
	examples, err := t.exampleData()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(prepared))
	for i, d := range prepared {
		data := map[string]any{
			"text":            d.Text(),
			"prompt_examples": examples,
		}
		if t.state.Labels != nil {
			data["labels"] = t.state.Labels.Labels()
			if len(t.state.Config.LabelDefinitions) > 0 {
				data["label_definitions"] = t.state.Config.LabelDefinitions
			}
		}
		extra, err := t.variant.RenderContext(t.state, d)
		if err != nil {
			return nil, fmt.Errorf("doc %d: %w", i, err)
		}
		for k, v := range extra {
			data[k] = v
		}

		prompt, err := t.template.Execute(data)
		if err != nil {
			return nil, fmt.Errorf("doc %d: %w", i, err)
		}
		out = append(out, prompt)
	}
	return out, nil
}

// exampleData converts typed examples into plain template data.
func (t *Task[E]) exampleData() ([]map[string]any, error) {
	items := t.examples.All()
	if len(items) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt examples: %w", err)
	}
	var data []map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to encode prompt examples: %w", err)
	}
	return data, nil
}

// ParseResponses pairs responses with documents by position and writes the
// parsed annotations onto each document. A length mismatch is fatal and no
// document is modified.
func (t *Task[E]) ParseResponses(ctx context.Context, docs []*doc.Doc, responses []string) ([]*doc.Doc, error) {
	if len(docs) != len(responses) {
		return nil, fmt.Errorf("%w: %d docs, %d responses", ErrLengthMismatch, len(docs), len(responses))
	}
	for i, d := range docs {
		if err := t.variant.Parse(ctx, t.state, d, responses[i]); err != nil {
			return nil, fmt.Errorf("doc %d: %w", i, err)
		}
	}
	return docs, nil
}

// Initialize seeds prompt examples and, for labeled tasks, the label universe.
// Label precedence: opts.Labels > configured labels > labels found in examples.
func (t *Task[E]) Initialize(getExamples func() []doc.Example, opts InitOptions) error {
	var examples []doc.Example
	if getExamples != nil {
		examples = getExamples()
	}

	if opts.NPromptExamples != 0 {
		t.examples.SetLimit(opts.NPromptExamples)
		for _, eg := range examples {
			if t.examples.Full() {
				break
			}
			e, err := t.variant.ExampleFrom(t.state, eg)
			if err != nil {
				return fmt.Errorf("failed to build prompt example: %w", err)
			}
			t.examples.Add(e)
		}
		t.checked = false
	}

	if discoverer, ok := t.variant.(LabelDiscoverer); ok {
		discover := func() []string {
			var found []string
			for _, eg := range examples {
				found = append(found, discoverer.LabelsFrom(eg)...)
			}
			return found
		}
		resolved := labels.Resolve(opts.Labels, t.state.Labels.Labels(), discover)
		t.state.Labels = labels.New(resolved, t.state.Labels.Normalizer())
		t.syncLabels()
	}

	t.state.Logger.Debug("initialized task",
		"kind", t.variant.Kind(),
		"prompt_examples", t.examples.Len(),
		"labels", t.state.Config.Labels)
	return nil
}
