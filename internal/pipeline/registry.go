package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackzampolin/annotator/internal/kb"
	"github.com/jackzampolin/annotator/internal/prompts"
	"github.com/jackzampolin/annotator/internal/task"
	"github.com/jackzampolin/annotator/internal/task/entitylink"
	"github.com/jackzampolin/annotator/internal/task/ner"
	"github.com/jackzampolin/annotator/internal/task/summarize"
)

// Sentinel errors for the pipeline package.
var (
	// ErrKindAlreadyRegistered is returned when registering a duplicate task kind.
	ErrKindAlreadyRegistered = errors.New("task kind already registered")

	// ErrKindNotFound is returned when no factory exists for a task kind.
	ErrKindNotFound = errors.New("task kind not registered")
)

// Deps are the collaborators a factory may need.
type Deps struct {
	KB           kb.KnowledgeBase
	Descriptions kb.DescriptionSource
	Resolver     *prompts.Resolver
	Logger       *slog.Logger
}

func (d Deps) options() []task.Option {
	opts := []task.Option{task.WithLogger(d.Logger)}
	if d.Resolver != nil {
		opts = append(opts, task.WithResolver(d.Resolver))
	}
	return opts
}

// Factory builds an annotator for a task config.
type Factory func(cfg task.Config, deps Deps) (Annotator, error)

// Registry maps task kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[task.Kind]Factory
	order     []task.Kind // Maintains registration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[task.Kind]Factory),
		order:     make([]task.Kind, 0),
	}
}

// DefaultRegistry returns a registry with every built-in task kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(task.KindNER, func(cfg task.Config, deps Deps) (Annotator, error) {
		return ner.New(cfg, deps.options()...)
	})
	_ = r.Register(task.KindSummarization, func(cfg task.Config, deps Deps) (Annotator, error) {
		return summarize.New(cfg, deps.options()...)
	})
	_ = r.Register(task.KindEntityLinker, func(cfg task.Config, deps Deps) (Annotator, error) {
		return entitylink.New(cfg, deps.KB, deps.Descriptions, deps.options()...)
	})
	return r
}

// Register adds a factory for kind.
// Returns an error if the kind is already registered.
func (r *Registry) Register(kind task.Kind, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: %s", ErrKindAlreadyRegistered, kind)
	}
	r.factories[kind] = f
	r.order = append(r.order, kind)
	return nil
}

// Kinds returns all registered kinds in registration order.
func (r *Registry) Kinds() []task.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]task.Kind, len(r.order))
	copy(kinds, r.order)
	return kinds
}

// Build creates an annotator for cfg.Kind.
func (r *Registry) Build(cfg task.Config, deps Deps) (Annotator, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKindNotFound, cfg.Kind)
	}
	return f(cfg, deps)
}
