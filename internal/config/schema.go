package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/kb"
	"github.com/jackzampolin/annotator/internal/llm"
	"github.com/jackzampolin/annotator/internal/task"
)

// Config holds annotator configuration.
// Stored at: ./annotator.yaml or {home}/config.yaml
type Config struct {
	Task  TaskCfg  `mapstructure:"task" yaml:"task"`
	Model ModelCfg `mapstructure:"model" yaml:"model"`
	KB    KBCfg    `mapstructure:"kb" yaml:"kb"`
}

// TaskCfg configures the annotation task.
type TaskCfg struct {
	Kind             string            `mapstructure:"kind" yaml:"kind"`                     // "ner", "summarization", "entity_linker"
	TemplatePath     string            `mapstructure:"template_path" yaml:"template_path"`   // Optional template override file
	Labels           []string          `mapstructure:"labels" yaml:"labels"`
	LabelDefinitions map[string]string `mapstructure:"label_definitions" yaml:"label_definitions"`
	AlignmentMode    string            `mapstructure:"alignment_mode" yaml:"alignment_mode"` // strict, contract, expand
	CaseSensitive    bool              `mapstructure:"case_sensitive_matching" yaml:"case_sensitive_matching"`
	SingleMatch      bool              `mapstructure:"single_match" yaml:"single_match"`
	Lang             string            `mapstructure:"lang" yaml:"lang"`
	MaxNWords        int               `mapstructure:"max_n_words" yaml:"max_n_words"`
	Field            string            `mapstructure:"field" yaml:"field"`
	TopN             int               `mapstructure:"top_n" yaml:"top_n"`
	NPromptExamples  int               `mapstructure:"n_prompt_examples" yaml:"n_prompt_examples"` // -1 = all
	ExamplesPath     string            `mapstructure:"examples_path" yaml:"examples_path"`         // Prompt examples (.json, .jsonl, .yml)
	TrainingPath     string            `mapstructure:"training_path" yaml:"training_path"`         // Gold docs (.jsonl) for init
}

// ModelCfg configures the OpenAI-compatible model endpoint.
type ModelCfg struct {
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelayMS   int     `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// KBCfg configures the entity linking knowledge base.
type KBCfg struct {
	Path             string `mapstructure:"path" yaml:"path"`                           // YAML alias table
	DescriptionsPath string `mapstructure:"descriptions_path" yaml:"descriptions_path"` // id;description table
	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Task: TaskCfg{
			Kind:          string(task.KindNER),
			Labels:        []string{"PER", "ORG", "LOC"},
			AlignmentMode: string(doc.AlignContract),
			Lang:          doc.LangMulti,
			Field:         task.DefaultField,
			TopN:          task.DefaultTopN,
		},
		Model: ModelCfg{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			APIKey:         "${OPENAI_API_KEY}",
			MaxRetries:     3,
			RetryDelayMS:   2000,
			TimeoutSeconds: 120,
		},
		KB: KBCfg{
			Delimiter: string(kb.DefaultDelimiter),
		},
	}
}

// TaskConfig converts the task section to a task.Config, reading the
// template override file when one is configured.
func (c TaskCfg) TaskConfig() (task.Config, error) {
	kind, err := task.ParseKind(c.Kind)
	if err != nil {
		return task.Config{}, err
	}
	var mode doc.Alignment
	if c.AlignmentMode != "" {
		if mode, err = doc.ParseAlignment(c.AlignmentMode); err != nil {
			return task.Config{}, err
		}
	}

	cfg := task.Config{
		Kind:             kind,
		Labels:           c.Labels,
		LabelDefinitions: c.LabelDefinitions,
		AlignmentMode:    mode,
		CaseSensitive:    c.CaseSensitive,
		SingleMatch:      c.SingleMatch,
		Lang:             c.Lang,
		MaxNWords:        c.MaxNWords,
		Field:            c.Field,
		TopN:             c.TopN,
	}
	if c.TemplatePath != "" {
		data, err := os.ReadFile(c.TemplatePath)
		if err != nil {
			return task.Config{}, fmt.Errorf("failed to read template: %w", err)
		}
		cfg.Template = string(data)
	}
	return cfg.WithDefaults(), nil
}

// OpenAIConfig converts the model section to a client config, resolving
// ${ENV_VAR} references in the API key.
func (c ModelCfg) OpenAIConfig() llm.OpenAIConfig {
	return llm.OpenAIConfig{
		APIKey:      ResolveEnvVars(c.APIKey),
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		MaxRetries:  c.MaxRetries,
		RetryDelay:  time.Duration(c.RetryDelayMS) * time.Millisecond,
		Timeout:     time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// DelimiterRune returns the description table delimiter.
func (c KBCfg) DelimiterRune() (rune, error) {
	r := []rune(c.Delimiter)
	switch len(r) {
	case 0:
		return kb.DefaultDelimiter, nil
	case 1:
		return r[0], nil
	default:
		return 0, fmt.Errorf("kb delimiter must be a single character, got %q", c.Delimiter)
	}
}
