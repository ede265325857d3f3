package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment overrides, e.g. ANNOTATOR_MODEL_API_KEY.
const EnvPrefix = "ANNOTATOR"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// Without cfgFile, ./annotator.yaml and then {home}/config.yaml are tried.
func NewManager(cfgFile, home string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, home); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, home string) error {
	v := cm.v
	setDefaults(v, DefaultConfig())

	// Environment variables with ANNOTATOR_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file: explicit flag, then ./annotator.yaml, then {home}/config.yaml
	if cfgFile == "" {
		cfgFile = findConfigFile(home)
	}
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func findConfigFile(home string) string {
	candidates := []string{"annotator.yaml", "annotator.yml"}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// setDefaults registers every leaf key so env overrides and partial files merge per field.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("task.kind", d.Task.Kind)
	v.SetDefault("task.template_path", d.Task.TemplatePath)
	v.SetDefault("task.labels", d.Task.Labels)
	v.SetDefault("task.label_definitions", d.Task.LabelDefinitions)
	v.SetDefault("task.alignment_mode", d.Task.AlignmentMode)
	v.SetDefault("task.case_sensitive_matching", d.Task.CaseSensitive)
	v.SetDefault("task.single_match", d.Task.SingleMatch)
	v.SetDefault("task.lang", d.Task.Lang)
	v.SetDefault("task.max_n_words", d.Task.MaxNWords)
	v.SetDefault("task.field", d.Task.Field)
	v.SetDefault("task.top_n", d.Task.TopN)
	v.SetDefault("task.n_prompt_examples", d.Task.NPromptExamples)
	v.SetDefault("task.examples_path", d.Task.ExamplesPath)
	v.SetDefault("task.training_path", d.Task.TrainingPath)

	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.model", d.Model.Model)
	v.SetDefault("model.api_key", d.Model.APIKey)
	v.SetDefault("model.temperature", d.Model.Temperature)
	v.SetDefault("model.max_retries", d.Model.MaxRetries)
	v.SetDefault("model.retry_delay_ms", d.Model.RetryDelayMS)
	v.SetDefault("model.timeout_seconds", d.Model.TimeoutSeconds)

	v.SetDefault("kb.path", d.KB.Path)
	v.SetDefault("kb.descriptions_path", d.KB.DescriptionsPath)
	v.SetDefault("kb.delimiter", d.KB.Delimiter)
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// Set overrides a single key (dotted path) and reloads.
func (cm *Manager) Set(key string, value any) error {
	cm.v.Set(key, value)
	cfg, err := cm.load()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return nil
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Annotator configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx
# Any key can be overridden with ANNOTATOR_<SECTION>_<KEY>, e.g. ANNOTATOR_MODEL_MODEL

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
