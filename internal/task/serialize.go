package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackzampolin/annotator/internal/fewshot"
	"github.com/jackzampolin/annotator/internal/labels"
)

// Serialization channels. Either may be named in an exclude list, as may any
// key of ConfigFields to drop a single config field from the cfg channel.
const (
	ChannelConfig   = "cfg"
	ChannelExamples = "prompt_examples"
)

// envelope carries the two independent channels of ToBytes.
type envelope struct {
	Cfg            json.RawMessage `json:"cfg,omitempty"`
	PromptExamples []byte          `json:"prompt_examples,omitempty"`
}

// ToBytes serializes the task's config and prompt examples.
func (t *Task[E]) ToBytes(exclude ...string) ([]byte, error) {
	skip := excludeSet(exclude)
	var env envelope
	if !skip[ChannelConfig] {
		cfg, err := MarshalConfig(t.state.Config, exclude...)
		if err != nil {
			return nil, err
		}
		env.Cfg = cfg
	}
	if !skip[ChannelExamples] {
		examples, err := fewshot.MarshalRecords(t.examples.All())
		if err != nil {
			return nil, err
		}
		env.PromptExamples = examples
	}
	return json.Marshal(env)
}

// FromBytes restores state written by ToBytes. The exclude list must match the
// one used on save for an exact round trip; excluded parts keep their current value.
func (t *Task[E]) FromBytes(data []byte, exclude ...string) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode task: %w", err)
	}
	skip := excludeSet(exclude)
	if !skip[ChannelConfig] && len(env.Cfg) > 0 {
		if err := t.applyConfig(env.Cfg, exclude...); err != nil {
			return err
		}
	}
	if !skip[ChannelExamples] && len(env.PromptExamples) > 0 {
		if err := t.applyExamples(env.PromptExamples); err != nil {
			return err
		}
	}
	return nil
}

// ToDisk writes the channels as the files cfg and prompt_examples under dir.
func (t *Task[E]) ToDisk(dir string, exclude ...string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}
	skip := excludeSet(exclude)
	if !skip[ChannelConfig] {
		cfg, err := MarshalConfig(t.state.Config, exclude...)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, ChannelConfig), cfg, 0o644); err != nil {
			return fmt.Errorf("failed to write task config: %w", err)
		}
	}
	if !skip[ChannelExamples] {
		examples, err := fewshot.MarshalRecords(t.examples.All())
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, ChannelExamples), examples, 0o644); err != nil {
			return fmt.Errorf("failed to write prompt examples: %w", err)
		}
	}
	return nil
}

// FromDisk restores state written by ToDisk. A channel whose file is absent
// was excluded on save and keeps its current value.
func (t *Task[E]) FromDisk(dir string, exclude ...string) error {
	skip := excludeSet(exclude)
	if !skip[ChannelConfig] {
		cfg, err := readChannel(dir, ChannelConfig)
		if err != nil {
			return fmt.Errorf("failed to read task config: %w", err)
		}
		if cfg != nil {
			if err := t.applyConfig(cfg, exclude...); err != nil {
				return err
			}
		}
	}
	if !skip[ChannelExamples] {
		examples, err := readChannel(dir, ChannelExamples)
		if err != nil {
			return fmt.Errorf("failed to read prompt examples: %w", err)
		}
		if examples != nil {
			if err := t.applyExamples(examples); err != nil {
				return err
			}
		}
	}
	return nil
}

// readChannel returns nil data without error when the channel file is missing.
func readChannel(dir, channel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, channel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Exists reports whether dir is a saved task directory.
func Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// SavedKind returns the task kind recorded in dir, or "" when the config
// channel was not saved or omits the kind.
func SavedKind(dir string) (Kind, error) {
	data, err := readChannel(dir, ChannelConfig)
	if err != nil {
		return "", fmt.Errorf("failed to read task config: %w", err)
	}
	if data == nil {
		return "", nil
	}
	var w configWire
	if err := json.Unmarshal(data, &w); err != nil {
		return "", fmt.Errorf("failed to decode task config: %w", err)
	}
	if w.Kind == nil {
		return "", nil
	}
	return ParseKind(string(*w.Kind))
}

func (t *Task[E]) applyConfig(data []byte, exclude ...string) error {
	cfg, err := UnmarshalConfig(t.state.Config, data, exclude...)
	if err != nil {
		return err
	}
	if cfg.Kind != t.variant.Kind() {
		return fmt.Errorf("serialized task kind %q does not match %q", cfg.Kind, t.variant.Kind())
	}

	previous := t.state.Config
	t.state.Config = cfg
	if err := t.compileTemplate(); err != nil {
		t.state.Config = previous
		return err
	}
	if t.state.Labels != nil {
		t.state.Labels = labels.New(cfg.Labels, t.state.Labels.Normalizer())
		t.syncLabels()
	}
	return nil
}

func (t *Task[E]) applyExamples(data []byte) error {
	examples, err := fewshot.UnmarshalRecords[E](data)
	if err != nil {
		return err
	}
	t.SetPromptExamples(examples)
	return nil
}
