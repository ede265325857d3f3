package task

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/annotator/internal/doc"
)

// Kind identifies a task variant.
type Kind string

const (
	KindNER           Kind = "ner"
	KindSummarization Kind = "summarization"
	KindEntityLinker  Kind = "entity_linker"
)

// Kinds lists every supported task kind.
var Kinds = []Kind{KindNER, KindSummarization, KindEntityLinker}

// ParseKind validates s as a task kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Defaults applied by Config.WithDefaults.
const (
	DefaultField = "summary"
	DefaultTopN  = 5
)

// Config field keys. These are the names used in the serialized cfg blob and
// accepted by the exclude lists of ToBytes/FromBytes.
const (
	FieldKind             = "kind"
	FieldTemplate         = "template"
	FieldLabels           = "labels"
	FieldLabelDefinitions = "label_definitions"
	FieldAlignmentMode    = "alignment_mode"
	FieldCaseSensitive    = "case_sensitive_matching"
	FieldSingleMatch      = "single_match"
	FieldLang             = "lang"
	FieldMaxNWords        = "max_n_words"
	FieldField            = "field"
	FieldTopN             = "top_n"
)

// ConfigFields lists every serialized config key.
var ConfigFields = []string{
	FieldKind, FieldTemplate, FieldLabels, FieldLabelDefinitions, FieldAlignmentMode,
	FieldCaseSensitive, FieldSingleMatch, FieldLang, FieldMaxNWords, FieldField, FieldTopN,
}

// Config is the flat, serializable configuration of a task. Fields that do not
// apply to a task kind are carried but ignored.
type Config struct {
	Kind             Kind              `mapstructure:"kind" yaml:"kind"`
	Template         string            `mapstructure:"template" yaml:"template"`
	Labels           []string          `mapstructure:"labels" yaml:"labels"`
	LabelDefinitions map[string]string `mapstructure:"label_definitions" yaml:"label_definitions"`
	AlignmentMode    doc.Alignment     `mapstructure:"alignment_mode" yaml:"alignment_mode"`
	CaseSensitive    bool              `mapstructure:"case_sensitive_matching" yaml:"case_sensitive_matching"`
	SingleMatch      bool              `mapstructure:"single_match" yaml:"single_match"`
	Lang             string            `mapstructure:"lang" yaml:"lang"`
	MaxNWords        int               `mapstructure:"max_n_words" yaml:"max_n_words"` // summarization, 0 = unlimited
	Field            string            `mapstructure:"field" yaml:"field"`             // summarization target field
	TopN             int               `mapstructure:"top_n" yaml:"top_n"`             // entity linking
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.AlignmentMode == "" {
		c.AlignmentMode = doc.AlignContract
	}
	if c.Lang == "" {
		c.Lang = doc.LangMulti
	}
	if c.Field == "" {
		c.Field = DefaultField
	}
	if c.TopN == 0 {
		c.TopN = DefaultTopN
	}
	if len(c.Labels) == 0 {
		c.Labels = nil
	}
	if len(c.LabelDefinitions) == 0 {
		c.LabelDefinitions = nil
	}
	return c
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	if c.Kind != "" {
		if _, err := ParseKind(string(c.Kind)); err != nil {
			return err
		}
	}
	if _, err := doc.ParseAlignment(string(c.AlignmentMode)); err != nil {
		return err
	}
	if c.MaxNWords < 0 {
		return fmt.Errorf("max_n_words must not be negative, got %d", c.MaxNWords)
	}
	return nil
}

// configWire is the explicit wire form of Config. A nil pointer means the
// field is absent from the blob.
type configWire struct {
	Kind             *Kind              `json:"kind,omitempty"`
	Template         *string            `json:"template,omitempty"`
	Labels           *[]string          `json:"labels,omitempty"`
	LabelDefinitions *map[string]string `json:"label_definitions,omitempty"`
	AlignmentMode    *doc.Alignment     `json:"alignment_mode,omitempty"`
	CaseSensitive    *bool              `json:"case_sensitive_matching,omitempty"`
	SingleMatch      *bool              `json:"single_match,omitempty"`
	Lang             *string            `json:"lang,omitempty"`
	MaxNWords        *int               `json:"max_n_words,omitempty"`
	Field            *string            `json:"field,omitempty"`
	TopN             *int               `json:"top_n,omitempty"`
}

// MarshalConfig encodes c, omitting the excluded field keys.
func MarshalConfig(c Config, exclude ...string) ([]byte, error) {
	skip := excludeSet(exclude)
	w := configWire{}
	if !skip[FieldKind] {
		w.Kind = &c.Kind
	}
	if !skip[FieldTemplate] {
		w.Template = &c.Template
	}
	if !skip[FieldLabels] {
		labels := append([]string{}, c.Labels...)
		w.Labels = &labels
	}
	if !skip[FieldLabelDefinitions] {
		defs := make(map[string]string, len(c.LabelDefinitions))
		for k, v := range c.LabelDefinitions {
			defs[k] = v
		}
		w.LabelDefinitions = &defs
	}
	if !skip[FieldAlignmentMode] {
		w.AlignmentMode = &c.AlignmentMode
	}
	if !skip[FieldCaseSensitive] {
		w.CaseSensitive = &c.CaseSensitive
	}
	if !skip[FieldSingleMatch] {
		w.SingleMatch = &c.SingleMatch
	}
	if !skip[FieldLang] {
		w.Lang = &c.Lang
	}
	if !skip[FieldMaxNWords] {
		w.MaxNWords = &c.MaxNWords
	}
	if !skip[FieldField] {
		w.Field = &c.Field
	}
	if !skip[FieldTopN] {
		w.TopN = &c.TopN
	}
	return json.MarshalIndent(w, "", "  ")
}

// UnmarshalConfig applies the fields present in data onto base. Excluded keys
// and keys absent from data keep base's value.
func UnmarshalConfig(base Config, data []byte, exclude ...string) (Config, error) {
	var w configWire
	if err := json.Unmarshal(data, &w); err != nil {
		return base, fmt.Errorf("failed to decode task config: %w", err)
	}
	skip := excludeSet(exclude)
	c := base
	if w.Kind != nil && !skip[FieldKind] {
		c.Kind = *w.Kind
	}
	if w.Template != nil && !skip[FieldTemplate] {
		c.Template = *w.Template
	}
	if w.Labels != nil && !skip[FieldLabels] {
		c.Labels = nil
		if len(*w.Labels) > 0 {
			c.Labels = *w.Labels
		}
	}
	if w.LabelDefinitions != nil && !skip[FieldLabelDefinitions] {
		c.LabelDefinitions = nil
		if len(*w.LabelDefinitions) > 0 {
			c.LabelDefinitions = *w.LabelDefinitions
		}
	}
	if w.AlignmentMode != nil && !skip[FieldAlignmentMode] {
		c.AlignmentMode = *w.AlignmentMode
	}
	if w.CaseSensitive != nil && !skip[FieldCaseSensitive] {
		c.CaseSensitive = *w.CaseSensitive
	}
	if w.SingleMatch != nil && !skip[FieldSingleMatch] {
		c.SingleMatch = *w.SingleMatch
	}
	if w.Lang != nil && !skip[FieldLang] {
		c.Lang = *w.Lang
	}
	if w.MaxNWords != nil && !skip[FieldMaxNWords] {
		c.MaxNWords = *w.MaxNWords
	}
	if w.Field != nil && !skip[FieldField] {
		c.Field = *w.Field
	}
	if w.TopN != nil && !skip[FieldTopN] {
		c.TopN = *w.TopN
	}
	if err := c.Validate(); err != nil {
		return base, err
	}
	return c, nil
}

func excludeSet(exclude []string) map[string]bool {
	set := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		set[strings.TrimSpace(e)] = true
	}
	return set
}
