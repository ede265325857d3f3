// Package labels keeps the normalized-to-canonical label map used by labeled tasks.
//
// Labels are matched through a Normalizer fixed at construction, so the model
// may answer "person:" for a configured "PERSON" label and still be understood.
// The registry is built once from a sorted, deduplicated label set: when two
// labels normalize to the same key, the later-sorted one wins.
package labels

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ErrNonTextLabel is returned by Add for anything that is not a string.
var ErrNonTextLabel = errors.New("label must be a string")

// Normalizer maps a raw label to its lookup key. It must be pure and idempotent.
type Normalizer func(string) string

// Lowercase returns the default normalizer: trim surrounding whitespace and case-fold.
func Lowercase() Normalizer {
	return func(s string) string {
		return cases.Fold().String(strings.TrimSpace(s))
	}
}

// Exact returns a normalizer that only trims surrounding whitespace.
func Exact() Normalizer {
	return strings.TrimSpace
}

// Registry maps normalized keys to canonical labels.
type Registry struct {
	normalize Normalizer
	dict      map[string]string
}

// New builds a registry from labels. A nil normalizer means Lowercase.
func New(labels []string, n Normalizer) *Registry {
	if n == nil {
		n = Lowercase()
	}
	r := &Registry{normalize: n, dict: make(map[string]string)}
	for _, label := range sortedUnique(labels) {
		r.dict[n(label)] = label
	}
	return r
}

// Normalize applies the registry's normalizer.
func (r *Registry) Normalize(s string) string {
	return r.normalize(s)
}

// Normalizer returns the normalizer fixed at construction.
func (r *Registry) Normalizer() Normalizer {
	return r.normalize
}

// Add inserts a label after construction. It returns 1 when the label was
// inserted and 0 when the canonical label already exists.
func (r *Registry) Add(label any) (int, error) {
	s, ok := label.(string)
	if !ok {
		return 0, fmt.Errorf("%w, got %T", ErrNonTextLabel, label)
	}
	for _, existing := range r.dict {
		if existing == s {
			return 0, nil
		}
	}
	r.dict[r.normalize(s)] = s
	return 1, nil
}

// Lookup normalizes raw and returns the canonical label it maps to.
func (r *Registry) Lookup(raw string) (string, bool) {
	label, ok := r.dict[r.normalize(raw)]
	return label, ok
}

// Labels returns the canonical labels ordered by normalized key.
func (r *Registry) Labels() []string {
	keys := make([]string, 0, len(r.dict))
	for k := range r.dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.dict[k]
	}
	return out
}

// Dict returns a copy of the normalized-to-canonical map.
func (r *Registry) Dict() map[string]string {
	out := make(map[string]string, len(r.dict))
	for k, v := range r.dict {
		out[k] = v
	}
	return out
}

// Len returns the number of labels.
func (r *Registry) Len() int {
	return len(r.dict)
}

// Resolve picks the label universe for initialization.
// Precedence: explicit > configured > discovered. discover is only called when
// both explicit and configured are empty.
func Resolve(explicit, configured []string, discover func() []string) []string {
	switch {
	case len(explicit) > 0:
		return sortedUnique(explicit)
	case len(configured) > 0:
		return sortedUnique(configured)
	case discover != nil:
		return sortedUnique(discover())
	default:
		return nil
	}
}

func sortedUnique(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
