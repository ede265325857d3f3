// Package fewshot stores the worked examples injected into prompts.
package fewshot

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Unbounded disables the example cap.
const Unbounded = -1

// Store is an ordered, capped sequence of prompt examples.
type Store[E any] struct {
	limit int
	items []E
}

// NewStore creates a store holding at most limit examples. Unbounded (-1)
// removes the cap; 0 means no examples are accepted.
func NewStore[E any](limit int, initial ...E) *Store[E] {
	s := &Store[E]{limit: limit}
	for _, e := range initial {
		s.Add(e)
	}
	return s
}

// Add appends e unless the store is full. It reports whether e was stored.
func (s *Store[E]) Add(e E) bool {
	if s.Full() {
		return false
	}
	s.items = append(s.items, e)
	return true
}

// Full reports whether the cap has been reached.
func (s *Store[E]) Full() bool {
	return s.limit >= 0 && len(s.items) >= s.limit
}

// Limit returns the configured cap.
func (s *Store[E]) Limit() int {
	return s.limit
}

// SetLimit changes the cap. Existing examples beyond the new cap are dropped.
func (s *Store[E]) SetLimit(limit int) {
	s.limit = limit
	if limit >= 0 && len(s.items) > limit {
		s.items = s.items[:limit]
	}
}

// Len returns the number of stored examples.
func (s *Store[E]) Len() int {
	return len(s.items)
}

// All returns a copy of the stored examples.
func (s *Store[E]) All() []E {
	out := make([]E, len(s.items))
	copy(out, s.items)
	return out
}

// Replace swaps the stored examples wholesale. Loaded examples bypass the cap
// so a deserialized store matches what was saved.
func (s *Store[E]) Replace(items []E) {
	s.items = append([]E(nil), items...)
}

// MarshalRecords encodes examples as a YAML sequence.
func MarshalRecords[E any](items []E) ([]byte, error) {
	if items == nil {
		items = []E{}
	}
	data, err := yaml.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt examples: %w", err)
	}
	return data, nil
}

// UnmarshalRecords decodes a YAML sequence of examples.
func UnmarshalRecords[E any](data []byte) ([]E, error) {
	var items []E
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode prompt examples: %w", err)
	}
	return items, nil
}
