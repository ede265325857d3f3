package kb

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemoryKB is an alias table held in memory. Alias lookup ignores case and
// surrounding whitespace.
type MemoryKB struct {
	aliases map[string][]RawCandidate
}

// memoryFile is the on-disk layout read by LoadMemoryKB.
type memoryFile struct {
	Aliases map[string][]RawCandidate `yaml:"aliases"`
}

// NewMemoryKB builds a knowledge base from an alias table.
func NewMemoryKB(aliases map[string][]RawCandidate) *MemoryKB {
	kb := &MemoryKB{aliases: make(map[string][]RawCandidate, len(aliases))}
	for alias, cands := range aliases {
		kb.Add(alias, cands...)
	}
	return kb
}

// LoadMemoryKB reads an alias table from a YAML file.
func LoadMemoryKB(path string) (*MemoryKB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	var f memoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}
	return NewMemoryKB(f.Aliases), nil
}

// Add appends candidates for alias.
func (m *MemoryKB) Add(alias string, cands ...RawCandidate) {
	key := aliasKey(alias)
	m.aliases[key] = append(m.aliases[key], cands...)
}

// CandidatesBatch implements KnowledgeBase.
func (m *MemoryKB) CandidatesBatch(ctx context.Context, mentions []string) ([][]RawCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]RawCandidate, len(mentions))
	for i, mention := range mentions {
		cands := m.aliases[aliasKey(mention)]
		out[i] = append([]RawCandidate(nil), cands...)
	}
	return out, nil
}

func aliasKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
