// Package kb ranks knowledge-base candidates for entity linking.
//
// A KnowledgeBase returns raw candidates for a batch of mention texts in a
// single call. The Ranker orders them by prior probability, keeps the top N,
// attaches descriptions and guarantees every mention at least one candidate:
// mentions without candidates get the NIL entity.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

const (
	// NIL is the reserved identifier for "no identifiable referent".
	NIL = "NIL"

	// UnavailableDescription is used for NIL and for ids missing from the description table.
	UnavailableDescription = "This entity doesn't have a description."
)

// RawCandidate is a candidate as returned by the knowledge base.
type RawCandidate struct {
	ID        string  `json:"id" yaml:"id"`
	PriorProb float64 `json:"prior_prob" yaml:"prior_prob"`
}

// Candidate is a ranked candidate ready for prompting.
type Candidate struct {
	ID          string  `json:"id" yaml:"id"`
	Description string  `json:"description" yaml:"description"`
	PriorProb   float64 `json:"prior_prob" yaml:"prior_prob"`
}

// KnowledgeBase looks up candidates for a batch of mentions.
// The result has one list per mention, in mention order.
type KnowledgeBase interface {
	CandidatesBatch(ctx context.Context, mentions []string) ([][]RawCandidate, error)
}

// DescriptionSource resolves entity ids to descriptions.
type DescriptionSource interface {
	Get(id string) string
}

// Ranker turns raw knowledge-base candidates into the prompt candidate lists.
type Ranker struct {
	kb     KnowledgeBase
	descs  DescriptionSource
	topN   int
	logger *slog.Logger
}

// NewRanker creates a ranker. topN <= 0 keeps every candidate.
// A nil description source yields the placeholder description for every id.
func NewRanker(kb KnowledgeBase, descs DescriptionSource, topN int, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{kb: kb, descs: descs, topN: topN, logger: logger}
}

// TopN returns the configured truncation size.
func (r *Ranker) TopN() int {
	return r.topN
}

// Rank retrieves and ranks candidates for mentions with one knowledge-base call.
func (r *Ranker) Rank(ctx context.Context, mentions []string) ([][]Candidate, error) {
	if len(mentions) == 0 {
		return nil, nil
	}
	raw, err := r.kb.CandidatesBatch(ctx, mentions)
	if err != nil {
		return nil, fmt.Errorf("candidate lookup failed: %w", err)
	}
	if len(raw) != len(mentions) {
		return nil, fmt.Errorf("knowledge base returned %d candidate lists for %d mentions", len(raw), len(mentions))
	}

	out := make([][]Candidate, len(raw))
	for i, cands := range raw {
		out[i] = r.rankOne(cands)
	}
	r.logger.Debug("ranked candidates", "mentions", len(mentions), "top_n", r.topN)
	return out, nil
}

func (r *Ranker) rankOne(cands []RawCandidate) []Candidate {
	if len(cands) == 0 {
		return []Candidate{{ID: NIL, Description: UnavailableDescription}}
	}

	sorted := make([]RawCandidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PriorProb > sorted[j].PriorProb })
	if r.topN > 0 && len(sorted) > r.topN {
		sorted = sorted[:r.topN]
	}

	ranked := make([]Candidate, len(sorted))
	for i, c := range sorted {
		ranked[i] = Candidate{ID: c.ID, Description: r.describe(c.ID), PriorProb: c.PriorProb}
	}
	return ranked
}

func (r *Ranker) describe(id string) string {
	if r.descs == nil {
		return UnavailableDescription
	}
	return r.descs.Get(id)
}
