// Package align maps phrases claimed by a model back onto document offsets.
//
// FindSubstrings locates token-aligned phrase occurrences, Doc.CharSpan snaps
// the raw offsets to the document's own tokens, and Resolve reduces the
// candidates to a non-overlapping set. Nothing here fails on hallucinated
// output: a phrase that cannot be located is simply not annotated.
package align

import (
	"sort"

	"golang.org/x/text/cases"

	"github.com/jackzampolin/annotator/internal/doc"
)

// Offsets is a raw half-open byte range in the document text.
type Offsets struct {
	Start int
	End   int
}

// MatchOptions configures phrase matching.
type MatchOptions struct {
	// CaseSensitive compares token text verbatim instead of lowercased.
	CaseSensitive bool
	// SingleMatch keeps only the first occurrence of each surface text.
	SingleMatch bool
	// Lang selects the tokenizer profile used for both phrases and text.
	Lang string
}

// FindSubstrings returns the offsets of every token-aligned occurrence of the
// phrases in text, ordered by position. Phrases and text are tokenized with the
// same tokenizer so matches always start and end on that tokenizer's boundaries.
func FindSubstrings(text string, phrases []string, opts MatchOptions) []Offsets {
	tok := doc.TokenizerFor(opts.Lang)
	fold := cases.Fold()
	key := func(s string) string {
		if opts.CaseSensitive {
			return s
		}
		return fold.String(s)
	}

	var patterns [][]string
	for _, p := range phrases {
		ptoks := tok.Tokenize(p)
		if len(ptoks) == 0 {
			continue
		}
		pattern := make([]string, len(ptoks))
		for i, t := range ptoks {
			pattern[i] = key(t.Text)
		}
		patterns = append(patterns, pattern)
	}
	if len(patterns) == 0 {
		return nil
	}

	tokens := tok.Tokenize(text)
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = key(t.Text)
	}

	var matches []Offsets
	seen := make(map[Offsets]struct{})
	for i := range tokens {
		for _, pattern := range patterns {
			if !matchAt(keys, i, pattern) {
				continue
			}
			off := Offsets{Start: tokens[i].Start, End: tokens[i+len(pattern)-1].End}
			if _, dup := seen[off]; dup {
				continue
			}
			seen[off] = struct{}{}
			matches = append(matches, off)
		}
	}

	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Start < matches[b].Start })

	if !opts.SingleMatch {
		return matches
	}
	return firstHits(text, matches, key)
}

func matchAt(keys []string, i int, pattern []string) bool {
	if i+len(pattern) > len(keys) {
		return false
	}
	for j, p := range pattern {
		if keys[i+j] != p {
			return false
		}
	}
	return true
}

// firstHits keeps the first match of each case-normalized surface text.
func firstHits(text string, matches []Offsets, key func(string) string) []Offsets {
	seen := make(map[string]struct{}, len(matches))
	out := make([]Offsets, 0, len(matches))
	for _, m := range matches {
		surface := key(text[m.Start:m.End])
		if _, ok := seen[surface]; ok {
			continue
		}
		seen[surface] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Aligner turns per-label phrase lists into token-aligned spans on a document.
type Aligner struct {
	Mode doc.Alignment
	MatchOptions
}

// NewAligner validates mode and returns an aligner.
func NewAligner(mode doc.Alignment, opts MatchOptions) (*Aligner, error) {
	if _, err := doc.ParseAlignment(string(mode)); err != nil {
		return nil, err
	}
	return &Aligner{Mode: mode, MatchOptions: opts}, nil
}

// Spans locates phrases for a single label on d. Offsets that cannot be
// snapped to d's tokens under the alignment mode are dropped.
func (a *Aligner) Spans(d *doc.Doc, label string, phrases []string) []doc.Span {
	var spans []doc.Span
	for _, off := range FindSubstrings(d.Text(), phrases, a.MatchOptions) {
		if span, ok := d.CharSpan(off.Start, off.End, a.Mode, label); ok {
			spans = append(spans, span)
		}
	}
	return spans
}
