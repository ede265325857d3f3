package align

import (
	"sort"

	"github.com/jackzampolin/annotator/internal/doc"
)

// Resolve greedily keeps the longest spans first and discards any span that
// overlaps one already kept. Equal-length spans keep their discovery order.
// The result is ordered by start offset.
func Resolve(spans []doc.Span) []doc.Span {
	ordered := make([]doc.Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Len() > ordered[j].Len() })

	kept := make([]doc.Span, 0, len(ordered))
	for _, s := range ordered {
		if s.Len() <= 0 {
			continue
		}
		overlaps := false
		for _, k := range kept {
			if s.Overlaps(k) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, s)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
