// Package entitylink implements the entity linking task.
//
// Every entity span already on a document is a mention. Before prompting, the
// mentions of the whole batch are looked up in the knowledge base with a single
// call and ranked; the prompt lists each mention with its candidates and the
// model answers with one "N. ENTITY_ID" line per mention. Answers that name an
// entity outside the mention's candidate list resolve to NIL.
package entitylink

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/kb"
	"github.com/jackzampolin/annotator/internal/prompts"
	"github.com/jackzampolin/annotator/internal/task"
)

// Mention is one linked mention of a prompt example.
type Mention struct {
	Text     string `json:"text" yaml:"text"`
	EntityID string `json:"entity_id" yaml:"entity_id"`
}

// Example is an entity linking prompt example.
type Example struct {
	Text     string    `json:"text" yaml:"text"`
	Mentions []Mention `json:"mentions" yaml:"mentions"`
}

const exampleSchema = `{
  "type": "object",
  "required": ["text", "mentions"],
  "properties": {
    "text": {"type": "string"},
    "mentions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "entity_id"],
        "properties": {
          "text": {"type": "string"},
          "entity_id": {"type": "string"}
        }
      }
    }
  }
}`

// Variant is the entity linking task strategy. It caches the ranked
// candidates of the last prompted batch so parsing validates answers against
// exactly what the model was shown.
type Variant struct {
	kb    kb.KnowledgeBase
	descs kb.DescriptionSource
	cache map[*doc.Doc][][]kb.Candidate
}

// New creates an entity linking task. base is required; descs may be nil, in
// which case every candidate carries the placeholder description.
func New(cfg task.Config, base kb.KnowledgeBase, descs kb.DescriptionSource, opts ...task.Option) (*task.Task[Example], error) {
	v, err := NewVariant(base, descs)
	if err != nil {
		return nil, err
	}
	cfg.Kind = task.KindEntityLinker
	return task.New[Example](v, cfg, opts...)
}

// NewVariant creates the strategy on its own.
func NewVariant(base kb.KnowledgeBase, descs kb.DescriptionSource) (*Variant, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: knowledge base", task.ErrMissingComponent)
	}
	return &Variant{kb: base, descs: descs, cache: make(map[*doc.Doc][][]kb.Candidate)}, nil
}

func (v *Variant) Kind() task.Kind       { return task.KindEntityLinker }
func (v *Variant) TemplateKey() string   { return prompts.EntityLinkerKey }
func (v *Variant) ExampleSchema() []byte { return []byte(exampleSchema) }

func (v *Variant) ranker(s *task.State) *kb.Ranker {
	return kb.NewRanker(v.kb, v.descs, s.Config.TopN, s.Logger)
}

// Preprocess ranks candidates for every mention in docs with one lookup.
func (v *Variant) Preprocess(ctx context.Context, s *task.State, docs []*doc.Doc) ([]*doc.Doc, error) {
	var mentions []string
	for _, d := range docs {
		for _, ent := range d.Ents {
			mentions = append(mentions, d.SpanText(ent))
		}
	}
	ranked, err := v.ranker(s).Rank(ctx, mentions)
	if err != nil {
		return nil, err
	}

	v.cache = make(map[*doc.Doc][][]kb.Candidate, len(docs))
	offset := 0
	for _, d := range docs {
		n := len(d.Ents)
		v.cache[d] = ranked[offset : offset+n]
		offset += n
	}
	return docs, nil
}

// RenderContext supplies the marked text, the mentions with their candidates
// and the NIL id.
func (v *Variant) RenderContext(s *task.State, d *doc.Doc) (map[string]any, error) {
	cands, ok := v.cache[d]
	if !ok || len(cands) != len(d.Ents) {
		return nil, errNotPrepared
	}
	mentions := make([]map[string]any, len(d.Ents))
	for i, ent := range d.Ents {
		items := make([]map[string]any, len(cands[i]))
		for j, c := range cands[i] {
			items[j] = map[string]any{"id": c.ID, "description": c.Description}
		}
		mentions[i] = map[string]any{
			"index":      i,
			"text":       d.SpanText(ent),
			"candidates": items,
		}
	}
	return map[string]any{
		"mentions":    mentions,
		"text_marked": MarkMentions(d),
		"nil_id":      kb.NIL,
	}, nil
}

// Parse writes the chosen entity id of every mention to its KBID.
func (v *Variant) Parse(ctx context.Context, s *task.State, d *doc.Doc, response string) error {
	cands, ok := v.cache[d]
	if !ok || len(cands) != len(d.Ents) {
		var err error
		cands, err = v.rank(ctx, s, d)
		if err != nil {
			return err
		}
	}

	answers := ParseAnswers(response)
	for i := range d.Ents {
		id, ok := answers[i]
		if !ok {
			d.Ents[i].KBID = kb.NIL
			continue
		}
		if !isCandidate(cands[i], id) {
			s.Logger.Debug("model chose an entity outside the candidate list",
				"mention", d.SpanText(d.Ents[i]), "entity_id", id)
			id = kb.NIL
		}
		d.Ents[i].KBID = id
	}
	return nil
}

func (v *Variant) rank(ctx context.Context, s *task.State, d *doc.Doc) ([][]kb.Candidate, error) {
	mentions := make([]string, len(d.Ents))
	for i, ent := range d.Ents {
		mentions[i] = d.SpanText(ent)
	}
	return v.ranker(s).Rank(ctx, mentions)
}

// ExampleFrom turns the reference entities and their KB ids into mentions.
// Entities without an id are linked to NIL.
func (v *Variant) ExampleFrom(s *task.State, eg doc.Example) (Example, error) {
	ref := eg.Reference
	mentions := make([]Mention, 0, len(ref.Ents))
	for _, ent := range ref.Ents {
		id := ent.KBID
		if id == "" {
			id = kb.NIL
		}
		mentions = append(mentions, Mention{Text: ref.SpanText(ent), EntityID: id})
	}
	return Example{Text: ref.Text(), Mentions: mentions}, nil
}

func isCandidate(cands []kb.Candidate, id string) bool {
	if id == kb.NIL {
		return true
	}
	for _, c := range cands {
		if c.ID == id {
			return true
		}
	}
	return false
}

var errNotPrepared = errors.New("document has no ranked candidates; Preprocess was not run")

var answerLine = regexp.MustCompile(`^\s*(?:-{2,}\s*)?(\d+)\s*[.:)]\s*(\S+)`)

// ParseAnswers reads "N. ENTITY_ID" lines (also "--- N: ENTITY_ID") into a
// map from zero-based mention index to id. The first answer per index wins.
func ParseAnswers(response string) map[int]string {
	out := make(map[int]string)
	for _, line := range strings.Split(response, "\n") {
		m := answerLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		id := strings.Trim(m[2], "*`'\".,;")
		if id == "" {
			continue
		}
		if _, seen := out[n-1]; !seen {
			out[n-1] = id
		}
	}
	return out
}

// MarkMentions returns the document text with every mention wrapped in '*'.
// Mentions overlapping an earlier one, or outside the text, are left unmarked.
func MarkMentions(d *doc.Doc) string {
	text := d.Text()
	var b strings.Builder
	last := 0
	for _, ent := range d.Ents {
		if ent.Start < last || !ent.Within(len(text)) {
			continue
		}
		b.WriteString(text[last:ent.Start])
		b.WriteByte('*')
		b.WriteString(text[ent.Start:ent.End])
		b.WriteByte('*')
		last = ent.End
	}
	b.WriteString(text[last:])
	return b.String()
}
