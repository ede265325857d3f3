package task

import (
	"fmt"

	"github.com/jackzampolin/annotator/internal/doc"
)

// ShardMapper splits a document into shards that fit a model's context.
// The returned shards are ordered; a document that fits is a single shard.
type ShardMapper interface {
	Map(d *doc.Doc) ([]*doc.Doc, error)
}

// ShardReducer merges annotated shards back into the original document.
type ShardReducer interface {
	Reduce(d *doc.Doc, shards []*doc.Doc) (*doc.Doc, error)
}

// NoopMapper never splits: every document is its own single shard.
type NoopMapper struct{}

// Map returns d as the only shard.
func (NoopMapper) Map(d *doc.Doc) ([]*doc.Doc, error) {
	return []*doc.Doc{d}, nil
}

// NoopReducer accepts exactly one shard and copies its annotations onto d.
type NoopReducer struct{}

// Reduce copies the single shard's annotations onto d.
func (NoopReducer) Reduce(d *doc.Doc, shards []*doc.Doc) (*doc.Doc, error) {
	if len(shards) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrUnreducible, len(shards))
	}
	shard := shards[0]
	if shard == d {
		return d, nil
	}
	d.SetEnts(shard.Ents)
	for k, v := range shard.Fields {
		d.SetField(k, v)
	}
	return d, nil
}
