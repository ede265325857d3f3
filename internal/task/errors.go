package task

import "errors"

var (
	// ErrLengthMismatch is returned when responses do not pair 1:1 with documents.
	ErrLengthMismatch = errors.New("number of responses does not match number of documents")

	// ErrMissingComponent is returned when a required collaborator is nil.
	ErrMissingComponent = errors.New("missing required component")

	// ErrUnknownKind is returned for task kinds this module does not implement.
	ErrUnknownKind = errors.New("unknown task kind")

	// ErrUnlabeled is returned by label operations on tasks without labels.
	ErrUnlabeled = errors.New("task does not use labels")

	// ErrUnreducible is returned by NoopReducer for more than one shard.
	ErrUnreducible = errors.New("cannot reduce multiple shards without a reducer")
)
