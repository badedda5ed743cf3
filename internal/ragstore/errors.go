package ragstore

import "errors"

// Hard errors surfaced by the store. Unknown sessions, documents, and chunk
// identities are soft misses: they yield empty results, never an error.
var (
	// ErrInvalidNamespaceKey is returned when a namespace key contains
	// characters outside [A-Za-z0-9_].
	ErrInvalidNamespaceKey = errors.New("invalid namespace key")

	// ErrInvalidDimension is returned when a namespace dimension is not a
	// positive integer, or when an existing namespace is re-requested with a
	// different dimension.
	ErrInvalidDimension = errors.New("invalid namespace dimension")

	// ErrUnsafeIdentity is returned when the metadata table produces a
	// generated identity that cannot be reused as a vector index key.
	ErrUnsafeIdentity = errors.New("generated identity is not a safe integer")

	// ErrDuplicateChunk is returned when a chunk with the same
	// (session, document key, chunk index) already exists.
	ErrDuplicateChunk = errors.New("duplicate chunk")

	// ErrDimensionMismatch is returned when an embedding's width differs from
	// the namespace's fixed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
