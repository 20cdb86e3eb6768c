// Package index stores (vector, chunk) entries and serves deterministic
// nearest-neighbour queries. Three backends share one contract: an
// in-memory store, an embedded chromem-go database and a pgvector table.
package index

import (
	"context"
	"errors"

	"document-qa/internal/models"
)

// ErrModelMismatch is returned when a persisted index was built with a
// different embedding model than the one now configured. Mixing vector
// spaces silently would corrupt retrieval; the corpus must be
// re-ingested instead.
var ErrModelMismatch = errors.New("index: stored vectors come from a different embedding model")

// Entry is one indexed chunk with its embedding.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Hit is a search result ordered by similarity descending.
type Hit struct {
	Chunk      models.Chunk
	Similarity float64
}

// Index is the vector index contract. Upsert is idempotent by chunk ID.
// Search returns at most k hits ordered by similarity descending with
// ties broken by insertion order; an empty index yields an empty result,
// not an error. Reads may run concurrently; writes are mutually
// exclusive with each other.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Delete(ctx context.Context, chunkIDs ...string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
