package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/models"
)

func entry(id string, vec ...float32) Entry {
	return Entry{
		Chunk:  models.Chunk{ChunkID: id, SourceFilename: id + ".pdf", Text: "text of " + id, PageNumber: 1},
		Vector: vec,
	}
}

func TestMemory_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")

	require.NoError(t, m.Upsert(ctx, []Entry{
		entry("far", 0, 1),
		entry("near", 1, 0.1),
		entry("exact", 1, 0),
	}))

	hits, err := m.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "exact", hits[0].Chunk.ChunkID)
	assert.Equal(t, "near", hits[1].Chunk.ChunkID)
	assert.Equal(t, "far", hits[2].Chunk.ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestMemory_TiesBrokenByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")

	// Identical vectors, identical similarity: insertion order decides.
	require.NoError(t, m.Upsert(ctx, []Entry{
		entry("first", 1, 0),
		entry("second", 1, 0),
		entry("third", 1, 0),
	}))

	hits, err := m.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "first", hits[0].Chunk.ChunkID)
	assert.Equal(t, "second", hits[1].Chunk.ChunkID)
	assert.Equal(t, "third", hits[2].Chunk.ChunkID)
}

func TestMemory_SearchDeterministic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")

	var entries []Entry
	for i := 0; i < 50; i++ {
		entries = append(entries, entry(fmt.Sprintf("c%d", i), float32(i%7), float32(i%3), 1))
	}
	require.NoError(t, m.Upsert(ctx, entries))

	first, err := m.Search(ctx, []float32{0.3, 0.7, 0.5}, 20)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := m.Search(ctx, []float32{0.3, 0.7, 0.5}, 20)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMemory_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")

	batch := []Entry{entry("a", 1, 0), entry("b", 0, 1)}
	require.NoError(t, m.Upsert(ctx, batch))
	require.NoError(t, m.Upsert(ctx, batch))

	count, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Replacement keeps the original insertion position.
	require.NoError(t, m.Upsert(ctx, []Entry{entry("a", 0, 1)}))
	hits, err := m.Search(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", hits[0].Chunk.ChunkID)
}

func TestMemory_EmptySearch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")

	hits, err := m.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemory_KLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")
	require.NoError(t, m.Upsert(ctx, []Entry{entry("only", 1, 0)}))

	hits, err := m.Search(ctx, []float32{1, 0}, 20)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemory_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")
	require.NoError(t, m.Upsert(ctx, []Entry{entry("a", 1, 0), entry("b", 0, 1), entry("c", 1, 1)}))

	require.NoError(t, m.Delete(ctx, "b"))
	count, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := m.Search(ctx, []float32{0, 1}, 3)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "b", h.Chunk.ChunkID)
	}

	require.NoError(t, m.Clear(ctx))
	count, err = m.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemory_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test-model")
	require.NoError(t, m.Upsert(ctx, []Entry{entry("a", 1, 0), entry("b", 0, 1)}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := m.Search(ctx, []float32{1, 1}, 2)
			assert.NoError(t, err)
			assert.Len(t, hits, 2)
		}()
	}
	wg.Wait()
}
