package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChromem(t *testing.T, dir, model string) *Chromem {
	t.Helper()
	c, err := NewChromem(dir, "test_chunks", model)
	require.NoError(t, err)
	return c
}

func TestChromem_ReplacementKeepsTieBreakOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t, t.TempDir(), "model-v1")

	// Identical vectors: ordering among them is down to insertion
	// sequence alone.
	require.NoError(t, c.Upsert(ctx, []Entry{
		entry("first", 1, 0),
		entry("second", 1, 0),
		entry("third", 1, 0),
	}))

	replaced := entry("second", 1, 0)
	replaced.Chunk.Text = "updated text of second"
	require.NoError(t, c.Upsert(ctx, []Entry{replaced}))

	hits, err := c.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "first", hits[0].Chunk.ChunkID)
	assert.Equal(t, "second", hits[1].Chunk.ChunkID,
		"a replaced chunk must keep its original insertion position")
	assert.Equal(t, "third", hits[2].Chunk.ChunkID)
	assert.Equal(t, "updated text of second", hits[1].Chunk.Text)

	count, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChromem_ModelMismatch(t *testing.T) {
	dir := t.TempDir()
	_ = newTestChromem(t, dir, "model-v1")

	_, err := NewChromem(dir, "test_chunks", "model-v2")
	require.ErrorIs(t, err, ErrModelMismatch)
}
