package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/index"
	"document-qa/internal/models"
)

// fakeEmbedder returns a fixed vector per known text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) ModelVersion() string { return "fake-embedder" }

// fakeReranker scores passages from a fixed table and counts calls.
type fakeReranker struct {
	scores map[string]float64
	calls  int
	err    error
}

func (f *fakeReranker) Score(ctx context.Context, query, passage string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.scores[passage], nil
}

func (f *fakeReranker) ModelVersion() string { return "fake-reranker" }

func seedIndex(t *testing.T, entries ...index.Entry) *index.Memory {
	t.Helper()
	m := index.NewMemory("fake-embedder")
	require.NoError(t, m.Upsert(context.Background(), entries))
	return m
}

func chunkEntry(id, text string, vec ...float32) index.Entry {
	return index.Entry{
		Chunk:  models.Chunk{ChunkID: id, SourceFilename: id + ".pdf", Text: text, PageNumber: 1},
		Vector: vec,
	}
}

func TestRetrieve_TwoStage(t *testing.T) {
	// Stage 1 favours "close" by similarity, but the reranker scores
	// "relevant" higher; Stage 2's ordering must win.
	idx := seedIndex(t,
		chunkEntry("close", "near in vector space", 1, 0, 0),
		chunkEntry("relevant", "actually answers the query", 0.9, 0.1, 0),
	)
	rr := &fakeReranker{scores: map[string]float64{
		"near in vector space":       1.0,
		"actually answers the query": 9.0,
	}}
	p := NewPipeline(&fakeEmbedder{}, idx, rr, Options{TopKSearch: 20, TopKRerank: 5})

	res, err := p.Retrieve(context.Background(), "the query")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswerable, res.Outcome)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "relevant", res.Chunks[0].Chunk.ChunkID)
	assert.Equal(t, "close", res.Chunks[1].Chunk.ChunkID)
	assert.Equal(t, 9.0, res.TopScore)
}

func TestRetrieve_EmptyIndexSkipsReranker(t *testing.T) {
	idx := index.NewMemory("fake-embedder")
	rr := &fakeReranker{}
	p := NewPipeline(&fakeEmbedder{}, idx, rr, Options{})

	res, err := p.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCandidates, res.Outcome)
	assert.Empty(t, res.Chunks)
	assert.Zero(t, rr.calls, "reranker must not be invoked without candidates")
}

func TestRetrieve_BelowThreshold(t *testing.T) {
	idx := seedIndex(t,
		chunkEntry("a", "irrelevant one", 1, 0, 0),
		chunkEntry("b", "irrelevant two", 0, 1, 0),
	)
	rr := &fakeReranker{scores: map[string]float64{
		"irrelevant one": -4.2,
		"irrelevant two": -6.0,
	}}
	p := NewPipeline(&fakeEmbedder{}, idx, rr, Options{TopKSearch: 20, TopKRerank: 5, MinRerankScore: 0})

	res, err := p.Retrieve(context.Background(), "unrelated query")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBelowThreshold, res.Outcome)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, -4.2, res.TopScore)
	assert.Equal(t, 2, rr.calls, "every candidate is scored exactly once")
}

func TestRetrieve_TiesKeepStageOneOrder(t *testing.T) {
	// Three candidates with equal rerank scores: the Stage-1 ranking
	// (similarity, then insertion order) must be preserved.
	idx := seedIndex(t,
		chunkEntry("s1-first", "passage a", 1, 0, 0),
		chunkEntry("s1-second", "passage b", 1, 0, 0),
		chunkEntry("s1-third", "passage c", 1, 0, 0),
	)
	rr := &fakeReranker{scores: map[string]float64{
		"passage a": 3.0,
		"passage b": 3.0,
		"passage c": 3.0,
	}}
	p := NewPipeline(&fakeEmbedder{}, idx, rr, Options{TopKSearch: 20, TopKRerank: 5})

	res, err := p.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)
	assert.Equal(t, "s1-first", res.Chunks[0].Chunk.ChunkID)
	assert.Equal(t, "s1-second", res.Chunks[1].Chunk.ChunkID)
	assert.Equal(t, "s1-third", res.Chunks[2].Chunk.ChunkID)
	for i, c := range res.Chunks {
		assert.Equal(t, i, c.Stage1Rank)
	}
}

func TestRetrieve_Deterministic(t *testing.T) {
	var entries []index.Entry
	scores := map[string]float64{}
	for i := 0; i < 30; i++ {
		text := fmt.Sprintf("passage %d", i)
		entries = append(entries, chunkEntry(fmt.Sprintf("c%d", i), text, float32(i%5), float32(i%3), 1))
		scores[text] = float64(i % 4)
	}
	idx := seedIndex(t, entries...)
	p := NewPipeline(&fakeEmbedder{}, idx, &fakeReranker{scores: scores},
		Options{TopKSearch: 20, TopKRerank: 5})

	first, err := p.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Retrieve(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieve_TopKRerankLimit(t *testing.T) {
	var entries []index.Entry
	scores := map[string]float64{}
	for i := 0; i < 10; i++ {
		text := fmt.Sprintf("passage %d", i)
		entries = append(entries, chunkEntry(fmt.Sprintf("c%d", i), text, 1, float32(i)/10))
		scores[text] = float64(i)
	}
	idx := seedIndex(t, entries...)
	p := NewPipeline(&fakeEmbedder{}, idx, &fakeReranker{scores: scores},
		Options{TopKSearch: 10, TopKRerank: 3})

	res, err := p.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)
	assert.Equal(t, "c9", res.Chunks[0].Chunk.ChunkID)
	assert.Equal(t, "c8", res.Chunks[1].Chunk.ChunkID)
	assert.Equal(t, "c7", res.Chunks[2].Chunk.ChunkID)
}

func TestRetrieve_CollaboratorErrors(t *testing.T) {
	t.Run("embedder failure propagates", func(t *testing.T) {
		p := NewPipeline(&fakeEmbedder{err: errors.New("embedder down")},
			index.NewMemory("fake-embedder"), &fakeReranker{}, Options{})
		_, err := p.Retrieve(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedder down")
	})

	t.Run("reranker failure propagates", func(t *testing.T) {
		idx := seedIndex(t, chunkEntry("a", "text", 1, 0, 0))
		p := NewPipeline(&fakeEmbedder{}, idx, &fakeReranker{err: errors.New("reranker down")}, Options{})
		_, err := p.Retrieve(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reranker down")
	})
}
