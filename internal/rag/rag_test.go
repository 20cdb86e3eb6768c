package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/answer"
	"document-qa/internal/index"
	"document-qa/internal/models"
	"document-qa/internal/retrieval"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fakeEmbedder) ModelVersion() string { return "fake" }

type tableReranker struct {
	scores map[string]float64
	calls  int
}

func (r *tableReranker) Score(ctx context.Context, query, passage string) (float64, error) {
	r.calls++
	return r.scores[passage], nil
}

func (r *tableReranker) ModelVersion() string { return "fake-cross-encoder" }

type countingGenerator struct {
	answer string
	calls  int
}

func (g *countingGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	return g.answer, nil
}

func newService(t *testing.T, entries []index.Entry, scores map[string]float64, gen *countingGenerator, threshold float64) *Service {
	t.Helper()
	idx := index.NewMemory("fake")
	require.NoError(t, idx.Upsert(context.Background(), entries))
	pipeline := retrieval.NewPipeline(fakeEmbedder{}, idx, &tableReranker{scores: scores},
		retrieval.Options{TopKSearch: 20, TopKRerank: 5, MinRerankScore: threshold})
	return NewService(pipeline, answer.NewAssembler(gen))
}

func TestQuery_ConfidentMatchIsCited(t *testing.T) {
	entries := []index.Entry{{
		Chunk: models.Chunk{
			ChunkID:        "Refund_Policy.pdf_0",
			SourceFilename: "Refund_Policy.pdf",
			Text:           "Customers may request a refund within 30 days of purchase.",
			PageNumber:     2,
		},
		Vector: []float32{1, 0},
	}}
	gen := &countingGenerator{answer: "According to Refund_Policy.pdf, refunds are available for 30 days."}
	svc := newService(t, entries, map[string]float64{
		"Customers may request a refund within 30 days of purchase.": 8.5,
	}, gen, 0)

	resp, err := svc.Query(context.Background(), "refund policy")
	require.NoError(t, err)
	assert.Equal(t, retrieval.OutcomeAnswerable, resp.Outcome)
	assert.Equal(t, gen.answer, resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, models.Citation{Filename: "Refund_Policy.pdf", PageNumber: 2}, resp.Citations[0])
	assert.Equal(t, 1, gen.calls)
}

func TestQuery_IrrelevantQueryYieldsNoInformation(t *testing.T) {
	// The index still returns its nearest neighbours; the gate keeps
	// them out of the answer and the generator is never paid for.
	entries := []index.Entry{
		{Chunk: models.Chunk{ChunkID: "a", SourceFilename: "A.pdf", Text: "quarterly revenue grew", PageNumber: 1}, Vector: []float32{1, 0}},
		{Chunk: models.Chunk{ChunkID: "b", SourceFilename: "B.pdf", Text: "database schema design", PageNumber: 1}, Vector: []float32{0.9, 0.1}},
	}
	gen := &countingGenerator{answer: "should never be produced"}
	svc := newService(t, entries, map[string]float64{
		"quarterly revenue grew": -3.1,
		"database schema design": -5.7,
	}, gen, 0)

	resp, err := svc.Query(context.Background(), "how do penguins navigate")
	require.NoError(t, err)
	assert.Equal(t, retrieval.OutcomeBelowThreshold, resp.Outcome)
	assert.Equal(t, models.NoRelevantInformation, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Zero(t, gen.calls, "generation must be skipped below the threshold")
}

func TestQuery_EmptyIndexYieldsNoInformation(t *testing.T) {
	gen := &countingGenerator{}
	svc := newService(t, nil, nil, gen, 0)

	resp, err := svc.Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, retrieval.OutcomeNoCandidates, resp.Outcome)
	assert.Equal(t, models.NoRelevantInformation, resp.Answer)
	assert.Zero(t, gen.calls)
}
