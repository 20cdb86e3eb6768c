// Package retrieval implements the two-stage retrieve-then-rerank
// pipeline. Stage 1 trades precision for recall with a cheap vector
// search over the whole corpus; Stage 2 re-scores the small candidate
// set with a cross-encoder. A score threshold gates the output so that
// irrelevant queries yield "no relevant information" instead of the k1
// nearest-but-useless neighbours Stage 1 always produces.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"document-qa/internal/embedding"
	"document-qa/internal/index"
	"document-qa/internal/models"
	"document-qa/internal/reranker"
)

// Outcome classifies a retrieval run. NoCandidates and BelowThreshold
// are valid business outcomes, not errors.
type Outcome int

const (
	// OutcomeAnswerable means confident candidates were found.
	OutcomeAnswerable Outcome = iota
	// OutcomeNoCandidates means the index returned nothing at all.
	OutcomeNoCandidates
	// OutcomeBelowThreshold means candidates existed but none scored
	// at or above the configured minimum.
	OutcomeBelowThreshold
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswerable:
		return "answerable"
	case OutcomeNoCandidates:
		return "no_candidates"
	case OutcomeBelowThreshold:
		return "below_threshold"
	default:
		return "unknown"
	}
}

// Options are the pipeline tunables; see config.RAGConfig.
type Options struct {
	TopKSearch     int
	TopKRerank     int
	MinRerankScore float64
}

// Result is the ordered output of one retrieval run. Chunks is empty
// unless Outcome is OutcomeAnswerable.
type Result struct {
	Outcome  Outcome
	Chunks   []models.ScoredChunk
	TopScore float64
}

// Pipeline wires the embedder, vector index and reranker together.
type Pipeline struct {
	embedder embedding.Embedder
	index    index.Index
	reranker reranker.Reranker
	opts     Options
}

func NewPipeline(embedder embedding.Embedder, idx index.Index, rr reranker.Reranker, opts Options) *Pipeline {
	if opts.TopKSearch <= 0 {
		opts.TopKSearch = 20
	}
	if opts.TopKRerank <= 0 {
		opts.TopKRerank = 5
	}
	return &Pipeline{embedder: embedder, index: idx, reranker: rr, opts: opts}
}

// Retrieve runs both stages. Stage 1 completes fully before Stage 2
// begins; the reranker is never invoked when Stage 1 comes back empty.
// For a fixed index state and query the returned sequence is identical
// on every call: the rerank sort is stable over Stage-1 rank, so equal
// scores keep their Stage-1 order.
func (p *Pipeline) Retrieve(ctx context.Context, query string) (Result, error) {
	vector, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := p.index.Search(ctx, vector, p.opts.TopKSearch)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		log.Debug().Str("query", query).Msg("no candidates from vector search")
		return Result{Outcome: OutcomeNoCandidates}, nil
	}

	candidates := make([]models.ScoredChunk, len(hits))
	for i, h := range hits {
		score, err := p.reranker.Score(ctx, query, h.Chunk.Text)
		if err != nil {
			return Result{}, fmt.Errorf("rerank candidate %s: %w", h.Chunk.ChunkID, err)
		}
		candidates[i] = models.ScoredChunk{Chunk: h.Chunk, Score: score, Stage1Rank: i}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	topScore := candidates[0].Score
	if topScore < p.opts.MinRerankScore {
		log.Debug().
			Str("query", query).
			Float64("top_score", topScore).
			Float64("threshold", p.opts.MinRerankScore).
			Msg("all candidates below threshold")
		return Result{Outcome: OutcomeBelowThreshold, TopScore: topScore}, nil
	}

	if len(candidates) > p.opts.TopKRerank {
		candidates = candidates[:p.opts.TopKRerank]
	}
	return Result{Outcome: OutcomeAnswerable, Chunks: candidates, TopScore: topScore}, nil
}
