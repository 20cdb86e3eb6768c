// Package rag wires retrieval and answer assembly into the query-facing
// service.
package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"document-qa/internal/answer"
	"document-qa/internal/models"
	"document-qa/internal/retrieval"
)

// QueryResponse is the service-level result for one question.
type QueryResponse struct {
	Query     string
	Answer    string
	Citations []models.Citation
	Outcome   retrieval.Outcome
	TopScore  float64
}

// Service answers free-text questions over the indexed corpus.
type Service struct {
	pipeline  *retrieval.Pipeline
	assembler *answer.Assembler
}

func NewService(pipeline *retrieval.Pipeline, assembler *answer.Assembler) *Service {
	return &Service{pipeline: pipeline, assembler: assembler}
}

// Query runs retrieve-then-read. The no-candidates and below-threshold
// outcomes resolve locally to the fixed no-information response;
// collaborator failures propagate as errors so callers can distinguish
// "nothing relevant" from "the request could not be completed".
func (s *Service) Query(ctx context.Context, query string) (QueryResponse, error) {
	res, err := s.pipeline.Retrieve(ctx, query)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("retrieve: %w", err)
	}

	log.Debug().
		Str("query", query).
		Stringer("outcome", res.Outcome).
		Float64("top_score", res.TopScore).
		Int("chunks", len(res.Chunks)).
		Msg("retrieval finished")

	resp, err := s.assembler.Answer(ctx, query, res.Chunks)
	if err != nil {
		return QueryResponse{}, err
	}

	return QueryResponse{
		Query:     query,
		Answer:    resp.Answer,
		Citations: resp.Citations,
		Outcome:   res.Outcome,
		TopScore:  res.TopScore,
	}, nil
}
