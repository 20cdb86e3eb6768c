// Package answer assembles the grounding context, invokes the
// generation collaborator and attaches citations to the output.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/llmservice"
	"document-qa/internal/models"
)

// ErrGenerationFailed marks a failed or unavailable generation
// collaborator. Callers must be able to tell this apart from the valid
// "no relevant information" response: the former calls for a retry, the
// latter for a rephrase.
var ErrGenerationFailed = errors.New("answer: generation failed")

// Response is a completed answer. Grounded is false for the fixed
// no-relevant-information response, which carries no citations.
type Response struct {
	Answer    string
	Citations []models.Citation
	Grounded  bool
}

// Assembler builds prompts from ranked chunks and delegates to a
// Generator.
type Assembler struct {
	generator llmservice.Generator
}

func NewAssembler(generator llmservice.Generator) *Assembler {
	return &Assembler{generator: generator}
}

// Answer produces a cited answer from the ranked chunks. An empty chunk
// list returns the fixed no-relevant-information response locally; the
// generator is never invoked for it. Citations are the (filename, page)
// pairs of all supplied chunks, deduplicated in rank order, so the
// citation set is deterministic with respect to the input.
func (a *Assembler) Answer(ctx context.Context, query string, ranked []models.ScoredChunk) (Response, error) {
	if len(ranked) == 0 {
		return Response{Answer: models.NoRelevantInformation}, nil
	}

	contextBlock := buildContext(ranked)
	userPrompt := fmt.Sprintf(models.GroundedUserPromptTemplate, contextBlock, query)

	text, err := a.generator.Generate(ctx, models.GroundedSystemPrompt, userPrompt)
	if err != nil {
		log.Error().Err(err).Msg("generation collaborator failed")
		// Both identities stay inspectable: callers match
		// ErrGenerationFailed broadly and llmservice.ErrTimeout to
		// suggest a retry.
		return Response{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	return Response{
		Answer:    text,
		Citations: citationsFor(ranked),
		Grounded:  true,
	}, nil
}

// buildContext tags each chunk with its source so the model can
// attribute statements to filenames.
func buildContext(ranked []models.ScoredChunk) string {
	parts := make([]string, 0, len(ranked))
	for i, sc := range ranked {
		parts = append(parts, fmt.Sprintf("[Source %d: %s (page %d)]\n%s",
			i+1, sc.Chunk.SourceFilename, sc.Chunk.PageNumber, sc.Chunk.Text))
	}
	return strings.Join(parts, models.ContextSeparator)
}

// citationsFor attaches every supplied chunk's provenance. One chunk may
// back several statements, so the conservative policy is to surface all
// of them rather than parse attribution out of the generated text.
func citationsFor(ranked []models.ScoredChunk) []models.Citation {
	seen := make(map[models.Citation]bool, len(ranked))
	citations := make([]models.Citation, 0, len(ranked))
	for _, sc := range ranked {
		c := models.Citation{Filename: sc.Chunk.SourceFilename, PageNumber: sc.Chunk.PageNumber}
		if seen[c] {
			continue
		}
		seen[c] = true
		citations = append(citations, c)
	}
	return citations
}
