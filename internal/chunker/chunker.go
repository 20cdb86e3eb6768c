// Package chunker splits extracted document text into overlapping
// fixed-size token windows, the unit of indexing and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"unicode"

	"document-qa/internal/models"
)

// ErrOverlapTooLarge is returned when the configured overlap would make
// the window loop stall or run backwards.
var ErrOverlapTooLarge = errors.New("chunker: overlap must be smaller than window size")

// Chunker produces overlapping token windows from document text.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	minTokens     int
}

// token is a whitespace-delimited field with its byte range in the
// source text.
type token struct {
	start int
	end   int
}

// New validates the window parameters and returns a Chunker.
func New(maxTokens, overlapTokens, minTokens int) (*Chunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunker: window size must be positive, got %d", maxTokens)
	}
	if overlapTokens < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", overlapTokens)
	}
	if overlapTokens >= maxTokens {
		return nil, fmt.Errorf("%w: overlap %d, window %d", ErrOverlapTooLarge, overlapTokens, maxTokens)
	}
	if minTokens < 0 {
		minTokens = 0
	}
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		minTokens:     minTokens,
	}, nil
}

// Chunk splits text into windows of maxTokens tokens, each window
// starting overlapTokens tokens before the previous one ended. The final
// window may be shorter; if it falls below minTokens it is discarded.
// Page numbers are resolved from the window's starting byte offset via
// the page spans. Pure function: no side effects, deterministic output.
func (c *Chunker) Chunk(filename, text string, pages []models.PageSpan) []models.Chunk {
	toks := tokenize(text)
	if len(toks) < c.minTokens {
		return nil
	}

	step := c.maxTokens - c.overlapTokens
	var chunks []models.Chunk
	for i := 0; i < len(toks); i += step {
		end := i + c.maxTokens
		if end > len(toks) {
			end = len(toks)
		}
		n := end - i
		if n < c.minTokens {
			// Undersized tail, discard rather than emit truncated.
			break
		}
		startByte := toks[i].start
		endByte := toks[end-1].end
		chunks = append(chunks, models.Chunk{
			ChunkID:        models.ChunkIDFor(filename, len(chunks)),
			SourceFilename: filename,
			Text:           text[startByte:endByte],
			PageNumber:     pageFor(pages, startByte),
			ChunkIndex:     len(chunks),
			TokenCount:     n,
		})
		if end == len(toks) {
			break
		}
	}
	return chunks
}

// Tokens exposes the token stream for a text. Used by tests and by the
// overlap invariant checks in evaluation tooling.
func (c *Chunker) Tokens(text string) []string {
	toks := tokenize(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = text[t.start:t.end]
	}
	return out
}

func tokenize(text string) []token {
	var toks []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = append(toks, token{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, token{start: start, end: len(text)})
	}
	return toks
}

// pageFor returns the page whose span contains the byte offset. Spans are
// scanned in order, so when spans touch, the earliest page wins.
func pageFor(pages []models.PageSpan, offset int) int {
	for _, p := range pages {
		if offset >= p.Start && offset < p.End {
			return p.Page
		}
	}
	if len(pages) > 0 && offset >= pages[len(pages)-1].End {
		return pages[len(pages)-1].Page
	}
	return 1
}
