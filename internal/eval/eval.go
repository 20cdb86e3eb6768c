// Package eval measures retrieval quality against a golden set of
// (query, expected source) pairs, reporting Recall@K and MRR so the
// threshold and top-k settings can be swept.
package eval

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"document-qa/internal/retrieval"
)

// GoldenCase pairs a query with a substring of the filename expected to
// rank among the top results. Substrings absorb corpus suffixes like
// "_2" in otherwise identical names.
type GoldenCase struct {
	Query        string `yaml:"query"`
	WantFilename string `yaml:"want_filename"`
}

// Metrics aggregates a golden-set run.
type Metrics struct {
	Cases   int
	Hits    int
	RecallK float64
	MRR     float64
}

// Retriever is the slice of the pipeline evaluation needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieval.Result, error)
}

// LoadGoldenSet reads golden cases from a YAML file.
func LoadGoldenSet(path string) ([]GoldenCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []GoldenCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse golden set: %w", err)
	}
	return cases, nil
}

// Run retrieves every golden query and scores where the expected source
// lands. A case counts as a hit when any returned chunk's filename
// contains the expected substring; MRR credits the reciprocal of the
// first matching rank.
func Run(ctx context.Context, r Retriever, cases []GoldenCase) (Metrics, error) {
	m := Metrics{Cases: len(cases)}
	if len(cases) == 0 {
		return m, nil
	}

	var reciprocalSum float64
	for _, c := range cases {
		res, err := r.Retrieve(ctx, c.Query)
		if err != nil {
			return Metrics{}, fmt.Errorf("retrieve %q: %w", c.Query, err)
		}

		rank := 0
		for i, sc := range res.Chunks {
			if strings.Contains(sc.Chunk.SourceFilename, c.WantFilename) {
				rank = i + 1
				break
			}
		}
		if rank > 0 {
			m.Hits++
			reciprocalSum += 1 / float64(rank)
		}
		log.Debug().
			Str("query", c.Query).
			Str("want", c.WantFilename).
			Int("rank", rank).
			Msg("golden case evaluated")
	}

	m.RecallK = float64(m.Hits) / float64(m.Cases)
	m.MRR = reciprocalSum / float64(m.Cases)
	return m, nil
}
