// Package ingest drives extraction, chunking, embedding and indexing
// over a document set. Per-document failures are recorded and skipped;
// a bad file never aborts the batch.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"document-qa/internal/chunker"
	"document-qa/internal/embedding"
	"document-qa/internal/extract"
	"document-qa/internal/index"
	"document-qa/internal/models"
)

// ExtractFunc converts one file into text plus a page map. It defaults
// to extract.File and is injectable for tests.
type ExtractFunc func(path string) (models.Extracted, error)

// Pipeline ingests documents into a vector index.
type Pipeline struct {
	extract     ExtractFunc
	chunker     *chunker.Chunker
	embedder    embedding.Embedder
	index       index.Index
	concurrency int
	failureLog  string
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithExtractFunc overrides the extraction collaborator.
func WithExtractFunc(fn ExtractFunc) Option {
	return func(p *Pipeline) { p.extract = fn }
}

// WithConcurrency bounds the number of in-flight embedding calls per
// document.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithFailureLog appends failed files to the given path, one
// "filename: reason" line each, after the run.
func WithFailureLog(path string) Option {
	return func(p *Pipeline) { p.failureLog = path }
}

func NewPipeline(ch *chunker.Chunker, embedder embedding.Embedder, idx index.Index, opts ...Option) *Pipeline {
	p := &Pipeline{
		extract:     extract.File,
		chunker:     ch,
		embedder:    embedder,
		index:       idx,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes every path. Chunk IDs derive from the filename and
// chunk ordinal, so re-ingesting the same set overwrites rather than
// duplicates.
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (models.IngestionReport, error) {
	report := models.IngestionReport{RunID: uuid.NewString()}

	for _, path := range paths {
		n, err := p.ingestOne(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			log.Error().Err(err).Str("file", path).Msg("document failed, continuing")
			report.Failed = append(report.Failed, models.FailureRecord{
				FilePath: path,
				Reason:   err.Error(),
			})
			continue
		}
		report.Succeeded++
		report.ChunksIndexed += n
	}

	if p.failureLog != "" && len(report.Failed) > 0 {
		if err := appendFailures(p.failureLog, report.Failed); err != nil {
			log.Warn().Err(err).Str("path", p.failureLog).Msg("could not write failure log")
		}
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failed)).
		Int("chunks", report.ChunksIndexed).
		Msg("ingestion complete")
	return report, nil
}

// IngestDir ingests every supported file directly under dir, in sorted
// order for reproducible runs.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (models.IngestionReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return models.IngestionReport{}, fmt.Errorf("read corpus directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if extract.Supported(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	log.Info().Int("files", len(paths)).Str("dir", dir).Msg("corpus enumerated")
	return p.Ingest(ctx, paths)
}

func (p *Pipeline) ingestOne(ctx context.Context, path string) (int, error) {
	extracted, err := p.extract(path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return 0, fmt.Errorf("no text content")
	}

	filename := filepath.Base(path)
	chunks := p.chunker.Chunk(filename, extracted.Text, extracted.Pages)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("text too short")
	}

	entries := make([]index.Entry, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			vector, err := p.embedder.EmbedQuery(gctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunk.ChunkID, err)
			}
			entries[i] = index.Entry{Chunk: chunk, Vector: vector}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := p.index.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}
	log.Debug().Str("file", filename).Int("chunks", len(chunks)).Msg("document indexed")
	return len(chunks), nil
}

func appendFailures(path string, failed []models.FailureRecord) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, rec := range failed {
		if _, err := fmt.Fprintf(f, "%s: %s\n", rec.FilePath, rec.Reason); err != nil {
			return err
		}
	}
	return nil
}
