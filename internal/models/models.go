package models

import "fmt"

// PageSpan maps a page number to the byte range of its text within the
// document's full extracted text.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

// Extracted is the output of text extraction for one document.
type Extracted struct {
	Text  string
	Pages []PageSpan
}

// Chunk is the unit of indexing and retrieval: a token-bounded window of
// one document's text.
type Chunk struct {
	ChunkID        string
	SourceFilename string
	Text           string
	PageNumber     int
	ChunkIndex     int
	TokenCount     int
}

// ChunkIDFor derives the stable chunk ID used for index upserts. IDs are
// deterministic so re-ingesting a document overwrites its prior entries.
func ChunkIDFor(filename string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", filename, chunkIndex)
}

// ScoredChunk is a chunk paired with a retrieval score. After Stage 1 the
// score is vector similarity; after Stage 2 it is the reranker score and
// Stage1Rank records the position the candidate held before reranking.
type ScoredChunk struct {
	Chunk      Chunk
	Score      float64
	Stage1Rank int
}

// Citation points at the source of a statement in a generated answer.
type Citation struct {
	Filename   string
	PageNumber int
}

// FailureRecord captures one document that failed during ingestion.
type FailureRecord struct {
	FilePath string
	Reason   string
}

// IngestionReport summarizes one ingestion run.
type IngestionReport struct {
	RunID         string
	Succeeded     int
	ChunksIndexed int
	Failed        []FailureRecord
}
