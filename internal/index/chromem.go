package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

// Chromem persists the index in an embedded chromem-go database. A
// sidecar meta file records the embedding model version so that opening
// an index built by a different model fails with ErrModelMismatch
// instead of silently mixing vector spaces.
type Chromem struct {
	db           *chromem.DB
	collection   *chromem.Collection
	name         string
	path         string
	modelVersion string

	writeMu sync.Mutex
	seq     int64
}

type chromemMeta struct {
	ModelVersion string `json:"model_version"`
}

// NewChromem opens (or creates) a persistent chromem index at path.
func NewChromem(path, collectionName, modelVersion string) (*Chromem, error) {
	if err := checkMeta(path, modelVersion); err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}
	collection, err := db.GetOrCreateCollection(collectionName, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, fmt.Errorf("create/get collection: %w", err)
	}

	c := &Chromem{
		db:           db,
		collection:   collection,
		name:         collectionName,
		path:         path,
		modelVersion: modelVersion,
		seq:          int64(collection.Count()),
	}
	return c, nil
}

func checkMeta(path, modelVersion string) error {
	metaPath := filepath.Join(path, "meta.json")
	data, err := os.ReadFile(metaPath)
	if err == nil {
		var meta chromemMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("read index meta: %w", err)
		}
		if meta.ModelVersion != modelVersion {
			return fmt.Errorf("%w: stored %q, configured %q",
				ErrModelMismatch, meta.ModelVersion, modelVersion)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	data, err = json.Marshal(chromemMeta{ModelVersion: modelVersion})
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, data, 0o644)
}

func (c *Chromem) Upsert(ctx context.Context, entries []Entry) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	docs := make([]chromem.Document, 0, len(entries))
	for _, e := range entries {
		// A replaced chunk keeps the sequence it was first inserted
		// with, so tie-break order matches the memory backend.
		seq := c.seq + 1
		if existing, err := c.collection.GetByID(ctx, e.Chunk.ChunkID); err == nil {
			seq = parseSeq(existing.Metadata)
		} else {
			c.seq++
		}
		docs = append(docs, chromem.Document{
			ID:        e.Chunk.ChunkID,
			Content:   e.Chunk.Text,
			Embedding: e.Vector,
			Metadata: map[string]string{
				"filename":    e.Chunk.SourceFilename,
				"page_number": strconv.Itoa(e.Chunk.PageNumber),
				"chunk_index": strconv.Itoa(e.Chunk.ChunkIndex),
				"token_count": strconv.Itoa(e.Chunk.TokenCount),
				"model":       c.modelVersion,
				"seq":         strconv.FormatInt(seq, 10),
			},
		})
	}
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (c *Chromem) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	count := c.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := c.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query by similarity: %w", err)
	}

	type seqHit struct {
		Hit
		seq int64
	}
	hits := make([]seqHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, seqHit{Hit: resultToHit(res), seq: parseSeq(res.Metadata)})
	}
	// chromem does not define an order among equal similarities; re-sort
	// with insertion sequence as the tie-breaker for determinism.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].seq < hits[j].seq
	})

	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = h.Hit
	}
	return out, nil
}

func (c *Chromem) Delete(ctx context.Context, chunkIDs ...string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if len(chunkIDs) == 0 {
		return nil
	}
	return c.collection.Delete(ctx, nil, nil, chunkIDs...)
}

// Clear drops and recreates the collection for a full re-ingestion.
func (c *Chromem) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.db.DeleteCollection(c.name); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	collection, err := c.db.GetOrCreateCollection(c.name, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	c.collection = collection
	c.seq = 0
	log.Debug().Str("collection", c.name).Msg("collection cleared")
	return nil
}

func (c *Chromem) Count(ctx context.Context) (int, error) {
	return c.collection.Count(), nil
}

func resultToHit(res chromem.Result) Hit {
	page, _ := strconv.Atoi(res.Metadata["page_number"])
	chunkIndex, _ := strconv.Atoi(res.Metadata["chunk_index"])
	tokenCount, _ := strconv.Atoi(res.Metadata["token_count"])
	return Hit{
		Chunk: models.Chunk{
			ChunkID:        res.ID,
			SourceFilename: res.Metadata["filename"],
			Text:           res.Content,
			PageNumber:     page,
			ChunkIndex:     chunkIndex,
			TokenCount:     tokenCount,
		},
		Similarity: float64(res.Similarity),
	}
}

func parseSeq(metadata map[string]string) int64 {
	seq, _ := strconv.ParseInt(metadata["seq"], 10, 64)
	return seq
}
