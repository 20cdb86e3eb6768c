package index

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

const pgVectorSize = 768

// chunkRow is the persisted form of an index entry in Postgres/pgvector.
type chunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ChunkID    string    `bun:"chunk_id,pk"`
	Content    string    `bun:"content,notnull"`
	Filename   string    `bun:"filename,notnull"`
	PageNumber int       `bun:"page_number,notnull"`
	ChunkIndex int       `bun:"chunk_index,notnull"`
	TokenCount int       `bun:"token_count,notnull"`
	Seq        int64     `bun:"seq,notnull"`
	Embedding  []float32 `bun:"embedding,notnull,type:vector(768)"`

	Distance float64 `bun:"distance,scanonly"`
}

type indexMeta struct {
	bun.BaseModel `bun:"table:index_meta,alias:m"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// Postgres stores the index in a pgvector-enabled database. Ordering on
// equal distances is pinned to insertion sequence, matching the memory
// backend's guarantees.
type Postgres struct {
	db           *bun.DB
	modelVersion string

	writeMu sync.Mutex
	seq     int64
}

// NewPostgres connects, creates the schema if missing and verifies the
// stored embedding-model version.
func NewPostgres(ctx context.Context, cfg *config.StoreConfig, modelVersion string) (*Postgres, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	p := &Postgres{db: db, modelVersion: modelVersion}
	if err := p.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) init(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if _, err := p.db.NewCreateTable().Model((*chunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	if _, err := p.db.NewCreateTable().Model((*indexMeta)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var meta indexMeta
	err := p.db.NewSelect().Model(&meta).Where("key = ?", "model_version").Scan(ctx)
	switch {
	case err == sql.ErrNoRows:
		meta = indexMeta{Key: "model_version", Value: p.modelVersion}
		if _, err := p.db.NewInsert().Model(&meta).Exec(ctx); err != nil {
			return fmt.Errorf("record model version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read model version: %w", err)
	case meta.Value != p.modelVersion:
		return fmt.Errorf("%w: stored %q, configured %q", ErrModelMismatch, meta.Value, p.modelVersion)
	}

	var maxSeq sql.NullInt64
	if err := p.db.NewSelect().Model((*chunkRow)(nil)).ColumnExpr("max(seq)").Scan(ctx, &maxSeq); err != nil {
		return fmt.Errorf("read max seq: %w", err)
	}
	p.seq = maxSeq.Int64
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Upsert(ctx context.Context, entries []Entry) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if len(entries) == 0 {
		return nil
	}

	rows := make([]chunkRow, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != pgVectorSize {
			return fmt.Errorf("index: vector size %d, want %d", len(e.Vector), pgVectorSize)
		}
		p.seq++
		rows = append(rows, chunkRow{
			ChunkID:    e.Chunk.ChunkID,
			Content:    e.Chunk.Text,
			Filename:   e.Chunk.SourceFilename,
			PageNumber: e.Chunk.PageNumber,
			ChunkIndex: e.Chunk.ChunkIndex,
			TokenCount: e.Chunk.TokenCount,
			Seq:        p.seq,
			Embedding:  e.Vector,
		})
	}

	_, err := p.db.NewInsert().
		Model(&rows).
		On("CONFLICT (chunk_id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("filename = EXCLUDED.filename").
		Set("page_number = EXCLUDED.page_number").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("token_count = EXCLUDED.token_count").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

func (p *Postgres) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	var rows []chunkRow
	err := p.db.NewSelect().
		Model(&rows).
		ColumnExpr("c.*").
		ColumnExpr("c.embedding <=> ? AS distance", vector).
		OrderExpr("distance ASC, seq ASC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, Hit{
			Chunk: models.Chunk{
				ChunkID:        row.ChunkID,
				SourceFilename: row.Filename,
				Text:           row.Content,
				PageNumber:     row.PageNumber,
				ChunkIndex:     row.ChunkIndex,
				TokenCount:     row.TokenCount,
			},
			// pgvector <=> is cosine distance in [0, 2].
			Similarity: 1 - row.Distance,
		})
	}
	return hits, nil
}

func (p *Postgres) Delete(ctx context.Context, chunkIDs ...string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := p.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("chunk_id IN (?)", bun.In(chunkIDs)).
		Exec(ctx)
	return err
}

func (p *Postgres) Clear(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.db.NewTruncateTable().Model((*chunkRow)(nil)).Exec(ctx); err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	p.seq = 0
	return nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	return p.db.NewSelect().Model((*chunkRow)(nil)).Count(ctx)
}
