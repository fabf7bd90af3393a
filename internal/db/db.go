package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docrag/internal/config"
	"docrag/internal/models"
)

// VectorRecordRow mirrors store.VectorRecord for the Postgres backend.
// Chunk fields are denormalized so a search needs no join.
type VectorRecordRow struct {
	bun.BaseModel `bun:"table:vector_records,alias:vr"`
	ID            int64     `bun:"id,pk,autoincrement"`
	ChunkID       string    `bun:"chunk_id,notnull"`
	DocumentID    string    `bun:"document_id,notnull"`
	Content       string    `bun:"content,notnull"`
	HeadingPath   string    `bun:"heading_path"`
	TokenCount    int       `bun:"token_count,notnull"`
	SequenceIndex int       `bun:"sequence_index,notnull"`
	Filename      string    `bun:"filename"`
	Mimetype      string    `bun:"mimetype"`
	Oversized     bool      `bun:"oversized"`
	Embedding     []float32 `bun:"embedding,notnull"`
	// Similarity is only populated on search results.
	Similarity float64 `bun:"similarity,scanonly"`
}

// headingSep joins heading path segments into the flat column and
// splits them back out.
const headingSep = " > "

func newRow(chunk models.Chunk, embedding []float32) VectorRecordRow {
	return VectorRecordRow{
		ChunkID:       chunk.ID,
		DocumentID:    chunk.DocumentID,
		Content:       chunk.Text,
		HeadingPath:   strings.Join(chunk.HeadingPath, headingSep),
		TokenCount:    chunk.TokenCount,
		SequenceIndex: chunk.SequenceIndex,
		Filename:      chunk.Origin.Filename,
		Mimetype:      chunk.Origin.Mimetype,
		Oversized:     chunk.Oversized,
		Embedding:     embedding,
	}
}

// ToScoredChunk converts a search row back into the retrieval type, so
// both backends feed the same answer pipeline.
func (r VectorRecordRow) ToScoredChunk() models.ScoredChunk {
	chunk := models.Chunk{
		ID:            r.ChunkID,
		DocumentID:    r.DocumentID,
		Text:          r.Content,
		TokenCount:    r.TokenCount,
		SequenceIndex: r.SequenceIndex,
		Origin:        models.Origin{Filename: r.Filename, Mimetype: r.Mimetype},
		Oversized:     r.Oversized,
	}
	if r.HeadingPath != "" {
		chunk.HeadingPath = strings.Split(r.HeadingPath, headingSep)
	}
	return models.ScoredChunk{Chunk: chunk, Similarity: r.Similarity}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DBConfig) (*sql.DB, error) {
	dsn := cfg.DSN
	if !strings.Contains(dsn, "sslmode") {
		dsn += "?sslmode=disable"
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key))), nil
}

// createTableSQL renders the records DDL; the vector column width has
// to match the configured embedding dimension.
func createTableSQL(dimension int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vector_records (
	id BIGSERIAL PRIMARY KEY,
	chunk_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	content TEXT NOT NULL,
	heading_path TEXT,
	token_count BIGINT NOT NULL,
	sequence_index BIGINT NOT NULL,
	filename TEXT,
	mimetype TEXT,
	oversized BOOLEAN NOT NULL DEFAULT FALSE,
	embedding vector(%d) NOT NULL
)`, dimension)
}

func InitDB(ctx context.Context, db *bun.DB, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("init db: embedding dimension must be > 0, got %d", dimension)
	}
	_, err := db.ExecContext(ctx, createTableSQL(dimension))
	return err
}

// StoreRecords inserts one embedded batch inside a transaction, so the
// batch is atomic the same way a file-store segment is.
func StoreRecords(ctx context.Context, db *bun.DB, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]VectorRecordRow, len(chunks))
	for i, chunk := range chunks {
		rows[i] = newRow(chunk, embeddings[i])
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// SearchRecords ranks rows by cosine similarity; ties resolve by
// insertion order (id).
func SearchRecords(ctx context.Context, db *bun.DB, queryEmbedding []float32, limit int) ([]VectorRecordRow, error) {
	var rows []VectorRecordRow
	err := db.NewSelect().
		Model(&rows).
		ColumnExpr("vr.*").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", queryEmbedding).
		OrderExpr("embedding <=> ?, id ASC", queryEmbedding).
		Limit(limit).
		Scan(ctx)
	return rows, err
}

// drop table vector_records

func DropRecords(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*VectorRecordRow)(nil)).IfExists().Exec(ctx)
	return err
}
