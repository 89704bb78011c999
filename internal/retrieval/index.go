package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/uemahub/sabia/internal/log"
)

// querier is the slice of *pgxpool.Pool the index needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Passage is one indexed chunk of a source document.
type Passage struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Embedding  []float32
	Similarity float64
}

// searchSQL orders by cosine distance and filters on the source document,
// so one tool can never surface another document's chunks.
const searchSQL = `SELECT id, content, metadata, embedding, 1 - (embedding <=> $1) AS similarity
	FROM passages
	WHERE document = $2
	ORDER BY embedding <=> $1
	LIMIT $3`

// Index is a read-only client for the passages table.
//
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	db     querier
	logger log.Logger
}

// NewIndex creates an Index on top of an existing connection pool.
func NewIndex(db querier, logger log.Logger) *Index {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Index{db: db, logger: logger}
}

// Search returns the limit nearest passages of document to vec, most
// similar first. Embeddings are returned so callers can re-rank.
func (ix *Index) Search(ctx context.Context, vec []float32, document string, limit int) ([]Passage, error) {
	rows, err := ix.db.Query(ctx, searchSQL, pgvector.NewVector(vec), document, limit)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var (
			p         Passage
			embedding pgvector.Vector
			metadata  []byte
		)
		if err := rows.Scan(&p.ID, &p.Content, &metadata, &embedding, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		p.Embedding = embedding.Slice()
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				ix.logger.Warn("failed to parse passage metadata", "passage_id", p.ID, "error", err)
			}
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passages: %w", err)
	}

	return passages, nil
}
