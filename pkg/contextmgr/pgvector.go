package contextmgr

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// table names are interpolated into DDL/DML, so they are validated strictly
var tableNameRe = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// PGVectorIndex is a pgvector-backed VectorIndex. One table holds the
// chunks of one workflow run; the run ID makes the name unique.
type PGVectorIndex struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewPGVectorIndex(ctx context.Context, pool *pgxpool.Pool, tableName string, dimension int) (*PGVectorIndex, error) {
	if !tableNameRe.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name %q", tableName)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d)
		)
	`, pgx.Identifier{tableName}.Sanitize(), dimension)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to create index table %s: %w", tableName, err)
	}

	return &PGVectorIndex{pool: pool, tableName: tableName}, nil
}

func (p *PGVectorIndex) Insert(ctx context.Context, docs []Doc) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (seq, content, embedding)
		VALUES ($1, $2, $3)
	`, pgx.Identifier{p.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, doc := range docs {
		batch.Queue(query, doc.Seq, doc.Content, pgvector.NewVector(doc.Embedding))
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

func (p *PGVectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	// seq ASC as secondary order keeps ties deterministic: earliest wins.
	query := fmt.Sprintf(`
		SELECT seq, content, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1, seq ASC
		LIMIT $2
	`, pgx.Identifier{p.tableName}.Sanitize())

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Doc.Seq, &m.Doc.Content, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// Drop removes the per-run table once the workflow is done.
func (p *PGVectorIndex) Drop(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{p.tableName}.Sanitize()))
	return err
}
