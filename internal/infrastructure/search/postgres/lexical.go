package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
)

// LexicalSearcher runs keyword retrieval over the chunks table with Postgres
// full-text search. Scores are ts_rank_cd values and stay retriever-native;
// normalization happens in the fusion layer.
type LexicalSearcher struct {
	db *sql.DB
}

func NewLexicalSearcher(db *sql.DB) *LexicalSearcher {
	return &LexicalSearcher{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *LexicalSearcher) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	source TEXT NOT NULL,
	content TEXT NOT NULL,
	content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_tenant ON chunks(tenant_id);
CREATE INDEX IF NOT EXISTS idx_chunks_tsv ON chunks USING GIN(content_tsv);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *LexicalSearcher) Search(
	ctx context.Context,
	query string,
	topK int,
	tenantID string,
) ([]domain.RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,
	source,
	content,
	ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) AS rank,
	ts_headline('english', content, plainto_tsquery('english', $1),
		'StartSel=<mark>, StopSel=</mark>, MaxFragments=2') AS headline
FROM chunks
WHERE tenant_id = $2
	AND content_tsv @@ plainto_tsquery('english', $1)
ORDER BY rank DESC
LIMIT $3
`, query, tenantID, topK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "lexical search", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var r domain.RetrievalResult
		if err := rows.Scan(&r.DocumentID, &r.Source, &r.Text, &r.Score, &r.HighlightedText); err != nil {
			return nil, fmt.Errorf("scan lexical row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "lexical search", err)
	}
	return results, nil
}
