package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/safetydesk/regis/pkg/models"
)

// Postgres is a pgvector-backed PassageStore for deployments where the index
// should live in the database rather than a local artifact.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store connected to the given database URL.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: p}, nil
}

func (s *Postgres) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup.
func (s *Postgres) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS passages (
  id          BIGSERIAL PRIMARY KEY,
  source_id   TEXT NOT NULL,
  page        INT NOT NULL DEFAULT 0,
  chunk_index INT NOT NULL,
  content     TEXT NOT NULL,
  embedding   vector(%d) NOT NULL
);

CREATE TABLE IF NOT EXISTS index_meta (
  id       INT PRIMARY KEY CHECK (id = 1),
  built_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS passages_source_idx
  ON passages (source_id);

CREATE INDEX IF NOT EXISTS passages_embedding_idx
  ON passages USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// Ready reports whether a corpus snapshot has been published. The marker row
// is written inside the same transaction as the passages, so an aborted build
// never looks built.
func (s *Postgres) Ready(ctx context.Context) (bool, error) {
	var builtAt *time.Time
	err := s.pool.QueryRow(ctx, `SELECT built_at FROM index_meta WHERE id = 1`).Scan(&builtAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return builtAt != nil, nil
}

// Replace swaps the index contents for a new corpus snapshot in one
// transaction: queries either see the old snapshot or the new one.
func (s *Postgres) Replace(ctx context.Context, passages []models.Passage, vecs [][]float32) error {
	if len(passages) != len(vecs) {
		return fmt.Errorf("passage/vector count mismatch: %d vs %d", len(passages), len(vecs))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM passages`); err != nil {
		return err
	}

	const ins = `
		INSERT INTO passages (source_id, page, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)`
	for i, p := range passages {
		if _, err := tx.Exec(ctx, ins, p.SourceID, p.Page, p.ChunkIndex, p.Content, pgvector.NewVector(vecs[i])); err != nil {
			return err
		}
	}

	const mark = `
		INSERT INTO index_meta (id, built_at) VALUES (1, now())
		ON CONFLICT (id) DO UPDATE SET built_at = now()`
	if _, err := tx.Exec(ctx, mark); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Search is pure nearest-neighbor by cosine distance; no re-ranking.
func (s *Postgres) Search(ctx context.Context, queryVec []float32, k int) ([]models.ScoredPassage, error) {
	ready, err := s.Ready(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, ErrNotBuilt
	}

	const q = `
		SELECT source_id, page, chunk_index, content,
		       1 - (embedding <=> $1) AS score
		FROM passages
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredPassage
	for rows.Next() {
		var sp models.ScoredPassage
		if err := rows.Scan(&sp.Passage.SourceID, &sp.Passage.Page, &sp.Passage.ChunkIndex, &sp.Passage.Content, &sp.Score); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping checks the database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
