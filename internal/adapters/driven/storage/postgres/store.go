// Package postgres implements the vector and document store ports on
// PostgreSQL with the pgvector extension: embeddings live in a
// VECTOR(dim) column ranked by cosine distance, and tsvector full-text
// search serves the sparse leg of hybrid search.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Hybrid fusion weighting, matching the SQLite backend.
const (
	vectorWeight = 0.7
	textWeight   = 0.3
)

// tablePattern guards the configured table name, which is interpolated
// into DDL and queries.
var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// identifierPattern guards metadata filter field names.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds the minimum configuration surface for the backend: a
// connection string, a table name, and the embedding dimension.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Table is the chunk table name (default "chunks").
	Table string

	// EmbeddingDim is the VECTOR column dimension (required).
	EmbeddingDim int
}

// Store is a pgvector-backed storage providing the vector store and
// document store views over one table.
type Store struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// NewStore connects to PostgreSQL and ensures the schema exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = "chunks"
	}
	if !tablePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: bad table name %q", domain.ErrInvalidInput, cfg.Table)
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension is required", domain.ErrInvalidInput)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &Store{pool: pool, table: cfg.Table, dim: cfg.EmbeddingDim}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// VectorStore returns a VectorStore interface backed by this store.
func (s *Store) VectorStore() driven.VectorStore {
	return &vectorStore{store: s}
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ensureSchema idempotently creates the extension, table, and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding VECTOR(%d),
			text TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'
		)`, s.table, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_file_id ON %s ((metadata->>'file_id'))`,
			s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_fts ON %s
			USING GIN (to_tsvector('simple', text))`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// vectorLiteral renders an embedding as a pgvector input literal.
func vectorLiteral(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// tsQuery renders normalised tokens as an OR to_tsquery expression.
func tsQuery(tokens []string) string {
	return strings.Join(tokens, " | ")
}

// condition accumulates a WHERE clause with numbered placeholders.
type condition struct {
	clauses []string
	args    []any
}

func (c *condition) add(clause string, args ...any) {
	// Rewrite $N relative placeholders to absolute positions.
	base := len(c.args)
	for i := range args {
		clause = strings.ReplaceAll(clause,
			fmt.Sprintf("$%d", i+1), fmt.Sprintf("$%d", base+i+1))
	}
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c *condition) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// scopeFilterCondition builds the shared scope + metadata filter
// predicate applied before ranking in both query modes.
func scopeFilterCondition(scope []string, filters []domain.MetadataFilter) (*condition, error) {
	cond := &condition{}
	if len(scope) > 0 {
		cond.add("id = ANY($1)", scope)
	}
	for _, f := range filters {
		if !identifierPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("%w: bad filter field %q", domain.ErrInvalidInput, f.Field)
		}
		if len(f.Values) == 0 {
			continue
		}
		cond.add(fmt.Sprintf("metadata->>'%s' = ANY($1)", f.Field), f.Values)
	}
	return cond, nil
}

// writeError normalises pgx exec failures into write errors.
func writeError(op string, err error) error {
	return &domain.StorageWriteError{Op: op, Err: err}
}
