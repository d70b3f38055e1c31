package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDB wraps the database connection pool
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// EnsureVectorExtension ensures the pgvector extension is installed
func (db *PostgresDB) EnsureVectorExtension(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	return err
}

// CreateEmbeddingsTable creates the chunk embeddings table if it doesn't exist
func (db *PostgresDB) CreateEmbeddingsTable(ctx context.Context, tableName string, dimension int) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, tableName, dimension)

	_, err := db.Pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	// Create index for vector similarity search
	// HNSW and IVFFlat support up to 2000 dimensions.
	// If dimensions > 2000, we skip index creation and rely on exact search (slower but works).
	if dimension <= 2000 {
		indexQuery := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING hnsw (embedding vector_cosine_ops)
		`, tableName, tableName)

		_, err = db.Pool.Exec(ctx, indexQuery)
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", tableName, err)
		}
	}

	// doc_id lookups drive re-index cleanup and dedup checks
	docIdxQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_doc_id_idx
		ON %s ((metadata->>'doc_id'))
	`, tableName, tableName)
	if _, err := db.Pool.Exec(ctx, docIdxQuery); err != nil {
		return fmt.Errorf("failed to create doc_id index on %s: %w", tableName, err)
	}

	return nil
}

// CreateChecksumsTable creates the PDF checksum registry table
func (db *PostgresDB) CreateChecksumsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS pdf_checksums (
			path TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			indexed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := db.Pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create pdf_checksums table: %w", err)
	}
	return nil
}

// InitSchema creates all tables the RAG system needs.
func (db *PostgresDB) InitSchema(ctx context.Context, collectionName string, dimension int) error {
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	if err := db.CreateEmbeddingsTable(ctx, collectionName, dimension); err != nil {
		return err
	}
	if err := db.CreateChecksumsTable(ctx); err != nil {
		return err
	}
	return nil
}
