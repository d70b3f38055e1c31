package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Somekindofa/research-paper-rag/pkg/chunker"
)

// ErrUnavailable marks vector store connectivity failures, which are terminal
// for a single request.
var ErrUnavailable = errors.New("vector store unavailable")

// SearchResult is a retrieved chunk with its stored embedding and cosine
// similarity to the query vector.
type SearchResult struct {
	Chunk     chunker.Chunk
	Embedding []float32
	Score     float64
}

// PGVectorStore persists chunk embeddings in pgvector.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
	logger    *slog.Logger
}

// The underlying store enforces a maximum item count per write; we stay well
// under it and split larger adds into sequential batches.
const safeBatchSize = 1000

const batchMaxRetries = 3

// isValidTableName validates that a table name contains only safe characters
// to prevent SQL injection attacks
func isValidTableName(name string) bool {
	// Only allow alphanumeric characters and underscores
	// Table names must start with a letter or underscore and be between 1-63 chars (PostgreSQL limit)
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

// NewPGVectorStore creates a new PGVector store
func NewPGVectorStore(pool *pgxpool.Pool, tableName string) (*PGVectorStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long")
	}
	return &PGVectorStore{
		pool:      pool,
		tableName: tableName,
		logger:    slog.Default(),
	}, nil
}

// BatchError reports a failed write batch by chunk range. Batches committed
// before the failure stay committed.
type BatchError struct {
	Start, End int
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("failed to add chunks %d-%d: %v", e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// AddChunks inserts chunks with their embeddings, splitting into batches no
// larger than the safe batch size. Each batch is retried independently before
// surfacing a BatchError for that batch only.
func (vs *PGVectorStore) AddChunks(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	added := 0
	for _, r := range batchRanges(len(chunks), safeBatchSize) {
		if err := vs.addBatch(ctx, chunks[r[0]:r[1]], vectors[r[0]:r[1]]); err != nil {
			return added, &BatchError{Start: r[0], End: r[1], Err: err}
		}
		added += r[1] - r[0]
		vs.logger.Info("Added chunk batch", "from", r[0], "to", r[1], "total", len(chunks))
	}

	return added, nil
}

// batchRanges splits [0,n) into consecutive [start,end) ranges of at most
// size elements.
func batchRanges(n, size int) [][2]int {
	var ranges [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

func (vs *PGVectorStore) addBatch(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`, pgx.Identifier{vs.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", chunk.ID, err)
		}
		batch.Queue(query, chunk.ID, chunk.Content, metadataJSON, pgvector.NewVector(vectors[i]))
	}

	var lastErr error
	for attempt := 0; attempt < batchMaxRetries; attempt++ {
		if attempt > 0 {
			vs.logger.Warn("Retrying batch insert", "attempt", attempt+1, "last_error", lastErr)
			time.Sleep(time.Second * time.Duration(attempt))
		}

		br := vs.pool.SendBatch(ctx, batch)
		lastErr = drainBatch(br, len(chunks))
		br.Close()

		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("batch insert failed after %d retries: %w", batchMaxRetries, lastErr)
}

func drainBatch(br pgx.BatchResults, n int) error {
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// SimilaritySearch returns the k nearest chunks by cosine similarity along
// with their stored embeddings, so callers can run MMR without a second
// round trip.
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, k int) ([]SearchResult, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata, embedding, 1 - (embedding <=> $1) as similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgx.Identifier{vs.tableName}.Sanitize())

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search failed: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			res          SearchResult
			metadataJSON []byte
			embedding    pgvector.Vector
		)
		if err := rows.Scan(&res.Chunk.ID, &res.Chunk.Content, &metadataJSON, &embedding, &res.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &res.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		res.Embedding = embedding.Slice()
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %v", ErrUnavailable, err)
	}

	return results, nil
}

// Count returns the total number of stored chunks.
func (vs *PGVectorStore) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgx.Identifier{vs.tableName}.Sanitize())

	var count int
	if err := vs.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count failed: %v", ErrUnavailable, err)
	}
	return count, nil
}

// DeleteByDocID removes all chunks belonging to a document. Used when a file's
// content checksum changed and the document is re-indexed.
func (vs *PGVectorStore) DeleteByDocID(ctx context.Context, docID string) (int, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE metadata->>'doc_id' = $1
	`, pgx.Identifier{vs.tableName}.Sanitize())

	result, err := vs.pool.Exec(ctx, query, docID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for doc %s: %w", docID, err)
	}
	return int(result.RowsAffected()), nil
}
