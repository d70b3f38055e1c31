package checksum

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one registry row: a file path with the checksum and document ID it
// was last successfully indexed under.
type Entry struct {
	Path     string
	Checksum string
	DocID    string
}

// Registry is the persisted path -> checksum map behind indexing idempotence.
// An entry exists only for documents whose chunks were successfully committed
// to the vector store.
type Registry interface {
	// Lookup returns the entry for a path, or ok=false if the path is unseen.
	Lookup(ctx context.Context, path string) (Entry, bool, error)

	// Put records a successfully indexed file, replacing any previous entry
	// for the same path.
	Put(ctx context.Context, entry Entry) error

	// Delete removes a path's entry.
	Delete(ctx context.Context, path string) error

	// Count returns the number of tracked files.
	Count(ctx context.Context) (int, error)
}

// PostgresRegistry stores checksums in the pdf_checksums table.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) Lookup(ctx context.Context, path string) (Entry, bool, error) {
	query := `SELECT path, checksum, doc_id FROM pdf_checksums WHERE path = $1`

	var e Entry
	err := r.pool.QueryRow(ctx, query, path).Scan(&e.Path, &e.Checksum, &e.DocID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to look up checksum for %s: %w", path, err)
	}
	return e, true, nil
}

func (r *PostgresRegistry) Put(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO pdf_checksums (path, checksum, doc_id, indexed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (path) DO UPDATE
		SET checksum = EXCLUDED.checksum, doc_id = EXCLUDED.doc_id, indexed_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, entry.Path, entry.Checksum, entry.DocID); err != nil {
		return fmt.Errorf("failed to record checksum for %s: %w", entry.Path, err)
	}
	return nil
}

func (r *PostgresRegistry) Delete(ctx context.Context, path string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM pdf_checksums WHERE path = $1`, path); err != nil {
		return fmt.Errorf("failed to delete checksum for %s: %w", path, err)
	}
	return nil
}

func (r *PostgresRegistry) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pdf_checksums`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count checksums: %w", err)
	}
	return count, nil
}

// MemoryRegistry is an in-memory Registry for tests and dry runs.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]Entry)}
}

func (r *MemoryRegistry) Lookup(ctx context.Context, path string) (Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[path]
	return e, ok, nil
}

func (r *MemoryRegistry) Put(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Path] = entry
	return nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, path)
	return nil
}

func (r *MemoryRegistry) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries), nil
}
