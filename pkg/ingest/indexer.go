// Package ingest turns a folder of research-paper PDFs into deduplicated,
// chunked, embedded vector-store entries.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Somekindofa/research-paper-rag/pkg/checksum"
	"github.com/Somekindofa/research-paper-rag/pkg/chunker"
	"github.com/Somekindofa/research-paper-rag/pkg/embeddings"
	"github.com/Somekindofa/research-paper-rag/pkg/pdf"
)

// ChunkStore is the vector store surface the indexer writes to.
type ChunkStore interface {
	AddChunks(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) (int, error)
	DeleteByDocID(ctx context.Context, docID string) (int, error)
	Count(ctx context.Context) (int, error)
}

// TextGenerator is the completion surface used for metadata enrichment.
type TextGenerator interface {
	Generate(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error)
}

// Status is the process-wide indexing state external callers poll.
type Status struct {
	InProgress  bool   `json:"in_progress"`
	Description string `json:"description"`
}

// Summary reports one indexing run.
type Summary struct {
	Scanned     int
	Skipped     int
	Reindexed   int
	DocsAdded   int
	ChunksAdded int
	Failures    []string
}

func (s Summary) String() string {
	msg := fmt.Sprintf("Processed %d documents (%d chunks added, %d unchanged, %d re-indexed)",
		s.DocsAdded, s.ChunksAdded, s.Skipped, s.Reindexed)
	if len(s.Failures) > 0 {
		msg += fmt.Sprintf(", %d failed: %s", len(s.Failures), strings.Join(s.Failures, "; "))
	}
	return msg
}

// Indexer composes the scanner, checksum registry, parser, chunker, embedder
// and vector store into an ingestion job. At most one job runs at a time.
type Indexer struct {
	Folder    string
	ScanDepth int

	Registry checksum.Registry
	Store    ChunkStore
	Embedder embeddings.Embedder
	Chunker  *chunker.Chunker

	// LLM is optional; when nil, metadata enrichment is skipped.
	LLM         TextGenerator
	EnrichModel string

	Logger *slog.Logger

	// Swappable for tests.
	ScanFolder func(root string, maxDepth int) ([]string, error)
	ParseFile  func(path string) (*pdf.Document, error)

	mu     sync.Mutex
	status Status
}

func NewIndexer(folder string, scanDepth int, registry checksum.Registry, store ChunkStore, embedder embeddings.Embedder, ch *chunker.Chunker, llm TextGenerator) *Indexer {
	return &Indexer{
		Folder:     folder,
		ScanDepth:  scanDepth,
		Registry:   registry,
		Store:      store,
		Embedder:   embedder,
		Chunker:    ch,
		LLM:        llm,
		Logger:     slog.Default(),
		ScanFolder: pdf.Scan,
		ParseFile:  pdf.Parse,
	}
}

// Status returns the current indexing status.
func (ix *Indexer) Status() Status {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.status
}

func (ix *Indexer) setStatus(inProgress bool, description string) {
	ix.mu.Lock()
	ix.status = Status{InProgress: inProgress, Description: description}
	ix.mu.Unlock()
}

// Start launches an indexing job in the background. Starting while a job is
// already running is a no-op that reports the existing job's status.
func (ix *Indexer) Start(ctx context.Context) Status {
	ix.mu.Lock()
	if ix.status.InProgress {
		status := ix.status
		ix.mu.Unlock()
		return status
	}
	ix.status = Status{InProgress: true, Description: "Starting indexing..."}
	status := ix.status
	ix.mu.Unlock()

	// The job must survive the request that triggered it.
	jobCtx := context.WithoutCancel(ctx)
	go func() {
		summary, err := ix.run(jobCtx)
		if err != nil {
			ix.setStatus(false, fmt.Sprintf("Indexing error: %v", err))
			return
		}
		ix.setStatus(false, summary.String())
	}()

	return status
}

// RunOnce executes an indexing job synchronously. Used by the CLI; the HTTP
// layer goes through Start.
func (ix *Indexer) RunOnce(ctx context.Context) (Summary, error) {
	ix.mu.Lock()
	if ix.status.InProgress {
		ix.mu.Unlock()
		return Summary{}, fmt.Errorf("indexing already in progress")
	}
	ix.status = Status{InProgress: true, Description: "Starting indexing..."}
	ix.mu.Unlock()

	summary, err := ix.run(ctx)
	if err != nil {
		ix.setStatus(false, fmt.Sprintf("Indexing error: %v", err))
		return summary, err
	}
	ix.setStatus(false, summary.String())
	return summary, nil
}

// run scans the folder, classifies files against the checksum registry, and
// indexes everything pending. Per-file failures are skipped and reported in
// the summary; they never abort the job.
func (ix *Indexer) run(ctx context.Context) (Summary, error) {
	var summary Summary

	paths, err := ix.ScanFolder(ix.Folder, ix.ScanDepth)
	if err != nil {
		return summary, fmt.Errorf("scan failed: %w", err)
	}
	summary.Scanned = len(paths)
	ix.Logger.Info("Scan complete", "folder", ix.Folder, "pdfs", len(paths))

	for i, path := range paths {
		sum, err := checksum.ComputeFile(path)
		if err != nil {
			ix.Logger.Error("Checksum failed", "path", path, "error", err)
			summary.Failures = append(summary.Failures, path)
			continue
		}

		entry, known, err := ix.Registry.Lookup(ctx, path)
		if err != nil {
			return summary, fmt.Errorf("registry lookup failed: %w", err)
		}

		staleDocID := ""
		if known {
			if entry.Checksum == sum {
				summary.Skipped++
				continue
			}
			// Content changed: treat as a new version and re-chunk.
			staleDocID = entry.DocID
			summary.Reindexed++
		}

		ix.setStatus(true, fmt.Sprintf("Indexing %d/%d: %s", i+1, len(paths), path))

		added, err := ix.indexFile(ctx, path, sum, staleDocID)
		if err != nil {
			ix.Logger.Error("Failed to index file", "path", path, "error", err)
			summary.Failures = append(summary.Failures, path)
			continue
		}

		summary.DocsAdded++
		summary.ChunksAdded += added
	}

	ix.Logger.Info("Indexing complete", "summary", summary.String())
	return summary, nil
}

// indexFile parses, enriches, chunks, embeds and stores one PDF, then records
// it in the registry. The registry row is written only after the store write
// succeeds, so a registry entry always corresponds to an indexed document.
func (ix *Indexer) indexFile(ctx context.Context, path, sum, staleDocID string) (int, error) {
	doc, err := ix.ParseFile(path)
	if err != nil {
		return 0, fmt.Errorf("parse failed: %w", err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return 0, fmt.Errorf("no text extracted from %s", doc.Filename)
	}

	docID := newDocID()
	base := chunker.Metadata{
		DocID:      docID,
		Title:      doc.Title,
		Authors:    doc.Authors,
		Year:       doc.Year,
		Filename:   doc.Filename,
		SourcePath: doc.Path,
	}
	ix.enrich(ctx, doc, &base)

	chunks, err := ix.Chunker.ChunkDocument(doc.Text, base)
	if err != nil {
		return 0, fmt.Errorf("chunking failed: %w", err)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced from %s", doc.Filename)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := ix.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}

	if staleDocID != "" {
		if _, err := ix.Store.DeleteByDocID(ctx, staleDocID); err != nil {
			return 0, fmt.Errorf("failed to remove stale chunks: %w", err)
		}
	}

	added, err := ix.Store.AddChunks(ctx, chunks, vectors)
	if err != nil {
		return added, fmt.Errorf("store write failed: %w", err)
	}

	if err := ix.Registry.Put(ctx, checksum.Entry{Path: path, Checksum: sum, DocID: docID}); err != nil {
		return added, fmt.Errorf("failed to record checksum: %w", err)
	}

	ix.Logger.Info("Indexed document", "file", doc.Filename, "doc_id", docID, "chunks", added)
	return added, nil
}

func newDocID() string {
	return "doc_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
