package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Somekindofa/research-paper-rag/pkg/chunker"
	"github.com/Somekindofa/research-paper-rag/pkg/vectorstore"
)

// Candidate is a retrieved chunk moving through the rerank/dedup/filter
// stages.
type Candidate struct {
	Chunk       chunker.Chunk
	Embedding   []float32
	Score       float64 // cosine similarity to the query vector
	RerankScore float64
	Reranked    bool
}

// EffectiveScore is the rerank score when reranking succeeded, the base
// similarity otherwise.
func (c Candidate) EffectiveScore() float64 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.Score
}

// Searcher is the vector store surface the retriever depends on.
type Searcher interface {
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, k int) ([]vectorstore.SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// Retriever queries the vector store for a candidate pool and selects a
// diverse top-k subset with MMR.
type Retriever struct {
	Store  Searcher
	FetchK int
	Lambda float64
	Logger *slog.Logger
}

func NewRetriever(store Searcher, fetchK int, lambda float64) *Retriever {
	return &Retriever{
		Store:  store,
		FetchK: fetchK,
		Lambda: lambda,
		Logger: slog.Default(),
	}
}

// Retrieve fetches a pool of at least k candidates and MMR-selects k of them.
// An empty store yields an empty (valid) result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, queryEmbedding []float32, k int) ([]Candidate, error) {
	fetchK := r.FetchK
	if fetchK < k {
		fetchK = k
	}

	results, err := r.Store.SimilaritySearch(ctx, queryEmbedding, fetchK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	pool := make([][]float32, len(results))
	for i, res := range results {
		pool[i] = res.Embedding
	}

	selected := MMRSelect(queryEmbedding, pool, k, r.Lambda)
	candidates := make([]Candidate, 0, len(selected))
	for _, idx := range selected {
		candidates = append(candidates, Candidate{
			Chunk:     results[idx].Chunk,
			Embedding: results[idx].Embedding,
			Score:     results[idx].Score,
		})
	}

	r.Logger.Debug("MMR selection complete", "pool", len(results), "selected", len(candidates))
	return candidates, nil
}
