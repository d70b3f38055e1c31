// Package embeddings converts text into fixed-length vectors using one
// consistent model configuration for the life of the process.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when a caller violates the contract that the
// embedder is never invoked with empty text.
var ErrEmptyText = errors.New("cannot embed empty text")

// Embedder converts chunk and query text into vectors.
type Embedder interface {
	// EmbedText generates an embedding for a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
