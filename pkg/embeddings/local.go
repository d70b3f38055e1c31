package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/openai"
)

// LocalEmbedder calls the OpenAI-compatible /v1/embeddings endpoint of a
// local model server (LM Studio, Jan). Nomic-family models expect task
// prefixes on the input text.
type LocalEmbedder struct {
	llm   *openai.LLM
	model string
}

// NewLocalEmbedder creates an embedder against an OpenAI-compatible endpoint.
func NewLocalEmbedder(baseURL, apiKey, model string) (*LocalEmbedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return &LocalEmbedder{llm: llm, model: model}, nil
}

// EmbedText generates an embedding for a single query text.
func (e *LocalEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	vecs, err := e.llm.CreateEmbedding(ctx, []string{e.prefixed(text, true)})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return vecs[0], nil
}

// EmbedTexts generates embeddings for multiple document texts.
func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
		prefixed[i] = e.prefixed(t, false)
	}

	vecs, err := e.llm.CreateEmbedding(ctx, prefixed)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(texts))
	}
	return vecs, nil
}

func (e *LocalEmbedder) prefixed(text string, isQuery bool) string {
	if !strings.Contains(strings.ToLower(e.model), "nomic") {
		return text
	}
	if isQuery {
		return "search_query: " + text
	}
	return "search_document: " + text
}
