package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Somekindofa/research-paper-rag/pkg/embeddings"
	"github.com/Somekindofa/research-paper-rag/pkg/retrieval"
)

// ErrEmptyQuery is returned when the request carries no query text.
var ErrEmptyQuery = errors.New("empty query provided")

// ErrSynthesis marks a terminal answer-generation failure. The request fails;
// the process keeps serving others.
var ErrSynthesis = errors.New("answer synthesis failed")

// TextGenerator is the completion surface the pipeline depends on.
type TextGenerator interface {
	Generate(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error)
}

// DocRetriever yields MMR-selected candidates for a query embedding.
type DocRetriever interface {
	Retrieve(ctx context.Context, queryEmbedding []float32, k int) ([]retrieval.Candidate, error)
}

type stage string

const (
	stagePreprocess     stage = "preprocess"
	stageHyde           stage = "hyde"
	stageRetrieve       stage = "retrieve"
	stageRerank         stage = "rerank"
	stageGenerate       stage = "generate"
	stageSimpleGenerate stage = "simple_generate"
	stageDone           stage = "done"
)

// Generation parameters per node.
const (
	hydeTemperature = 0.7
	hydeMaxTokens   = 300

	synthesisTemperature = 0.3
	synthesisMaxTokens   = 1024

	simpleTemperature = 0.7
	simpleMaxTokens   = 2048
)

// Pipeline sequences the query nodes. Construct once and share across
// requests; per-request data lives in State.
type Pipeline struct {
	LLM       TextGenerator
	Embedder  embeddings.Embedder
	Retriever DocRetriever
	Reranker  retrieval.Reranker

	DefaultK         int
	DefaultThreshold float64
	Logger           *slog.Logger
}

func New(llm TextGenerator, embedder embeddings.Embedder, docs DocRetriever, reranker retrieval.Reranker, defaultK int, defaultThreshold float64) *Pipeline {
	if reranker == nil {
		reranker = retrieval.NopReranker{}
	}
	return &Pipeline{
		LLM:              llm,
		Embedder:         embedder,
		Retriever:        docs,
		Reranker:         reranker,
		DefaultK:         defaultK,
		DefaultThreshold: defaultThreshold,
		Logger:           slog.Default(),
	}
}

// Run executes one request through the state machine. Only synthesis failure
// and vector store connectivity failure surface as errors; every other
// degradation is an annotation on the result.
func (p *Pipeline) Run(ctx context.Context, query string, mode Mode, settings Settings) (*Result, error) {
	if settings.NumDocs <= 0 {
		settings.NumDocs = p.DefaultK
	}
	if settings.RelevanceThreshold <= 0 {
		settings.RelevanceThreshold = p.DefaultThreshold
	}
	settings.RelevanceThreshold = NormalizeThreshold(settings.RelevanceThreshold)

	state := State{Query: query, Mode: mode, Settings: settings}

	current := stagePreprocess
	for current != stageDone {
		var err error
		switch current {
		case stagePreprocess:
			state, err = p.preprocess(state)
			if err != nil {
				return nil, err
			}
			if state.Mode == ModeSimple {
				current = stageSimpleGenerate
			} else {
				current = stageHyde
			}

		case stageHyde:
			state, err = p.hydeNode(ctx, state)
			if err != nil {
				return nil, err
			}
			current = stageRetrieve

		case stageRetrieve:
			state, err = p.retrieveNode(ctx, state)
			if err != nil {
				return nil, err
			}
			current = stageRerank

		case stageRerank:
			state = p.rerankNode(ctx, state)
			current = stageGenerate

		case stageGenerate:
			state, err = p.generateNode(ctx, state)
			if err != nil {
				return nil, err
			}
			current = stageDone

		case stageSimpleGenerate:
			state, err = p.simpleNode(ctx, state)
			if err != nil {
				return nil, err
			}
			current = stageDone
		}
	}

	return state.result(), nil
}

// preprocess normalizes whitespace and validates the query.
func (p *Pipeline) preprocess(state State) (State, error) {
	processed := strings.Join(strings.Fields(state.Query), " ")
	if processed == "" {
		return state, ErrEmptyQuery
	}
	state.ProcessedQuery = processed
	return state, nil
}

// hydeNode asks the LLM for a hypothetical answer passage and embeds it. Any
// LLM failure falls back to embedding the raw query; retrieval still happens.
func (p *Pipeline) hydeNode(ctx context.Context, state State) (State, error) {
	prompt := fmt.Sprintf(hydePromptTemplate, state.ProcessedQuery)

	hydeDoc, err := p.LLM.Generate(ctx, state.Settings.Model, prompt, hydeTemperature, hydeMaxTokens)
	if err != nil || strings.TrimSpace(hydeDoc) == "" {
		p.Logger.Warn("HyDE generation failed, embedding raw query", "error", err)
		state.Degraded.HydeFallback = true

		embedding, embErr := p.Embedder.EmbedText(ctx, state.ProcessedQuery)
		if embErr != nil {
			return state, fmt.Errorf("failed to embed query: %w", embErr)
		}
		state.QueryEmbedding = embedding
		return state, nil
	}

	embedding, err := p.Embedder.EmbedText(ctx, hydeDoc)
	if err != nil {
		return state, fmt.Errorf("failed to embed hypothetical document: %w", err)
	}

	state.HydeDoc = hydeDoc
	state.QueryEmbedding = embedding
	return state, nil
}

// retrieveNode runs the MMR search. An empty store is a valid empty result;
// only store connectivity failure is an error.
func (p *Pipeline) retrieveNode(ctx context.Context, state State) (State, error) {
	candidates, err := p.Retriever.Retrieve(ctx, state.QueryEmbedding, state.Settings.NumDocs)
	if err != nil {
		return state, err
	}
	state.Retrieved = candidates
	state.RetrievedCount = len(candidates)
	return state, nil
}

// rerankNode rescores candidates with the cross-encoder. Failure retains the
// MMR order and only annotates the result.
func (p *Pipeline) rerankNode(ctx context.Context, state State) State {
	if len(state.Retrieved) == 0 {
		state.Ranked = nil
		return state
	}

	ranked, err := p.Reranker.Rerank(ctx, state.ProcessedQuery, state.Retrieved)
	if err != nil {
		p.Logger.Warn("Reranking failed, keeping retrieval order", "error", err)
		state.Degraded.RerankFallback = true
		state.Ranked = state.Retrieved
		return state
	}
	state.Ranked = ranked
	return state
}

// generateNode deduplicates, filters, and synthesizes the cited answer.
func (p *Pipeline) generateNode(ctx context.Context, state State) (State, error) {
	if len(state.Ranked) == 0 {
		state.Answer = emptyLibraryAnswer
		state.Sources = []Source{}
		return state, nil
	}

	deduped := DeduplicateByDoc(state.Ranked)
	filtered := FilterByThreshold(deduped, state.Settings.RelevanceThreshold)
	state.Filtered = filtered
	state.KeptCount = len(filtered)
	p.Logger.Info("Dedup and filter complete",
		"retrieved", state.RetrievedCount,
		"deduplicated", len(deduped),
		"kept", len(filtered),
		"threshold", state.Settings.RelevanceThreshold)

	if len(filtered) == 0 {
		// Valid "no sources met threshold" result, not an error.
		state.Answer = noSourcesAnswer
		state.Sources = []Source{}
		return state, nil
	}

	blocks := make([]string, 0, len(filtered))
	sources := make([]Source, 0, len(filtered))
	for i, c := range filtered {
		md := c.Chunk.Metadata
		blocks = append(blocks, formatSourceBlock(i+1, c))
		sources = append(sources, Source{
			Index:    i + 1,
			Title:    md.Title,
			Authors:  md.Authors,
			Year:     md.Year,
			Score:    c.EffectiveScore(),
			Excerpt:  c.Chunk.Content,
			Page:     md.PageNumber,
			Filename: md.Filename,
			Summary:  md.Summary,
		})
	}

	prompt := fmt.Sprintf(synthesisPromptTemplate, state.ProcessedQuery, strings.Join(blocks, "\n\n"))
	answer, err := p.LLM.Generate(ctx, state.Settings.Model, prompt, synthesisTemperature, synthesisMaxTokens)
	if err != nil {
		return state, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	state.Answer = answer
	state.Sources = sources
	return state, nil
}

// simpleNode answers without retrieval.
func (p *Pipeline) simpleNode(ctx context.Context, state State) (State, error) {
	prompt := fmt.Sprintf(simplePromptTemplate, state.ProcessedQuery)
	answer, err := p.LLM.Generate(ctx, state.Settings.Model, prompt, simpleTemperature, simpleMaxTokens)
	if err != nil {
		return state, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	state.Answer = answer
	state.Sources = []Source{}
	return state, nil
}

const excerptLimit = 500

func formatSourceBlock(index int, c retrieval.Candidate) string {
	md := c.Chunk.Metadata

	year := "Unknown"
	if md.Year > 0 {
		year = strconv.Itoa(md.Year)
	}

	enrichment := ""
	if md.Summary != "" {
		enrichment = "\nSummary: " + md.Summary
	}

	excerpt := c.Chunk.Content
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}

	return fmt.Sprintf(sourceBlockTemplate, index, md.Title, md.Authors, year, enrichment, excerpt)
}
