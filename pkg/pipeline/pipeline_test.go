package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Somekindofa/research-paper-rag/pkg/chunker"
	"github.com/Somekindofa/research-paper-rag/pkg/retrieval"
)

type fakeLLM struct {
	hydeErr      error
	synthesisErr error
	answer       string
	prompts      []string
}

func (f *fakeLLM) Generate(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if strings.Contains(prompt, "hypothetical") || strings.Contains(prompt, "plausible paragraph") {
		if f.hydeErr != nil {
			return "", f.hydeErr
		}
		return "A plausible academic passage about the topic.", nil
	}
	if f.synthesisErr != nil {
		return "", f.synthesisErr
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "Synthesized answer citing [1].", nil
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.EmbedText(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeRetriever struct {
	candidates []retrieval.Candidate
	err        error
	lastK      int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, queryEmbedding []float32, k int) ([]retrieval.Candidate, error) {
	f.lastK = k
	return f.candidates, f.err
}

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate) ([]retrieval.Candidate, error) {
	return nil, errors.New("rerank endpoint down")
}

func libraryCandidates() []retrieval.Candidate {
	return []retrieval.Candidate{
		candidateWithTitle("doc_a", "Attention Is All You Need", 0.89),
		candidateWithTitle("doc_b", "Deep Residual Learning", 0.86),
		candidateWithTitle("doc_c", "Random Forests", 0.60),
	}
}

func candidateWithTitle(docID, title string, score float64) retrieval.Candidate {
	return retrieval.Candidate{
		Chunk: chunker.Chunk{
			ID:      docID + "_0",
			Content: "Excerpt from " + title,
			Metadata: chunker.Metadata{
				DocID:   docID,
				Title:   title,
				Authors: "Doe, Jane and Smith, Alex",
				Year:    2020,
			},
		},
		Score: score,
	}
}

func newTestPipeline(llm *fakeLLM, retr *fakeRetriever, reranker retrieval.Reranker) (*Pipeline, *fakeEmbedder) {
	emb := &fakeEmbedder{}
	return New(llm, emb, retr, reranker, 5, 0.75), emb
}

func TestRunFullPipeline(t *testing.T) {
	llm := &fakeLLM{}
	retr := &fakeRetriever{candidates: libraryCandidates()}
	p, _ := newTestPipeline(llm, retr, nil)

	result, err := p.Run(context.Background(), "  what   is attention?  ", ModeRAG, Settings{RelevanceThreshold: 75})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.ModeUsed != ModeRAG {
		t.Errorf("mode_used = %s, want rag", result.ModeUsed)
	}
	if result.RetrievedCount != 3 {
		t.Errorf("retrieved_count = %d, want 3", result.RetrievedCount)
	}
	// Threshold 75% keeps the 0.89 and 0.86 documents only.
	if result.KeptCount != 2 || len(result.Sources) != 2 {
		t.Fatalf("kept_count = %d, sources = %d, want 2 and 2", result.KeptCount, len(result.Sources))
	}
	if result.Sources[0].Score < result.Sources[1].Score {
		t.Error("sources not in descending score order")
	}
	for i, src := range result.Sources {
		if src.Index != i+1 {
			t.Errorf("source[%d].Index = %d, want %d", i, src.Index, i+1)
		}
	}
	if result.Degraded.HydeFallback || result.Degraded.RerankFallback {
		t.Errorf("unexpected degradation: %+v", result.Degraded)
	}

	// The synthesis prompt must carry the numbered source blocks.
	last := llm.prompts[len(llm.prompts)-1]
	if !strings.Contains(last, "[1] Attention Is All You Need") {
		t.Errorf("synthesis prompt missing numbered source block:\n%s", last)
	}
}

func TestRunEmptyQuery(t *testing.T) {
	p, _ := newTestPipeline(&fakeLLM{}, &fakeRetriever{}, nil)
	if _, err := p.Run(context.Background(), "   \n\t  ", ModeRAG, Settings{}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Run() error = %v, want ErrEmptyQuery", err)
	}
}

func TestRunSimpleMode(t *testing.T) {
	llm := &fakeLLM{answer: "Plain answer."}
	retr := &fakeRetriever{candidates: libraryCandidates()}
	p, emb := newTestPipeline(llm, retr, nil)

	result, err := p.Run(context.Background(), "hello", ModeSimple, Settings{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ModeUsed != ModeSimple {
		t.Errorf("mode_used = %s, want simple", result.ModeUsed)
	}
	if result.Sources == nil || len(result.Sources) != 0 {
		t.Errorf("sources = %v, want empty non-nil slice", result.Sources)
	}
	if emb.calls != 0 || retr.lastK != 0 {
		t.Error("simple mode must not touch embedder or retriever")
	}
}

func TestRunHydeFallback(t *testing.T) {
	llm := &fakeLLM{hydeErr: errors.New("model not loaded")}
	retr := &fakeRetriever{candidates: libraryCandidates()}
	p, emb := newTestPipeline(llm, retr, nil)

	result, err := p.Run(context.Background(), "what is attention?", ModeRAG, Settings{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Degraded.HydeFallback {
		t.Error("degraded.hyde_fallback = false, want true")
	}
	if result.RetrievedCount == 0 {
		t.Error("retrieval must still run after HyDE fallback")
	}
	if emb.calls != 1 {
		t.Errorf("embedder calls = %d, want 1 (raw query)", emb.calls)
	}
}

func TestRunEmbedderFailureIsTerminal(t *testing.T) {
	llm := &fakeLLM{}
	retr := &fakeRetriever{}
	emb := &fakeEmbedder{err: errors.New("embedding model offline")}
	p := New(llm, emb, retr, nil, 5, 0.75)

	if _, err := p.Run(context.Background(), "query", ModeRAG, Settings{}); err == nil {
		t.Error("Run() error = nil, want terminal embedding error")
	}
}

func TestRunRerankFallback(t *testing.T) {
	llm := &fakeLLM{}
	retr := &fakeRetriever{candidates: libraryCandidates()}
	p, _ := newTestPipeline(llm, retr, failingReranker{})

	result, err := p.Run(context.Background(), "what is attention?", ModeRAG, Settings{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Degraded.RerankFallback {
		t.Error("degraded.rerank_fallback = false, want true")
	}
	// MMR order must survive the failed rerank.
	if result.Sources[0].Title != "Attention Is All You Need" {
		t.Errorf("top source = %s, want MMR order preserved", result.Sources[0].Title)
	}
}

func TestRunEmptyLibrary(t *testing.T) {
	p, _ := newTestPipeline(&fakeLLM{}, &fakeRetriever{}, nil)

	result, err := p.Run(context.Background(), "anything indexed?", ModeRAG, Settings{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != emptyLibraryAnswer {
		t.Errorf("answer = %q, want empty-library message", result.Answer)
	}
	if len(result.Sources) != 0 || result.KeptCount != 0 {
		t.Errorf("sources = %d, kept = %d, want 0 and 0", len(result.Sources), result.KeptCount)
	}
}

func TestRunAllSourcesFiltered(t *testing.T) {
	retr := &fakeRetriever{candidates: []retrieval.Candidate{
		candidateWithTitle("doc_a", "Low Relevance Paper", 0.30),
	}}
	p, _ := newTestPipeline(&fakeLLM{}, retr, nil)

	result, err := p.Run(context.Background(), "unrelated question", ModeRAG, Settings{RelevanceThreshold: 90})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (valid no-sources result)", err)
	}
	if result.Answer != noSourcesAnswer {
		t.Errorf("answer = %q, want no-sources message", result.Answer)
	}
	if result.KeptCount != 0 || len(result.Sources) != 0 {
		t.Errorf("kept = %d, sources = %d, want 0 and 0", result.KeptCount, len(result.Sources))
	}
	if result.RetrievedCount != 1 {
		t.Errorf("retrieved_count = %d, want 1", result.RetrievedCount)
	}
}

func TestRunSynthesisFailure(t *testing.T) {
	llm := &fakeLLM{synthesisErr: errors.New("context length exceeded")}
	retr := &fakeRetriever{candidates: libraryCandidates()}
	p, _ := newTestPipeline(llm, retr, nil)

	if _, err := p.Run(context.Background(), "what is attention?", ModeRAG, Settings{}); !errors.Is(err, ErrSynthesis) {
		t.Errorf("Run() error = %v, want ErrSynthesis", err)
	}
}

func TestRunAppliesDefaults(t *testing.T) {
	retr := &fakeRetriever{candidates: libraryCandidates()}
	p, _ := newTestPipeline(&fakeLLM{}, retr, nil)

	if _, err := p.Run(context.Background(), "query", ModeRAG, Settings{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if retr.lastK != 5 {
		t.Errorf("k = %d, want default 5", retr.lastK)
	}
}

func TestDuplicateDocNeverCitedTwice(t *testing.T) {
	retr := &fakeRetriever{candidates: []retrieval.Candidate{
		candidateWithTitle("doc_a", "Same Paper", 0.90),
		candidateWithTitle("doc_a", "Same Paper", 0.88),
		candidateWithTitle("doc_b", "Other Paper", 0.85),
	}}
	p, _ := newTestPipeline(&fakeLLM{}, retr, nil)

	result, err := p.Run(context.Background(), "query", ModeRAG, Settings{RelevanceThreshold: 75})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seen := map[string]bool{}
	for _, src := range result.Sources {
		if seen[src.Title] {
			t.Errorf("document %q cited twice", src.Title)
		}
		seen[src.Title] = true
	}
	if len(result.Sources) != 2 {
		t.Errorf("sources = %d, want 2 distinct documents", len(result.Sources))
	}
}
