// Package pipeline runs a query through the RAG state machine:
// preprocess -> hyde -> retrieve -> rerank -> generate, with a simple_generate
// branch that skips retrieval entirely.
package pipeline

import (
	"github.com/Somekindofa/research-paper-rag/pkg/retrieval"
)

// Mode selects between plain LLM chat and the full retrieval pipeline.
type Mode string

const (
	ModeSimple Mode = "simple"
	ModeRAG    Mode = "rag"
)

// Settings are the user-supplied run parameters for one request.
type Settings struct {
	// NumDocs is the number of documents to retrieve (k).
	NumDocs int

	// RelevanceThreshold is the minimum effective score a source must reach,
	// as a fraction in [0,1].
	RelevanceThreshold float64

	// Model overrides the default completion model when non-empty.
	Model string
}

// Source is one cited document in the final answer, numbered to match the
// bracketed references in the prose.
type Source struct {
	Index    int     `json:"index"`
	Title    string  `json:"title"`
	Authors  string  `json:"authors"`
	Year     int     `json:"year"`
	Score    float64 `json:"score"`
	Excerpt  string  `json:"excerpt"`
	Page     int     `json:"page,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Summary  string  `json:"summary,omitempty"`
}

// Degradation records which fallbacks fired while serving a request.
type Degradation struct {
	HydeFallback   bool `json:"hyde_fallback"`
	RerankFallback bool `json:"rerank_fallback"`
}

// Result is what the caller gets back for one request.
type Result struct {
	Answer         string      `json:"answer"`
	Sources        []Source    `json:"sources"`
	ModeUsed       Mode        `json:"mode_used"`
	Degraded       Degradation `json:"degraded"`
	RetrievedCount int         `json:"retrieved_count"`
	KeptCount      int         `json:"kept_count"`
}

// State is the per-request record threaded through the pipeline nodes. Each
// node returns a new State built from its input rather than mutating in
// place, keeping fallback annotations auditable. Discarded at request end.
type State struct {
	Query          string
	ProcessedQuery string
	HydeDoc        string
	QueryEmbedding []float32

	Retrieved []retrieval.Candidate
	Ranked    []retrieval.Candidate
	Filtered  []retrieval.Candidate

	Answer  string
	Sources []Source

	Mode           Mode
	Degraded       Degradation
	RetrievedCount int
	KeptCount      int
	Settings       Settings
}

func (s State) result() *Result {
	return &Result{
		Answer:         s.Answer,
		Sources:        s.Sources,
		ModeUsed:       s.Mode,
		Degraded:       s.Degraded,
		RetrievedCount: s.RetrievedCount,
		KeptCount:      s.KeptCount,
	}
}
