package server

import (
	"context"
	"fmt"

	"github.com/Somekindofa/research-paper-rag/pkg/checksum"
	"github.com/Somekindofa/research-paper-rag/pkg/clients"
	"github.com/Somekindofa/research-paper-rag/pkg/ingest"
	"github.com/Somekindofa/research-paper-rag/pkg/pipeline"
)

// DocCounter reports how many chunks are stored.
type DocCounter interface {
	Count(ctx context.Context) (int, error)
}

type Service struct {
	Pipeline *pipeline.Pipeline
	Indexer  *ingest.Indexer
	LLM      *clients.LMStudioClient
	Store    DocCounter
	Registry checksum.Registry
}

func NewService(p *pipeline.Pipeline, ix *ingest.Indexer, llm *clients.LMStudioClient, store DocCounter, registry checksum.Registry) *Service {
	return &Service{
		Pipeline: p,
		Indexer:  ix,
		LLM:      llm,
		Store:    store,
		Registry: registry,
	}
}

type ChatRequest struct {
	Message            string  `json:"message"`
	Mode               string  `json:"mode"`
	NumDocs            int     `json:"num_docs"`
	RelevanceThreshold float64 `json:"relevance_threshold"`
	SelectedModel      string  `json:"selected_model"`
}

// Chat runs one query through the answering pipeline. Mode defaults to rag
// when omitted.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*pipeline.Result, error) {
	mode := pipeline.ModeRAG
	if req.Mode == string(pipeline.ModeSimple) {
		mode = pipeline.ModeSimple
	}

	settings := pipeline.Settings{
		NumDocs:            req.NumDocs,
		RelevanceThreshold: req.RelevanceThreshold,
		Model:              req.SelectedModel,
	}

	return s.Pipeline.Run(ctx, req.Message, mode, settings)
}

// StartIndexing kicks off a background indexing job; a no-op while one runs.
func (s *Service) StartIndexing(ctx context.Context) ingest.Status {
	return s.Indexer.Start(ctx)
}

func (s *Service) IndexingStatus() ingest.Status {
	return s.Indexer.Status()
}

type SystemStatus struct {
	Initialized      bool   `json:"initialized"`
	PDFsFound        int    `json:"pdfs_found"`
	PendingFiles     int    `json:"pending_files"`
	DocumentsIndexed int    `json:"documents_indexed"`
	ChunksStored     int    `json:"chunks_stored"`
	LLMAvailable     bool   `json:"llm_available"`
	DefaultModel     string `json:"default_model"`
}

// Status aggregates library and model availability for the UI.
func (s *Service) Status(ctx context.Context) (*SystemStatus, error) {
	chunks, err := s.Store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	docs, err := s.Registry.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	// Folder stats are best effort; a missing folder means nothing to index.
	found, pending := 0, 0
	if paths, err := s.Indexer.ScanFolder(s.Indexer.Folder, s.Indexer.ScanDepth); err == nil {
		found = len(paths)
		for _, path := range paths {
			if _, ok, err := s.Registry.Lookup(ctx, path); err == nil && !ok {
				pending++
			}
		}
	}

	llmUp := true
	if _, err := s.LLM.ListModels(ctx); err != nil {
		llmUp = false
	}

	return &SystemStatus{
		Initialized:      chunks > 0,
		PDFsFound:        found,
		PendingFiles:     pending,
		DocumentsIndexed: docs,
		ChunksStored:     chunks,
		LLMAvailable:     llmUp,
		DefaultModel:     s.LLM.DefaultModel(),
	}, nil
}

type ModelList struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

func (s *Service) Models(ctx context.Context) (*ModelList, error) {
	models, err := s.LLM.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []string{}
	}
	return &ModelList{Models: models, Default: s.LLM.DefaultModel()}, nil
}
