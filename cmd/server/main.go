package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Somekindofa/research-paper-rag/pkg/checksum"
	"github.com/Somekindofa/research-paper-rag/pkg/chunker"
	"github.com/Somekindofa/research-paper-rag/pkg/clients"
	"github.com/Somekindofa/research-paper-rag/pkg/config"
	"github.com/Somekindofa/research-paper-rag/pkg/database"
	"github.com/Somekindofa/research-paper-rag/pkg/embeddings"
	"github.com/Somekindofa/research-paper-rag/pkg/ingest"
	"github.com/Somekindofa/research-paper-rag/pkg/pipeline"
	"github.com/Somekindofa/research-paper-rag/pkg/retrieval"
	"github.com/Somekindofa/research-paper-rag/pkg/server"
	"github.com/Somekindofa/research-paper-rag/pkg/vectorstore"
)

func main() {
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Database Connection
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx, cfg.CollectionName, cfg.EmbeddingDimension); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Embeddings
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}

	// LLM endpoint (LM Studio / Jan)
	llm := clients.NewLMStudioClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.DefaultModel, cfg.LLMTimeout)

	// Vector store + checksum registry
	store, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	registry := checksum.NewPostgresRegistry(db.Pool)

	// Ingestion job
	indexer := ingest.NewIndexer(cfg.PDFFolderPath, cfg.ScanDepth, registry, store, embedder,
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), llm)
	indexer.EnrichModel = cfg.DefaultModel

	// Query pipeline
	retriever := retrieval.NewRetriever(store, cfg.FetchK, cfg.MMRLambda)
	var reranker retrieval.Reranker
	if cfg.RerankURL != "" {
		reranker = retrieval.NewHTTPReranker(cfg.RerankURL, cfg.RerankModel, cfg.LLMTimeout)
	}
	p := pipeline.New(llm, embedder, retriever, reranker, cfg.RetrievalK, cfg.RelevanceThreshold)

	svc := server.NewService(p, indexer, llm, store, registry)
	h := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	h.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "google":
		return embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleAPIKey, cfg.EmbeddingDimension)
	default:
		return embeddings.NewLocalEmbedder(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel)
	}
}
