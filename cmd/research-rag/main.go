package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Somekindofa/research-paper-rag/pkg/checksum"
	"github.com/Somekindofa/research-paper-rag/pkg/chunker"
	"github.com/Somekindofa/research-paper-rag/pkg/clients"
	"github.com/Somekindofa/research-paper-rag/pkg/config"
	"github.com/Somekindofa/research-paper-rag/pkg/database"
	"github.com/Somekindofa/research-paper-rag/pkg/embeddings"
	"github.com/Somekindofa/research-paper-rag/pkg/ingest"
	"github.com/Somekindofa/research-paper-rag/pkg/pipeline"
	"github.com/Somekindofa/research-paper-rag/pkg/retrieval"
	"github.com/Somekindofa/research-paper-rag/pkg/vectorstore"
)

var (
	modeFlag  string
	numDocs   int
	threshold float64
	model     string
	folder    string
)

func main() {
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "research-rag",
		Short: "Query and index a local research paper library",
		Long:  `research-rag answers questions about a personal PDF library using local models, with retrieval, reranking and cited synthesis.`,
	}

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Scan the PDF folder and index new or changed papers",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(cmd.Context())
			if err != nil {
				slog.Error("Initialization failed", "error", err)
				os.Exit(1)
			}
			defer app.db.Close()

			if folder != "" {
				app.indexer.Folder = folder
			}

			summary, err := app.indexer.RunOnce(cmd.Context())
			if err != nil {
				slog.Error("Indexing failed", "error", err)
				os.Exit(1)
			}
			fmt.Println(summary.String())
		},
	}
	indexCmd.Flags().StringVarP(&folder, "folder", "f", "", "PDF folder to index (default from PDF_FOLDER_PATH)")

	queryCmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the indexed library",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			queryText := ""
			if len(args) > 0 {
				queryText = args[0]
			}
			if queryText == "" {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter your question: ")
				input, _ := reader.ReadString('\n')
				queryText = strings.TrimSpace(input)
				if queryText == "" {
					slog.Error("Question cannot be empty")
					os.Exit(1)
				}
			}

			mode := pipeline.ModeRAG
			switch modeFlag {
			case "rag", "":
			case "simple":
				mode = pipeline.ModeSimple
			default:
				slog.Error("Mode must be rag or simple", "mode", modeFlag)
				os.Exit(1)
			}

			app, err := buildApp(cmd.Context())
			if err != nil {
				slog.Error("Initialization failed", "error", err)
				os.Exit(1)
			}
			defer app.db.Close()

			settings := pipeline.Settings{
				NumDocs:            numDocs,
				RelevanceThreshold: threshold,
				Model:              model,
			}

			result, err := app.pipeline.Run(cmd.Context(), queryText, mode, settings)
			if err != nil {
				slog.Error("Query failed", "error", err)
				os.Exit(1)
			}

			printResult(result)
		},
	}
	queryCmd.Flags().StringVar(&modeFlag, "mode", "rag", "Answer mode: rag or simple")
	queryCmd.Flags().IntVarP(&numDocs, "num-docs", "k", 0, "Number of sources to retrieve")
	queryCmd.Flags().Float64VarP(&threshold, "threshold", "r", 0, "Relevance threshold (50-100)")
	queryCmd.Flags().StringVarP(&model, "model", "m", "", "Model to use for generation")

	rootCmd.AddCommand(indexCmd, queryCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

type app struct {
	db       *database.PostgresDB
	indexer  *ingest.Indexer
	pipeline *pipeline.Pipeline
}

func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.InitSchema(ctx, cfg.CollectionName, cfg.EmbeddingDimension); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	var embedder embeddings.Embedder
	if cfg.EmbeddingProvider == "google" {
		embedder, err = embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleAPIKey, cfg.EmbeddingDimension)
	} else {
		embedder, err = embeddings.NewLocalEmbedder(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	llm := clients.NewLMStudioClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.DefaultModel, cfg.LLMTimeout)

	store, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	registry := checksum.NewPostgresRegistry(db.Pool)

	indexer := ingest.NewIndexer(cfg.PDFFolderPath, cfg.ScanDepth, registry, store, embedder,
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), llm)
	indexer.EnrichModel = cfg.DefaultModel

	retriever := retrieval.NewRetriever(store, cfg.FetchK, cfg.MMRLambda)
	var reranker retrieval.Reranker
	if cfg.RerankURL != "" {
		reranker = retrieval.NewHTTPReranker(cfg.RerankURL, cfg.RerankModel, cfg.LLMTimeout)
	}
	p := pipeline.New(llm, embedder, retriever, reranker, cfg.RetrievalK, cfg.RelevanceThreshold)

	return &app{db: db, indexer: indexer, pipeline: p}, nil
}

func printResult(result *pipeline.Result) {
	fmt.Println()
	fmt.Println(result.Answer)

	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			year := "Unknown"
			if src.Year > 0 {
				year = fmt.Sprintf("%d", src.Year)
			}
			fmt.Printf("  [%d] %s (%s, %s) score=%.2f\n", src.Index, src.Title, src.Authors, year, src.Score)
		}
	}

	if result.Degraded.HydeFallback || result.Degraded.RerankFallback {
		fmt.Println("\nNote: some retrieval stages fell back to simpler behavior.")
	}
}
