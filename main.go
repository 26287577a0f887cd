package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"google.golang.org/genai"

	"github.com/docuquery/rag/controller"
	"github.com/docuquery/rag/services"
)

// config collects every knob the two pipelines need. Values come from the
// environment (a .env file is loaded by the services package on startup).
type config struct {
	port            string
	vectorStore     string
	chromaURL       string
	collectionName  string
	ollamaURL       string
	embedModel      string
	embedDimensions int
	embedTimeout    time.Duration
	geminiModel     string
	generateTimeout time.Duration
	chunkSize       int
	chunkOverlap    int
	topK            int
	maxContextChars int
	maxFilesCount   int
	maxFileSizeMB   int
	watchDir        string
}

func loadConfig() config {
	return config{
		port:            envStr("PORT", "8080"),
		vectorStore:     envStr("VECTOR_STORE", "chroma"),
		chromaURL:       envStr("CHROMA_URL", "http://localhost:8000"),
		collectionName:  envStr("RAG_COLLECTION_NAME", "rag-documents"),
		ollamaURL:       envStr("OLLAMA_URL", "http://localhost:11434"),
		embedModel:      envStr("OLLAMA_EMBED_MODEL", "nomic-embed-text:v1.5"),
		embedDimensions: envInt("OLLAMA_EMBED_DIMENSIONS", 768),
		embedTimeout:    time.Duration(envInt("EMBED_TIMEOUT_SECONDS", 30)) * time.Second,
		geminiModel:     envStr("GEMINI_MODEL", "gemini-2.5-flash"),
		generateTimeout: time.Duration(envInt("GENERATE_TIMEOUT_SECONDS", 60)) * time.Second,
		chunkSize:       envInt("CHUNK_SIZE", 1500),
		chunkOverlap:    envInt("CHUNK_OVERLAP", 200),
		topK:            envInt("RAG_TOP_K", 4),
		maxContextChars: envInt("MAX_CONTEXT_CHARS", 12000),
		maxFilesCount:   envInt("MAX_FILES_COUNT", 5),
		maxFileSizeMB:   envInt("MAX_FILE_SIZE_MB", 10),
		watchDir:        os.Getenv("WATCH_DIR"),
	}
}

func main() {
	cfg := loadConfig()

	store, cleanup, err := buildVectorStore(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to set up vector store: %v", err)
	}
	defer cleanup()

	embedder := services.NewOllamaEmbedder(cfg.ollamaURL, cfg.embedModel, cfg.embedDimensions, cfg.embedTimeout)

	geminiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to create Gemini client: %v. Make sure GEMINI_API_KEY is set.", err)
	}
	log.Println("Successfully connected to Google Gemini.")
	generator := services.NewGeminiGenerator(geminiClient, cfg.geminiModel, cfg.generateTimeout)

	chunker := services.NewChunker(cfg.chunkSize, cfg.chunkOverlap)
	ingestService := services.NewIngestionService(chunker, embedder, store)
	ragService := services.NewRAGService(embedder, generator, store, cfg.topK, cfg.maxContextChars)
	ragController := controller.NewRAGController(ingestService, ragService,
		cfg.maxFilesCount, int64(cfg.maxFileSizeMB)*1024*1024)

	if cfg.watchDir != "" {
		watchService := services.NewWatchService(ingestService)
		watchCtx, cancelWatch := context.WithCancel(context.Background())
		defer cancelWatch()
		go func() {
			watchService.ScanDirectory(watchCtx, cfg.watchDir)
			watchService.WatchDirectory(watchCtx, cfg.watchDir)
		}()
	}

	// Setup Gin router
	router := gin.Default()

	// Add health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "RAG API",
			"version": "1.0.0",
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/documents", ragController.UploadDocuments)
		apiV1.GET("/documents", ragController.ListDocuments)
		apiV1.DELETE("/documents/:filename", ragController.DeleteDocument)
		apiV1.POST("/query", ragController.QueryRAG)
	}

	log.Printf("RAG backend server starting on http://localhost:%s", cfg.port)
	if err := router.Run(":" + cfg.port); err != nil {
		log.Fatalf("FATAL: Failed to start server: %v", err)
	}
}

// buildVectorStore selects the configured store implementation. The memory
// store needs no external service and is mainly useful for local development.
func buildVectorStore(cfg config) (services.VectorStore, func(), error) {
	if cfg.vectorStore == "memory" {
		log.Println("Using in-memory vector store.")
		return services.NewMemoryVectorStore(), func() {}, nil
	}

	chromaClient, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.chromaURL))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := chromaClient.Close(); err != nil {
			log.Printf("Warning: Failed to close chroma client: %v", err)
		}
	}

	collection, err := getOrCreateCollection(chromaClient, cfg.collectionName, cfg.embedModel)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return services.NewChromaVectorStore(collection), cleanup, nil
}

// getOrCreateCollection implements collection management using the v2 API.
// The embedding model is recorded in the collection metadata so a store
// created under one embedding function is not silently reused with another.
func getOrCreateCollection(client chromago.Client, collectionName, embedModel string) (chromago.Collection, error) {
	ctx := context.Background()

	log.Printf("Getting or creating collection '%s' using v2 API...", collectionName)

	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "RAG document collection"),
				chromago.NewStringAttribute("embedding_model", embedModel),
			),
		),
	)
	if err != nil {
		return nil, err
	}

	// The collection may predate this process. A store built under one
	// embedding function must not be reused with another: same-dimension
	// vectors from a different model would silently corrupt ranking.
	if err := verifyEmbeddingModel(collection.Metadata(), embedModel); err != nil {
		return nil, err
	}

	log.Printf("Successfully got/created collection '%s'", collectionName)
	return collection, nil
}

// verifyEmbeddingModel compares the embedding model recorded in the
// collection metadata with the configured one. Collections created before
// the attribute existed carry no record and are let through with a warning.
func verifyEmbeddingModel(meta chromago.CollectionMetadata, configured string) error {
	if meta == nil {
		log.Println("WARN: collection has no metadata; cannot verify embedding model.")
		return nil
	}
	stored, ok := meta.GetString("embedding_model")
	if !ok {
		log.Println("WARN: collection metadata does not record an embedding model; cannot verify.")
		return nil
	}
	if stored != configured {
		return fmt.Errorf("collection was built with embedding model %q but OLLAMA_EMBED_MODEL is %q; "+
			"use a different RAG_COLLECTION_NAME or re-ingest under the configured model", stored, configured)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("WARN: invalid value for %s: %q, using default %d", key, v, fallback)
	}
	return fallback
}
