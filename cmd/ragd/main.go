// Ragd is a multi-tenant retrieval-augmented generation service.
//
// This binary starts the ragd HTTP server with full pipeline
// initialization: embedding provider, vector store, reranker, and
// answer generation.
//
// Configuration is loaded from an optional YAML file plus environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	ragd
//
//	# Configure via file and environment
//	SERVER_PORT=9090 STORE_QDRANT_HOST=qdrant ragd -config ragd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunking"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/query"
	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/server"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ragd           Start the ragd server\n")
			fmt.Fprintf(os.Stderr, "  ragd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("ragd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the pipeline and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	// A .env file is a convenience for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logging.Sync(logger)

	logger.Info("starting ragd",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	embedder := embeddings.NewLazy(func() (embeddings.Provider, error) {
		return embeddings.NewProvider(embeddings.ProviderConfig{
			Provider:  cfg.Embedding.Provider,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			APIKey:    cfg.Embedding.APIKey.Value(),
		})
	}, logger)
	defer embedder.Close()

	store, err := newStore(cfg, embedder, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer store.Close()

	chunker, err := chunking.NewChunker(chunking.Config{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing chunker: %w", err)
	}

	pipeline := ingest.NewPipeline(chunker, store, logger)

	rr, err := reranker.New(reranker.Config{
		Provider: cfg.Rerank.Provider,
		BaseURL:  cfg.Rerank.BaseURL,
		Model:    cfg.Rerank.Model,
	})
	if err != nil {
		return fmt.Errorf("initializing reranker: %w", err)
	}
	defer rr.Close()

	genClient, err := generation.NewClient(generation.ClientConfig{
		BaseURL:   cfg.Generation.BaseURL,
		APIKey:    cfg.Generation.APIKey.Value(),
		Model:     cfg.Generation.Model,
		MaxTokens: cfg.Generation.MaxTokens,
		Timeout:   cfg.Generation.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("initializing generation client: %w", err)
	}
	generator := generation.NewGenerator(genClient, logger)

	querySvc, err := query.NewService(embedder, store, rr, generator, query.Config{
		RetrievalLimit: cfg.Query.RetrievalLimit,
		RerankLimit:    cfg.Query.RerankLimit,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing query service: %w", err)
	}

	srv := server.NewServer(cfg, querySvc, pipeline, store, logger)

	logger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"),
	)

	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// newStore builds the configured vector store backend.
func newStore(cfg *config.Config, embedder vectorstore.Embedder, logger *zap.Logger) (vectorstore.Store, error) {
	dimension := cfg.Embedding.Dimension

	switch cfg.Store.Backend {
	case "qdrant":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:           cfg.Store.Qdrant.Host,
			Port:           cfg.Store.Qdrant.Port,
			CollectionName: cfg.Store.Collection,
			VectorSize:     uint64(dimension),
			UseTLS:         cfg.Store.Qdrant.UseTLS,
		}, embedder, logger)
	case "chromem":
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:           cfg.Store.Chromem.Path,
			Compress:       cfg.Store.Chromem.Compress,
			CollectionName: cfg.Store.Collection,
			VectorSize:     dimension,
		}, embedder, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
