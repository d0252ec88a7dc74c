// Package query runs the retrieval side of the RAG pipeline: embed the
// query, search the vector store under the caller's tenant, rerank the
// candidates, and generate a grounded answer.
package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// contextSeparator joins reranked chunks into the prompt context.
const contextSeparator = "\n\n---\n\n"

// answerGenerator produces the final answer from query and context.
// Satisfied by *generation.Generator.
type answerGenerator interface {
	GenerateAnswer(ctx context.Context, query, docContext string) string
}

// Config holds retrieval limits for the query service.
type Config struct {
	// RetrievalLimit is how many candidates to fetch from the store
	RetrievalLimit int

	// RerankLimit is how many candidates survive reranking
	RerankLimit int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.RetrievalLimit <= 0 {
		return fmt.Errorf("retrieval limit must be positive")
	}
	if c.RerankLimit <= 0 || c.RerankLimit > c.RetrievalLimit {
		return fmt.Errorf("rerank limit must be positive and at most the retrieval limit")
	}
	return nil
}

// Result is the outcome of answering a query.
type Result struct {
	// Answer is the generated answer text
	Answer string

	// ContextFound reports whether any usable context was retrieved.
	// When false, Answer is empty and the caller decides the fallback.
	ContextFound bool
}

// Service orchestrates retrieve, rerank, and generate.
type Service struct {
	embedder  vectorstore.Embedder
	store     vectorstore.Store
	reranker  reranker.Reranker
	generator answerGenerator
	config    Config
	logger    *zap.Logger
}

// NewService creates a query service.
func NewService(embedder vectorstore.Embedder, store vectorstore.Store, rr reranker.Reranker, generator answerGenerator, config Config, logger *zap.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:  embedder,
		store:     store,
		reranker:  rr,
		generator: generator,
		config:    config,
		logger:    logger,
	}, nil
}

// Answer retrieves context for query under tenant and generates an
// answer from it. Retrieval and reranking errors propagate; generation
// failures do not, the generator maps them to a service error answer.
// When no usable context exists, Result.ContextFound is false and no
// generation happens.
func (s *Service) Answer(ctx context.Context, query string, tenant vectorstore.Tenant) (Result, error) {
	docContext, err := s.getContext(ctx, query, tenant)
	if err != nil {
		return Result{}, err
	}
	if docContext == "" {
		return Result{ContextFound: false}, nil
	}

	answer := s.generator.GenerateAnswer(ctx, query, docContext)
	return Result{Answer: answer, ContextFound: true}, nil
}

// getContext embeds the query, searches the store, reranks, and joins
// the surviving chunk texts. Returns "" when nothing usable was found.
func (s *Service) getContext(ctx context.Context, query string, tenant vectorstore.Tenant) (string, error) {
	s.logger.Debug("generating query embedding", zap.String("query", truncate(query, 50)))

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.store.Query(ctx, tenant, embedding, s.config.RetrievalLimit)
	if err != nil {
		return "", fmt.Errorf("searching store: %w", err)
	}
	if len(results) == 0 {
		s.logger.Info("no matches found",
			zap.String("query", truncate(query, 50)),
			zap.String("user_id", tenant.UserID),
		)
		return "", nil
	}
	s.logger.Info("retrieved candidates", zap.Int("count", len(results)))

	// Matches without stored text cannot contribute to the prompt.
	docs := make([]reranker.Document, 0, len(results))
	for _, result := range results {
		text := result.Text()
		if text == "" {
			s.logger.Warn("skipping match without text", zap.String("id", result.ID))
			continue
		}
		docs = append(docs, reranker.Document{
			ID:      result.ID,
			Content: text,
			Score:   result.Score,
		})
	}
	if len(docs) == 0 {
		s.logger.Warn("no usable chunks in retrieved matches")
		return "", nil
	}

	reranked, err := s.reranker.Rerank(ctx, query, docs, s.config.RerankLimit)
	if err != nil {
		return "", fmt.Errorf("reranking: %w", err)
	}

	texts := make([]string, len(reranked))
	for i, doc := range reranked {
		texts[i] = doc.Content
	}
	s.logger.Info("reranked candidates",
		zap.Int("retrieved", len(docs)),
		zap.Int("kept", len(texts)),
	)
	return strings.Join(texts, contextSeparator), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
