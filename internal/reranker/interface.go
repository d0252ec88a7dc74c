// Package reranker narrows a retrieval candidate set down to the most
// query-relevant documents before generation.
//
// Two implementations are provided: a TEI cross-encoder client for
// quality reranking, and a lexical term-overlap reranker that needs no
// model server.
package reranker

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRerankFailed indicates the reranking backend failed
	ErrRerankFailed = errors.New("reranking failed")
)

// Document is a retrieval candidate to be reranked.
type Document struct {
	ID      string  // Unique identifier for the document
	Content string  // Text content to be re-ranked
	Score   float32 // Original similarity score from search
}

// ScoredDocument is a document with its reranking score.
type ScoredDocument struct {
	Document
	RerankerScore float32 // Relevance score from the reranker (0.0-1.0)
	OriginalRank  int     // Position in the input candidate list (0-indexed)
}

// Reranker reorders retrieval candidates by query relevance.
type Reranker interface {
	// Rerank scores docs against query and returns up to topK results
	// sorted by descending relevance. topK <= 0 means all documents.
	Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error)

	// Close releases any resources held by the reranker.
	Close() error
}

// Config holds configuration for creating a reranker.
type Config struct {
	// Provider is the reranker type: "tei" or "simple"
	Provider string
	// BaseURL is the TEI reranker URL (TEI provider only)
	BaseURL string
	// Model is the reranker model (informational)
	Model string
}

// New creates a reranker based on the configuration.
func New(cfg Config) (Reranker, error) {
	switch cfg.Provider {
	case "tei":
		return NewTEIReranker(TEIConfig{BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "simple", "":
		return NewSimpleReranker(), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
