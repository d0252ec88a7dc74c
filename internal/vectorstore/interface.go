// Package vectorstore defines the interface for tenant-scoped vector storage.
package vectorstore

import (
	"context"
	"errors"
)

// UpsertBatchSize is the number of chunks embedded and upserted per request.
// Bounds per-request payload size and amortizes embedding inference.
const UpsertBatchSize = 100

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyChunks indicates empty or nil chunks.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrConnectionFailed indicates a connection failure to the vector index.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for tenant-scoped vector storage.
//
// Every operation takes an explicit Tenant value; there is no way to read
// or write chunks without naming the tenant. This is the sole isolation
// boundary: the tenant tag is injected into every stored chunk's metadata
// and a matching filter is applied on every query. An invalid tenant is
// rejected before any provider call (fail closed).
//
// Semantics:
//   - UpsertChunks partitions chunks into batches of UpsertBatchSize,
//     embeds each batch's texts together, sanitizes each chunk's metadata,
//     and issues one upsert per batch. On a batch failure it aborts:
//     earlier batches stay committed, no further batches are attempted,
//     and the error is returned. Callers must treat a failed upsert as
//     "may be partially indexed".
//   - Query returns up to topK nearest matches for the given embedding,
//     filtered to the tenant's chunks.
//   - QueryByFile additionally scopes matches to one file_id. Used by the
//     status endpoint for existence probes and capped chunk counts.
//
// Implementations: QdrantStore (external Qdrant over gRPC) and
// ChromemStore (embedded chromem-go).
type Store interface {
	UpsertChunks(ctx context.Context, tenant Tenant, chunks []Chunk) error
	Query(ctx context.Context, tenant Tenant, embedding []float32, topK int) ([]SearchResult, error)
	QueryByFile(ctx context.Context, tenant Tenant, fileID string, topK int) ([]SearchResult, error)

	// Close closes the store connection and releases resources.
	Close() error
}
