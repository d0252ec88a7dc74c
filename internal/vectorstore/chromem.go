package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("ragd.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory
	// only, which is what tests use.
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool

	// CollectionName is the collection holding all tenants' chunks.
	CollectionName string

	// VectorSize is the embedding dimension. Must match the embedder output.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.CollectionName == "" {
		c.CollectionName = "ragd_chunks"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore is a Store implementation backed by chromem-go, an
// embeddable pure-Go vector database. No external service is needed, which
// makes it the default for local runs and the workhorse for tests.
//
// chromem metadata is map[string]string, so sanitized values are flattened
// to strings on write and restored on read where the encoding allows.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := ValidateCollectionName(config.CollectionName); err != nil {
		return nil, fmt.Errorf("validating collection name: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.String("collection", config.CollectionName),
		zap.Int("vector_size", config.VectorSize),
	)
	return store, nil
}

// Close releases resources. chromem-go has no connection to close.
func (s *ChromemStore) Close() error {
	return nil
}

// embeddingFunc adapts the Embedder to chromem's query-time interface.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	collection, err := s.db.GetOrCreateCollection(s.config.CollectionName, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", s.config.CollectionName, err)
	}
	return collection, nil
}

// UpsertChunks embeds, sanitizes, and upserts chunks in batches of
// UpsertBatchSize. Aborts on the first failed batch; earlier batches stay
// committed.
func (s *ChromemStore) UpsertChunks(ctx context.Context, tenant Tenant, chunks []Chunk) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.UpsertChunks")
	defer span.End()

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if err := tenant.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return err
	}

	for i, batch := range batchChunks(chunks, UpsertBatchSize) {
		if err := s.upsertBatch(ctx, collection, tenant, batch); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("upserting batch %d: %w", i+1, err)
		}
		s.logger.Info("upserted batch",
			zap.Int("batch", i+1),
			zap.Int("size", len(batch)),
			zap.String(FieldUserID, tenant.UserID),
		)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

func (s *ChromemStore) upsertBatch(ctx context.Context, collection *chromem.Collection, tenant Tenant, batch []Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(embeddings), len(batch))
	}

	docs := make([]chromem.Document, len(batch))
	for i, chunk := range batch {
		meta := SanitizeMetadata(chunk.Metadata, s.logger)
		meta[FieldText] = chunk.Text
		tenant.Tag(meta)

		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Metadata:  flattenMetadata(meta),
			Embedding: embeddings[i],
		}
	}

	// Concurrency 1: embeddings are already computed above.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Query returns the tenant's nearest chunks for the given embedding.
func (s *ChromemStore) Query(ctx context.Context, tenant Tenant, embedding []float32, topK int) ([]SearchResult, error) {
	return s.query(ctx, tenant, embedding, topK, nil)
}

// QueryByFile returns the tenant's chunks for one file, up to topK.
func (s *ChromemStore) QueryByFile(ctx context.Context, tenant Tenant, fileID string, topK int) ([]SearchResult, error) {
	if fileID == "" {
		return nil, fmt.Errorf("file id cannot be empty")
	}
	// Unit basis vector: only the filter matters for this probe, and
	// chromem's cosine similarity cannot normalize an all-zero vector.
	probe := make([]float32, s.config.VectorSize)
	probe[0] = 1
	return s.query(ctx, tenant, probe, topK, map[string]interface{}{FieldFileID: fileID})
}

func (s *ChromemStore) query(ctx context.Context, tenant Tenant, embedding []float32, topK int, extraFilter map[string]interface{}) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(attribute.Int("top_k", topK))

	if err := tenant.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if len(embedding) != s.config.VectorSize {
		return nil, fmt.Errorf("embedding dimension %d does not match collection dimension %d", len(embedding), s.config.VectorSize)
	}

	collection := s.db.GetCollection(s.config.CollectionName, s.embeddingFunc())
	if collection == nil {
		// Nothing ingested yet: no matches for any tenant.
		return []SearchResult{}, nil
	}

	filters := tenant.Filter()
	for k, v := range extraFilter {
		filters[k] = v
	}
	where := flattenMetadata(filters)

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := collection.QueryEmbedding(ctx, embedding, topK, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.CollectionName, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: restoreMetadata(r.Metadata),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// flattenMetadata converts sanitized metadata to chromem's string map.
// String lists are JSON-encoded; restoreMetadata reverses this.
func flattenMetadata(meta map[string]interface{}) map[string]string {
	flat := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			flat[k] = val
		case bool:
			flat[k] = strconv.FormatBool(val)
		case []string:
			encoded, err := json.Marshal(val)
			if err != nil {
				continue
			}
			flat[k] = string(encoded)
		default:
			flat[k] = fmt.Sprintf("%v", val)
		}
	}
	return flat
}

// restoreMetadata converts chromem's string map back to metadata values.
// JSON-encoded string lists are decoded; everything else stays a string.
func restoreMetadata(flat map[string]string) map[string]interface{} {
	meta := make(map[string]interface{}, len(flat))
	for k, v := range flat {
		if len(v) > 1 && v[0] == '[' {
			var strs []string
			if err := json.Unmarshal([]byte(v), &strs); err == nil {
				meta[k] = strs
				continue
			}
		}
		meta[k] = v
	}
	return meta
}
