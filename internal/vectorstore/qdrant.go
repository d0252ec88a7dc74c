package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("ragd.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334 by convention, not the REST 6333).
	Port int

	// CollectionName is the collection holding all tenants' chunks.
	CollectionName string

	// VectorSize is the embedding dimension. Must match the embedder output.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries is the retry budget for transient failures per request.
	// Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubling per retry. Default: 1s.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes. Default: 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ValidateCollectionName validates a collection name against ^[a-z0-9_]{1,64}$.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// isTransientError reports whether an error should be retried.
func isTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore is a Store implementation backed by Qdrant's native gRPC
// client. Binary protobuf transport avoids the REST layer's payload limits
// for large upsert batches.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore creates a QdrantStore, verifies connectivity, and creates
// the configured collection when it does not exist yet.
func NewQdrantStore(config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := ValidateCollectionName(config.CollectionName); err != nil {
		return nil, fmt.Errorf("validating collection name: %w", err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.CollectionName),
		zap.Uint64("vector_size", config.VectorSize),
	)
	return store, nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ensureCollection creates the configured collection if missing.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.CollectionName)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.CollectionName, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.CollectionName, err)
	}
	return nil
}

// retryOperation retries a transient-failing operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// UpsertChunks embeds, sanitizes, and upserts chunks in batches of
// UpsertBatchSize. Aborts on the first failed batch; earlier batches stay
// committed.
func (s *QdrantStore) UpsertChunks(ctx context.Context, tenant Tenant, chunks []Chunk) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.UpsertChunks")
	defer span.End()

	span.SetAttributes(
		attribute.Int("chunk_count", len(chunks)),
		attribute.String("collection", s.config.CollectionName),
	)

	if err := tenant.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	for i, batch := range batchChunks(chunks, UpsertBatchSize) {
		if err := s.upsertBatch(ctx, tenant, batch); err != nil {
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

// upsertBatch embeds one batch's texts together and issues a single upsert.
func (s *QdrantStore) upsertBatch(ctx context.Context, tenant Tenant, batch []Chunk) error {
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

	points := make([]*qdrant.PointStruct, len(batch))
	for i, chunk := range batch {
		meta := SanitizeMetadata(chunk.Metadata, s.logger)
		meta[FieldText] = chunk.Text
		tenant.Tag(meta)

		payload := metadataToPayload(meta)
		payload["id"] = qdrant.NewValueString(chunk.ID)

		// Chunk IDs like "file#chunk0" are not valid Qdrant point IDs;
		// the point gets a derived UUID and the chunk ID lives in the
		// payload for retrieval.
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ID)).String()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	return s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.CollectionName,
			Points:         points,
		})
		return err
	})
}

// Query returns the tenant's nearest chunks for the given embedding.
func (s *QdrantStore) Query(ctx context.Context, tenant Tenant, embedding []float32, topK int) ([]SearchResult, error) {
	return s.query(ctx, tenant, embedding, topK, nil)
}

// QueryByFile returns the tenant's chunks for one file, up to topK. The
// query vector is all zeros: only the filter matters for this probe.
func (s *QdrantStore) QueryByFile(ctx context.Context, tenant Tenant, fileID string, topK int) ([]SearchResult, error) {
	if fileID == "" {
		return nil, fmt.Errorf("file id cannot be empty")
	}
	zero := make([]float32, s.config.VectorSize)
	return s.query(ctx, tenant, zero, topK, map[string]interface{}{FieldFileID: fileID})
}

func (s *QdrantStore) query(ctx context.Context, tenant Tenant, embedding []float32, topK int, extraFilter map[string]interface{}) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("top_k", topK),
	)

	if err := tenant.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if uint64(len(embedding)) != s.config.VectorSize {
		return nil, fmt.Errorf("embedding dimension %d does not match collection dimension %d", len(embedding), s.config.VectorSize)
	}

	filters := tenant.Filter()
	for k, v := range extraFilter {
		filters[k] = v
	}
	conditions := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		keyword, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("filter value for %q must be a string", key)
		}
		conditions = append(conditions, qdrant.NewMatch(key, keyword))
	}

	var scored []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.CollectionName,
			Query:          qdrant.NewQuery(embedding...),
			Limit:          qdrant.PtrOf(uint64(topK)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         &qdrant.Filter{Must: conditions},
		})
		if err != nil {
			return err
		}
		scored = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.CollectionName, err)
	}

	results := make([]SearchResult, len(scored))
	for i, point := range scored {
		result := SearchResult{Score: point.Score}
		if point.Payload != nil {
			result.Metadata = payloadToMetadata(point.Payload)
			if id, ok := result.Metadata["id"].(string); ok {
				result.ID = id
			}
		}
		results[i] = result
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// metadataToPayload converts sanitized metadata to Qdrant payload values.
// Sanitized metadata only holds scalars and string lists.
func metadataToPayload(meta map[string]interface{}) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			payload[k] = qdrant.NewValueString(val)
		case bool:
			payload[k] = qdrant.NewValueBool(val)
		case int:
			payload[k] = qdrant.NewValueInt(int64(val))
		case int8:
			payload[k] = qdrant.NewValueInt(int64(val))
		case int16:
			payload[k] = qdrant.NewValueInt(int64(val))
		case int32:
			payload[k] = qdrant.NewValueInt(int64(val))
		case int64:
			payload[k] = qdrant.NewValueInt(val)
		case uint:
			payload[k] = qdrant.NewValueInt(int64(val))
		case uint8:
			payload[k] = qdrant.NewValueInt(int64(val))
		case uint16:
			payload[k] = qdrant.NewValueInt(int64(val))
		case uint32:
			payload[k] = qdrant.NewValueInt(int64(val))
		case uint64:
			payload[k] = qdrant.NewValueInt(int64(val))
		case float32:
			payload[k] = qdrant.NewValueDouble(float64(val))
		case float64:
			payload[k] = qdrant.NewValueDouble(val)
		case []string:
			values := make([]*qdrant.Value, len(val))
			for i, s := range val {
				values[i] = qdrant.NewValueString(s)
			}
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_ListValue{
				ListValue: &qdrant.ListValue{Values: values},
			}}
		}
	}
	return payload
}

// payloadToMetadata converts a Qdrant payload back to metadata.
func payloadToMetadata(payload map[string]*qdrant.Value) map[string]interface{} {
	meta := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			meta[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			meta[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			meta[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			meta[k] = val.BoolValue
		case *qdrant.Value_ListValue:
			strs := make([]string, 0, len(val.ListValue.GetValues()))
			for _, item := range val.ListValue.GetValues() {
				if s, ok := item.Kind.(*qdrant.Value_StringValue); ok {
					strs = append(strs, s.StringValue)
				}
			}
			meta[k] = strs
		}
	}
	return meta
}
