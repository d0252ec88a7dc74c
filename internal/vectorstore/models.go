package vectorstore

// Metadata field names with reserved meaning in the vector index schema.
const (
	// FieldText always holds the raw chunk text, for context reconstruction.
	FieldText = "text"

	// FieldUserID always holds the owning tenant identifier.
	FieldUserID = "user_id"

	// FieldFileID holds the source document identifier.
	FieldFileID = "file_id"
)

// Chunk is a bounded segment of a source document, the atomic unit of
// embedding and retrieval.
type Chunk struct {
	// ID is unique within the index: "{file_id}#chunk{index}", with the
	// numeric suffix monotonic in document order.
	ID string

	// Text is the chunk's raw text.
	Text string

	// Metadata is the union of parser-derived and caller-supplied fields.
	// Sanitized before storage; see SanitizeMetadata.
	Metadata map[string]interface{}
}

// SearchResult is one match from a tenant-filtered similarity query.
// Request-scoped; never persisted.
type SearchResult struct {
	// ID is the chunk identifier.
	ID string

	// Score is the similarity score (higher is more similar).
	Score float32

	// Metadata is the stored, sanitized chunk metadata.
	Metadata map[string]interface{}
}

// Text returns the chunk text stored in the result's metadata, or ""
// if the field is missing or not a string.
func (r SearchResult) Text() string {
	if r.Metadata == nil {
		return ""
	}
	text, _ := r.Metadata[FieldText].(string)
	return text
}

// batchChunks partitions chunks into consecutive batches of at most size.
func batchChunks(chunks []Chunk, size int) [][]Chunk {
	if size <= 0 || len(chunks) == 0 {
		return nil
	}
	batches := make([][]Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
