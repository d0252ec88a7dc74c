// Package chunking parses uploaded documents and splits their text into
// overlapping chunks sized for embedding.
//
// Parsing is extension-driven (plain text, Markdown, HTML, PDF) and
// produces intermediate elements that carry their own metadata, such as
// PDF page numbers. Splitting uses a recursive character splitter that
// tries coarse separators first (paragraph, line, sentence) and falls
// back to finer ones, so chunk boundaries land on natural breaks when
// possible.
package chunking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedExtension indicates a file type without a parser
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrParseFailed indicates document parsing failure
	ErrParseFailed = errors.New("document parsing failed")
)

// defaultSeparators is the separator cascade for recursive splitting,
// coarsest first.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Config holds configuration for the chunker.
type Config struct {
	// ChunkSize is the maximum chunk length in characters
	ChunkSize int

	// ChunkOverlap is the number of characters shared between
	// consecutive chunks
	ChunkOverlap int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap cannot be negative", ErrInvalidConfig)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalidConfig)
	}
	return nil
}

// Chunker parses files and splits them into embedding-ready chunks.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	logger   *zap.Logger
}

// NewChunker creates a chunker with the given configuration.
func NewChunker(config Config, logger *zap.Logger) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators(defaultSeparators),
	)

	return &Chunker{
		splitter: splitter,
		logger:   logger,
	}, nil
}

// ProcessFile parses the file at path and returns its chunks, ready for
// upsert. Chunk IDs are "{file_id}#chunk{i}" with i increasing across
// the whole document, so re-ingesting a file overwrites its previous
// chunks instead of duplicating them.
//
// Each chunk's metadata merges the parser's element metadata with the
// caller's metadata; on key collision the caller wins. The chunk text
// is stored under the "text" key. An empty or whitespace-only document
// yields an empty slice and no error.
func (c *Chunker) ProcessFile(ctx context.Context, path string, meta map[string]interface{}) ([]vectorstore.Chunk, error) {
	c.logger.Info("processing file", zap.String("path", path))

	elements, err := parseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	fileID, ok := meta[vectorstore.FieldFileID].(string)
	if !ok || fileID == "" {
		fileID = uuid.NewString()
	}

	var chunks []vectorstore.Chunk
	index := 0
	for _, element := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		texts, err := c.splitter.SplitText(element.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting text: %w", err)
		}

		for _, text := range texts {
			merged := make(map[string]interface{}, len(element.Metadata)+len(meta)+1)
			for k, v := range element.Metadata {
				if v != nil {
					merged[k] = v
				}
			}
			for k, v := range meta {
				merged[k] = v
			}
			merged[vectorstore.FieldText] = text

			chunks = append(chunks, vectorstore.Chunk{
				ID:       fmt.Sprintf("%s#chunk%d", fileID, index),
				Text:     text,
				Metadata: merged,
			})
			index++
		}
	}

	c.logger.Info("split document into chunks",
		zap.String("file_id", fileID),
		zap.Int("chunks", len(chunks)),
	)
	return chunks, nil
}
