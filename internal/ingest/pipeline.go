// Package ingest runs the background ingestion pipeline: parse and
// chunk an uploaded file, embed the chunks, and upsert them into the
// vector store under the uploading tenant.
package ingest

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// FileMetadata identifies an upload through the pipeline.
type FileMetadata struct {
	FileID    string
	Filename  string
	UserID    string
	Extension string
}

func (m FileMetadata) toMap() map[string]interface{} {
	return map[string]interface{}{
		vectorstore.FieldFileID: m.FileID,
		"filename":              m.Filename,
		vectorstore.FieldUserID: m.UserID,
		"extension":             m.Extension,
	}
}

// chunkProcessor parses a file into embedding-ready chunks. Satisfied
// by *chunking.Chunker.
type chunkProcessor interface {
	ProcessFile(ctx context.Context, path string, meta map[string]interface{}) ([]vectorstore.Chunk, error)
}

// Pipeline ties parsing, chunking, and upserting together.
type Pipeline struct {
	chunker chunkProcessor
	store   vectorstore.Store
	logger  *zap.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(chunker chunkProcessor, store vectorstore.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chunker: chunker,
		store:   store,
		logger:  logger,
	}
}

// Run ingests the file at path for the tenant named in meta. The temp
// file is removed on every exit path, success or failure, so aborted
// ingestions cannot fill the upload directory. Failures are logged and
// returned; callers running Run in the background are expected to rely
// on the logs.
func (p *Pipeline) Run(ctx context.Context, path string, meta FileMetadata) error {
	defer p.removeTempFile(path)

	p.logger.Info("starting ingestion pipeline",
		zap.String("file_id", meta.FileID),
		zap.String("filename", meta.Filename),
		zap.String("user_id", meta.UserID),
	)

	chunks, err := p.chunker.ProcessFile(ctx, path, meta.toMap())
	if err != nil {
		p.logger.Error("ingestion failed at chunking",
			zap.String("file_id", meta.FileID),
			zap.Error(err),
		)
		return fmt.Errorf("chunking %s: %w", meta.Filename, err)
	}

	if len(chunks) == 0 {
		p.logger.Warn("no chunks generated, file may be empty or unparseable",
			zap.String("file_id", meta.FileID),
			zap.String("filename", meta.Filename),
		)
		return nil
	}

	tenant := vectorstore.Tenant{UserID: meta.UserID}
	if err := p.store.UpsertChunks(ctx, tenant, chunks); err != nil {
		p.logger.Error("ingestion failed at upsert",
			zap.String("file_id", meta.FileID),
			zap.Int("chunks", len(chunks)),
			zap.Error(err),
		)
		return fmt.Errorf("upserting chunks for %s: %w", meta.Filename, err)
	}

	p.logger.Info("document ingested",
		zap.String("file_id", meta.FileID),
		zap.String("filename", meta.Filename),
		zap.String("user_id", meta.UserID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func (p *Pipeline) removeTempFile(path string) {
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("failed to remove temp file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	p.logger.Debug("cleaned up temp file", zap.String("path", path))
}
