package chunking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{ChunkSize: 1500, ChunkOverlap: 200}, false},
		{"zero size", Config{ChunkSize: 0, ChunkOverlap: 0}, true},
		{"negative overlap", Config{ChunkSize: 100, ChunkOverlap: -1}, true},
		{"overlap equals size", Config{ChunkSize: 100, ChunkOverlap: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessFileText(t *testing.T) {
	chunker, err := NewChunker(Config{ChunkSize: 1500, ChunkOverlap: 200}, nil)
	require.NoError(t, err)

	path := writeTempFile(t, "notes.txt", "First paragraph about storage.\n\nSecond paragraph about retrieval.")
	meta := map[string]interface{}{
		"file_id":  "f-123",
		"filename": "notes.txt",
		"user_id":  "u1",
	}

	chunks, err := chunker.ProcessFile(context.Background(), path, meta)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	chunk := chunks[0]
	assert.Equal(t, "f-123#chunk0", chunk.ID)
	assert.Contains(t, chunk.Text, "First paragraph")
	assert.Equal(t, "u1", chunk.Metadata["user_id"])
	assert.Equal(t, "notes.txt", chunk.Metadata["filename"])
	assert.Equal(t, chunk.Text, chunk.Metadata[vectorstore.FieldText])
}

func TestProcessFileChunkIDs(t *testing.T) {
	// A long document must yield sequential chunk IDs under one file ID.
	chunker, err := NewChunker(Config{ChunkSize: 80, ChunkOverlap: 10}, nil)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about vector databases and retrieval. ", i)
	}
	path := writeTempFile(t, "long.txt", sb.String())

	chunks, err := chunker.ProcessFile(context.Background(), path, map[string]interface{}{"file_id": "big"})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	seen := make(map[string]bool)
	for i, chunk := range chunks {
		assert.Equal(t, fmt.Sprintf("big#chunk%d", i), chunk.ID)
		assert.False(t, seen[chunk.ID], "duplicate chunk ID %s", chunk.ID)
		seen[chunk.ID] = true
		assert.NotEmpty(t, chunk.Text)
		assert.LessOrEqual(t, len(chunk.Text), 80)
	}
}

func TestProcessFileCallerMetadataWins(t *testing.T) {
	chunker, err := NewChunker(Config{ChunkSize: 1500, ChunkOverlap: 200}, nil)
	require.NoError(t, err)

	path := writeTempFile(t, "doc.txt", "Some content.")
	chunks, err := chunker.ProcessFile(context.Background(), path, map[string]interface{}{
		"file_id":  "f1",
		"category": "override",
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	// The parser sets category too; the caller's value must win.
	assert.Equal(t, "override", chunks[0].Metadata["category"])
}

func TestProcessFileEmpty(t *testing.T) {
	chunker, err := NewChunker(Config{ChunkSize: 1500, ChunkOverlap: 200}, nil)
	require.NoError(t, err)

	for _, content := range []string{"", "   \n\n  "} {
		path := writeTempFile(t, "empty.txt", content)
		chunks, err := chunker.ProcessFile(context.Background(), path, map[string]interface{}{"file_id": "f1"})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestProcessFileGeneratesFileID(t *testing.T) {
	chunker, err := NewChunker(Config{ChunkSize: 1500, ChunkOverlap: 200}, nil)
	require.NoError(t, err)

	path := writeTempFile(t, "doc.txt", "Content without a caller file id.")
	chunks, err := chunker.ProcessFile(context.Background(), path, map[string]interface{}{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	id := chunks[0].ID
	assert.True(t, strings.HasSuffix(id, "#chunk0"))
	assert.Greater(t, strings.Index(id, "#"), 0)
}

func TestProcessFileUnsupportedExtension(t *testing.T) {
	chunker, err := NewChunker(Config{ChunkSize: 1500, ChunkOverlap: 200}, nil)
	require.NoError(t, err)

	path := writeTempFile(t, "binary.exe", "MZ")
	_, err = chunker.ProcessFile(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
}

func TestProcessFileMissing(t *testing.T) {
	chunker, err := NewChunker(Config{ChunkSize: 1500, ChunkOverlap: 200}, nil)
	require.NoError(t, err)

	_, err = chunker.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.ErrorIs(t, err, ErrParseFailed)
}
