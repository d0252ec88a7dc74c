package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

func newTestStore(t *testing.T) (*ChromemStore, *fakeEmbedder) {
	t.Helper()
	embedder := newFakeEmbedder(testDimension)
	store, err := NewChromemStore(ChromemConfig{
		CollectionName: "test_chunks",
		VectorSize:     testDimension,
	}, embedder, nil)
	require.NoError(t, err)
	return store, embedder
}

func testChunks(fileID, userID string, n int) []Chunk {
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			ID:   fmt.Sprintf("%s#chunk%d", fileID, i),
			Text: fmt.Sprintf("chunk %d body for %s", i, fileID),
			Metadata: map[string]interface{}{
				"user_id":  userID,
				"file_id":  fileID,
				"filename": fileID + ".txt",
			},
		}
	}
	return chunks
}

func TestChromemStoreUpsertAndQuery(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()
	tenant := Tenant{UserID: "u1"}

	chunks := testChunks("f1", "u1", 3)
	require.NoError(t, store.UpsertChunks(ctx, tenant, chunks))

	// Query with the exact embedding of chunk 1's text: it must come first.
	vec, err := embedder.EmbedQuery(ctx, chunks[1].Text)
	require.NoError(t, err)

	results, err := store.Query(ctx, tenant, vec, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, chunks[1].ID, results[0].ID)
	assert.Equal(t, chunks[1].Text, results[0].Text())
	assert.Equal(t, "u1", results[0].Metadata["user_id"])
}

func TestChromemStoreTenantIsolation(t *testing.T) {
	// Data ingested for one tenant must be invisible to any other tenant,
	// even for a query matching the content exactly.
	store, embedder := newTestStore(t)
	ctx := context.Background()

	secret := "the secret password is ORANGE-SUNSET"
	require.NoError(t, store.UpsertChunks(ctx, Tenant{UserID: "user_alpha_99"}, []Chunk{{
		ID:   "secrets#chunk0",
		Text: secret,
		Metadata: map[string]interface{}{
			"user_id":  "user_alpha_99",
			"file_id":  "secrets",
			"filename": "secrets.txt",
		},
	}}))

	vec, err := embedder.EmbedQuery(ctx, secret)
	require.NoError(t, err)

	results, err := store.Query(ctx, Tenant{UserID: "user_beta_01"}, vec, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotContains(t, r.Text(), "ORANGE-SUNSET")
	}
	assert.Empty(t, results)

	// The owner still sees it.
	owned, err := store.Query(ctx, Tenant{UserID: "user_alpha_99"}, vec, 10)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Contains(t, owned[0].Text(), "ORANGE-SUNSET")
}

func TestChromemStoreRejectsInvalidTenant(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.UpsertChunks(ctx, Tenant{}, testChunks("f1", "", 1))
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = store.Query(ctx, Tenant{}, make([]float32, testDimension), 5)
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestChromemStoreBatching(t *testing.T) {
	// 250 chunks must be embedded and upserted as 100+100+50.
	store, embedder := newTestStore(t)
	ctx := context.Background()
	tenant := Tenant{UserID: "u1"}

	require.NoError(t, store.UpsertChunks(ctx, tenant, testChunks("big", "u1", 250)))
	assert.Equal(t, []int{100, 100, 50}, embedder.recordedBatchSizes())
}

func TestChromemStoreBatchFailureAborts(t *testing.T) {
	// When the second batch fails, the first stays committed and the third
	// is never attempted.
	store, embedder := newTestStore(t)
	embedder.failAfter = 1
	ctx := context.Background()
	tenant := Tenant{UserID: "u1"}

	err := store.UpsertChunks(ctx, tenant, testChunks("big", "u1", 250))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2")
	assert.Equal(t, []int{100}, embedder.recordedBatchSizes())

	// First batch's chunks are visible (at-least-once, partial success).
	results, err := store.QueryByFile(ctx, tenant, "big", 500)
	require.NoError(t, err)
	assert.Len(t, results, 100)
}

func TestChromemStoreQueryByFile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	tenant := Tenant{UserID: "u1"}

	require.NoError(t, store.UpsertChunks(ctx, tenant, testChunks("f1", "u1", 3)))
	require.NoError(t, store.UpsertChunks(ctx, tenant, testChunks("f2", "u1", 2)))

	results, err := store.QueryByFile(ctx, tenant, "f1", 100)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, strings.HasPrefix(r.ID, "f1#chunk"))
	}

	// Unknown file: no matches, no error.
	none, err := store.QueryByFile(ctx, tenant, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChromemStoreEmptyStoreQuery(t *testing.T) {
	store, _ := newTestStore(t)

	results, err := store.Query(context.Background(), Tenant{UserID: "nobody"}, make([]float32, testDimension), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
