package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTEIRerankerRerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "restart procedure", req.Query)
		require.Len(t, req.Texts, 3)

		// Sorted by descending score, as TEI returns them.
		results := []rerankResult{
			{Index: 2, Score: 0.95},
			{Index: 0, Score: 0.40},
			{Index: 1, Score: 0.10},
		}
		require.NoError(t, json.NewEncoder(w).Encode(results))
	}))
	defer server.Close()

	reranker, err := NewTEIReranker(TEIConfig{BaseURL: server.URL})
	require.NoError(t, err)

	docs := []Document{
		{ID: "a", Content: "alpha", Score: 0.5},
		{ID: "b", Content: "beta", Score: 0.6},
		{ID: "c", Content: "gamma", Score: 0.7},
	}

	results, err := reranker.Rerank(context.Background(), "restart procedure", docs, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, float32(0.95), results[0].RerankerScore)
	assert.Equal(t, 2, results[0].OriginalRank)
	assert.Equal(t, "a", results[1].ID)
}

func TestTEIRerankerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	reranker, err := NewTEIReranker(TEIConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = reranker.Rerank(context.Background(), "q", []Document{{ID: "a", Content: "x"}}, 1)
	assert.ErrorIs(t, err, ErrRerankFailed)
}

func TestTEIRerankerBadIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode([]rerankResult{{Index: 7, Score: 0.5}}))
	}))
	defer server.Close()

	reranker, err := NewTEIReranker(TEIConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = reranker.Rerank(context.Background(), "q", []Document{{ID: "a", Content: "x"}}, 1)
	assert.ErrorIs(t, err, ErrRerankFailed)
}

func TestNewReranker(t *testing.T) {
	r, err := New(Config{Provider: "simple"})
	require.NoError(t, err)
	assert.IsType(t, &SimpleReranker{}, r)

	r, err = New(Config{Provider: "tei", BaseURL: "http://localhost:8082"})
	require.NoError(t, err)
	assert.IsType(t, &TEIReranker{}, r)

	_, err = New(Config{Provider: "cohere"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
