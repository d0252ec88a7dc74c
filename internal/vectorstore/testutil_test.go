package vectorstore

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
)

// fakeEmbedder produces deterministic embeddings from a text hash, so
// identical texts map to identical vectors. It records batch sizes for
// batching assertions and can be told to fail after N calls.
type fakeEmbedder struct {
	dimension int

	mu         sync.Mutex
	batchSizes []int
	failAfter  int // fail EmbedDocuments calls once count exceeds this; 0 = never
	calls      int
}

var errEmbedderDown = errors.New("embedder down")

func newFakeEmbedder(dimension int) *fakeEmbedder {
	return &fakeEmbedder{dimension: dimension}
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, errEmbedderDown
	}
	f.batchSizes = append(f.batchSizes, len(texts))

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *fakeEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, f.dimension)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>32)) / float64(math.MaxInt32)
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (f *fakeEmbedder) recordedBatchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.batchSizes))
	copy(out, f.batchSizes)
	return out
}
