package embeddings

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Lazy defers provider construction until the first embedding call.
// This keeps startup fast and tolerant of a model server that is still
// warming up: a failed initialization is not cached, so a later call
// retries it. Safe for concurrent use; exactly one provider is built.
type Lazy struct {
	newFn  func() (Provider, error)
	logger *zap.Logger

	mu       sync.Mutex
	provider Provider
}

// NewLazy creates a lazily initialized provider around a constructor.
func NewLazy(newFn func() (Provider, error), logger *zap.Logger) *Lazy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lazy{newFn: newFn, logger: logger}
}

func (l *Lazy) get() (Provider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.provider != nil {
		return l.provider, nil
	}

	provider, err := l.newFn()
	if err != nil {
		l.logger.Error("embedding provider initialization failed", zap.Error(err))
		return nil, err
	}

	l.logger.Info("embedding provider initialized", zap.Int("dimension", provider.Dimension()))
	l.provider = provider
	return provider, nil
}

// EmbedDocuments generates embeddings for multiple texts, initializing
// the underlying provider on first use.
func (l *Lazy) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	provider, err := l.get()
	if err != nil {
		return nil, err
	}
	return provider.EmbedDocuments(ctx, texts)
}

// EmbedQuery generates an embedding for a single query, initializing
// the underlying provider on first use.
func (l *Lazy) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	provider, err := l.get()
	if err != nil {
		return nil, err
	}
	return provider.EmbedQuery(ctx, text)
}

// Dimension returns the embedding dimension, initializing the provider
// if needed. Returns 0 when initialization fails.
func (l *Lazy) Dimension() int {
	provider, err := l.get()
	if err != nil {
		return 0
	}
	return provider.Dimension()
}

// Close releases the underlying provider if it was ever initialized.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.provider == nil {
		return nil
	}
	err := l.provider.Close()
	l.provider = nil
	return err
}
