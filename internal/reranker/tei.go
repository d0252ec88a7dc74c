package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TEIConfig holds configuration for the TEI reranker.
type TEIConfig struct {
	// BaseURL is the TEI reranker server URL
	BaseURL string

	// Model is the cross-encoder model served by TEI (informational)
	Model string

	// Timeout bounds each rerank request. Defaults to 30s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// TEIReranker scores documents with a cross-encoder model behind TEI's
// /rerank endpoint.
type TEIReranker struct {
	config TEIConfig
	client *http.Client
}

// NewTEIReranker creates a new TEI reranker.
func NewTEIReranker(config TEIConfig) (*TEIReranker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &TEIReranker{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// rerankRequest is the request body for the TEI rerank endpoint.
type rerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

// rerankResult is one entry of the TEI rerank response, which arrives
// sorted by descending score.
type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Rerank sends the candidates to TEI and maps the scored response back
// onto the input documents.
func (r *TEIReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if topK <= 0 {
		topK = len(docs)
	}
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrRerankFailed, resp.StatusCode, string(respBody))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	scored := make([]ScoredDocument, 0, topK)
	for _, result := range results {
		if result.Index < 0 || result.Index >= len(docs) {
			return nil, fmt.Errorf("%w: result index %d out of range", ErrRerankFailed, result.Index)
		}
		scored = append(scored, ScoredDocument{
			Document:      docs[result.Index],
			RerankerScore: result.Score,
			OriginalRank:  result.Index,
		})
		if len(scored) == topK {
			break
		}
	}
	return scored, nil
}

// Close is a no-op for TEI since it uses HTTP.
func (r *TEIReranker) Close() error {
	return nil
}
