package reranker

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// SimpleReranker ranks documents by lexical overlap with the query. It
// blends the original similarity score with the fraction of query terms
// present in the document, half weight each, so semantic ranking still
// matters while exact term matches get boosted. Useful as a fallback
// when no cross-encoder server is available.
type SimpleReranker struct{}

// NewSimpleReranker creates a new SimpleReranker.
func NewSimpleReranker() *SimpleReranker {
	return &SimpleReranker{}
}

// Rerank scores docs by combined similarity and term overlap.
func (r *SimpleReranker) Rerank(_ context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if topK <= 0 {
		topK = len(docs)
	}
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		// Nothing to match against; keep the original similarity order.
		return rankByScore(docs, topK), nil
	}

	type candidate struct {
		doc      ScoredDocument
		combined float32
	}

	candidates := make([]candidate, len(docs))
	for i, doc := range docs {
		overlap := termOverlap(queryTerms, tokenize(doc.Content))
		candidates[i] = candidate{
			doc: ScoredDocument{
				Document:      doc,
				RerankerScore: overlap,
				OriginalRank:  i,
			},
			combined: 0.5*doc.Score + 0.5*overlap,
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].combined > candidates[j].combined
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	result := make([]ScoredDocument, topK)
	for i := range result {
		result[i] = candidates[i].doc
	}
	return result, nil
}

// Close is a no-op; SimpleReranker holds no resources.
func (r *SimpleReranker) Close() error {
	return nil
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

// tokenize lowercases text and splits it into terms, dropping stopwords
// and terms shorter than three characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 2 && !stopwords[field] {
			terms = append(terms, field)
		}
	}
	return terms
}

// termOverlap returns the fraction of unique query terms that appear in
// the document, between 0 and 1.
func termOverlap(queryTerms, docTerms []string) float32 {
	if len(queryTerms) == 0 {
		return 0
	}

	docSet := make(map[string]bool, len(docTerms))
	for _, term := range docTerms {
		docSet[term] = true
	}

	matched := make(map[string]bool)
	for _, term := range queryTerms {
		if docSet[term] {
			matched[term] = true
		}
	}

	unique := make(map[string]bool, len(queryTerms))
	for _, term := range queryTerms {
		unique[term] = true
	}
	return float32(len(matched)) / float32(len(unique))
}

// rankByScore orders documents by their original similarity score.
func rankByScore(docs []Document, topK int) []ScoredDocument {
	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if topK > len(sorted) {
		topK = len(sorted)
	}
	result := make([]ScoredDocument, topK)
	for i := range result {
		result[i] = ScoredDocument{
			Document:      sorted[i],
			RerankerScore: sorted[i].Score,
			OriginalRank:  i,
		}
	}
	return result
}
