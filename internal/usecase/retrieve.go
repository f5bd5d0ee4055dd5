package usecase

import (
	"context"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Retriever answers a query with the top-k most similar chunks and their
// source attribution.
type Retriever struct {
	embedder port.Embedder
	index    port.VectorIndex
	// maxDistance filters matches farther than this from the query
	// (0 = disabled). Whether weak matches should count as "found" is a
	// judgment call; the threshold leaves it to configuration.
	maxDistance float64
}

func NewRetriever(embedder port.Embedder, index port.VectorIndex, maxDistance float64) *Retriever {
	return &Retriever{
		embedder:    embedder,
		index:       index,
		maxDistance: maxDistance,
	}
}

// Retrieve embeds the query and returns the nearest chunks, ascending by
// distance. An empty index (or nothing within the distance threshold)
// returns an empty result, not an error: the generation layer answers
// "not found in the provided documents" instead of fabricating.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, &domain.QueryError{Reason: "k must be positive"}
	}
	if strings.TrimSpace(query) == "" {
		return nil, &domain.QueryError{Reason: "query is empty"}
	}

	if r.index.Count() == 0 {
		return nil, nil
	}
	if err := r.index.ValidateModel(r.embedder.ModelName()); err != nil {
		return nil, err
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	matches, err := r.index.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}

	if r.maxDistance > 0 {
		kept := matches[:0]
		for _, m := range matches {
			if m.Distance <= r.maxDistance {
				kept = append(kept, m)
			}
		}
		matches = kept
	}
	return matches, nil
}
