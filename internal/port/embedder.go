package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts, one vector per input
	// text in the same order. Vectors are L2-normalized. Transient service
	// failures are retried internally; exhausted retries surface as a
	// *domain.EmbeddingServiceError.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
