package embedding

import "context"

// MockEmbedder produces deterministic vectors derived from the input text.
// It exists for tests and offline runs; similarity ranking with it is only
// as meaningful as character overlap, which is enough to exercise the index.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dimension)
		j := 0
		for _, r := range text {
			v[j%e.dimension] += float32(r) / 1000.0
			j++
		}
		Normalize(v)
		vectors[i] = v
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
