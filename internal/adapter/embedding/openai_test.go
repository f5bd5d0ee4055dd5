package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docrag/config"
	"docrag/internal/domain"
)

// embeddingsStub serves the embeddings endpoint, failing any batch whose
// input contains "fail".
func embeddingsStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, in := range req.Input {
			if strings.Contains(in, "fail") {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"message":"backend exploded","type":"server_error"}}`))
				return
			}
		}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "embedding": []float32{1, 0}, "index": i}
		}
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "test-model"})
	}))
}

func TestEmbedFailedBatchSurfacesServiceError(t *testing.T) {
	srv := embeddingsStub(t)
	defer srv.Close()

	client, err := NewClient(config.EmbeddingConfig{
		Model:      "test-model",
		BaseURL:    srv.URL,
		BatchSize:  1,
		Workers:    2,
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// One bad batch among several good ones. The failing batch cancels
	// its siblings; the reported error must still be the service
	// failure, not a cancellation it triggered.
	_, err = client.Embed(context.Background(), []string{"alpha", "fail here", "beta", "gamma", "delta"})
	if err == nil {
		t.Fatal("expected an error from the failing batch")
	}

	var serviceErr *domain.EmbeddingServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected EmbeddingServiceError, got %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("sibling cancellation surfaced instead of the service failure: %v", err)
	}
}

func TestEmbedAllBatchesSucceed(t *testing.T) {
	srv := embeddingsStub(t)
	defer srv.Close()

	client, err := NewClient(config.EmbeddingConfig{
		Model:      "test-model",
		BaseURL:    srv.URL,
		BatchSize:  2,
		Workers:    2,
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	vectors, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if client.Dimension() != 2 {
		t.Errorf("expected dimension 2 established from the response, got %d", client.Dimension())
	}
}
