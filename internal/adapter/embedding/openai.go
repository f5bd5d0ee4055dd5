package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docrag/config"
	"docrag/internal/domain"
)

// Client embeds text through an OpenAI-compatible embeddings endpoint
// (a local Ollama server by default). It is stateless apart from the
// dimensionality learned from the first response; batches for independent
// chunks are issued concurrently through a fixed-size worker pool.
type Client struct {
	api       *openai.Client
	model     string
	batchSize int
	workers   int
	retry     RetryPolicy

	mu        sync.Mutex
	dimension int
}

// NewClient creates an embedding client from configuration. Local servers
// accept any API key, so a missing key env falls back to a placeholder.
func NewClient(cfg config.EmbeddingConfig) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		apiKey = "ollama"
	}

	apiCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	return &Client{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     cfg.Model,
		batchSize: batchSize,
		workers:   workers,
		retry:     DefaultRetryPolicy(cfg.MaxRetries),
	}, nil
}

// Embed generates one normalized vector per input text, order preserved.
// Batches run concurrently up to the worker limit; the first failure cancels
// the remaining work and is returned.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type batch struct {
		start int
		texts []string
	}

	var batches []batch
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: i, texts: texts[i:end]})
	}

	vectors := make([][]float32, len(texts))
	sem := make(chan struct{}, c.workers)
	errCh := make(chan error, len(batches))
	var wg sync.WaitGroup

	for _, b := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(b batch) {
			defer wg.Done()
			defer func() { <-sem }()

			embs, err := c.embedBatch(ctx, b.texts)
			if err != nil {
				errCh <- err
				cancel()
				return
			}
			copy(vectors[b.start:], embs)
			errCh <- nil
		}(b)
	}
	wg.Wait()
	close(errCh)

	// The failing batch cancels its siblings, which then report
	// context.Canceled. Surface the batch's own error, not a
	// cancellation it caused.
	var embedErr error
	for err := range errCh {
		if err == nil {
			continue
		}
		if embedErr == nil || (errors.Is(embedErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
			embedErr = err
		}
	}
	if embedErr != nil {
		return nil, embedErr
	}

	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding service returned no vector for input %d", i)
		}
	}

	return vectors, nil
}

// embedBatch issues a single embeddings request under the retry policy.
func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// Newlines are folded into spaces before embedding, the same
	// cleanup the service's own clients apply.
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = strings.ReplaceAll(t, "\n", " ")
	}

	var resp openai.EmbeddingResponse
	err := c.retry.Do(ctx, func() error {
		var reqErr error
		resp, reqErr = c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: input,
			Model: openai.EmbeddingModel(c.model),
		})
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding service returned out-of-range index %d", data.Index)
		}
		v := make([]float32, len(data.Embedding))
		copy(v, data.Embedding)
		if err := c.checkDimension(len(v)); err != nil {
			return nil, err
		}
		Normalize(v)
		vectors[data.Index] = v
	}

	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding service skipped input %d", i)
		}
	}

	return vectors, nil
}

// checkDimension establishes the vector dimensionality from the first
// response and treats any later deviation as a fatal configuration error.
func (c *Client) checkDimension(got int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dimension == 0 {
		c.dimension = got
		return nil
	}
	if got != c.dimension {
		return &domain.ConfigMismatchError{
			Field: "dimension",
			Want:  strconv.Itoa(c.dimension),
			Got:   strconv.Itoa(got),
		}
	}
	return nil
}

// Dimension returns the embedding dimension, or 0 before the first call.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// ModelName returns the name of the embedding model.
func (c *Client) ModelName() string {
	return c.model
}

// Normalize scales a vector to unit length in place, so that cosine ranking
// is scale-invariant with respect to text length.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
