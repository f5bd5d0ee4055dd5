package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIndex is returned when an operation needs an index that has not
	// been built yet. Callers distinguish this from corruption: a missing
	// store means "run init", a corrupt one means "run rebuild --full".
	ErrNoIndex = errors.New("no index found")

	// ErrIndexCorrupt is returned when the persisted index fails structural
	// validation. Recovery requires an explicit full rebuild.
	ErrIndexCorrupt = errors.New("index store is corrupt")

	// ErrRebuildInFlight is returned when a rebuild is requested while
	// another rebuild is still running.
	ErrRebuildInFlight = errors.New("rebuild already in progress")
)

// ExtractionError reports a file that could not be turned into text.
// Extraction failures are isolated per document: the scan logs them and
// continues with the rest of the corpus.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ChunkingError reports an invalid chunking configuration. It aborts the
// pipeline before any embedding work is done.
type ChunkingError struct {
	Size    int
	Overlap int
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("invalid chunking config: size=%d overlap=%d (need size > 0 and 0 <= overlap < size)", e.Size, e.Overlap)
}

// EmbeddingServiceError reports an embedding-service failure after retries
// were exhausted. There is no silent degradation to zero vectors: a failed
// batch is fatal for the current build or query.
type EmbeddingServiceError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// ConfigMismatchError reports that the index was built with a different
// embedding model (or vector dimensionality) than the one configured.
// Mixing vector spaces is never tolerated; the caller must force a rebuild.
type ConfigMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("index %s mismatch: index has %q, config wants %q (run rebuild --full)", e.Field, e.Got, e.Want)
}

// QueryError reports an invalid query rejected before reaching the index.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}
