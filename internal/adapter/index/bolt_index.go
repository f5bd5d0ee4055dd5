// Package index implements the persisted vector index: embeddings plus
// aligned chunk metadata in bbolt, searched brute-force with cosine
// distance. Entries live in insertion order; the position of a vector and
// the position of its metadata are always identical, and every mutation
// commits in a single bbolt transaction so readers see either the old or
// the new index, never a partial mix.
package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

const schemaVersion = 1

var (
	bucketMeta    = []byte("meta")
	bucketEntries = []byte("entries")
	bucketDocs    = []byte("docs")

	keySchemaVersion = []byte("schema_version")
	keyModel         = []byte("model")
	keyDimension     = []byte("dimension")
	keyCount         = []byte("count")
	keyNextSeq       = []byte("next_seq")
)

// BoltIndex is a bbolt-backed vector index. The in-memory copy serves
// queries; bbolt is the durable source of truth, reloaded at open.
type BoltIndex struct {
	db *bbolt.DB

	mu        sync.RWMutex
	vectors   [][]float32
	chunks    []domain.Chunk
	seqs      []uint64
	docs      map[string]domain.Document
	model     string
	dimension int
	nextSeq   uint64
}

type storedEntry struct {
	Vector []float32    `json:"v"`
	Chunk  domain.Chunk `json:"c"`
}

type storedDoc struct {
	Hash    string `json:"hash"`
	ModTime int64  `json:"mod_time"`
	Chunks  int    `json:"chunks"`
}

// Open opens (or creates) the index store at path and loads it into memory.
// A missing file yields an empty index ("no index yet"); a file that fails
// structural validation yields domain.ErrIndexCorrupt.
func Open(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		// Environmental failures (permissions, missing directory, lock
		// contention) surface as path errors or a flock timeout and pass
		// through unchanged; they do not warrant a rebuild. A file bbolt
		// cannot parse is corruption.
		var pathErr *os.PathError
		if errors.As(err, &pathErr) || errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("failed to open index store %s: %w", path, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketEntries, bucketDocs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &BoltIndex{db: db, docs: make(map[string]domain.Document)}
	if err := idx.load(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// load reads the full entry set into memory, validating the structural
// invariants the persisted layout promises.
func (s *BoltIndex) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)

		if v := meta.Get(keySchemaVersion); v != nil {
			var version int
			if err := json.Unmarshal(v, &version); err != nil || version != schemaVersion {
				return fmt.Errorf("%w: unsupported schema version %s", domain.ErrIndexCorrupt, v)
			}
		}
		if v := meta.Get(keyModel); v != nil {
			s.model = string(v)
		}
		if v := meta.Get(keyDimension); v != nil {
			if err := json.Unmarshal(v, &s.dimension); err != nil {
				return fmt.Errorf("%w: bad dimension record", domain.ErrIndexCorrupt)
			}
		}
		if v := meta.Get(keyNextSeq); v != nil {
			if err := json.Unmarshal(v, &s.nextSeq); err != nil {
				return fmt.Errorf("%w: bad sequence record", domain.ErrIndexCorrupt)
			}
		}

		var wantCount int
		if v := meta.Get(keyCount); v != nil {
			if err := json.Unmarshal(v, &wantCount); err != nil {
				return fmt.Errorf("%w: bad count record", domain.ErrIndexCorrupt)
			}
		}

		entries := tx.Bucket(bucketEntries)
		err := entries.ForEach(func(k, v []byte) error {
			var stored storedEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("%w: undecodable entry %x", domain.ErrIndexCorrupt, k)
			}
			if len(stored.Vector) != s.dimension {
				return fmt.Errorf("%w: entry %x has dimension %d, index records %d",
					domain.ErrIndexCorrupt, k, len(stored.Vector), s.dimension)
			}
			s.vectors = append(s.vectors, stored.Vector)
			s.chunks = append(s.chunks, stored.Chunk)
			s.seqs = append(s.seqs, binary.BigEndian.Uint64(k))
			return nil
		})
		if err != nil {
			return err
		}

		if len(s.vectors) != wantCount {
			return fmt.Errorf("%w: expected %d entries, found %d", domain.ErrIndexCorrupt, wantCount, len(s.vectors))
		}

		docs := tx.Bucket(bucketDocs)
		return docs.ForEach(func(k, v []byte) error {
			var stored storedDoc
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("%w: undecodable document %s", domain.ErrIndexCorrupt, k)
			}
			s.docs[string(k)] = docFromStored(string(k), stored)
			return nil
		})
	})
}

// ValidateModel checks the configured embedding model against the one the
// index was built with. Mixing vector spaces is detected, never tolerated.
func (s *BoltIndex) ValidateModel(model string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || s.model == model {
		return nil
	}
	return &domain.ConfigMismatchError{Field: "embedding model", Want: model, Got: s.model}
}

// Build replaces the entire index. The bbolt transaction and the in-memory
// swap both happen under the write lock, so concurrent queries block until
// the new index is fully constructed and persisted.
func (s *BoltIndex) Build(model string, dimension int, entries []domain.Entry, docs []domain.Document) error {
	if err := checkEntries(entries, dimension); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketEntries, bucketDocs} {
			if err := tx.DeleteBucket(b); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}

		eb := tx.Bucket(bucketEntries)
		for i, e := range entries {
			if err := putEntry(eb, uint64(i), e); err != nil {
				return err
			}
		}

		db := tx.Bucket(bucketDocs)
		for _, d := range docs {
			if err := putDoc(db, d); err != nil {
				return err
			}
		}

		return writeMeta(tx.Bucket(bucketMeta), model, dimension, len(entries), uint64(len(entries)))
	})
	if err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	s.vectors = make([][]float32, len(entries))
	s.chunks = make([]domain.Chunk, len(entries))
	s.seqs = make([]uint64, len(entries))
	for i, e := range entries {
		s.vectors[i] = e.Vector
		s.chunks[i] = e.Chunk
		s.seqs[i] = uint64(i)
	}
	s.docs = make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		s.docs[d.Path] = d
	}
	s.model = model
	s.dimension = dimension
	s.nextSeq = uint64(len(entries))
	return nil
}

// Update reconciles the index incrementally: entries of removed or modified
// documents are dropped and the new entries appended, in one transaction.
// Stale entries for a changed document never coexist with its new ones.
func (s *BoltIndex) Update(model string, dimension int, removePaths []string, entries []domain.Entry, docs []domain.Document) error {
	if err := checkEntries(entries, dimension); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.vectors) > 0 || s.model != "" {
		if model != s.model {
			return &domain.ConfigMismatchError{Field: "embedding model", Want: model, Got: s.model}
		}
		if dimension != s.dimension && s.dimension != 0 {
			return &domain.ConfigMismatchError{
				Field: "dimension",
				Want:  fmt.Sprintf("%d", dimension),
				Got:   fmt.Sprintf("%d", s.dimension),
			}
		}
	}

	removed := make(map[string]bool, len(removePaths))
	for _, p := range removePaths {
		removed[p] = true
	}

	// New aligned state, computed before anything is persisted.
	var (
		keepVectors [][]float32
		keepChunks  []domain.Chunk
		keepSeqs    []uint64
		dropSeqs    []uint64
	)
	for i, c := range s.chunks {
		if removed[c.DocPath] {
			dropSeqs = append(dropSeqs, s.seqs[i])
			continue
		}
		keepVectors = append(keepVectors, s.vectors[i])
		keepChunks = append(keepChunks, c)
		keepSeqs = append(keepSeqs, s.seqs[i])
	}

	nextSeq := s.nextSeq
	for _, e := range entries {
		keepVectors = append(keepVectors, e.Vector)
		keepChunks = append(keepChunks, e.Chunk)
		keepSeqs = append(keepSeqs, nextSeq)
		nextSeq++
	}

	newDocs := make(map[string]domain.Document, len(s.docs))
	for p, d := range s.docs {
		if !removed[p] {
			newDocs[p] = d
		}
	}
	for _, d := range docs {
		newDocs[d.Path] = d
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)
		for _, seq := range dropSeqs {
			if err := eb.Delete(seqKey(seq)); err != nil {
				return err
			}
		}
		seq := s.nextSeq
		for _, e := range entries {
			if err := putEntry(eb, seq, e); err != nil {
				return err
			}
			seq++
		}

		db := tx.Bucket(bucketDocs)
		for _, p := range removePaths {
			if err := db.Delete([]byte(p)); err != nil {
				return err
			}
		}
		for _, d := range docs {
			if err := putDoc(db, d); err != nil {
				return err
			}
		}

		return writeMeta(tx.Bucket(bucketMeta), model, dimension, len(keepChunks), nextSeq)
	})
	if err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	s.vectors = keepVectors
	s.chunks = keepChunks
	s.seqs = keepSeqs
	s.docs = newDocs
	s.model = model
	s.dimension = dimension
	s.nextSeq = nextSeq
	return nil
}

// Search returns the k nearest entries, ascending by cosine distance, ties
// broken by insertion order. An empty index returns an empty result.
func (s *BoltIndex) Search(query []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, &domain.QueryError{Reason: fmt.Sprintf("k must be positive, got %d", k)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, &domain.ConfigMismatchError{
			Field: "dimension",
			Want:  fmt.Sprintf("%d", s.dimension),
			Got:   fmt.Sprintf("%d", len(query)),
		}
	}

	type scored struct {
		pos      int
		distance float64
	}
	scores := make([]scored, len(s.vectors))
	for i, v := range s.vectors {
		scores[i] = scored{pos: i, distance: cosineDistance(query, v)}
	}

	// SliceStable keeps insertion order among equal distances.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].distance < scores[j].distance
	})

	if k > len(scores) {
		k = len(scores)
	}
	matches := make([]domain.Match, k)
	for i := 0; i < k; i++ {
		matches[i] = domain.Match{
			Chunk:    s.chunks[scores[i].pos],
			Distance: scores[i].distance,
		}
	}
	return matches, nil
}

// Docs returns the indexed documents keyed by path.
func (s *BoltIndex) Docs() map[string]domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Document, len(s.docs))
	for p, d := range s.docs {
		out[p] = d
	}
	return out
}

func (s *BoltIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *BoltIndex) ModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *BoltIndex) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}

func checkEntries(entries []domain.Entry, dimension int) error {
	if dimension <= 0 && len(entries) > 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	for i, e := range entries {
		if len(e.Vector) != dimension {
			return &domain.ConfigMismatchError{
				Field: "dimension",
				Want:  fmt.Sprintf("%d", dimension),
				Got:   fmt.Sprintf("%d (entry %d)", len(e.Vector), i),
			}
		}
	}
	return nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func putEntry(b *bbolt.Bucket, seq uint64, e domain.Entry) error {
	data, err := json.Marshal(storedEntry{Vector: e.Vector, Chunk: e.Chunk})
	if err != nil {
		return err
	}
	return b.Put(seqKey(seq), data)
}

func putDoc(b *bbolt.Bucket, d domain.Document) error {
	data, err := json.Marshal(storedDoc{
		Hash:    d.Hash,
		ModTime: d.ModTime.Unix(),
		Chunks:  d.Chunks,
	})
	if err != nil {
		return err
	}
	return b.Put([]byte(d.Path), data)
}

func writeMeta(b *bbolt.Bucket, model string, dimension, count int, nextSeq uint64) error {
	version, _ := json.Marshal(schemaVersion)
	if err := b.Put(keySchemaVersion, version); err != nil {
		return err
	}
	if err := b.Put(keyModel, []byte(model)); err != nil {
		return err
	}
	dim, _ := json.Marshal(dimension)
	if err := b.Put(keyDimension, dim); err != nil {
		return err
	}
	cnt, _ := json.Marshal(count)
	if err := b.Put(keyCount, cnt); err != nil {
		return err
	}
	seq, _ := json.Marshal(nextSeq)
	return b.Put(keyNextSeq, seq)
}

func docFromStored(path string, d storedDoc) domain.Document {
	return domain.Document{
		Path:    path,
		Hash:    d.Hash,
		ModTime: time.Unix(d.ModTime, 0),
		Chunks:  d.Chunks,
	}
}

// cosineDistance computes 1 - cosine similarity. Vectors are normalized
// before insertion, so the dot product alone gives the similarity.
func cosineDistance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}
