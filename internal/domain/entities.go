package domain

import "time"

// Document is a file under the watched folder. The hash is a sha256 of the
// raw file bytes and drives change detection across rebuilds.
type Document struct {
	Path    string
	Hash    string
	ModTime time.Time
	Chunks  int
}

// Chunk is a contiguous slice of a document's extracted text. Start and End
// are rune offsets into the extracted text; Seq is the chunk's position
// within its document. Chunks are immutable: a changed document invalidates
// and regenerates all of its chunks.
type Chunk struct {
	DocPath string `json:"doc_path"`
	Seq     int    `json:"seq"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text"`
}

// Entry pairs a chunk with its embedding vector. Entries are stored in the
// index as an ordered sequence; vector and chunk metadata stay aligned 1:1.
type Entry struct {
	Chunk  Chunk
	Vector []float32
}

// Match is a search result: the stored chunk plus its cosine distance to the
// query vector (smaller is closer).
type Match struct {
	Chunk    Chunk
	Distance float64
}
