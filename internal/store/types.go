// Package store provides the persistence layer: vector search (HNSW),
// keyword search (Bleve BM25), and chunk metadata (SQLite).
package store

import (
	"context"
	"fmt"
	"time"
)

// Chunk is a persisted retrievable unit of a document.
type Chunk struct {
	ID          string // "<doc_id>_<chunk_index>"
	DocumentID  string
	Title       string
	Content     string
	ChunkIndex  int
	StartOffset int // byte offset into the original document
	EndOffset   int
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Document is an ingested source document.
type Document struct {
	ID         string
	Title      string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// KeywordDoc is a document as submitted to the keyword index.
type KeywordDoc struct {
	ID      string
	Content string
}

// KeywordHit is a single keyword search result.
type KeywordHit struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// VectorHit is a single vector search result.
type VectorHit struct {
	ID       string
	Distance float32 // lower is more similar
	Score    float32 // normalized similarity in [0,1]
}

// KeywordIndex provides BM25-scored full text search.
type KeywordIndex interface {
	Index(ctx context.Context, docs []*KeywordDoc) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordHit, error)
	Delete(ctx context.Context, ids []string) error
	DocCount() (int, error)
	Close() error
}

// VectorIndex provides approximate nearest neighbor search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorHit, error)
	Delete(ctx context.Context, ids []string) error
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ChunkStore persists chunks and document records.
type ChunkStore interface {
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	ChunkIDsByDocument(ctx context.Context, docID string) ([]string, error)

	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// StoreStats summarizes the metadata store contents.
type StoreStats struct {
	DocumentCount int
	ChunkCount    int
}

// VectorIndexConfig configures the HNSW index.
type VectorIndexConfig struct {
	// Dimensions is the embedding width, e.g. 768 for nomic-embed-text,
	// 256 for the static fallback embedder.
	Dimensions int

	// Metric is "cos" (cosine) or "l2" (euclidean). Default "cos".
	Metric string

	// M is the HNSW max connections per layer.
	M int

	// EfSearch is the query-time search width.
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for the given
// embedding width.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates a vector of the wrong width.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex with the current embedder)", e.Expected, e.Got)
}
