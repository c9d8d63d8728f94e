package retrieval

import "context"

// VectorStore is the interface for the collection of embedded contract
// documents. The current implementation uses SQLite with brute-force cosine
// distance; the interface keeps the door open for an ANN-capable backend
// once collections outgrow a full scan.
type VectorStore interface {
	// EnsureCollection creates the named collection if it does not exist.
	// Idempotent.
	EnsureCollection() error

	// Upsert inserts documents, replacing any with the same ID.
	Upsert(ctx context.Context, docs []Document) error

	// Query returns up to k documents closest to the given embedding,
	// ordered by ascending cosine distance. k is clamped to the number of
	// stored documents; an empty collection yields an empty result, not an
	// error.
	Query(ctx context.Context, vector []float32, k int) ([]RetrievedContext, error)

	// Count returns the number of documents in the collection.
	Count() (int, error)

	// Reset drops all documents and recreates the collection.
	Reset() error
}

// Document is a contract text with its embedding, as stored.
type Document struct {
	ID        string
	FileName  string
	RowIndex  int
	Text      string
	Embedding []float32
}

// RetrievedContext is a stored document returned from a similarity query.
// Distance is the cosine distance to the query embedding: non-negative,
// lower is closer.
type RetrievedContext struct {
	ID       string
	FileName string
	RowIndex int
	Text     string
	Distance float32
}
