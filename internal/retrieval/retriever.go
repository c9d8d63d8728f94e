package retrieval

import (
	"context"
	"log/slog"
)

// EmbeddingProvider produces embedding vectors for a batch of texts.
// Entries in the result are nil when no embedding could be produced.
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// Retriever embeds a query text and looks up the closest stored contracts.
// It never fails the caller: any problem along the way degrades to an empty
// context set, logged.
type Retriever struct {
	provider EmbeddingProvider
	store    VectorStore
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever backed by the given provider and store.
func NewRetriever(provider EmbeddingProvider, store VectorStore, topK int, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{provider: provider, store: store, topK: topK, logger: logger}
}

// Retrieve returns the stored contracts closest to the given text, closest
// first. An empty collection, a failed embedding, or a store error all
// yield an empty result.
//
// The count check runs before any embedding call, so querying an empty
// collection costs no provider traffic.
func (r *Retriever) Retrieve(ctx context.Context, text string) []RetrievedContext {
	count, err := r.store.Count()
	if err != nil {
		r.logger.Warn("context retrieval skipped: counting documents failed", "error", err)
		return nil
	}
	if count == 0 {
		r.logger.Debug("context retrieval skipped: collection is empty")
		return nil
	}

	vectors := r.provider.EmbedBatch(ctx, []string{text})
	if len(vectors) == 0 || vectors[0] == nil {
		r.logger.Warn("context retrieval skipped: query embedding unavailable")
		return nil
	}

	results, err := r.store.Query(ctx, vectors[0], r.topK)
	if err != nil {
		r.logger.Warn("context retrieval skipped: similarity query failed", "error", err)
		return nil
	}
	return results
}
