package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pactex/pactex/internal/retrieval"
)

// Populator fills the vector store from a RowSource.
type Populator struct {
	provider retrieval.EmbeddingProvider
	store    retrieval.VectorStore
	logger   *slog.Logger
}

// NewPopulator creates a Populator with the given dependencies.
func NewPopulator(provider retrieval.EmbeddingProvider, store retrieval.VectorStore, logger *slog.Logger) *Populator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Populator{provider: provider, store: store, logger: logger}
}

// Populate loads rows from src, embeds them in one batch, and upserts the
// survivors into the collection.
//
// With force set, the collection is dropped and rebuilt; a failed reset
// aborts before any other work. Without force, a non-empty collection is
// left untouched. Rows lacking text or a file name are skipped, and rows
// whose embedding could not be produced are dropped, both logged. If no
// row survives, nothing is written and an error is returned.
func (p *Populator) Populate(ctx context.Context, src RowSource, force bool) error {
	if force {
		p.logger.Warn("force repopulation requested, dropping existing collection", "source", src.Name())
		if err := p.store.Reset(); err != nil {
			return fmt.Errorf("resetting collection: %w", err)
		}
	} else {
		count, err := p.store.Count()
		if err != nil {
			return fmt.Errorf("counting documents: %w", err)
		}
		if count > 0 {
			p.logger.Info("collection already populated, skipping", "count", count, "source", src.Name())
			return nil
		}
	}

	if err := p.store.EnsureCollection(); err != nil {
		return err
	}

	rows, err := src.Rows()
	if err != nil {
		return fmt.Errorf("reading rows from %s: %w", src.Name(), err)
	}

	valid := make([]Row, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Text) == "" || strings.TrimSpace(row.FileName) == "" {
			p.logger.Warn("skipping row with missing text or file name", "index", row.Index)
			continue
		}
		valid = append(valid, row)
	}
	if len(valid) == 0 {
		return fmt.Errorf("no usable rows in %s", src.Name())
	}

	texts := make([]string, len(valid))
	for i, row := range valid {
		texts[i] = row.Text
	}
	vectors := p.provider.EmbedBatch(ctx, texts)

	docs := make([]retrieval.Document, 0, len(valid))
	for i, row := range valid {
		if i >= len(vectors) || vectors[i] == nil {
			p.logger.Warn("dropping row without embedding", "index", row.Index, "file", row.FileName)
			continue
		}
		docs = append(docs, retrieval.Document{
			ID:        DocumentID(row.Index, row.FileName),
			FileName:  row.FileName,
			RowIndex:  row.Index,
			Text:      row.Text,
			Embedding: vectors[i],
		})
	}
	if len(docs) == 0 {
		return fmt.Errorf("no embeddings produced for %d rows, nothing stored", len(valid))
	}

	if err := p.store.Upsert(ctx, docs); err != nil {
		p.logger.Error("storing documents failed", "documents", len(docs), "error", err)
		return fmt.Errorf("storing %d documents: %w", len(docs), err)
	}

	p.logger.Info("collection populated",
		"source", src.Name(),
		"documents", len(docs),
		"skipped", len(rows)-len(docs))
	return nil
}
