// Package extract turns raw contract text into structured Details by
// prompting a generative model, optionally grounded with similar contracts
// retrieved from the vector store.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pactex/pactex/internal/retrieval"
)

// Generator produces model output for a prompt. An empty string means the
// model produced nothing usable.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// ContextRetriever finds stored contracts similar to the given text.
type ContextRetriever interface {
	Retrieve(ctx context.Context, text string) []retrieval.RetrievedContext
}

// Extractor orchestrates prompt building, generation, parsing, and field
// normalization.
type Extractor struct {
	generator Generator
	retriever ContextRetriever
	logger    *slog.Logger
}

// NewExtractor creates an Extractor. retriever may be nil, in which case
// extraction always runs without retrieved context.
func NewExtractor(generator Generator, retriever ContextRetriever, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{generator: generator, retriever: retriever, logger: logger}
}

// Extract pulls the six contract fields out of text. A nil result means
// extraction failed: empty input, no model output, or unparseable output.
// Retrieval problems never fail extraction; they only shrink the context.
func (e *Extractor) Extract(ctx context.Context, text string, useRAG bool) *Details {
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("extraction skipped: input text is empty")
		return nil
	}

	var contexts []retrieval.RetrievedContext
	if useRAG && e.retriever != nil {
		contexts = e.retriever.Retrieve(ctx, text)
		e.logger.Info("retrieved similar contracts", "count", len(contexts))
	}

	prompt := BuildPrompt(text, contexts)
	e.logger.Debug("extraction prompt built", "tokens", EstimateTokens(prompt))

	out := e.generator.Generate(ctx, prompt)
	if out == "" {
		e.logger.Error("model returned no response for extraction")
		return nil
	}

	raw := ParseObject(out)
	if raw == nil {
		e.logger.Error("model response contained no parseable JSON")
		return nil
	}

	return normalize(raw)
}
