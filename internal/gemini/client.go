// Package gemini wraps the Google generative AI SDK behind the two
// provider operations the extraction pipeline needs: batched document
// embedding and prompted text generation.
//
// Neither operation ever returns an error to the caller. Transient API
// failures are retried a fixed number of times, then degrade to nil
// embeddings or an empty generation, with the cause logged. Callers treat
// those degraded values as "provider unavailable" and carry on.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// backend is the thin seam over the SDK, swapped for a fake in tests.
type backend interface {
	embedBatch(ctx context.Context, texts []string) ([][]float32, error)
	generate(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)
}

// Options configures a Client.
type Options struct {
	APIKey     string
	EmbedModel string
	GenModel   string
	// BatchSize caps how many texts go into a single embedding API call.
	BatchSize int
}

// Client provides embedding and generation against the Gemini API.
type Client struct {
	api       backend
	sdk       *genai.Client
	retry     RetryPolicy
	batchSize int
	logger    *slog.Logger
}

// NewClient dials the Gemini API. Close must be called when done.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sdk, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	gen := sdk.GenerativeModel(opts.GenModel)
	gen.SetTemperature(0.2)

	embed := sdk.EmbeddingModel(opts.EmbedModel)
	embed.TaskType = genai.TaskTypeRetrievalDocument

	return &Client{
		api:       &sdkBackend{embed: embed, gen: gen},
		sdk:       sdk,
		retry:     DefaultRetryPolicy(),
		batchSize: opts.BatchSize,
		logger:    logger,
	}, nil
}

// Close releases the underlying SDK connection.
func (c *Client) Close() error {
	if c.sdk != nil {
		return c.sdk.Close()
	}
	return nil
}

// EmbedBatch embeds texts in API-sized chunks and returns one vector per
// input, in order. A nil entry means no embedding could be produced for
// that text. A transient failure of any chunk retries the whole batch;
// after exhaustion, or on any unexpected error, every entry is nil.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return [][]float32{}
	}

	results := make([][]float32, len(texts))
	err := c.retry.Do(ctx, func() error {
		// A fresh attempt starts clean so a partial earlier pass can't
		// leak stale vectors.
		for i := range results {
			results[i] = nil
		}
		return c.embedChunks(ctx, texts, results)
	})
	if err != nil {
		if c.retry.Retryable(err) {
			c.logger.Error("embedding batch failed after retries", "texts", len(texts), "error", err)
		} else {
			c.logger.Error("embedding batch failed", "texts", len(texts), "error", err)
		}
		return make([][]float32, len(texts))
	}
	return results
}

// embedChunks runs one full pass over texts, issuing bounded concurrent
// chunk calls and writing vectors into results at their input positions.
func (c *Client) embedChunks(ctx context.Context, texts []string, results [][]float32) error {
	size := c.batchSize
	if size < 1 {
		size = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to stay inside API rate limits.

	for start := 0; start < len(texts); start += size {
		start := start
		end := min(start+size, len(texts))
		g.Go(func() error {
			vecs, err := c.api.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding chunk [%d:%d]: %w", start, end, err)
			}
			for i := start; i < end; i++ {
				j := i - start
				if j < len(vecs) && len(vecs[j]) > 0 {
					results[i] = vecs[j]
				} else {
					c.logger.Warn("no embedding returned for text", "index", i)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// Generate sends the prompt to the generative model and returns its text
// output. An empty string means generation produced nothing usable; the
// reason is logged.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		c.logger.Warn("generation skipped: empty prompt")
		return ""
	}

	var resp *genai.GenerateContentResponse
	err := c.retry.Do(ctx, func() error {
		r, err := c.api.generate(ctx, prompt)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		c.logger.Error("generation failed", "error", err)
		return ""
	}

	return c.textFromResponse(resp)
}

func (c *Client) textFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			c.logger.Error("prompt blocked by safety filter", "reason", resp.PromptFeedback.BlockReason.String())
		} else {
			c.logger.Warn("generation returned no candidates")
		}
		return ""
	}

	cand := resp.Candidates[0]
	if cand.Content != nil && len(cand.Content.Parts) > 0 {
		if text, ok := cand.Content.Parts[0].(genai.Text); ok && string(text) != "" {
			return string(text)
		}
	}

	if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
		c.logger.Warn("generation stopped without text", "finish_reason", cand.FinishReason.String())
	} else {
		c.logger.Warn("generation returned an empty candidate")
	}
	return ""
}

// sdkBackend is the real SDK-backed implementation of backend.
type sdkBackend struct {
	embed *genai.EmbeddingModel
	gen   *genai.GenerativeModel
}

var _ backend = (*sdkBackend)(nil)

func (b *sdkBackend) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	batch := b.embed.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := b.embed.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i := range texts {
		if i < len(resp.Embeddings) && resp.Embeddings[i] != nil {
			out[i] = resp.Embeddings[i].Values
		}
	}
	return out, nil
}

func (b *sdkBackend) generate(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
	return b.gen.GenerateContent(ctx, genai.Text(prompt))
}
