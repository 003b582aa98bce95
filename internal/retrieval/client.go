package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zapvendas/bot-server-go/internal/errors"
	"github.com/zapvendas/bot-server-go/internal/model"
	"github.com/zapvendas/bot-server-go/internal/repository"
)

// Embedder turns text into a vector. Implemented by ai.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one ranked catalog candidate.
type Match struct {
	Product model.Product
	Score   float64
}

// Client ranks catalog products against query embeddings. Candidates are
// loaded from the product repository and scored in process by cosine
// similarity; only the best match is ever surfaced, and only when its score
// clears the acceptance threshold.
type Client struct {
	products  repository.ProductRepository
	embedder  Embedder
	threshold float64
	topK      int
}

func NewClient(products repository.ProductRepository, embedder Embedder, threshold float64, topK int) *Client {
	return &Client{
		products:  products,
		embedder:  embedder,
		threshold: threshold,
		topK:      topK,
	}
}

// Ingest embeds a product and stores it, replacing any previous record with
// the same id.
func (c *Client) Ingest(ctx context.Context, params model.UpsertProductParams) error {
	vector, err := c.embedder.Embed(ctx, params.Name+"\n"+params.Description)
	if err != nil {
		return apperrors.External("embedding", err)
	}
	return c.Upsert(ctx, params, vector)
}

// Upsert stores a product with a precomputed embedding. Replace-by-id,
// idempotent.
func (c *Client) Upsert(ctx context.Context, params model.UpsertProductParams, vector []float32) error {
	params.Embedding = toFloat64(vector)
	if err := c.products.Upsert(ctx, params); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// Query returns up to topK candidates ordered by descending score. No
// threshold is applied here; callers decide what to accept.
func (c *Client) Query(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	products, err := c.products.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	matches := make([]Match, 0, len(products))
	for _, p := range products {
		matches = append(matches, Match{Product: p, Score: cosineSimilarity(vector, p.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// BestMatch embeds the question and returns the best-scoring record when its
// score meets the acceptance threshold, or nil when nothing qualifies.
func (c *Client) BestMatch(ctx context.Context, question string) (*model.RetrievedRecord, error) {
	vector, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := c.Query(ctx, toFloat64(vector), c.topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	best := matches[0]
	if best.Score < c.threshold {
		log.Debug().
			Float64("score", best.Score).
			Float64("threshold", c.threshold).
			Str("product", best.Product.Name).
			Msg("best match below threshold, treating as no match")
		return nil, nil
	}

	return &model.RetrievedRecord{
		Name:        best.Product.Name,
		Description: best.Product.Description,
		Price:       best.Product.Price,
		Score:       best.Score,
	}, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
