package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

// Client computes text embeddings through the OpenAI embeddings API with an
// in-process LRU memo, so repeated lookups of the same text (retries,
// redeliveries) cost one API call.
type Client struct {
	api        *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	memo       *lru.Cache
}

var _ semanticcache.EmbeddingProvider = (*Client)(nil)

func NewClient(apiKey, model string, dimensions, cacheSize int) (*Client, error) {
	memo, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		api:        openai.NewClient(apiKey),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
		memo:       memo,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := memoKey(text)
	if cached, ok := c.memo.Get(key); ok {
		return cached.([]float32), nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      c.model,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			"embedding request failed",
			err,
			"embedding-001",
		)
	}
	if len(resp.Data) == 0 {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			"embedding response contained no data",
			nil,
			"embedding-002",
		)
	}

	vector := normalizeDimensions(resp.Data[0].Embedding, c.dimensions)
	c.memo.Add(key, vector)
	return vector, nil
}

// normalizeDimensions pads or truncates so the vector always matches the
// column width, whatever the provider returns.
func normalizeDimensions(vector []float32, dimensions int) []float32 {
	if len(vector) == dimensions {
		return vector
	}
	out := make([]float32, dimensions)
	copy(out, vector)
	return out
}

func memoKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
