package inference

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

// Per-1M-token USD pricing used for cost estimates. Unknown models fall
// back to the gpt-4o-mini rates.
var openAIPricing = map[string]struct{ input, output float64 }{
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4.1":     {2.00, 8.00},
}

// OpenAIClient generates through the OpenAI chat completions API, or any
// OpenAI-compatible endpoint when a base URL override is set.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ agent.Client = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (*agent.Response, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if opts.SystemPrompt != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			"openai chat completion failed",
			err,
			"inference-openai-001",
		)
	}
	if len(resp.Choices) == 0 {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			"openai returned no choices",
			nil,
			"inference-openai-002",
		)
	}

	choice := resp.Choices[0]
	return &agent.Response{
		Content: choice.Message.Content,
		Usage: &agent.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// GenerateWithCache degrades to a plain generation; OpenAI manages prompt
// caching server-side without request-level markers.
func (c *OpenAIClient) GenerateWithCache(ctx context.Context, messages []agent.Message, systemPrompt, cacheableContext string, maxTokens int) (*agent.Response, error) {
	return c.Generate(ctx, messages, agent.GenerateOptions{
		SystemPrompt: systemPrompt + "\n\n" + cacheableContext,
		MaxTokens:    maxTokens,
		Temperature:  0.7,
	})
}

func (c *OpenAIClient) SupportsCaching() bool { return false }

func (c *OpenAIClient) ModelName() string { return c.model }

func (c *OpenAIClient) EstimateCost(inputTokens, outputTokens int) float64 {
	pricing, ok := openAIPricing[c.model]
	if !ok {
		pricing = openAIPricing["gpt-4o-mini"]
	}
	return float64(inputTokens)/1e6*pricing.input + float64(outputTokens)/1e6*pricing.output
}
