package inference

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/httpclients"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
	anthropicTimeout    = 120 * time.Second
)

var anthropicPricing = map[string]struct{ input, output float64 }{
	"claude-sonnet-4-20250514": {3.00, 15.00},
	"claude-3-5-haiku-latest":  {0.80, 4.00},
}

type anthropicTextBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text"`
	CacheControl *map[string]any `json:"cache_control,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float32              `json:"temperature"`
	System      []anthropicTextBlock `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
}

type anthropicResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicClient generates through the Anthropic messages API. It keeps the
// stable part of the system prompt in an ephemeral cache block, so repeated
// runs over the same owner context only pay for it once per cache window.
type AnthropicClient struct {
	client  *resty.Client
	apiKey  string
	model   string
	baseURL string
}

var _ agent.Client = (*AnthropicClient)(nil)

func NewAnthropicClient(apiKey, model, baseURL string) *AnthropicClient {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	client := httpclients.NewClient("anthropic").
		SetTimeout(anthropicTimeout)
	return &AnthropicClient{
		client:  client,
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}
}

func (c *AnthropicClient) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (*agent.Response, error) {
	req := anthropicRequest{
		Model:       c.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Messages:    toAnthropicMessages(messages),
	}
	if opts.SystemPrompt != "" {
		req.System = []anthropicTextBlock{{Type: "text", Text: opts.SystemPrompt}}
	}
	return c.send(ctx, &req)
}

// GenerateWithCache splits the system prompt: the instruction stays plain
// and the cacheable context gets a cache_control block.
func (c *AnthropicClient) GenerateWithCache(ctx context.Context, messages []agent.Message, systemPrompt, cacheableContext string, maxTokens int) (*agent.Response, error) {
	cacheControl := map[string]any{"type": "ephemeral"}
	req := anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
		System: []anthropicTextBlock{
			{Type: "text", Text: systemPrompt},
			{Type: "text", Text: cacheableContext, CacheControl: &cacheControl},
		},
		Messages: toAnthropicMessages(messages),
	}
	return c.send(ctx, &req)
}

func (c *AnthropicClient) send(ctx context.Context, req *anthropicRequest) (*agent.Response, error) {
	var result anthropicResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", anthropicAPIVersion).
		SetHeader("content-type", "application/json").
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post(c.baseURL + "/v1/messages")
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			"anthropic request failed",
			err,
			"inference-anthropic-001",
		)
	}
	if resp.IsError() {
		msg := "anthropic returned an error status"
		if result.Error != nil {
			msg = fmt.Sprintf("anthropic error (%s): %s", result.Error.Type, result.Error.Message)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			msg,
			nil,
			"inference-anthropic-002",
		)
	}
	if len(result.Content) == 0 {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			"anthropic returned no content blocks",
			nil,
			"inference-anthropic-003",
		)
	}

	return &agent.Response{
		Content: result.Content[0].Text,
		Usage: &agent.Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
		Model:        result.Model,
		FinishReason: result.StopReason,
	}, nil
}

func (c *AnthropicClient) SupportsCaching() bool { return true }

func (c *AnthropicClient) ModelName() string { return c.model }

func (c *AnthropicClient) EstimateCost(inputTokens, outputTokens int) float64 {
	pricing, ok := anthropicPricing[c.model]
	if !ok {
		pricing = anthropicPricing["claude-sonnet-4-20250514"]
	}
	return float64(inputTokens)/1e6*pricing.input + float64(outputTokens)/1e6*pricing.output
}

func toAnthropicMessages(messages []agent.Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
