package agent

import "context"

// Chat roles accepted by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the provider-neutral chat message format.
type Message struct {
	Role    string
	Content string
}

// Usage reports token consumption for one generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the provider-neutral generation result.
type Response struct {
	Content      string
	Usage        *Usage
	Model        string
	FinishReason string
}

// GenerateOptions carries per-call generation parameters.
type GenerateOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// Client abstracts a text-generation backend. Implementations are
// interchangeable; the pipeline depends only on this interface.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error)
	// GenerateWithCache generates with the provider's prompt caching, keeping
	// cacheableContext (user profile etc.) in a reusable cache block. Only
	// meaningful when SupportsCaching reports true.
	GenerateWithCache(ctx context.Context, messages []Message, systemPrompt, cacheableContext string, maxTokens int) (*Response, error)
	SupportsCaching() bool
	ModelName() string
	// EstimateCost returns the approximate USD cost for the given token counts.
	EstimateCost(inputTokens, outputTokens int) float64
}
