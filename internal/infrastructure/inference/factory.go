package inference

import (
	"fmt"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/config"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

// NewClient builds the inference client for the configured provider.
func NewClient(cfg *config.Config) (agent.Client, error) {
	log := logger.GetLogger()
	model := cfg.AIModelName()

	var client agent.Client
	switch cfg.AIProvider {
	case "openai", "":
		client = NewOpenAIClient(cfg.AIAPIKey(), model, cfg.AIBaseURL)
	case "anthropic":
		client = NewAnthropicClient(cfg.AIAPIKey(), model, cfg.AIBaseURL)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.AIProvider)
	}

	log.Info().
		Str("provider", cfg.AIProvider).
		Str("model", model).
		Bool("prompt_cache", cfg.PromptCacheEnabled && client.SupportsCaching()).
		Msg("inference client initialized")
	return client, nil
}
