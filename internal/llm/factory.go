package llm

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/healthagent/internal/auth"
)

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "openai", "openrouter", "minimax", "anthropic", "google", "ollama".
// baseURL overrides the OpenAI endpoint (or the Ollama host) when non-empty; an
// OpenAI-compatible gateway with a custom baseURL may run without an API key.
func NewProvider(providerType string, model string, baseURL string) (StreamingProvider, error) {
	switch providerType {
	case "openai":
		apiKey := auth.GetAPIKey("openai")
		if apiKey == "" && baseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model, baseURL), nil

	case "openrouter":
		apiKey := auth.GetAPIKey("openrouter")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is not set")
		}
		return NewOpenRouterProvider(apiKey, model), nil

	case "minimax":
		apiKey := auth.GetAPIKey("minimax")
		if apiKey == "" {
			return nil, fmt.Errorf("MINIMAX_API_KEY environment variable is not set")
		}
		return NewMinimaxProvider(apiKey, model), nil

	case "anthropic":
		apiKey := auth.GetAPIKey("anthropic")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return AsStreaming(NewAnthropicProvider(apiKey, model)), nil

	case "google":
		apiKey := auth.GetAPIKey("google")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is not set")
		}
		return AsStreaming(NewGoogleProvider(apiKey, model)), nil

	case "ollama":
		host := baseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
