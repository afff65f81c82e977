package llm

// NewOpenRouterProvider creates a provider for the OpenRouter API (OpenAI-compatible).
func NewOpenRouterProvider(apiKey string, model string) *OpenAIProvider {
	p := NewOpenAIProvider(apiKey, model, "https://openrouter.ai/api/v1")
	p.name = "openrouter"
	return p
}
