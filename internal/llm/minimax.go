package llm

// NewMinimaxProvider creates a provider for the MiniMax API (OpenAI-compatible).
// MiniMax requires temperature in (0.0, 1.0].
func NewMinimaxProvider(apiKey string, model string) *OpenAIProvider {
	p := NewOpenAIProvider(apiKey, model, "https://api.minimax.io/v1")
	p.name = "minimax"
	p.clampTemperature = true
	return p
}
