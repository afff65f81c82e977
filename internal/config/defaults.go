package config

// DefaultFailureMessage is the assistant reply used when the model cannot be reached.
const DefaultFailureMessage = "抱歉，AI 助手暂时不可用，请稍后再试。"

// DefaultHistoryLimit bounds how many stored messages are replayed to the model.
const DefaultHistoryLimit = 50

// maxStreamBuffer caps the configurable chunk channel capacity.
const maxStreamBuffer = 64

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[ProviderType]string{
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderAnthropic:  "claude-haiku-4-5-20251001",
	ProviderGoogle:     "gemini-3-flash-preview",
	ProviderOllama:     "llama3",
	ProviderMiniMax:    "MiniMax-M2.5-highspeed",
	ProviderOpenRouter: "openai/gpt-4o-mini",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:     ProviderOpenAI,
		Model:        defaultModels[ProviderOpenAI],
		Temperature:  0.7,
		MaxTokens:    2048,
		HistoryLimit: DefaultHistoryLimit,
		DatabasePath: "data/healthagent.db",
		Server: ServerConfig{
			Port: 3000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Assistant: AssistantConfig{
			FailureMessage: DefaultFailureMessage,
		},
	}
}

// DefaultModel returns the default model for a provider, falling back to the
// OpenAI default for unknown providers.
func DefaultModel(provider ProviderType) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderOpenAI]
}
