package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderMiniMax    ProviderType = "minimax"
	ProviderOpenRouter ProviderType = "openrouter"
)

// Config is the top-level healthagent configuration, corresponding to .healthagent.yml.
type Config struct {
	Provider     ProviderType    `yaml:"provider" koanf:"provider"`
	Model        string          `yaml:"model" koanf:"model"`
	BaseURL      string          `yaml:"base_url,omitempty" koanf:"base_url"`
	Temperature  float64         `yaml:"temperature" koanf:"temperature"`
	MaxTokens    int             `yaml:"max_tokens" koanf:"max_tokens"`
	RateLimitRPM int             `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	HistoryLimit int             `yaml:"history_limit" koanf:"history_limit"`
	DatabasePath string          `yaml:"database_path" koanf:"database_path"`
	Server       ServerConfig    `yaml:"server" koanf:"server"`
	Log          LogConfig       `yaml:"log" koanf:"log"`
	Assistant    AssistantConfig `yaml:"assistant" koanf:"assistant"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Pretty bool   `yaml:"pretty" koanf:"pretty"`
}

// AssistantConfig tunes the streaming chat assistant.
type AssistantConfig struct {
	// FailureMessage is shown to the user when the model transport fails.
	FailureMessage string `yaml:"failure_message" koanf:"failure_message"`
	// StreamBuffer is the chunk channel capacity; 0 means unbuffered.
	StreamBuffer int `yaml:"stream_buffer" koanf:"stream_buffer"`
}
