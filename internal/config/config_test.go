package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %q", cfg.Model)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("expected default history_limit 50, got %d", cfg.HistoryLimit)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Assistant.StreamBuffer != 0 {
		t.Errorf("expected unbuffered stream by default, got %d", cfg.Assistant.StreamBuffer)
	}
	if cfg.Assistant.FailureMessage != DefaultFailureMessage {
		t.Errorf("unexpected failure message %q", cfg.Assistant.FailureMessage)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "test.healthagent.yml")

	original := DefaultConfig()
	original.Provider = ProviderOllama
	original.Model = "llama3:70b"
	original.Temperature = 0.2
	original.HistoryLimit = 20
	original.DatabasePath = "/tmp/health.db"
	original.Server.Port = 8080
	original.Log.Pretty = true
	original.Assistant.StreamBuffer = 4

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Temperature != original.Temperature {
		t.Errorf("temperature: got %f, want %f", loaded.Temperature, original.Temperature)
	}
	if loaded.HistoryLimit != original.HistoryLimit {
		t.Errorf("history_limit: got %d, want %d", loaded.HistoryLimit, original.HistoryLimit)
	}
	if loaded.DatabasePath != original.DatabasePath {
		t.Errorf("database_path: got %q, want %q", loaded.DatabasePath, original.DatabasePath)
	}
	if loaded.Server.Port != 8080 {
		t.Errorf("server.port: got %d, want 8080", loaded.Server.Port)
	}
	if !loaded.Log.Pretty {
		t.Error("log.pretty: expected true")
	}
	if loaded.Assistant.StreamBuffer != 4 {
		t.Errorf("assistant.stream_buffer: got %d, want 4", loaded.Assistant.StreamBuffer)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("HEALTHAGENT_PROVIDER", "anthropic")
	t.Setenv("HEALTHAGENT_SERVER__PORT", "9090")
	t.Setenv("HEALTHAGENT_HISTORY_LIMIT", "10")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderAnthropic {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderAnthropic)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("nested env override failed: got %d, want 9090", loaded.Server.Port)
	}
	if loaded.HistoryLimit != 10 {
		t.Errorf("history_limit override failed: got %d", loaded.HistoryLimit)
	}
}

func TestLoadBaseURLFallback(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8000/v1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("base_url fallback: got %q", cfg.BaseURL)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid provider", func(c *Config) { c.Provider = "invalid" }},
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"temperature too high", func(c *Config) { c.Temperature = 3 }},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }},
		{"negative rate limit", func(c *Config) { c.RateLimitRPM = -1 }},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }},
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative buffer", func(c *Config) { c.Assistant.StreamBuffer = -1 }},
		{"huge buffer", func(c *Config) { c.Assistant.StreamBuffer = 1000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel(ProviderOllama); got != "llama3" {
		t.Errorf("DefaultModel(ollama) = %q", got)
	}
	if got := DefaultModel("unknown"); got != "gpt-4o-mini" {
		t.Errorf("DefaultModel(unknown) = %q", got)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GOOGLE_API_KEY"},
		{ProviderOpenRouter, "OPENROUTER_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestValidatePositiveInt(t *testing.T) {
	if err := validatePositiveInt("12"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, in := range []string{"", "abc", "0", "-3"} {
		if err := validatePositiveInt(in); err == nil {
			t.Errorf("validatePositiveInt(%q) should fail", in)
		}
	}
}
