package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// APIKeyCredentials stores an API key for a provider.
type APIKeyCredentials struct {
	APIKey string `json:"api_key,omitempty"`
}

// Credentials holds stored API keys keyed by provider name (openai, anthropic, ...).
type Credentials struct {
	Providers map[string]*APIKeyCredentials `json:"providers,omitempty"`
}

// envVars maps providers to the environment variable consulted before the
// credentials file.
var envVars = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"google":     "GOOGLE_API_KEY",
	"minimax":    "MINIMAX_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// credentialPath can be replaced in tests.
var credentialPath = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".healthagent", "credentials.json"), nil
}

// CredentialPath returns the path to the credentials file (~/.healthagent/credentials.json).
func CredentialPath() (string, error) {
	return credentialPath()
}

// Load reads credentials from the credentials file.
// Returns empty credentials if the file doesn't exist.
func Load() (*Credentials, error) {
	path, err := credentialPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return &creds, nil
}

// Save writes credentials to the credentials file with restricted permissions.
func Save(creds *Credentials) error {
	path, err := credentialPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// SetAPIKey stores key for provider, keeping the other stored keys.
func SetAPIKey(provider, key string) error {
	if _, ok := envVars[provider]; !ok {
		return fmt.Errorf("provider %q does not use an API key", provider)
	}
	creds, err := Load()
	if err != nil {
		return err
	}
	if creds.Providers == nil {
		creds.Providers = map[string]*APIKeyCredentials{}
	}
	creds.Providers[provider] = &APIKeyCredentials{APIKey: key}
	return Save(creds)
}

// EnvVar returns the API key environment variable for provider, or "".
func EnvVar(provider string) string {
	return envVars[provider]
}

// GetAPIKey returns the API key for the given provider.
// It checks the environment variable first, then falls back to stored credentials.
func GetAPIKey(provider string) string {
	if env, ok := envVars[provider]; ok {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}

	creds, err := Load()
	if err != nil {
		return ""
	}
	if c := creds.Providers[provider]; c != nil {
		return c.APIKey
	}
	return ""
}
