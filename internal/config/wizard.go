package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to healthagent! Let's configure the assistant.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "openrouter", "minimax", "anthropic", "google", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: DefaultModel(provider),
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Database path.
	dbPrompt := promptui.Prompt{
		Label:   "Database path",
		Default: "data/healthagent.db",
	}
	dbPath, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}

	// 4. HTTP port.
	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  "3000",
		Validate: validatePositiveInt,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	port, _ := strconv.Atoi(portStr)

	// 5. History window.
	historyPrompt := promptui.Prompt{
		Label:    "Messages of history sent to the model",
		Default:  strconv.Itoa(DefaultHistoryLimit),
		Validate: validatePositiveInt,
	}
	historyStr, err := historyPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("history limit: %w", err)
	}
	history, _ := strconv.Atoi(historyStr)

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = model
	cfg.DatabasePath = dbPath
	cfg.Server.Port = port
	cfg.HistoryLimit = history

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Check for API key.
	envVar := APIKeyEnvVar(provider)
	if envVar != "" {
		if os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running healthagent server.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// validatePositiveInt is a promptui validator for numeric answers.
func validatePositiveInt(input string) error {
	n, err := strconv.Atoi(input)
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	if n <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
