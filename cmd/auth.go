package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/auth"
)

var apiKeyProviders = []string{"anthropic", "google", "minimax", "openai", "openrouter"}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials for LLM providers",
	Long: `Store and manage API credentials for LLM providers.

Credentials are stored in ~/.healthagent/credentials.json and used
as a fallback when environment variables are not set.`,
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider>",
	Short: "Store an API key for a provider",
	Long:  `Prompts for and stores the API key of a provider. Valid providers: ` + strings.Join(apiKeyProviders, ", "),
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthSetKey,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which providers have stored credentials",
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [provider]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials for a provider.

If no provider is specified, removes all stored credentials.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetKeyCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthSetKey(cmd *cobra.Command, args []string) error {
	provider := args[0]
	if auth.EnvVar(provider) == "" {
		return fmt.Errorf("unknown provider %q (valid: %s)", provider, strings.Join(apiKeyProviders, ", "))
	}

	prompt := promptui.Prompt{
		Label: provider + " API key",
		Mask:  '*',
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("API key is required")
			}
			return nil
		},
	}
	key, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("reading API key: %w", err)
	}

	if err := auth.SetAPIKey(provider, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	fmt.Printf("%s credentials stored successfully!\n", provider)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	creds, err := auth.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	path, _ := auth.CredentialPath()
	fmt.Printf("Credentials file: %s\n\n", path)

	fmt.Println("Provider     Status")
	fmt.Println("--------     ------")
	for _, p := range apiKeyProviders {
		status := "not configured"
		if os.Getenv(auth.EnvVar(p)) != "" {
			status = "configured (env var)"
		} else if c := creds.Providers[p]; c != nil && c.APIKey != "" {
			status = "configured (stored)"
		}
		fmt.Printf("%-12s %s\n", p, status)
	}

	// Ollama (always available locally)
	fmt.Printf("%-12s %s\n", "ollama", "available (local)")
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	creds, err := auth.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if len(args) == 0 {
		creds = &auth.Credentials{}
		fmt.Println("All stored credentials removed.")
	} else {
		p := args[0]
		if _, ok := creds.Providers[p]; !ok {
			stored := make([]string, 0, len(creds.Providers))
			for name := range creds.Providers {
				stored = append(stored, name)
			}
			sort.Strings(stored)
			return fmt.Errorf("no stored credentials for %q (stored: %s)", p, strings.Join(stored, ", "))
		}
		delete(creds.Providers, p)
		fmt.Printf("%s credentials removed.\n", p)
	}

	return auth.Save(creds)
}
