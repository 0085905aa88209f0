package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/xcloc/i18n"
	"github.com/minios-linux/xcloc/settings"
	"github.com/minios-linux/xcloc/translate"
)

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage the API keys of the AI providers.

Keys are stored in $XDG_DATA_HOME/xcloc/auth.json (mode 0600). A key given
with --api-key, in XCLOC_API_KEY, in the provider's own variable
(OPENAI_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY, GROQ_API_KEY) or in a
.env file of the project root takes precedence over the stored one.

Examples:
  xcloc auth login                         Interactive provider selection
  xcloc auth login --provider openai       Store an OpenAI API key
  xcloc auth logout --provider groq        Remove the Groq API key
  xcloc auth logout                        Remove all keys
  xcloc auth list                          Show stored keys`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

// keyProviders is the ordered list of providers that take an API key.
var keyProviders = []struct {
	id      string
	name    string
	helpURL string
}{
	{translate.ProviderOpenAI, "OpenAI", "https://platform.openai.com/api-keys"},
	{translate.ProviderGoogle, "Google AI Studio", "https://aistudio.google.com/apikey"},
	{translate.ProviderAnthropic, "Anthropic", "https://console.anthropic.com/settings/keys"},
	{translate.ProviderGroq, "Groq Cloud", "https://console.groq.com/keys"},
	{translate.ProviderCustomOpenAI, "Custom OpenAI", ""},
}

func keyProviderIndex(id string) int {
	for i, p := range keyProviders {
		if p.id == id {
			return i
		}
	}
	return -1
}

func keyProviderCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(keyProviders))
	for _, p := range keyProviders {
		out = append(out, p.id+"\t"+p.name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner := bufio.NewScanner(os.Stdin)

			if provider == "" {
				fmt.Fprintf(os.Stderr, "\n%s\n", blue(i18n.T("Select a provider")))
				fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
				for i, p := range keyProviders {
					fmt.Fprintf(os.Stderr, "  %d) %-14s %s\n", i+1, p.id, p.name)
				}
				fmt.Fprintf(os.Stderr, "\n  %s ", i18n.T("Provider number:"))
				if !scanner.Scan() {
					return fmt.Errorf("no input received")
				}
				n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
				if err != nil || n < 1 || n > len(keyProviders) {
					return fmt.Errorf("invalid choice %q", scanner.Text())
				}
				provider = keyProviders[n-1].id
			}

			if provider == translate.ProviderOllama {
				logInfo("Ollama runs locally and needs no API key")
				return nil
			}
			if keyProviderIndex(provider) < 0 {
				return fmt.Errorf("unknown provider '%s' (valid: %s)", provider, strings.Join(translate.ProviderIDs(), ", "))
			}
			return authLoginAPIKey(scanner, provider)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to configure")
	_ = cmd.RegisterFlagCompletionFunc("provider", keyProviderCompletion)

	return cmd
}

func authLoginAPIKey(scanner *bufio.Scanner, providerID string) error {
	info := keyProviders[keyProviderIndex(providerID)]

	fmt.Fprintf(os.Stderr, "\n%s\n", blue(info.name+": "+i18n.T("API Key Setup")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)

	if info.helpURL != "" {
		fmt.Fprintf(os.Stderr, "  %s %s\n\n", i18n.T("Get your API key from:"), green(info.helpURL))
	}

	var baseURL string
	if providerID == translate.ProviderCustomOpenAI {
		current := settings.GetBaseURL(providerID)
		if current != "" {
			fmt.Fprintf(os.Stderr, "  Endpoint [%s]: ", current)
		} else {
			fmt.Fprintf(os.Stderr, "  Endpoint (e.g. https://api.example.com/v1): ")
		}
		if !scanner.Scan() {
			return fmt.Errorf("no input received")
		}
		baseURL = strings.TrimSpace(scanner.Text())
		if baseURL == "" {
			baseURL = current
		}
		if baseURL == "" {
			return fmt.Errorf("no endpoint URL provided")
		}
	}

	existing := settings.GetAPIKey(providerID)
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  Current key: %s\n", yellow(settings.MaskKey(existing)))
		fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter API key: ")
	}

	if !scanner.Scan() {
		return fmt.Errorf("no input received")
	}
	key := strings.TrimSpace(scanner.Text())
	if key == "" {
		key = existing
	}

	if providerID == translate.ProviderCustomOpenAI {
		if err := settings.SetAPIKeyWithBaseURL(providerID, key, baseURL); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}
		logSuccess("%s saved (%s)", info.name, baseURL)
		return nil
	}

	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if key == existing {
		logInfo("Keeping existing key")
		return nil
	}
	if err := settings.SetAPIKey(providerID, key); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}

	logSuccess("%s API key saved!", info.name)
	fmt.Fprintf(os.Stderr, "\n  You can now use: xcloc translate --provider %s\n\n", providerID)
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		Long: `Remove the stored key of one provider, or of all providers when
--provider is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider != "" {
				if keyProviderIndex(provider) < 0 {
					return fmt.Errorf("unknown provider '%s'. Run 'xcloc auth list' to see providers", provider)
				}
				if err := settings.Remove(provider); err != nil {
					return fmt.Errorf("removing %s credentials: %w", provider, err)
				}
				logSuccess("%s credentials removed", provider)
				return nil
			}

			if err := settings.RemoveAll(); err != nil {
				return err
			}
			logSuccess("All stored credentials removed")
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to logout (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("provider", keyProviderCompletion)

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stderr, "\n%s\n", blue(i18n.T("Stored Credentials")))
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			fmt.Fprintf(os.Stderr, "  %s\n", settings.FilePath())

			fmt.Fprintf(os.Stderr, "\n  %s\n", yellow(i18n.T("API Key Providers")))
			for _, p := range keyProviders {
				entry := settings.Get(p.id)
				switch {
				case entry != nil && entry.Key != "":
					status := fmt.Sprintf("%s (key: %s)", green("configured"), settings.MaskKey(entry.Key))
					if entry.BaseURL != "" {
						status += fmt.Sprintf("\n  %14s endpoint: %s", "", entry.BaseURL)
					}
					fmt.Fprintf(os.Stderr, "  %-14s %s\n", p.id, status)
				case entry != nil && entry.BaseURL != "":
					status := fmt.Sprintf("%s (no key)\n  %14s endpoint: %s", green("configured"), "", entry.BaseURL)
					fmt.Fprintf(os.Stderr, "  %-14s %s\n", p.id, status)
				default:
					fmt.Fprintf(os.Stderr, "  %-14s %s\n", p.id, red("not configured"))
				}
			}

			fmt.Fprintf(os.Stderr, "\n  %s\n", yellow(i18n.T("Environment Variables")))
			vars := []string{settings.EnvAPIKey}
			seen := map[string]bool{settings.EnvAPIKey: true}
			for _, p := range keyProviders {
				if v := settings.EnvVarForProvider(p.id); v != "" && !seen[v] {
					seen[v] = true
					vars = append(vars, v)
				}
			}
			for _, v := range vars {
				if val := os.Getenv(v); val != "" {
					fmt.Fprintf(os.Stderr, "  %-18s %s\n", v+":", green(settings.MaskKey(val)))
				} else {
					fmt.Fprintf(os.Stderr, "  %-18s %s\n", v+":", red("not set"))
				}
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}
