// xcloc fills in missing locales of Xcode String Catalogs (.xcstrings)
// with AI translation.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/minios-linux/xcloc/config"
	"github.com/minios-linux/xcloc/console"
	"github.com/minios-linux/xcloc/i18n"
	"github.com/minios-linux/xcloc/langtable"
	"github.com/minios-linux/xcloc/settings"
	"github.com/minios-linux/xcloc/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Colors
var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.Bold, color.FgYellow).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
)

func logInfo(format string, args ...any) {
	console.Info(format, args...)
}

func logSuccess(format string, args ...any) {
	console.Success(format, args...)
}

func logWarning(format string, args ...any) {
	console.Warn(format, args...)
}

func logError(format string, args ...any) {
	console.Error(format, args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xcloc",
		Short: "Fill in missing String Catalog localizations with AI",
		Long: `xcloc fills in the missing locales of an Xcode String Catalog
(.xcstrings) by sending the untranslated strings, in batches, to an AI
provider, then merges the answers back without touching existing entries.

Commands:
  translate   Translate the pending strings of a catalog
  status      Show per-language coverage of a catalog
  languages   Show the target language table
  auth        Manage provider API keys

AI Providers:
  openai         OpenAI (default, gpt-4o-mini)
  google         Google AI (Gemini)
  anthropic      Anthropic
  groq           Groq
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newTranslateCmd(),
		newStatusCmd(),
		newLanguagesCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xcloc version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// languages
// ---------------------------------------------------------------------------

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "Show the target language table",
		Long: `Print the languages xcloc translates into, in run order.

The table comes from the "languages" setting of .xcloc.yaml when present,
otherwise the built-in table is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := config.Detect(rootDir)
			if err != nil {
				return err
			}
			locales := proj.File.Locales()

			source := i18n.T("built-in table")
			if proj.File != nil && len(proj.File.Languages) > 0 {
				source = config.FileName
			}
			fmt.Fprintf(os.Stderr, "\n%s (%s)\n", blue(i18n.T("Target Languages")), source)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			codes := langtable.Codes(locales)
			width := langColumnWidth(codes)
			for i, l := range locales {
				fmt.Fprintf(os.Stdout, "%3d  %s  %s\n", i+1, langCell(l.Code, width), l.Name)
			}
			fmt.Fprintln(os.Stderr)
			logInfo(i18n.N("%d language", "%d languages", len(locales)), len(locales))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// fileExists returns true if the file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// progressBar renders percent as a colored bar of width cells followed by
// the percentage.
func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := width * percent / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	paint := red
	switch {
	case percent >= 100:
		paint = green
	case percent >= 50:
		paint = yellow
	}
	return fmt.Sprintf("%s %4d%%", paint(bar), percent)
}

// flagFromRegion turns a two-letter region code into its flag emoji.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + r - 'A')
	}
	return b.String()
}

// langFlag returns the flag of the region a locale is most likely used in.
func langFlag(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	region, conf := tag.Region()
	if conf == language.No {
		return ""
	}
	return flagFromRegion(region.String())
}

func langColumnWidth(codes []string) int {
	width := 0
	for _, c := range codes {
		width = max(width, len(c))
	}
	return width
}

// langCell renders a flag and a locale code padded to width.
func langCell(code string, width int) string {
	flag := langFlag(code)
	if flag == "" {
		flag = "  "
	}
	return fmt.Sprintf("%s %-*s", flag, width, code)
}

// selectLocales resolves a --lang list, taking names from table for codes
// it contains.
func selectLocales(table []langtable.Locale, list string) ([]langtable.Locale, error) {
	requested, err := langtable.Parse(list)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]langtable.Locale, len(table))
	for _, l := range table {
		byCode[strings.ToLower(l.Code)] = l
	}
	for i, l := range requested {
		if t, ok := byCode[strings.ToLower(l.Code)]; ok {
			requested[i] = t
		}
	}
	return requested, nil
}

// filterOutLocale drops every locale whose code is code.
func filterOutLocale(locales []langtable.Locale, code string) []langtable.Locale {
	var out []langtable.Locale
	for _, l := range locales {
		if !strings.EqualFold(l.Code, code) {
			out = append(out, l)
		}
	}
	return out
}

// confirm asks a yes/no question on stderr and reads the answer from r.
// Anything but y/yes is no.
func confirm(r io.Reader, question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		fmt.Fprintln(os.Stderr)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

// formatDuration renders d as "1m 05s" or "12.3s".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

// modelExamples lists suggestions shown for --model.
var modelExamples = map[string][]string{
	translate.ProviderOpenAI:       {"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"},
	translate.ProviderGoogle:       {"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-pro"},
	translate.ProviderAnthropic:    {"claude-3-5-haiku-latest", "claude-sonnet-4-0"},
	translate.ProviderGroq:         {"llama-3.3-70b-versatile", "mixtral-8x7b-32768"},
	translate.ProviderOllama:       {"llama3.2", "qwen2.5", "mistral"},
	translate.ProviderCustomOpenAI: {"gpt-4o-mini", "gpt-4o"},
}

func resolveProvider(name, baseURL, apiKey, model, proxy string, timeout time.Duration) translate.Provider {
	defaults := translate.DefaultProviders()

	var prov translate.Provider
	if p, ok := defaults[strings.ToLower(name)]; ok {
		prov = p
	} else {
		prov = translate.Provider{
			ID:      translate.ProviderCustomOpenAI,
			Name:    name,
			BaseURL: name,
			Timeout: 60 * time.Second,
		}
	}

	if baseURL != "" {
		prov.BaseURL = baseURL
	} else if prov.ID == translate.ProviderCustomOpenAI && prov.BaseURL == "" {
		prov.BaseURL = settings.GetBaseURL(prov.ID)
	}
	if apiKey != "" {
		prov.APIKey = apiKey
	}
	if model != "" {
		prov.Model = model
	}
	if proxy != "" {
		prov.Proxy = proxy
	}
	if timeout > 0 {
		prov.Timeout = timeout
	}
	return prov
}

func validateProvider(prov translate.Provider) error {
	err := prov.Validate()
	switch {
	case errors.Is(err, translate.ErrMissingModel):
		examples := strings.Join(modelExamples[prov.ID], ", ")
		if examples == "" {
			examples = "check provider documentation"
		}
		return fmt.Errorf("--model is required for provider '%s'\n\n"+
			"Example models for %s:\n  %s\n\n"+
			"Usage: --provider %s --model MODEL_NAME",
			prov.ID, prov.Name, examples, prov.ID)

	case errors.Is(err, translate.ErrMissingBaseURL):
		return fmt.Errorf("provider '%s' requires an endpoint URL\n\n"+
			"Option 1: Configure via auth:\n"+
			"  xcloc auth login --provider custom-openai\n\n"+
			"Option 2: Pass directly:\n"+
			"  --base-url https://api.example.com/v1", prov.ID)

	case errors.Is(err, translate.ErrMissingAPIKey):
		envHint := settings.EnvAPIKey
		if v := settings.EnvVarForProvider(prov.ID); v != "" {
			envHint = v + " or " + settings.EnvAPIKey
		}
		return fmt.Errorf("provider '%s' requires an API key\n\n"+
			"Option 1: Store your API key:\n"+
			"  xcloc auth login --provider %s\n\n"+
			"Option 2: Set %s (environment or .env in the project root)\n\n"+
			"Option 3: Pass key directly:\n"+
			"  --api-key YOUR_KEY", prov.ID, prov.ID, envHint)

	case err != nil:
		return err
	}

	if prov.ID == translate.ProviderOllama {
		client := &http.Client{Timeout: 2 * time.Second}
		ollamaURL := strings.TrimSuffix(strings.TrimSuffix(prov.BaseURL, "/"), "/v1")
		resp, err := client.Get(ollamaURL + "/api/tags")
		if err != nil {
			return fmt.Errorf("provider 'ollama' requires Ollama server to be running\n\n" +
				"Start Ollama with: ollama serve\n" +
				"Install from: https://ollama.com")
		}
		resp.Body.Close()
	}
	return nil
}

func providerCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	defaults := translate.DefaultProviders()
	var out []string
	for _, id := range translate.ProviderIDs() {
		out = append(out, id+"\t"+defaults[id].Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func modelCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	p, _ := cmd.Flags().GetString("provider")
	return modelExamples[p], cobra.ShellCompDirectiveNoFileComp
}
