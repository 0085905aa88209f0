package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/xcloc/config"
	"github.com/minios-linux/xcloc/console"
	"github.com/minios-linux/xcloc/i18n"
	"github.com/minios-linux/xcloc/langtable"
	"github.com/minios-linux/xcloc/lockfile"
	"github.com/minios-linux/xcloc/merge"
	"github.com/minios-linux/xcloc/settings"
	"github.com/minios-linux/xcloc/translate"
	"github.com/minios-linux/xcloc/xcstrings"
)

// errInterrupted is returned when the user stops a run with Ctrl-C.
var errInterrupted = errors.New("interrupted, nothing was written")

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	output, langs                    string
	provider, apiKey, model, baseURL string
	batchSize, maxWorkers            int
	sequential                       bool
	batchDelay                       time.Duration
	rps                              float64
	prompt                           string
	timeout                          time.Duration
	maxRetries                       int
	proxy                            string
	yes, dryRun, verbose             bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate [catalog]",
		Short: "Translate the pending strings of a catalog",
		Long: `Translate every string that has no localization yet, for every target
language, and save the result as a new catalog.

The catalog defaults to Localizable.xcstrings in the project root, or the
only .xcstrings file found below it. The output defaults to
<catalog>_localized.xcstrings; the input is only overwritten when --output
names it. Languages run in parallel (at most --max-workers at once), each
sending its strings in batches of --batch-size.

Settings not given as flags are read from .xcloc.yaml in the project root.

Examples:
  # Translate Localizable.xcstrings into every default language
  xcloc translate

  # Only French and German, without asking for confirmation
  xcloc translate App/Localizable.xcstrings --lang fr,de --yes

  # Show what would be sent without calling the provider
  xcloc translate --dry-run

  # Use Groq, one language at a time
  xcloc translate --provider groq --model llama-3.3-70b-versatile --sequential`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			if len(args) > 0 {
				input = args[0]
			}
			return runTranslate(cmd.Flags(), a, input)
		},
	}

	// Target selection
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output catalog (default: <catalog>_localized.xcstrings)")
	cmd.Flags().StringVar(&a.langs, "lang", "", "Languages to translate (comma-separated, default: the whole table)")

	// Provider selection
	cmd.Flags().StringVar(&a.provider, "provider", translate.ProviderOpenAI, "AI provider: "+strings.Join(translate.ProviderIDs(), ", "))
	cmd.Flags().StringVar(&a.model, "model", "", "Model name (default: gpt-4o-mini for openai)")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "API key (or XCLOC_API_KEY env var)")
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "Custom API base URL")

	// Translation behavior
	cmd.Flags().IntVar(&a.batchSize, "batch-size", translate.DefaultBatchSize, "Strings per API request")
	cmd.Flags().StringVar(&a.prompt, "prompt", "", "Custom system prompt (use {{targetLang}} placeholder)")
	cmd.Flags().BoolVarP(&a.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show what would be translated without calling AI")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "Enable detailed logging")

	// Parallelization
	cmd.Flags().IntVar(&a.maxWorkers, "max-workers", translate.DefaultMaxWorkers, "Maximum languages translated at once")
	cmd.Flags().BoolVar(&a.sequential, "sequential", false, "Translate one language at a time")
	cmd.Flags().DurationVar(&a.batchDelay, "batch-delay", translate.DefaultBatchDelay, "Pause between two requests of one language")
	cmd.Flags().Float64Var(&a.rps, "rps", 0, "Maximum requests per second across all languages (0 = unlimited)")

	// Network
	cmd.Flags().DurationVar(&a.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&a.maxRetries, "max-retries", translate.DefaultMaxRetries, "Maximum retries per request")

	_ = cmd.RegisterFlagCompletionFunc("provider", providerCompletion)
	_ = cmd.RegisterFlagCompletionFunc("model", modelCompletion)

	return cmd
}

// applyFile fills every setting not given on the command line from
// .xcloc.yaml.
func (a *translateArgs) applyFile(flags *pflag.FlagSet, f *config.File) {
	if f == nil {
		return
	}
	unset := func(name string) bool { return !flags.Changed(name) }

	if unset("provider") && f.Provider != "" {
		a.provider = f.Provider
	}
	if unset("model") && f.Model != "" {
		a.model = f.Model
	}
	if unset("base-url") && f.BaseURL != "" {
		a.baseURL = f.BaseURL
	}
	if unset("prompt") && f.Prompt != "" {
		a.prompt = f.Prompt
	}
	if unset("proxy") && f.Proxy != "" {
		a.proxy = f.Proxy
	}
	if unset("batch-size") && f.BatchSize > 0 {
		a.batchSize = f.BatchSize
	}
	if unset("max-workers") && f.MaxWorkers > 0 {
		a.maxWorkers = f.MaxWorkers
	}
	if unset("sequential") && f.Sequential {
		a.sequential = true
	}
	if unset("batch-delay") && f.BatchDelay > 0 {
		a.batchDelay = f.BatchDelay
	}
	if unset("rps") && f.RequestsPerSecond > 0 {
		a.rps = f.RequestsPerSecond
	}
	if unset("timeout") && f.Timeout > 0 {
		a.timeout = f.Timeout
	}
	if unset("max-retries") && f.MaxRetries != nil {
		a.maxRetries = *f.MaxRetries
	}
}

// options maps the arguments to translation options.
func (a *translateArgs) options() translate.Options {
	opts := translate.Options{
		BatchSize:         a.batchSize,
		MaxWorkers:        a.maxWorkers,
		ParallelMode:      translate.ParallelFullParallel,
		BatchDelay:        a.batchDelay,
		RequestsPerSecond: a.rps,
		SystemPrompt:      a.prompt,
		Verbose:           a.verbose,
		OnLog:             console.Info,
		OnError:           console.Error,
		OnDebug:           console.Debug,
	}
	if a.sequential {
		opts.ParallelMode = translate.ParallelSequential
	}
	if a.batchDelay <= 0 {
		opts.BatchDelay = -1
	}
	return opts
}

// clientRetries maps --max-retries to translate.NewClient, where 0 means
// the default and a negative value means no retries.
func (a *translateArgs) clientRetries() int {
	if a.maxRetries <= 0 {
		return -1
	}
	return a.maxRetries
}

// clientDebug is the verbose request log of the client, or nil.
func (a *translateArgs) clientDebug() func(format string, args ...any) {
	if !a.verbose {
		return nil
	}
	return console.Debug
}

// localeWork is one target language with its pending strings.
type localeWork struct {
	locale  langtable.Locale
	pending int
}

func runTranslate(flags *pflag.FlagSet, a translateArgs, inputArg string) error {
	proj, err := config.Detect(rootDir)
	if err != nil {
		return err
	}
	a.applyFile(flags, proj.File)

	if a.batchSize <= 0 {
		return fmt.Errorf("--batch-size must be positive, got %d", a.batchSize)
	}
	if a.maxWorkers <= 0 {
		return fmt.Errorf("--max-workers must be positive, got %d", a.maxWorkers)
	}
	if a.rps < 0 {
		return fmt.Errorf("--rps must not be negative, got %g", a.rps)
	}

	input, err := proj.Input(inputArg)
	if err != nil {
		return err
	}
	if !fileExists(input) {
		return fmt.Errorf("input file not found: %s", input)
	}
	output := proj.Output(input, a.output)

	logInfo(i18n.T("Loading %s..."), input)
	cat, err := xcstrings.ParseFile(input)
	if err != nil {
		return err
	}
	totalStrings := len(cat.ValidKeys())

	// Target languages
	locales := proj.File.Locales()
	if a.langs != "" {
		if locales, err = selectLocales(locales, a.langs); err != nil {
			return err
		}
	}
	if src := cat.SourceLanguage(); src != "" {
		before := len(locales)
		locales = filterOutLocale(locales, src)
		if len(locales) < before && a.langs != "" {
			logWarning(i18n.T("Skipping %s: it is the source language"), src)
		}
	}
	if len(locales) == 0 {
		return fmt.Errorf("no target languages")
	}

	var work []localeWork
	var targets []langtable.Locale
	pendingTotal, calls := 0, 0
	for _, l := range locales {
		n := len(cat.PendingKeys(l.Code))
		if n == 0 {
			continue
		}
		work = append(work, localeWork{l, n})
		targets = append(targets, l)
		pendingTotal += n
		calls += (n + a.batchSize - 1) / a.batchSize
	}

	logInfo(i18n.T("Found %d strings, %d languages"), totalStrings, len(locales))
	if len(targets) == 0 {
		logSuccess(i18n.T("All translations are complete!"))
		return nil
	}

	// Provider
	key, keySource := settings.ResolveAPIKey(strings.ToLower(a.provider), a.apiKey, proj.Root)
	prov := resolveProvider(a.provider, a.baseURL, key, a.model, a.proxy, a.timeout)

	logInfo("Provider: %s (%s), Model: %s", prov.Name, prov.ID, prov.Model)
	if keySource != settings.SourceNone && a.verbose {
		logInfo("API key: %s (from %s)", settings.MaskKey(key), keySource)
	}
	if a.sequential {
		logInfo("Parallel: disabled (sequential)")
	} else {
		logInfo("Parallel: enabled, max workers: %d", min(len(targets), a.maxWorkers))
	}
	logInfo("Batch size: %d", a.batchSize)
	logInfo("Output: %s", output)

	if a.dryRun {
		width := langColumnWidth(langtable.Codes(targets))
		for _, w := range work {
			fmt.Fprintf(os.Stderr, "  %s  %-28s %5d strings  %3d request(s)\n",
				langCell(w.locale.Code, width), w.locale.Name, w.pending, (w.pending+a.batchSize-1)/a.batchSize)
		}
		logInfo(i18n.T("Dry run: %d strings in %d languages, %d API calls"), pendingTotal, len(targets), calls)
		return nil
	}

	if err := validateProvider(prov); err != nil {
		return err
	}

	logInfo(i18n.T("%d strings to translate into %d languages (%d API calls)"), pendingTotal, len(targets), calls)
	if !a.yes && !confirm(os.Stdin, i18n.T("Start translation?")) {
		logInfo(i18n.T("Translation cancelled"))
		return nil
	}

	client, err := translate.NewClient(prov, a.clientRetries(), a.clientDebug())
	if err != nil {
		return err
	}

	// Setup signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logWarning(i18n.T("Interrupted, stopping..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	runID := uuid.New().String()[:8]
	opts := a.options()
	opts.RunID = runID

	bar := newOverallBar(len(targets))
	completed := 0
	opts.OnLocaleDone = func(locale string, res *merge.Result, err error) {
		completed++
		if bar != nil {
			_ = bar.Add(1)
			return
		}
		logInfo(i18n.T("Overall progress: %d/%d languages complete"), completed, len(targets))
	}

	report, err := translate.Run(ctx, cat, targets, client, opts)
	if bar != nil {
		_ = bar.Finish()
		console.ClearStatus()
	}
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return err
	}

	for _, f := range report.Failures {
		logError(i18n.T("%s failed: %v"), f.Locale, f.Err)
	}

	logInfo(i18n.T("Saving to %s..."), output)
	if err := cat.WriteFile(output); err != nil {
		return err
	}
	if err := recordJournal(output, cat, report, runID); err != nil {
		logWarning("%v", err)
	}

	printSummary(report, totalStrings, len(targets), output)
	if output != input {
		printNextSteps(proj, input, output)
	}

	return report.Err()
}

// newOverallBar returns a bar counting finished languages, or nil when
// stderr is not a terminal.
func newOverallBar(n int) *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(console.Writer()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]"+i18n.T("Languages")+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// recordJournal updates xcloc.lock next to output with what this run wrote.
func recordJournal(output string, cat *xcstrings.Catalog, report *translate.Report, runID string) error {
	lf, err := lockfile.Load(filepath.Dir(output))
	if err != nil {
		return err
	}
	for _, res := range report.Results {
		lf.Record(res, runID)
	}
	lf.Clean(cat.ValidKeys())
	lf.Touch(time.Now())
	return lf.Save()
}

func printSummary(report *translate.Report, totalStrings, languages int, output string) {
	translations, fallbacks, failedBatches := report.Totals()
	line := strings.Repeat("=", 60)

	console.Line("")
	console.Line("%s", line)
	if len(report.Failures) == 0 {
		logSuccess(i18n.T("All translations complete!"))
	} else {
		logWarning(i18n.N("Finished, %d language failed", "Finished, %d languages failed", len(report.Failures)), len(report.Failures))
	}
	console.Line("%s", line)

	row := func(label string, format string, args ...any) {
		console.Line("  %-22s %s", i18n.T(label), fmt.Sprintf(format, args...))
	}
	row("Total strings:", "%d", totalStrings)
	row("Languages:", "%d", languages)
	row("Translations written:", "%d", translations)
	if fallbacks > 0 {
		row("Kept source text:", "%d", fallbacks)
	}
	if failedBatches > 0 {
		row("Failed requests:", "%d", failedBatches)
	}
	row("Run ID:", "%s", report.RunID)
	row("Total time:", "%s", formatDuration(report.Elapsed))
	if report.Workers > 1 {
		if s := report.SpeedUp(); s >= 1.1 {
			row("Parallel speed-up:", "~%.1fx (about %s sequentially)", s, formatDuration(report.SequentialEstimate()))
		}
	}
	row("Saved to:", "%s", output)
	console.Line("%s", line)
}

func printNextSteps(proj *config.Project, input, output string) {
	in, out := proj.Rel(input), proj.Rel(output)
	console.Line("")
	console.Line("%s", blue(i18n.T("Next steps")))
	console.Line("%s", strings.Repeat("─", 60))
	console.Line("  1. %s", i18n.T("Review the translations:"))
	console.Line("     open %s", out)
	console.Line("  2. %s", i18n.T("If satisfied, replace the original:"))
	console.Line("     mv %s %s", out, in)
	console.Line("  3. %s", i18n.T("Open the project in Xcode and verify the translations"))
	console.Line("")
}
