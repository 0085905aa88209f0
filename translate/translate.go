// Package translate fills in missing locales of a String Catalog by sending
// batches of source strings to an AI text-generation provider: OpenAI,
// Google AI (Gemini), Anthropic, Groq, Ollama, or any custom
// OpenAI-compatible endpoint.
package translate

import (
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/minios-linux/xcloc/merge"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGoogle       = "google"
	ProviderAnthropic    = "anthropic"
	ProviderGroq         = "groq"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
)

// ---------------------------------------------------------------------------
// Parallelization modes
// ---------------------------------------------------------------------------

const (
	ParallelSequential   = "sequential"
	ParallelFullParallel = "full-parallel"
)

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

const (
	DefaultBatchSize   = 100
	DefaultMaxWorkers  = 20
	DefaultBatchDelay  = 100 * time.Millisecond
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4000
	DefaultMaxRetries  = 3
)

// DefaultSystemPrompt is sent as the system message of every request.
// {{targetLang}} is replaced with the locale's English name.
const DefaultSystemPrompt = `Translate to {{targetLang}}. Keep placeholders exact.`

// ---------------------------------------------------------------------------
// Translation options
// ---------------------------------------------------------------------------

// Options controls how a run is scheduled and reported.
type Options struct {
	// BatchSize is how many keys go into one request (0 = DefaultBatchSize).
	BatchSize int
	// MaxWorkers caps the number of locales translated at once (0 = DefaultMaxWorkers).
	MaxWorkers int
	// ParallelMode is ParallelFullParallel (default) or ParallelSequential.
	ParallelMode string
	// BatchDelay is the pause between two batches of one locale
	// (0 = DefaultBatchDelay, negative = no pause).
	BatchDelay time.Duration
	// RequestsPerSecond limits requests across all locales (0 = unlimited).
	RequestsPerSecond float64
	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string
	// RunID tags verbose log lines of this run.
	RunID string
	// OnProgress is called after each batch. When nil a text progress bar
	// is written through OnLog.
	OnProgress func(locale string, done, total int)
	// OnLocaleDone is called on the caller's goroutine as each locale finishes.
	// err is non-nil when the locale failed.
	OnLocaleDone func(locale string, res *merge.Result, err error)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
	// OnDebug emits verbose messages. When nil they go to the standard logger.
	OnDebug func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) debug(format string, args ...any) {
	if !o.Verbose {
		return
	}
	if o.RunID != "" {
		format = "[" + o.RunID + "] " + format
	}
	if o.OnDebug != nil {
		o.OnDebug(format, args...)
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

func (o *Options) progress(loc string, name string, done, total int) {
	if o.OnProgress != nil {
		o.OnProgress(loc, done, total)
		return
	}
	o.log("%s", ProgressLine(name, done, total))
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize != 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o *Options) effectiveMaxWorkers() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	return DefaultMaxWorkers
}

func (o *Options) effectiveBatchDelay() time.Duration {
	if o.BatchDelay < 0 {
		return 0
	}
	if o.BatchDelay == 0 {
		return DefaultBatchDelay
	}
	return o.BatchDelay
}

func (o *Options) sequential() bool {
	return o.ParallelMode == ParallelSequential
}

// limiter returns the shared request limiter, or nil when unlimited.
func (o *Options) limiter() *rate.Limiter {
	if o.RequestsPerSecond <= 0 {
		return nil
	}
	burst := int(o.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RequestsPerSecond), burst)
}

// resolvedPrompt returns the system prompt with {{targetLang}} replaced.
func (o *Options) resolvedPrompt(langName string) string {
	prompt := o.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return strings.ReplaceAll(prompt, "{{targetLang}}", langName)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// escapeForPrompt keeps a multi-line source on one numbered line.
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
