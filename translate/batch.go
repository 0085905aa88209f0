package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/minios-linux/xcloc/langtable"
)

// errEmptyResponse is reported when the provider answers with nothing usable.
var errEmptyResponse = errors.New("empty response")

// ---------------------------------------------------------------------------
// Partitioning
// ---------------------------------------------------------------------------

// Partition splits keys into consecutive batches of at most size keys.
// Order is kept exactly and nothing is deduplicated; the last batch may be
// shorter. Empty input yields no batches.
func Partition(keys []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	var batches [][]string
	for i := 0; i < len(keys); i += size {
		end := i + size
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[i:end:end])
	}
	return batches, nil
}

// ---------------------------------------------------------------------------
// Prompt
// ---------------------------------------------------------------------------

// buildUserPrompt renders a batch as a compact numbered list, one "i|text"
// line per key.
func buildUserPrompt(batch []string, langName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate to %s. Keep all %%@, %%lld, %%1$@ placeholders exact. Return numbered list only:\n\n", langName)
	for i, text := range batch {
		fmt.Fprintf(&sb, "%d|%s\n", i+1, escapeForPrompt(text))
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// One batch
// ---------------------------------------------------------------------------

// batchResult is the outcome of one collaborator call. Translations always
// has one entry per key of the batch.
type batchResult struct {
	Translations []string
	// FellBack marks positions that hold the source text.
	FellBack []bool
	// Fallback is set when the whole batch is source text because the call failed.
	Fallback bool
	Err      error
	Elapsed  time.Duration
}

func sourceFallback(batch []string, err error) batchResult {
	fell := make([]bool, len(batch))
	for i := range fell {
		fell[i] = true
	}
	return batchResult{
		Translations: append([]string(nil), batch...),
		FellBack:     fell,
		Fallback:     true,
		Err:          err,
	}
}

// translateBatch asks c for one batch. It never fails: on any error the
// batch comes back as its own source text with Fallback set and Err attached.
func translateBatch(ctx context.Context, c Completer, lim *rate.Limiter, loc langtable.Locale, systemPrompt string, batch []string) batchResult {
	if len(batch) == 0 {
		return batchResult{}
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return sourceFallback(batch, err)
		}
	}

	start := time.Now()
	raw, err := c.Complete(ctx, systemPrompt, buildUserPrompt(batch, loc.Name))
	elapsed := time.Since(start)
	if err != nil {
		res := sourceFallback(batch, err)
		res.Elapsed = elapsed
		return res
	}
	if strings.TrimSpace(raw) == "" {
		res := sourceFallback(batch, errEmptyResponse)
		res.Elapsed = elapsed
		return res
	}

	translations, fell := ReconcileDetailed(raw, batch)
	return batchResult{
		Translations: translations,
		FellBack:     fell,
		Elapsed:      elapsed,
	}
}
