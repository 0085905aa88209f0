// Package merge applies per-locale translation results to a String Catalog.
package merge

import (
	"fmt"
	"time"

	"github.com/minios-linux/xcloc/xcstrings"
)

// Result is the output of one locale pipeline.
type Result struct {
	// Locale is the catalog locale code the translations belong to.
	Locale string
	// Keys lists the translated keys in the order they were processed.
	Keys []string
	// Translations maps each key in Keys to its translated value.
	Translations map[string]string
	// Count is the number of keys processed.
	Count int
	// Fallbacks is the number of keys whose value is the source text
	// because no usable translation came back.
	Fallbacks int
	// FallbackKeys lists those keys, in processing order.
	FallbackKeys []string
	// FailedBatches is the number of collaborator calls that failed outright.
	FailedBatches int
	// Elapsed is the wall time the pipeline took.
	Elapsed time.Duration
}

// NewResult returns an empty result for locale.
func NewResult(locale string) *Result {
	return &Result{Locale: locale, Translations: make(map[string]string)}
}

// Add records the value for key. fallback marks it as source text.
func (r *Result) Add(key, value string, fallback bool) {
	if _, dup := r.Translations[key]; !dup {
		r.Keys = append(r.Keys, key)
	}
	r.Translations[key] = value
	r.Count = len(r.Keys)
	if fallback {
		r.FallbackKeys = append(r.FallbackKeys, key)
		r.Fallbacks = len(r.FallbackKeys)
	}
}

// Apply writes every translation of res into cat.
// - Keys are applied in res.Keys order.
// - Each key's localization for res.Locale is set to a translated stringUnit,
//   replacing only that locale.
// - Applying the same result twice leaves the catalog unchanged.
//
// It returns the number of localizations written.
func Apply(cat *xcstrings.Catalog, res *Result) (int, error) {
	n := 0
	for _, key := range res.Keys {
		value, ok := res.Translations[key]
		if !ok {
			continue
		}
		if err := cat.SetTranslation(key, res.Locale, value); err != nil {
			return n, fmt.Errorf("applying %s: %w", res.Locale, err)
		}
		n++
	}
	return n, nil
}

// Totals sums the counters of several results.
func Totals(results []*Result) (translations, fallbacks, failedBatches int) {
	for _, r := range results {
		translations += r.Count
		fallbacks += r.Fallbacks
		failedBatches += r.FailedBatches
	}
	return
}
