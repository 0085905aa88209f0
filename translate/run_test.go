package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/xcloc/langtable"
	"github.com/minios-linux/xcloc/merge"
)

var testLocales = []langtable.Locale{
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "ja", Name: "Japanese"},
	{Code: "pt-BR", Name: "Portuguese (Brazil)"},
}

func TestRunSequentialAndConcurrentAgree(t *testing.T) {
	seqCat := catalogWith(t, 250)
	parCat := catalogWith(t, 250)

	seq, err := Run(context.Background(), seqCat, testLocales, fakeTranslator(), Options{ParallelMode: ParallelSequential, BatchDelay: -1})
	if err != nil {
		t.Fatalf("sequential Run: %v", err)
	}
	par, err := Run(context.Background(), parCat, testLocales, fakeTranslator(), Options{ParallelMode: ParallelFullParallel, BatchDelay: -1})
	if err != nil {
		t.Fatalf("concurrent Run: %v", err)
	}

	if a, b := mustMarshal(t, seqCat), mustMarshal(t, parCat); a != b {
		t.Fatal("sequential and concurrent output differ")
	}
	if seq.Applied != 1000 || par.Applied != 1000 {
		t.Fatalf("Applied = %d / %d, want 1000", seq.Applied, par.Applied)
	}
	if seq.Workers != 1 || par.Workers != 4 {
		t.Fatalf("Workers = %d / %d", seq.Workers, par.Workers)
	}

	if got, _ := value(t, parCat, "String 249", "pt-BR"); got != "Portuguese (Brazil) String 249" {
		t.Fatalf("String 249/pt-BR = %q", got)
	}

	// Sequential mode applies locales in table order.
	var order []string
	for _, r := range seq.Results {
		order = append(order, r.Locale)
	}
	if diff := cmp.Diff(langtable.Codes(testLocales), order); diff != "" {
		t.Fatalf("sequential order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSkipsEmptyAndExistingKeys(t *testing.T) {
	cat := mustCatalog(t, `{
  "sourceLanguage": "en",
  "strings": {
    "Hello": {},
    "": {},
    "Bye": {"localizations": {"fr": {"stringUnit": {"state": "translated", "value": "Salut"}}}}
  },
  "version": "1.0"
}`)

	locales := []langtable.Locale{{Code: "fr", Name: "French"}, {Code: "de", Name: "German"}}
	report, err := Run(context.Background(), cat, locales, fakeTranslator(), Options{BatchDelay: -1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	checks := []struct {
		key, locale, want string
	}{
		{"Hello", "fr", "French Hello"},
		{"Bye", "fr", "Salut"},
		{"Hello", "de", "German Hello"},
		{"Bye", "de", "German Bye"},
	}
	for _, c := range checks {
		if got, _ := value(t, cat, c.key, c.locale); got != c.want {
			t.Errorf("%s/%s = %q, want %q", c.key, c.locale, got, c.want)
		}
	}

	empty, _ := cat.Entry("")
	if len(empty.Locales()) != 0 {
		t.Fatalf("empty key was localized: %v", empty.Locales())
	}
	if report.Applied != 3 {
		t.Fatalf("Applied = %d, want 3", report.Applied)
	}
}

func TestRunFillsOnlyMissingLocale(t *testing.T) {
	cat := mustCatalog(t, `{
  "sourceLanguage": "en",
  "strings": {
    "Hello": {},
    "": {},
    "Bye": {"localizations": {"fr": {"stringUnit": {"state": "translated", "value": "Au revoir"}}}}
  },
  "version": "1.0"
}`)

	var calls atomic.Int32
	stub := CompleterFunc(func(ctx context.Context, sys, user string) (string, error) {
		calls.Add(1)
		return "1|Bonjour", nil
	})

	locales := []langtable.Locale{{Code: "fr", Name: "French"}}
	report, err := Run(context.Background(), cat, locales, stub, Options{BatchDelay: -1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, _ := value(t, cat, "Hello", "fr"); got != "Bonjour" {
		t.Errorf("Hello/fr = %q, want %q", got, "Bonjour")
	}
	if got, _ := value(t, cat, "Bye", "fr"); got != "Au revoir" {
		t.Errorf("Bye/fr = %q, want %q", got, "Au revoir")
	}
	empty, _ := cat.Entry("")
	if len(empty.Locales()) != 0 {
		t.Errorf("empty key was localized: %v", empty.Locales())
	}
	if calls.Load() != 1 || report.Applied != 1 {
		t.Errorf("calls = %d, applied = %d, want 1 and 1", calls.Load(), report.Applied)
	}
}

func TestRunFallbackSafety(t *testing.T) {
	cat := catalogWith(t, 120)
	failing := CompleterFunc(func(ctx context.Context, sys, user string) (string, error) {
		return "", errors.New("service unavailable")
	})

	report, err := Run(context.Background(), cat, testLocales[:2], failing, Options{BatchDelay: -1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Err() != nil {
		t.Fatalf("collaborator failures must not fail the locale: %v", report.Err())
	}

	for _, key := range cat.Keys() {
		for _, loc := range []string{"fr", "de"} {
			got, ok := value(t, cat, key, loc)
			if !ok || got != key {
				t.Fatalf("%s/%s = %q (ok=%v), want its own source", key, loc, got, ok)
			}
		}
	}

	tr, fb, failed := report.Totals()
	if tr != 240 || fb != 240 || failed != 4 {
		t.Fatalf("Totals = %d/%d/%d, want 240/240/4", tr, fb, failed)
	}
}

func TestRunIdempotent(t *testing.T) {
	cat := catalogWith(t, 30)
	if _, err := Run(context.Background(), cat, testLocales, fakeTranslator(), Options{BatchDelay: -1}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := mustMarshal(t, cat)

	again := mustCatalog(t, first)
	noCalls := CompleterFunc(func(ctx context.Context, sys, user string) (string, error) {
		t.Errorf("collaborator called on a fully localized catalog")
		return "", nil
	})
	report, err := Run(context.Background(), again, testLocales, noCalls, Options{BatchDelay: -1})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Applied != 0 {
		t.Fatalf("second run applied %d localizations", report.Applied)
	}
	if mustMarshal(t, again) != first {
		t.Fatal("rerun changed the output")
	}
}

func TestRunIsolatesFailingLocale(t *testing.T) {
	for _, mode := range []string{ParallelSequential, ParallelFullParallel} {
		t.Run(mode, func(t *testing.T) {
			cat := catalogWith(t, 3)
			inner := fakeTranslator()
			c := CompleterFunc(func(ctx context.Context, sys, user string) (string, error) {
				if langOf(sys) == "German" {
					panic("malformed provider state")
				}
				return inner(ctx, sys, user)
			})

			report, err := Run(context.Background(), cat, testLocales, c, Options{ParallelMode: mode, BatchDelay: -1})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(report.Failures) != 1 || report.Failures[0].Locale != "de" {
				t.Fatalf("Failures = %v, want only de", report.Failures)
			}
			if !strings.Contains(report.Failures[0].Err.Error(), "panic") {
				t.Fatalf("failure = %v", report.Failures[0].Err)
			}
			rerr := report.Err()
			if rerr == nil || !strings.HasPrefix(rerr.Error(), "1 language(s) failed: de") {
				t.Fatalf("Err() = %v", rerr)
			}

			if got, _ := value(t, cat, "String 000", "fr"); got != "French String 000" {
				t.Fatalf("sibling locale not merged: %q", got)
			}
			if _, ok := value(t, cat, "String 000", "de"); ok {
				t.Fatal("failed locale was merged")
			}
			if len(report.Results) != 3 {
				t.Fatalf("len(Results) = %d, want 3", len(report.Results))
			}
		})
	}
}

func TestRunCancelledMergesNothing(t *testing.T) {
	for _, mode := range []string{ParallelSequential, ParallelFullParallel} {
		t.Run(mode, func(t *testing.T) {
			cat := catalogWith(t, 10)
			before := mustMarshal(t, cat)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			c := CompleterFunc(func(ctx context.Context, sys, user string) (string, error) {
				cancel()
				return "", ctx.Err()
			})

			_, err := Run(ctx, cat, testLocales, c, Options{ParallelMode: mode, BatchDelay: -1})
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Run error = %v, want context.Canceled", err)
			}
			if mode == ParallelFullParallel && mustMarshal(t, cat) != before {
				t.Fatal("cancelled concurrent run modified the catalog")
			}
			if len(cat.PendingKeys("fr")) != 10 {
				t.Fatal("cancelled run merged a partial locale")
			}
		})
	}
}

func TestRunBoundsWorkers(t *testing.T) {
	cat := catalogWith(t, 2)
	locales := langtable.Default()[:8]

	var inFlight, peak atomic.Int32
	inner := fakeTranslator()
	c := CompleterFunc(func(ctx context.Context, sys, user string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return inner(ctx, sys, user)
	})

	var mu sync.Mutex
	var done []string
	opts := Options{
		MaxWorkers: 3,
		BatchDelay: -1,
		OnLocaleDone: func(locale string, res *merge.Result, err error) {
			mu.Lock()
			defer mu.Unlock()
			done = append(done, locale)
		},
	}
	report, err := Run(context.Background(), cat, locales, c, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if report.Workers != 3 {
		t.Fatalf("Workers = %d, want 3", report.Workers)
	}
	if len(done) != len(locales) {
		t.Fatalf("OnLocaleDone called %d times, want %d", len(done), len(locales))
	}
}

func TestRunNoLocales(t *testing.T) {
	cat := catalogWith(t, 2)
	report, err := Run(context.Background(), cat, nil, fakeTranslator(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Applied != 0 || len(report.Results) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunRejectsNegativeBatchSize(t *testing.T) {
	cat := catalogWith(t, 2)
	if _, err := Run(context.Background(), cat, testLocales, fakeTranslator(), Options{BatchSize: -1}); err == nil {
		t.Fatal("Run should reject a negative batch size")
	}
}

func TestReportSpeedUp(t *testing.T) {
	r := &Report{Elapsed: 2 * time.Second}
	r.Results = append(r.Results, &merge.Result{Elapsed: 3 * time.Second}, &merge.Result{Elapsed: 3 * time.Second})
	if got := r.SequentialEstimate(); got != 6*time.Second {
		t.Fatalf("SequentialEstimate = %v", got)
	}
	if got := r.SpeedUp(); got != 3 {
		t.Fatalf("SpeedUp = %v, want 3", got)
	}
	if got := (&Report{}).SpeedUp(); got != 1 {
		t.Fatalf("SpeedUp of empty report = %v", got)
	}
}
