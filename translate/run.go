package translate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/minios-linux/xcloc/langtable"
	"github.com/minios-linux/xcloc/merge"
	"github.com/minios-linux/xcloc/xcstrings"
)

// LocaleFailure records a locale whose pipeline did not produce a result.
type LocaleFailure struct {
	Locale string
	Err    error
}

func (f LocaleFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Locale, f.Err)
}

func (f LocaleFailure) Unwrap() error {
	return f.Err
}

// Report summarizes a run.
type Report struct {
	// Results holds the merged results in the order they were applied.
	Results []*merge.Result
	// Failures lists the locales that produced no result.
	Failures []LocaleFailure
	// Applied is the number of localizations written into the catalog.
	Applied int
	// Workers is the number of locales that could run at once.
	Workers int
	// RunID is Options.RunID of the run.
	RunID string
	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Totals sums the counters of all results.
func (r *Report) Totals() (translations, fallbacks, failedBatches int) {
	return merge.Totals(r.Results)
}

// SequentialEstimate is how long the run would have taken with one locale
// at a time: the sum of the per-locale times.
func (r *Report) SequentialEstimate() time.Duration {
	var d time.Duration
	for _, res := range r.Results {
		d += res.Elapsed
	}
	return d
}

// SpeedUp is the measured gain of running locales concurrently.
func (r *Report) SpeedUp() float64 {
	if r.Elapsed <= 0 {
		return 1
	}
	s := float64(r.SequentialEstimate()) / float64(r.Elapsed)
	if s < 1 {
		return 1
	}
	return s
}

// Err aggregates the failures, or returns nil if every locale succeeded.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	names := make([]string, len(r.Failures))
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		names[i] = f.Locale
		errs[i] = f
	}
	return fmt.Errorf("%d language(s) failed: %s: %w", len(r.Failures), strings.Join(names, ", "), errors.Join(errs...))
}

// Run translates every pending key of every locale and merges the results
// into cat.
//
// Locales run concurrently, at most min(len(locales), MaxWorkers) at a time,
// each pipeline handling its batches strictly in order. The catalog is only
// read while pipelines run; once all of them have returned, results are
// applied one by one in completion order. In sequential mode locales run in
// the given order and each result is applied as soon as it is ready.
//
// A failing or panicking pipeline becomes a LocaleFailure in the report and
// does not affect the others. If ctx is cancelled Run stops, applies nothing
// further and returns ctx.Err() together with the partial report.
func Run(ctx context.Context, cat *xcstrings.Catalog, locales []langtable.Locale, c Completer, opts Options) (*Report, error) {
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}

	start := time.Now()
	lim := opts.limiter()
	report := &Report{RunID: opts.RunID}

	var err error
	if opts.sequential() {
		report.Workers = 1
		err = runSequential(ctx, cat, locales, c, lim, &opts, report)
	} else {
		report.Workers = min(len(locales), opts.effectiveMaxWorkers())
		err = runConcurrent(ctx, cat, locales, c, lim, &opts, report)
	}
	report.Elapsed = time.Since(start)
	return report, err
}

func runSequential(ctx context.Context, cat *xcstrings.Catalog, locales []langtable.Locale, c Completer, lim *rate.Limiter, opts *Options, report *Report) error {
	for _, loc := range locales {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := runLocale(ctx, cat, loc, c, lim, opts)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = apply(cat, res, report)
		}
		if err != nil {
			report.Failures = append(report.Failures, LocaleFailure{Locale: loc.Code, Err: err})
			opts.logError("Error translating %s: %v", loc.Code, err)
			res = nil
		}
		if opts.OnLocaleDone != nil {
			opts.OnLocaleDone(loc.Code, res, err)
		}
	}
	return nil
}

func runConcurrent(ctx context.Context, cat *xcstrings.Catalog, locales []langtable.Locale, c Completer, lim *rate.Limiter, opts *Options, report *Report) error {
	type outcome struct {
		locale string
		res    *merge.Result
		err    error
	}

	out := make(chan outcome, len(locales))

	var g errgroup.Group
	g.SetLimit(max(1, min(len(locales), opts.effectiveMaxWorkers())))

	go func() {
		for _, loc := range locales {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res, err := runLocale(ctx, cat, loc, c, lim, opts)
				out <- outcome{locale: loc.Code, res: res, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(out)
	}()

	// Collect in completion order; the catalog stays read-only until every
	// pipeline has returned.
	var done []outcome
	for o := range out {
		if o.err != nil && ctx.Err() == nil {
			opts.logError("Error translating %s: %v", o.locale, o.err)
		}
		if opts.OnLocaleDone != nil && ctx.Err() == nil {
			opts.OnLocaleDone(o.locale, o.res, o.err)
		}
		done = append(done, o)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, o := range done {
		err := o.err
		if err == nil {
			err = apply(cat, o.res, report)
		}
		if err != nil {
			report.Failures = append(report.Failures, LocaleFailure{Locale: o.locale, Err: err})
		}
	}
	return nil
}

// runLocale runs one pipeline, turning a panic into an error.
func runLocale(ctx context.Context, cat *xcstrings.Catalog, loc langtable.Locale, c Completer, lim *rate.Limiter, opts *Options) (res *merge.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			opts.debug("%s: panic: %v\n%s", loc.Code, r, debug.Stack())
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	p := &pipeline{
		locale:  loc,
		cat:     cat,
		client:  c,
		limiter: lim,
		opts:    opts,
	}
	return p.run(ctx)
}

func apply(cat *xcstrings.Catalog, res *merge.Result, report *Report) error {
	n, err := merge.Apply(cat, res)
	report.Applied += n
	if err != nil {
		return err
	}
	report.Results = append(report.Results, res)
	return nil
}
