package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/minios-linux/xcloc/langtable"
	"github.com/minios-linux/xcloc/merge"
	"github.com/minios-linux/xcloc/xcstrings"
)

// Stage is the state of one locale pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageDiffing
	StageBatchLoop
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDiffing:
		return "diffing"
	case StageBatchLoop:
		return "batch-loop"
	case StageComplete:
		return "complete"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// pipeline translates the pending keys of one locale, one batch at a time.
// It only reads the catalog.
type pipeline struct {
	locale  langtable.Locale
	cat     *xcstrings.Catalog
	client  Completer
	limiter *rate.Limiter
	opts    *Options
	stage   Stage
}

func (p *pipeline) advance(s Stage) {
	p.opts.debug("%s: %s -> %s", p.locale.Code, p.stage, s)
	p.stage = s
}

// run executes Idle -> Diffing -> BatchLoop -> Complete. It returns an
// error only for an invalid batch size or a cancelled context.
func (p *pipeline) run(ctx context.Context) (*merge.Result, error) {
	start := time.Now()
	res := merge.NewResult(p.locale.Code)

	p.advance(StageDiffing)
	keys := p.cat.PendingKeys(p.locale.Code)
	if len(keys) == 0 {
		p.advance(StageComplete)
		res.Elapsed = time.Since(start)
		return res, nil
	}

	batches, err := Partition(keys, p.opts.effectiveBatchSize())
	if err != nil {
		return nil, err
	}

	p.opts.log("Translating to %s (%s): %d strings, %d request(s)", p.locale.Name, p.locale.Code, len(keys), len(batches))

	p.advance(StageBatchLoop)
	systemPrompt := p.opts.resolvedPrompt(p.locale.Name)
	delay := p.opts.effectiveBatchDelay()

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.opts.debug("%s: batch %d/%d, %d strings", p.locale.Code, i+1, len(batches), len(batch))
		br := translateBatch(ctx, p.client, p.limiter, p.locale, systemPrompt, batch)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if br.Err != nil {
			res.FailedBatches++
			p.opts.logError("[%s] batch %d/%d failed, keeping source text: %v", p.locale.Name, i+1, len(batches), br.Err)
		} else {
			p.opts.debug("%s: batch %d/%d answered in %.1fs", p.locale.Code, i+1, len(batches), br.Elapsed.Seconds())
		}

		for j, key := range batch {
			res.Add(key, br.Translations[j], br.FellBack[j])
		}

		p.opts.progress(p.locale.Code, p.locale.Name, res.Count, len(keys))

		if i < len(batches)-1 && delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	res.Elapsed = time.Since(start)
	p.advance(StageComplete)
	p.opts.log("%s complete: %d strings in %.1fs", p.locale.Name, res.Count, res.Elapsed.Seconds())
	return res, nil
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

// progressWidth is the number of cells in a text progress bar.
const progressWidth = 30

// ProgressBar renders done/total as a bar of width cells.
func ProgressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = width * done / total
	}
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// ProgressLine is the per-batch progress message of one locale.
func ProgressLine(name string, done, total int) string {
	percent := 100.0
	if total > 0 {
		percent = float64(done) * 100 / float64(total)
	}
	return fmt.Sprintf("[%s] Progress: [%s] %.1f%% (%d/%d)", name, ProgressBar(done, total, progressWidth), percent, done, total)
}
