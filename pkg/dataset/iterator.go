package dataset

import (
	"context"
	"io"
	"iter"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/observability"
)

// IterOption configures Session.Entries.
type IterOption func(*iterConfig)

type iterConfig struct {
	quiet     bool
	every     int64
	limit     int64
	start     int64
	eager     bool
	remaining bool
	out       io.Writer
	now       func() time.Time
}

// Quiet suppresses progress output.
func Quiet() IterOption { return func(c *iterConfig) { c.quiet = true } }

// PrintEvery sets the number of rows between progress lines. Values below 1
// mean every row.
func PrintEvery(n int64) IterOption {
	return func(c *iterConfig) {
		if n < 1 {
			n = 1
		}
		c.every = n
	}
}

// Limit caps the number of rows visited. A negative limit visits every
// remaining row.
func Limit(n int64) IterOption { return func(c *iterConfig) { c.limit = n } }

// StartAt begins iteration at row offset.
func StartAt(offset int64) IterOption { return func(c *iterConfig) { c.start = offset } }

// Eager decodes every column on each advance instead of on first access.
func Eager() IterOption { return func(c *iterConfig) { c.eager = true } }

// WithoutRemaining drops the time-remaining estimate from progress lines.
func WithoutRemaining() IterOption { return func(c *iterConfig) { c.remaining = false } }

// ProgressTo sets where progress lines are written. The default is stdout.
func ProgressTo(w io.Writer) IterOption { return func(c *iterConfig) { c.out = w } }

// WithClock sets the time source used for the estimate.
func WithClock(now func() time.Time) IterOption { return func(c *iterConfig) { c.now = now } }

// Entries returns the sequence of row indices from the start offset to the
// end of the dataset or the limit, moving the session's current row as it
// goes. Breaking out of the loop stops iteration. A decode error under Eager
// or a cancelled context is yielded once and ends the sequence.
//
//	for row, err := range s.Entries(ctx, dataset.PrintEvery(10000)) {
//		if err != nil {
//			return err
//		}
//		pt, err := s.Eval(ctx, "B_PT")
//		...
//	}
func (s *Session) Entries(ctx context.Context, opts ...IterOption) iter.Seq2[int64, error] {
	cfg := iterConfig{every: 1000, limit: -1, remaining: true, out: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(int64, error) bool) {
		ctx, span := observability.StartSpan(ctx, "dataset.iterate",
			attribute.String("dataset", s.chain.dataset))
		defer span.End()

		total := s.chain.Entries()
		start := max(cfg.start, 0)
		end := total
		if cfg.limit >= 0 && start+cfg.limit < end {
			end = start + cfg.limit
		}

		p := &progress{
			every:     cfg.every,
			start:     start,
			end:       end,
			remaining: cfg.remaining,
			now:       cfg.now,
			began:     cfg.now(),
		}
		if !cfg.quiet {
			p.out = cfg.out
		}
		tracker := metrics.NewThroughputTracker(s.chain.dataset, cfg.now)
		rows := metrics.RowsIterated.WithLabelValues(s.chain.dataset)

		var visited int64
		defer func() {
			span.SetAttribute("rows", visited)
			s.logger.Debug("iteration ended",
				zap.Int64("start", start),
				zap.Int64("visited", visited))
		}()

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				span.Fail(err)
				yield(i, err)
				return
			}

			s.entry = i
			if cfg.eager {
				if err := s.cache.Materialize(ctx, i); err != nil {
					span.Fail(err)
					yield(i, err)
					return
				}
			}

			s.shouldPrint = p.step(i)
			if s.shouldPrint {
				tracker.GetAndReset()
			}
			visited++
			rows.Inc()
			tracker.Increment(1)

			if !yield(i, nil) {
				return
			}
		}
		p.finish(visited)
	}
}
