package checker

import (
	"context"
	"log/slog"
	"sync"

	"CacheScanner/internal/domain"
)

// Runner executes the per-URL state machine for one item.
type Runner interface {
	Run(ctx context.Context, item domain.WorkItem) domain.Outcome
}

// Scheduler fans work items out to workflow runs under a concurrency cap and
// funnels all outcomes through a single collector, so the result map has a
// single writer and needs no locking.
type Scheduler struct {
	runner Runner
	limit  int
	logger *slog.Logger
}

// NewScheduler builds a scheduler with the given concurrency limit.
func NewScheduler(runner Runner, limit int, logger *slog.Logger) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	return &Scheduler{runner: runner, limit: limit, logger: logger}
}

// Run schedules every item exactly once, starting them in input order, and
// returns one outcome per item. Cancellation stops issuing new runs; items
// never started are recorded as aborted ERROR outcomes rather than omitted.
func (s *Scheduler) Run(ctx context.Context, items []domain.WorkItem) map[domain.Key]domain.Outcome {
	results := make(chan domain.Outcome)

	go func() {
		defer close(results)

		sem := make(chan struct{}, s.limit)
		var wg sync.WaitGroup
		for _, item := range items {
			if ctx.Err() != nil {
				results <- abortedOutcome(item)
				continue
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- abortedOutcome(item)
				continue
			}

			wg.Add(1)
			go func(it domain.WorkItem) {
				defer wg.Done()
				defer func() { <-sem }()
				results <- s.runner.Run(ctx, it)
			}(item)
		}
		wg.Wait()
	}()

	out := make(map[domain.Key]domain.Outcome, len(items))
	for o := range results {
		out[o.Key()] = o
		if s.logger != nil {
			s.logger.Info("checked",
				"url", o.URL,
				"column", o.Column,
				"status", o.FinalStatus,
				"cache", o.CacheStatus,
				"attempts", o.AttemptsUsed,
			)
		}
	}
	return out
}

func abortedOutcome(item domain.WorkItem) domain.Outcome {
	return domain.Outcome{
		RowID:       item.RowID,
		Column:      item.Column,
		URL:         item.URL,
		FinalStatus: domain.StatusError,
		CacheStatus: domain.CacheUnknown,
		ErrorKind:   domain.ErrTransport,
		Message:     "aborted",
	}
}
