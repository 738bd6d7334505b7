package checker

import (
	"context"
	"log/slog"
	"time"

	"CacheScanner/internal/domain"
	"CacheScanner/internal/ports"
)

// PurgeCoordinator collects the URLs of validation failures across a finished
// batch and issues cache-purge calls once, chunked at the control API's
// per-call bound. It never retries internally.
type PurgeCoordinator struct {
	purger     ports.Purger
	maxPerCall int
	logger     *slog.Logger
	now        func() time.Time
}

// NewPurgeCoordinator wires the control-API client and the per-call URL bound.
func NewPurgeCoordinator(purger ports.Purger, maxPerCall int, logger *slog.Logger) *PurgeCoordinator {
	if maxPerCall < 1 {
		maxPerCall = 1
	}
	return &PurgeCoordinator{purger: purger, maxPerCall: maxPerCall, logger: logger, now: time.Now}
}

// Purge gathers purge candidates from the outcome set, issues the batched
// purge, and annotates each candidate outcome with its per-URL result. An
// empty candidate set issues no network call. The triggering ERROR outcomes
// keep their status either way.
func (c *PurgeCoordinator) Purge(ctx context.Context, outcomes map[domain.Key]domain.Outcome) domain.PurgeReport {
	batch := domain.PurgeBatch{RequestedAt: c.now()}
	for _, o := range outcomes {
		if o.PurgeCandidate() {
			batch.Add(o.URL)
		}
	}

	report := domain.PurgeReport{
		Succeeded: make(map[string]struct{}),
		Failed:    make(map[string]string),
	}
	if batch.Len() == 0 {
		return report
	}

	urls := batch.URLs()
	for start := 0; start < len(urls); start += c.maxPerCall {
		end := start + c.maxPerCall
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[start:end]

		if err := c.purger.PurgeBatch(ctx, chunk); err != nil {
			if c.logger != nil {
				c.logger.Error("purge call failed", "urls", len(chunk), "error", err)
			}
			for _, u := range chunk {
				report.Failed[u] = err.Error()
			}
			continue
		}
		for _, u := range chunk {
			report.Succeeded[u] = struct{}{}
		}
	}

	c.annotate(outcomes, report)

	if c.logger != nil {
		c.logger.Info("purge completed", "requested", batch.Len(), "succeeded", len(report.Succeeded), "failed", len(report.Failed))
	}
	return report
}

// annotate writes per-URL purge results back into the outcome records.
func (c *PurgeCoordinator) annotate(outcomes map[domain.Key]domain.Outcome, report domain.PurgeReport) {
	for key, o := range outcomes {
		if !o.PurgeCandidate() {
			continue
		}
		if _, ok := report.Succeeded[o.URL]; ok {
			o.PurgeRequested = true
			o.Message += "; purge requested"
		} else if reason, ok := report.Failed[o.URL]; ok {
			o.Message += "; purge rejected: " + reason
		}
		outcomes[key] = o
	}
}
