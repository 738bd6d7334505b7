package checker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"CacheScanner/internal/domain"
	"CacheScanner/internal/ports"
)

// WorkflowConfig carries the policy knobs for a single-URL check.
type WorkflowConfig struct {
	MaxAttempts int
	WarmOnMiss  bool
	// WarnOnWarmMiss finalizes a warmed item that still reports MISS as WARN
	// instead of SUCCESS.
	WarnOnWarmMiss bool
	SettleDelay    time.Duration
	// ExpiredRecentWindow is the age below which an EXPIRED entry is treated
	// like a HIT; older entries are warmed like a MISS.
	ExpiredRecentWindow time.Duration
}

// Workflow runs the per-URL state machine: probe, classify, optionally warm
// the edge with a full fetch and re-probe, validate content, and produce one
// Outcome. Retries of transient failures are strictly sequential.
type Workflow struct {
	prober    ports.Prober
	fetcher   ports.Fetcher
	validator *Validator
	policy    RetryPolicy
	cfg       WorkflowConfig
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewWorkflow wires the collaborators for per-URL checks.
func NewWorkflow(prober ports.Prober, fetcher ports.Fetcher, validator *Validator, policy RetryPolicy, cfg WorkflowConfig, logger *slog.Logger) *Workflow {
	return &Workflow{
		prober:    prober,
		fetcher:   fetcher,
		validator: validator,
		policy:    policy,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// Run executes the state machine for one WorkItem and always returns a
// finalized Outcome; network failures never escape as errors.
func (w *Workflow) Run(ctx context.Context, item domain.WorkItem) domain.Outcome {
	out := domain.Outcome{
		RowID:       item.RowID,
		Column:      item.Column,
		URL:         item.URL,
		CacheStatus: domain.CacheUnknown,
	}

	if _, err := url.ParseRequestURI(item.URL); err != nil {
		return w.fail(out, domain.ErrConfiguration, fmt.Sprintf("malformed URL: %v", err))
	}

	for attempt := 1; ; attempt++ {
		out.AttemptsUsed = attempt

		res, err := w.prober.Probe(ctx, item.URL)
		w.record(&out, attempt, domain.OpProbe, res.StatusCode, res.CacheStatus, err)
		if err != nil {
			if w.retry(ctx, &out, FailureTransport, 0, attempt) {
				continue
			}
			if out.FinalStatus == domain.StatusError {
				return out // aborted during the retry delay
			}
			return w.fail(out, domain.ErrTransport, fmt.Sprintf("probe failed: %v", err))
		}

		if kind, ok := classifyStatus(res.StatusCode); !ok {
			if w.retry(ctx, &out, kind, res.StatusCode, attempt) {
				continue
			}
			if out.FinalStatus == domain.StatusError {
				return out
			}
			return w.fail(out, domain.ErrProtocol, fmt.Sprintf("probe returned status %d", res.StatusCode))
		}

		if res.CacheStatus == domain.CacheUnknown {
			if w.retry(ctx, &out, FailureUnknownStatus, res.StatusCode, attempt) {
				continue
			}
			if out.FinalStatus == domain.StatusError {
				return out
			}
			return w.fail(out, domain.ErrProtocol, "unknown cache status")
		}

		out.CacheStatus = res.CacheStatus
		out.AgeSeconds = res.AgeSeconds
		out.AgeKnown = res.AgeKnown

		if w.servedFromCache(res) {
			verdict := w.validator.Validate(item.Column, res.ContentType, nil)
			if !verdict.OK {
				return w.fail(out, domain.ErrValidation, verdict.Reason)
			}
			out.ValidationPassed = true
			out.FinalStatus = domain.StatusSuccess
			return out
		}

		// MISS, BYPASS, or stale EXPIRED.
		if !w.cfg.WarmOnMiss {
			// A lightweight probe may carry no body, so there is nothing to
			// validate; report the observed status as-is.
			out.ValidationPassed = true
			out.FinalStatus = domain.StatusSuccess
			return out
		}

		fres, err := w.fetcher.Fetch(ctx, item.URL)
		w.record(&out, attempt, domain.OpFetch, fres.StatusCode, fres.CacheStatus, err)
		if err != nil {
			if w.retry(ctx, &out, FailureTransport, 0, attempt) {
				continue
			}
			if out.FinalStatus == domain.StatusError {
				return out
			}
			return w.fail(out, domain.ErrTransport, fmt.Sprintf("warm fetch failed: %v", err))
		}
		if kind, ok := classifyStatus(fres.StatusCode); !ok {
			if w.retry(ctx, &out, kind, fres.StatusCode, attempt) {
				continue
			}
			if out.FinalStatus == domain.StatusError {
				return out
			}
			return w.fail(out, domain.ErrProtocol, fmt.Sprintf("warm fetch returned status %d", fres.StatusCode))
		}

		verdict := w.validator.Validate(item.Column, fres.ContentType, fres.BodyHead)
		if !verdict.OK {
			return w.fail(out, domain.ErrValidation, verdict.Reason)
		}
		out.ValidationPassed = true

		return w.reprobeAfterWarm(ctx, item, out)
	}
}

// reprobeAfterWarm waits the settle delay and probes once more to observe
// whether the edge now reports a HIT. Warming is best-effort: the second
// probe is never retried and its failure does not fail the item.
func (w *Workflow) reprobeAfterWarm(ctx context.Context, item domain.WorkItem, out domain.Outcome) domain.Outcome {
	if err := w.sleep(ctx, w.cfg.SettleDelay); err != nil {
		return w.fail(out, domain.ErrTransport, "aborted during settle delay")
	}

	note := ""
	res, err := w.prober.Probe(ctx, item.URL)
	w.record(&out, out.AttemptsUsed, domain.OpReprobe, res.StatusCode, res.CacheStatus, err)
	switch {
	case err != nil:
		note = fmt.Sprintf("; re-probe failed: %v", err)
	case res.StatusCode < 200 || res.StatusCode >= 300:
		note = fmt.Sprintf("; re-probe returned status %d", res.StatusCode)
	default:
		out.CacheStatus = res.CacheStatus
		out.AgeSeconds = res.AgeSeconds
		out.AgeKnown = res.AgeKnown
	}

	if out.CacheStatus != domain.CacheHit && w.cfg.WarnOnWarmMiss {
		out.FinalStatus = domain.StatusWarn
		out.Message = fmt.Sprintf("edge still reports %s after warming%s", out.CacheStatus, note)
		return out
	}

	out.FinalStatus = domain.StatusSuccess
	out.Message = fmt.Sprintf("warmed on miss; edge reports %s%s", out.CacheStatus, note)
	return out
}

// servedFromCache reports whether the probe result should take the validate
// path: a HIT, or an EXPIRED entry whose age is still recent.
func (w *Workflow) servedFromCache(res domain.ProbeResult) bool {
	if res.CacheStatus == domain.CacheHit {
		return true
	}
	if res.CacheStatus == domain.CacheExpired && res.AgeKnown {
		return time.Duration(res.AgeSeconds)*time.Second <= w.cfg.ExpiredRecentWindow
	}
	return false
}

// retry consults the policy and, when granted, waits out the delay. A context
// cancellation during the delay finalizes the outcome as an aborted ERROR,
// which the caller detects via out.FinalStatus.
func (w *Workflow) retry(ctx context.Context, out *domain.Outcome, kind FailureKind, statusCode, attempt int) bool {
	d := w.policy.Decide(kind, statusCode, attempt, w.cfg.MaxAttempts)
	if !d.Retry {
		return false
	}
	if w.logger != nil {
		w.logger.Debug("retrying", "url", out.URL, "attempt", attempt, "delay", d.Delay)
	}
	if err := w.sleep(ctx, d.Delay); err != nil {
		*out = w.fail(*out, domain.ErrTransport, "aborted during retry delay")
		return false
	}
	return true
}

func (w *Workflow) fail(out domain.Outcome, kind domain.ErrorKind, message string) domain.Outcome {
	out.FinalStatus = domain.StatusError
	out.ErrorKind = kind
	out.Message = message
	return out
}

func (w *Workflow) record(out *domain.Outcome, number int, op domain.Operation, statusCode int, cs domain.CacheStatus, err error) {
	entry := domain.Attempt{
		Number:      number,
		Op:          op,
		StatusCode:  statusCode,
		CacheStatus: cs,
		At:          w.now(),
	}
	if err != nil {
		entry.Err = err.Error()
		entry.CacheStatus = domain.CacheUnknown
	}
	out.Attempts = append(out.Attempts, entry)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
