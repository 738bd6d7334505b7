package checker

import "time"

// FailureKind classifies a failed probe or fetch for the retry decision.
type FailureKind int

const (
	// FailureTransport covers connection, DNS and timeout errors.
	FailureTransport FailureKind = iota
	// FailureServer covers 5xx responses.
	FailureServer
	// FailureClient covers 4xx responses.
	FailureClient
	// FailureUnknownStatus covers 2xx responses whose cache-status header is
	// absent or unparseable.
	FailureUnknownStatus
)

// Decision is the outcome of a retry consultation.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy decides whether a failed attempt should be repeated. It is a
// pure function of its inputs and performs no I/O.
type RetryPolicy struct {
	// Delay is the fixed pause before the next attempt.
	Delay time.Duration
	// RetryOnUnknown treats an unparseable cache status on a 2xx response as
	// transient.
	RetryOnUnknown bool
	// StatusAllowlist holds 4xx codes that are still worth retrying (429 by
	// default at the config layer).
	StatusAllowlist map[int]bool
}

// Decide returns whether to retry after the given 1-indexed attempt and the
// delay to wait first. The first attempt always runs; retries are granted
// while attempt < maxAttempts, so a run uses at most max(1, maxAttempts)
// attempts.
func (p RetryPolicy) Decide(kind FailureKind, statusCode, attempt, maxAttempts int) Decision {
	if attempt >= maxAttempts {
		return Decision{}
	}

	switch kind {
	case FailureTransport:
		return Decision{Retry: true, Delay: p.Delay}
	case FailureServer:
		return Decision{Retry: true, Delay: p.Delay}
	case FailureClient:
		if p.StatusAllowlist[statusCode] {
			return Decision{Retry: true, Delay: p.Delay}
		}
		return Decision{}
	case FailureUnknownStatus:
		if p.RetryOnUnknown {
			return Decision{Retry: true, Delay: p.Delay}
		}
		return Decision{}
	default:
		return Decision{}
	}
}

// classifyStatus maps a response status code to a failure kind; ok reports
// whether the code needs no retry consultation at all.
func classifyStatus(code int) (FailureKind, bool) {
	switch {
	case code >= 200 && code < 300:
		return 0, true
	case code >= 500:
		return FailureServer, false
	default:
		return FailureClient, false
	}
}
