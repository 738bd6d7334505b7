package domain

import "time"

// CacheStatus is the edge-cache disposition reported for a URL.
type CacheStatus string

const (
	CacheHit     CacheStatus = "HIT"
	CacheMiss    CacheStatus = "MISS"
	CacheBypass  CacheStatus = "BYPASS"
	CacheExpired CacheStatus = "EXPIRED"
	CacheUnknown CacheStatus = "UNKNOWN"
)

// ErrorKind classifies a failure for retry decisions and reporting.
type ErrorKind string

const (
	ErrNone          ErrorKind = ""
	ErrTransport     ErrorKind = "transport"
	ErrProtocol      ErrorKind = "protocol"
	ErrValidation    ErrorKind = "validation"
	ErrConfiguration ErrorKind = "configuration"
	ErrPurge         ErrorKind = "purge"
)

// WorkItem identifies one table cell to check. Immutable once created.
type WorkItem struct {
	RowID  int
	Column string
	URL    string
}

// Key addresses the result slot owned by a single WorkItem.
type Key struct {
	RowID  int
	Column string
}

// Key returns the result-slot address for the item.
func (i WorkItem) Key() Key {
	return Key{RowID: i.RowID, Column: i.Column}
}

// ProbeResult carries the headers observed by a lightweight status probe.
type ProbeResult struct {
	StatusCode  int
	CacheStatus CacheStatus
	AgeSeconds  int
	AgeKnown    bool
	ContentType string
}

// FetchResult carries the outcome of a full-content retrieval. BodyHead holds
// the first bytes of the payload for content validation; the remainder is
// streamed to the configured sink.
type FetchResult struct {
	StatusCode  int
	CacheStatus CacheStatus
	ContentType string
	BodyHead    []byte
	Written     int64
}

// Operation names the network action an Attempt records.
type Operation string

const (
	OpProbe   Operation = "probe"
	OpFetch   Operation = "fetch"
	OpReprobe Operation = "reprobe"
)

// Attempt is one audit entry in a workflow run. The sequence is append-only
// and owned solely by the run that produced it.
type Attempt struct {
	Number      int
	Op          Operation
	StatusCode  int
	CacheStatus CacheStatus
	Err         string
	At          time.Time
}

// FinalStatus is the terminal classification of one WorkItem.
type FinalStatus string

const (
	StatusSuccess FinalStatus = "SUCCESS"
	StatusWarn    FinalStatus = "WARN"
	StatusError   FinalStatus = "ERROR"
)

// Outcome is the finalized record for one WorkItem. Exactly one Outcome
// exists per item; it is immutable once the purge pass has annotated it.
type Outcome struct {
	RowID            int
	Column           string
	URL              string
	FinalStatus      FinalStatus
	CacheStatus      CacheStatus
	AgeSeconds       int
	AgeKnown         bool
	AttemptsUsed     int
	ValidationPassed bool
	PurgeRequested   bool
	ErrorKind        ErrorKind
	Message          string
	Attempts         []Attempt
}

// Key returns the result-slot address the outcome occupies.
func (o Outcome) Key() Key {
	return Key{RowID: o.RowID, Column: o.Column}
}

// PurgeCandidate reports whether the outcome should feed the purge batch:
// content validation failed, so the cached copy is known bad.
func (o Outcome) PurgeCandidate() bool {
	return o.FinalStatus == StatusError && o.ErrorKind == ErrValidation
}

// PurgeBatch accumulates unique URLs for a single end-of-scan purge call.
type PurgeBatch struct {
	urls        []string
	seen        map[string]struct{}
	RequestedAt time.Time
}

// Add inserts a URL, ignoring duplicates. Insertion order is preserved so
// chunked purge calls stay deterministic.
func (b *PurgeBatch) Add(url string) {
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	if _, ok := b.seen[url]; ok {
		return
	}
	b.seen[url] = struct{}{}
	b.urls = append(b.urls, url)
}

// URLs returns the accumulated set in insertion order.
func (b *PurgeBatch) URLs() []string {
	return b.urls
}

// Len reports the number of unique URLs collected.
func (b *PurgeBatch) Len() int {
	return len(b.urls)
}

// PurgeReport maps each purged URL to the result of its purge call.
type PurgeReport struct {
	Succeeded map[string]struct{}
	Failed    map[string]string
}

// Summary aggregates a finished scan for logging and persistence.
type Summary struct {
	Total       int
	Success     int
	Warn        int
	Error       int
	Purged      int
	PurgeFailed int
	Started     time.Time
	Finished    time.Time
}
