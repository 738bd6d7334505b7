package ports

import (
	"context"
	"io"
	"time"

	"CacheScanner/internal/domain"
)

// Prober issues a lightweight cache-status probe against a URL.
type Prober interface {
	Probe(ctx context.Context, url string) (domain.ProbeResult, error)
}

// Fetcher retrieves a URL in full, streaming the body to a payload sink.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.FetchResult, error)
}

// Purger issues a single cache-invalidation call against the CDN control API.
// Chunking above the API's per-call bound is the caller's concern.
type Purger interface {
	PurgeBatch(ctx context.Context, urls []string) error
}

// PayloadSink receives fetched bodies. Implementations either persist them or
// discard them once the transfer completed.
type PayloadSink interface {
	Open(name string) (io.WriteCloser, error)
}

// TableSource loads the tabular input (local file or remote URL).
type TableSource interface {
	Load(ctx context.Context) (*domain.Table, error)
}

// TableWriter emits the result table widened with outcome columns.
type TableWriter interface {
	Write(table *domain.Table) error
}

// ScanRepository persists finished runs for history and audit.
type ScanRepository interface {
	SaveRun(ctx context.Context, summary domain.Summary, outcomes []domain.Outcome) error
}

// RecheckStore remembers when a URL was last confirmed served from cache, so
// re-runs inside the freshness window can skip the network.
type RecheckStore interface {
	LastHit(url string) (time.Time, bool, error)
	RecordHit(url string, at time.Time) error
	Close() error
}
