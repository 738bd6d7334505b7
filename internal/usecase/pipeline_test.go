package usecase

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"CacheScanner/internal/checker"
	"CacheScanner/internal/domain"
)

type memSource struct {
	table *domain.Table
}

func (s *memSource) Load(ctx context.Context) (*domain.Table, error) {
	return s.table, nil
}

type memWriter struct {
	mu    sync.Mutex
	table *domain.Table
}

func (w *memWriter) Write(table *domain.Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.table = table
	return nil
}

type stubRunner struct {
	mu       sync.Mutex
	outcomes map[string]domain.Outcome
	calls    []string
}

func (r *stubRunner) Run(ctx context.Context, it domain.WorkItem) domain.Outcome {
	r.mu.Lock()
	r.calls = append(r.calls, it.URL)
	r.mu.Unlock()

	o, ok := r.outcomes[it.URL]
	if !ok {
		o = domain.Outcome{FinalStatus: domain.StatusSuccess, CacheStatus: domain.CacheHit, ValidationPassed: true}
	}
	o.RowID = it.RowID
	o.Column = it.Column
	o.URL = it.URL
	if o.AttemptsUsed == 0 {
		o.AttemptsUsed = 1
	}
	return o
}

type stubPurger struct {
	mu    sync.Mutex
	calls [][]string
}

func (p *stubPurger) PurgeBatch(ctx context.Context, urls []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]string(nil), urls...))
	return nil
}

type stubRecheck struct {
	mu       sync.Mutex
	hits     map[string]time.Time
	recorded []string
}

func (s *stubRecheck) LastHit(url string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.hits[url]
	return at, ok, nil
}

func (s *stubRecheck) RecordHit(url string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, url)
	return nil
}

func (s *stubRecheck) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTable() *domain.Table {
	return &domain.Table{
		Header: []string{"title", "url"},
		Rows: [][]string{
			{"Song A", "https://cdn/a.mp3"},
			{"Song B", "https://cdn/b.mp3"},
			{"Song C", ""},
		},
	}
}

func newPipeline(t *testing.T, runner checker.Runner, deps PipelineDeps) *Pipeline {
	t.Helper()
	deps.Scheduler = checker.NewScheduler(runner, 4, nil)
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	if deps.MissingCell == "" {
		deps.MissingCell = MissingCellSkip
	}
	deps.Columns = []string{"url"}
	return NewPipeline(deps)
}

func TestPipelineWidensTableAndSummarizes(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{outcomes: map[string]domain.Outcome{
		"https://cdn/b.mp3": {
			FinalStatus: domain.StatusError,
			CacheStatus: domain.CacheUnknown,
			ErrorKind:   domain.ErrValidation,
			Message:     "resource returned HTML, likely an error page",
		},
	}}
	writer := &memWriter{}
	purger := &stubPurger{}

	p := newPipeline(t, runner, PipelineDeps{
		Source:      &memSource{table: sampleTable()},
		Writer:      writer,
		Coordinator: checker.NewPurgeCoordinator(purger, 30, nil),
	})

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if summary.Total != 2 || summary.Success != 1 || summary.Error != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Purged != 1 {
		t.Fatalf("expected 1 purged URL, got %d", summary.Purged)
	}
	if len(purger.calls) != 1 || purger.calls[0][0] != "https://cdn/b.mp3" {
		t.Fatalf("unexpected purge calls: %v", purger.calls)
	}

	table := writer.table
	if table == nil {
		t.Fatal("result table was not written")
	}
	statusIdx, ok := table.ColumnIndex("url_cache_status")
	if !ok {
		t.Fatal("url_cache_status column missing")
	}
	if got := table.Cell(0, statusIdx); got != "HIT" {
		t.Fatalf("row 0 cache status: %q", got)
	}
	resultIdx, _ := table.ColumnIndex("url_result")
	if got := table.Cell(1, resultIdx); got != "ERROR" {
		t.Fatalf("row 1 result: %q", got)
	}
	purgedIdx, _ := table.ColumnIndex("url_purged")
	if got := table.Cell(1, purgedIdx); got != strconv.FormatBool(true) {
		t.Fatalf("row 1 purged flag: %q", got)
	}
	// Skipped empty cell stays blank.
	if got := table.Cell(2, statusIdx); got != "" {
		t.Fatalf("skipped row should stay blank, got %q", got)
	}
}

func TestPipelineMissingColumnIsFatal(t *testing.T) {
	t.Parallel()

	table := &domain.Table{Header: []string{"title"}, Rows: [][]string{{"Song A"}}}
	p := newPipeline(t, &stubRunner{}, PipelineDeps{
		Source: &memSource{table: table},
		Writer: &memWriter{},
	})

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("absent required column must abort the batch")
	}
}

func TestPipelineMissingCellErrorPolicy(t *testing.T) {
	t.Parallel()

	writer := &memWriter{}
	p := newPipeline(t, &stubRunner{}, PipelineDeps{
		Source:      &memSource{table: sampleTable()},
		Writer:      writer,
		MissingCell: MissingCellError,
	})

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Total != 3 {
		t.Fatalf("error policy should record the missing cell, total=%d", summary.Total)
	}
	if summary.Error != 1 {
		t.Fatalf("expected 1 error outcome for the missing cell, got %d", summary.Error)
	}

	resultIdx, _ := writer.table.ColumnIndex("url_result")
	if got := writer.table.Cell(2, resultIdx); got != "ERROR" {
		t.Fatalf("missing cell should surface as ERROR, got %q", got)
	}
}

func TestPipelineRecheckWindowSkipsFreshHits(t *testing.T) {
	t.Parallel()

	recheckStore := &stubRecheck{hits: map[string]time.Time{
		"https://cdn/a.mp3": time.Now().Add(-time.Hour),
	}}
	runner := &stubRunner{}
	writer := &memWriter{}

	p := newPipeline(t, runner, PipelineDeps{
		Source:        &memSource{table: sampleTable()},
		Writer:        writer,
		Recheck:       recheckStore,
		RecheckWithin: 24 * time.Hour,
	})

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Total != 2 || summary.Success != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	for _, url := range runner.calls {
		if url == "https://cdn/a.mp3" {
			t.Fatal("fresh hit should not be rechecked over the network")
		}
	}
	// The checked URL produced a fresh HIT and gets recorded; the cached one
	// must not be re-recorded.
	if len(recheckStore.recorded) != 1 || recheckStore.recorded[0] != "https://cdn/b.mp3" {
		t.Fatalf("unexpected recheck writes: %v", recheckStore.recorded)
	}
}
