package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"CacheScanner/internal/checker"
	"CacheScanner/internal/domain"
	"CacheScanner/internal/ports"
)

// MissingCellPolicy decides what an empty cell in a configured column means.
type MissingCellPolicy string

const (
	MissingCellSkip  MissingCellPolicy = "skip"
	MissingCellError MissingCellPolicy = "error"
)

// PipelineDeps wires all driven adapters into the scan pipeline.
type PipelineDeps struct {
	Source      ports.TableSource
	Writer      ports.TableWriter
	Scheduler   *checker.Scheduler
	Coordinator *checker.PurgeCoordinator
	Repository  ports.ScanRepository
	Recheck     ports.RecheckStore
	Logger      *slog.Logger

	Columns       []string
	MissingCell   MissingCellPolicy
	RecheckWithin time.Duration
}

// Pipeline implements the batch scan workflow: load the table, fan the URL
// cells out to the scheduler, purge invalid URLs, and write the widened
// result table.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run executes one full scan. A missing configured column is fatal; per-item
// failures never abort the batch.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	started := time.Now()

	table, err := p.deps.Source.Load(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("load table: %w", err)
	}

	columnIdx := make(map[string]int, len(p.deps.Columns))
	for _, col := range p.deps.Columns {
		idx, ok := table.ColumnIndex(col)
		if !ok {
			return domain.Summary{}, fmt.Errorf("required column %q is absent from the input", col)
		}
		columnIdx[col] = idx
	}

	items, premade := p.enumerate(table, columnIdx)
	p.debug("enumerated work items", "items", len(items), "precomputed", len(premade))

	outcomes := p.deps.Scheduler.Run(ctx, items)
	for key, o := range premade {
		outcomes[key] = o
	}

	var report domain.PurgeReport
	if p.deps.Coordinator != nil {
		report = p.deps.Coordinator.Purge(ctx, outcomes)
	}

	p.recordHits(outcomes)

	p.widen(table, columnIdx, outcomes)
	if err := p.deps.Writer.Write(table); err != nil {
		return domain.Summary{}, fmt.Errorf("write results: %w", err)
	}

	summary := summarize(outcomes, report, started)

	if p.deps.Repository != nil {
		flat := make([]domain.Outcome, 0, len(outcomes))
		for _, o := range outcomes {
			flat = append(flat, o)
		}
		if err := p.deps.Repository.SaveRun(ctx, summary, flat); err != nil {
			p.deps.Logger.Error("persist scan history", "error", err)
		}
	}

	p.deps.Logger.Info("scan finished",
		"total", summary.Total,
		"success", summary.Success,
		"warn", summary.Warn,
		"error", summary.Error,
		"purged", summary.Purged,
		"purge_failed", summary.PurgeFailed,
		"duration", summary.Finished.Sub(summary.Started),
	)
	return summary, nil
}

// enumerate walks the configured columns row by row, producing work items for
// cells that need a network check and ready-made outcomes for the rest
// (missing cells under the error policy, recent confirmed HITs).
func (p *Pipeline) enumerate(table *domain.Table, columnIdx map[string]int) ([]domain.WorkItem, map[domain.Key]domain.Outcome) {
	var items []domain.WorkItem
	premade := make(map[domain.Key]domain.Outcome)

	for _, col := range p.deps.Columns {
		idx := columnIdx[col]
		for row := range table.Rows {
			cell := strings.TrimSpace(table.Cell(row, idx))
			if cell == "" {
				if p.deps.MissingCell == MissingCellError {
					premade[domain.Key{RowID: row, Column: col}] = domain.Outcome{
						RowID:       row,
						Column:      col,
						FinalStatus: domain.StatusError,
						CacheStatus: domain.CacheUnknown,
						ErrorKind:   domain.ErrConfiguration,
						Message:     "missing URL cell",
					}
				}
				continue
			}

			item := domain.WorkItem{RowID: row, Column: col, URL: cell}
			if o, ok := p.fromRecheck(item); ok {
				premade[item.Key()] = o
				continue
			}
			items = append(items, item)
		}
	}
	return items, premade
}

// fromRecheck finalizes an item from the recent-HIT store when its URL was
// confirmed inside the freshness window.
func (p *Pipeline) fromRecheck(item domain.WorkItem) (domain.Outcome, bool) {
	if p.deps.Recheck == nil {
		return domain.Outcome{}, false
	}
	at, ok, err := p.deps.Recheck.LastHit(item.URL)
	if err != nil {
		p.deps.Logger.Warn("recheck store read failed", "url", item.URL, "error", err)
		return domain.Outcome{}, false
	}
	if !ok || time.Since(at) > p.deps.RecheckWithin {
		return domain.Outcome{}, false
	}
	return domain.Outcome{
		RowID:            item.RowID,
		Column:           item.Column,
		URL:              item.URL,
		FinalStatus:      domain.StatusSuccess,
		CacheStatus:      domain.CacheHit,
		ValidationPassed: true,
		Message:          "confirmed hit at " + at.UTC().Format(time.RFC3339) + ", not rechecked",
	}, true
}

// recordHits stores freshly confirmed HITs for future runs.
func (p *Pipeline) recordHits(outcomes map[domain.Key]domain.Outcome) {
	if p.deps.Recheck == nil {
		return
	}
	now := time.Now()
	for _, o := range outcomes {
		if o.FinalStatus != domain.StatusSuccess || o.CacheStatus != domain.CacheHit || o.AttemptsUsed == 0 {
			continue
		}
		if err := p.deps.Recheck.RecordHit(o.URL, now); err != nil {
			p.deps.Logger.Warn("recheck store write failed", "url", o.URL, "error", err)
		}
	}
}

// widen appends per-column result columns and fills them from the outcomes.
// Cells that were skipped stay blank.
func (p *Pipeline) widen(table *domain.Table, columnIdx map[string]int, outcomes map[domain.Key]domain.Outcome) {
	for _, col := range p.deps.Columns {
		statusCol := table.AddColumn(col + "_cache_status")
		ageCol := table.AddColumn(col + "_age")
		resultCol := table.AddColumn(col + "_result")
		attemptsCol := table.AddColumn(col + "_attempts")
		messageCol := table.AddColumn(col + "_message")
		purgedCol := table.AddColumn(col + "_purged")

		for row := range table.Rows {
			o, ok := outcomes[domain.Key{RowID: row, Column: col}]
			if !ok {
				continue
			}
			age := ""
			if o.AgeKnown {
				age = strconv.Itoa(o.AgeSeconds)
			}
			_ = table.Set(row, statusCol, string(o.CacheStatus))
			_ = table.Set(row, ageCol, age)
			_ = table.Set(row, resultCol, string(o.FinalStatus))
			_ = table.Set(row, attemptsCol, strconv.Itoa(o.AttemptsUsed))
			_ = table.Set(row, messageCol, o.Message)
			_ = table.Set(row, purgedCol, strconv.FormatBool(o.PurgeRequested))
		}
	}
}

func summarize(outcomes map[domain.Key]domain.Outcome, report domain.PurgeReport, started time.Time) domain.Summary {
	summary := domain.Summary{
		Total:       len(outcomes),
		Purged:      len(report.Succeeded),
		PurgeFailed: len(report.Failed),
		Started:     started,
		Finished:    time.Now(),
	}
	for _, o := range outcomes {
		switch o.FinalStatus {
		case domain.StatusSuccess:
			summary.Success++
		case domain.StatusWarn:
			summary.Warn++
		default:
			summary.Error++
		}
	}
	return summary
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Debug(msg, args...)
	}
}
