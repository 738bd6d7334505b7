package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"CacheScanner/internal/checker"
	"CacheScanner/internal/config"
	"CacheScanner/internal/infrastructure/cdn"
	"CacheScanner/internal/infrastructure/csvtable"
	"CacheScanner/internal/infrastructure/httpclient"
	"CacheScanner/internal/infrastructure/recheck"
	"CacheScanner/internal/infrastructure/storage"
	"CacheScanner/internal/logging"
	"CacheScanner/internal/ports"
	"CacheScanner/internal/usecase"
)

// Application wires configuration to the scan pipeline.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	cleanup  []func() error
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := httpclient.NewRegistry()
	registry.Register(httpclient.CloudflareExtractor{})

	extractor, err := registry.Resolve(cfg.Checker.Vendor)
	if err != nil {
		return nil, err
	}

	var sink ports.PayloadSink = httpclient.DiscardSink{}
	if cfg.Checker.KeepPayload {
		sink = httpclient.NewDirSink(cfg.Checker.DownloadDir)
	}

	prober := httpclient.NewProbeClient(
		&http.Client{Timeout: cfg.Checker.ProbeTimeoutDuration()},
		extractor,
	)
	fetcher := httpclient.NewFetchClient(
		&http.Client{Timeout: cfg.Checker.FetchTimeoutDuration()},
		extractor,
		sink,
	)

	allowlist := make(map[int]bool, len(cfg.Checker.RetryStatusAllowlist))
	for _, code := range cfg.Checker.RetryStatusAllowlist {
		allowlist[code] = true
	}
	policy := checker.RetryPolicy{
		Delay:           cfg.Checker.RetryDelayDuration(),
		RetryOnUnknown:  cfg.Checker.RetryOnUnknown,
		StatusAllowlist: allowlist,
	}

	workflow := checker.NewWorkflow(
		prober,
		fetcher,
		checker.NewValidator(cfg.Checker.HTMLAllowedColumns),
		policy,
		checker.WorkflowConfig{
			MaxAttempts:         cfg.Checker.MaxAttempts,
			WarmOnMiss:          cfg.Checker.WarmOnMiss,
			WarnOnWarmMiss:      cfg.Checker.WarnOnWarmMiss,
			SettleDelay:         cfg.Checker.SettleDelayDuration(),
			ExpiredRecentWindow: cfg.Checker.ExpiredRecentDuration(),
		},
		baseLogger.With("component", "workflow"),
	)

	app := &Application{cfg: cfg, logger: baseLogger}

	var coordinator *checker.PurgeCoordinator
	if cfg.Purge.Enabled {
		purger := cdn.NewClient(cfg.Purge.Endpoint, cfg.Purge.ZoneID, cfg.Purge.APIToken)
		coordinator = checker.NewPurgeCoordinator(purger, cfg.Purge.MaxPerCall, baseLogger.With("component", "purge"))
	}

	var repository ports.ScanRepository
	if cfg.History.DSN != "" {
		db, err := storage.Open(cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		app.cleanup = append(app.cleanup, db.Close)
		repository = storage.NewPostgresRepository(db)
	}

	var recheckStore ports.RecheckStore
	if cfg.Recheck.Path != "" {
		store, err := recheck.Open(cfg.Recheck.Path)
		if err != nil {
			return nil, fmt.Errorf("recheck store: %w", err)
		}
		app.cleanup = append(app.cleanup, store.Close)
		recheckStore = store
	}

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:        csvtable.NewSource(cfg.CSV.Source, nil),
		Writer:        csvtable.NewWriter(cfg.CSV.Output),
		Scheduler:     checker.NewScheduler(workflow, cfg.Checker.MaxConcurrent, baseLogger.With("component", "scheduler")),
		Coordinator:   coordinator,
		Repository:    repository,
		Recheck:       recheckStore,
		Logger:        baseLogger.With("component", "pipeline"),
		Columns:       cfg.Columns,
		MissingCell:   usecase.MissingCellPolicy(cfg.Checker.MissingCell),
		RecheckWithin: cfg.Recheck.WithinDuration(),
	})

	return app, nil
}

// Run executes one scan and releases held resources.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	_, err := a.pipeline.Run(ctx)
	return err
}

func (a *Application) close() {
	for _, fn := range a.cleanup {
		if err := fn(); err != nil {
			a.logger.Warn("cleanup failed", "error", err)
		}
	}
}
