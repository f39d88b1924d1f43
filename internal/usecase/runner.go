package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/pkg/cache"
	applogger "AutoEye/pkg/logger"
)

const (
	minPollSeconds = 10
	lockKeyPrefix  = "auto_eye:lock:"
)

// RunnerConfig controls the cycle loop.
type RunnerConfig struct {
	OutputDir       string
	PollSeconds     int
	InitialFullScan bool
	LockTTL         time.Duration
	ExportElements  bool
}

// Runner chains refresh, state, trend and scenario builds into one cycle.
type Runner struct {
	cfg       RunnerConfig
	refresher *TimeframeRefresher
	states    *StateBuilder
	trends    *TrendBuilder
	scenarios *ScenarioBuilder

	publisher domrepo.EventPublisher
	exporter  domrepo.ElementExporter
	lock      domrepo.RunLock
	cache     domrepo.DocumentCache
	metrics   domrepo.Metrics
	l         *applogger.Logger
	clock     func() time.Time
}

type RunnerOption func(*Runner)

func WithEventPublisher(p domrepo.EventPublisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

func WithElementExporter(e domrepo.ElementExporter) RunnerOption {
	return func(r *Runner) { r.exporter = e }
}

func WithRunLock(lock domrepo.RunLock) RunnerOption {
	return func(r *Runner) { r.lock = lock }
}

func WithDocumentCache(c domrepo.DocumentCache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

func WithRunnerMetrics(m domrepo.Metrics) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithRunnerClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

func NewRunner(
	cfg RunnerConfig,
	refresher *TimeframeRefresher,
	states *StateBuilder,
	trends *TrendBuilder,
	scenarios *ScenarioBuilder,
	l *applogger.Logger,
	opts ...RunnerOption,
) *Runner {
	if l == nil {
		l = applogger.Nop()
	}
	r := &Runner{
		cfg:       cfg,
		refresher: refresher,
		states:    states,
		trends:    trends,
		scenarios: scenarios,
		metrics:   nopMetrics{},
		l:         l,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PollInterval is the loop period, never below ten seconds.
func (r *Runner) PollInterval() time.Duration {
	return time.Duration(max(minPollSeconds, r.cfg.PollSeconds)) * time.Second
}

// LockKey is the run lock key for the configured output directory.
func (r *Runner) LockKey() string {
	dir := r.cfg.OutputDir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return lockKeyPrefix + dir
}

// RunOnce refreshes every timeframe and rebuilds the derived documents.
func (r *Runner) RunOnce(ctx context.Context, force bool) (*models.CycleSummary, error) {
	return r.cycle(ctx, func(now time.Time) (*RefreshResult, error) {
		return r.refresher.RunAll(ctx, force)
	}, false)
}

// RunDue refreshes the due timeframes. Derived documents are rebuilt only when at
// least one timeframe ran.
func (r *Runner) RunDue(ctx context.Context) (*models.CycleSummary, error) {
	return r.cycle(ctx, func(now time.Time) (*RefreshResult, error) {
		return r.refresher.RunDue(ctx, now)
	}, true)
}

// Loop runs an optional full scan and then RunDue every poll interval until ctx ends.
func (r *Runner) Loop(ctx context.Context) error {
	interval := r.PollInterval()
	r.l.Info("loop started",
		applogger.Duration("poll", interval),
		applogger.Bool("initial_full_scan", r.cfg.InitialFullScan),
	)

	if r.cfg.InitialFullScan {
		if _, err := r.RunOnce(ctx, true); err != nil {
			r.l.Error("initial full scan failed", applogger.Error(err))
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunDue(ctx); err != nil {
			r.metrics.RecordError("cycle")
			r.l.Error("cycle failed", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			r.l.Info("loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) cycle(ctx context.Context, refresh func(time.Time) (*RefreshResult, error), skipIdle bool) (*models.CycleSummary, error) {
	started := r.clock().UTC()
	// Elapsed time is wall-clock; the injected clock only stamps documents.
	begin := time.Now()
	summary := &models.CycleSummary{
		CycleID:   uuid.NewString(),
		StartedAt: started,
		Errors:    []string{},
	}
	defer func() {
		summary.Duration = time.Since(begin)
		r.metrics.RecordLatency("cycle", summary.Duration.Seconds())
	}()

	if r.lock != nil {
		key := r.LockKey()
		ok, err := r.lock.TryLock(ctx, key, r.lockTTL())
		if err != nil {
			return summary, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			summary.Skipped = true
			r.l.Warn("cycle skipped, run lock held",
				applogger.String("key", key),
				applogger.String("cycle_id", summary.CycleID),
			)
			return summary, nil
		}
		defer func() {
			if err := r.lock.Unlock(context.WithoutCancel(ctx), key); err != nil {
				r.l.Warn("release run lock", applogger.String("key", key), applogger.Error(err))
			}
		}()
	}

	res, err := refresh(started)
	if err != nil {
		return summary, fmt.Errorf("refresh timeframes: %w", err)
	}
	summary.Errors = append(summary.Errors, res.Errors...)
	for _, rep := range res.Reports {
		summary.TimeframesProcessed++
		if rep.FileUpdated {
			summary.FilesUpdated++
		}
		if rep.SkippedNoData {
			summary.TimeframesSkippedNoData++
		}
		summary.NewElements += rep.NewCount
		summary.StatusUpdates += rep.StatusUpdatedCount
		summary.ActiveTotal += rep.TotalActive
		summary.Errors = append(summary.Errors, rep.Errors...)
	}
	if skipIdle && res.Processed() == 0 {
		return summary, nil
	}

	now := r.clock().UTC()
	written := map[string]bool{}
	mark := func(symbols []string) {
		for _, s := range symbols {
			written[s] = true
		}
	}
	mark(res.Written)

	stateRep := r.states.BuildAll(ctx, now)
	summary.StateFilesUpdated = stateRep.FilesUpdated
	summary.StateFilesUnchanged = stateRep.FilesUnchanged
	summary.Errors = append(summary.Errors, stateRep.Errors...)
	mark(stateRep.Written)

	trendRep := r.trends.BuildAll(ctx, now)
	summary.TrendFilesUpdated = trendRep.FilesUpdated
	summary.TrendFilesUnchanged = trendRep.FilesUnchanged
	summary.Errors = append(summary.Errors, trendRep.Errors...)
	mark(trendRep.Written)

	scenarioRep := r.scenarios.BuildAll(ctx, now)
	summary.ScenarioFilesUpdated = scenarioRep.FilesUpdated
	summary.ScenarioFilesUnchanged = scenarioRep.FilesUnchanged
	summary.ScenariosCreated = scenarioRep.ScenariosCreated
	summary.ScenariosExpired = scenarioRep.ScenariosExpired
	summary.Errors = append(summary.Errors, scenarioRep.Errors...)
	mark(scenarioRep.Written)

	events := CycleEvents(summary.CycleID, now, trendRep, scenarioRep)
	if r.publisher != nil && len(events) > 0 {
		if err := r.publisher.PublishEvents(ctx, events); err != nil {
			r.metrics.RecordError("publish")
			summary.Errors = append(summary.Errors, fmt.Sprintf("publish events: %v", err))
		} else {
			summary.EventsPublished = len(events)
		}
	}

	if r.cfg.ExportElements && r.exporter != nil {
		n, errs := r.export(res.Documents)
		summary.ElementFilesExported = n
		summary.Errors = append(summary.Errors, errs...)
	}

	r.invalidate(ctx, written)
	r.logSummary(summary)
	return summary, nil
}

func (r *Runner) lockTTL() time.Duration {
	if r.cfg.LockTTL > 0 {
		return r.cfg.LockTTL
	}
	return 10 * time.Minute
}

func (r *Runner) export(docs map[string]*models.ElementDocument) (int, []string) {
	var errs []string
	n := 0
	symbols := make([]string, 0, len(docs))
	for s := range docs {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		doc := docs[symbol]
		tfs := make([]string, 0, len(doc.Timeframes))
		for tf := range doc.Timeframes {
			tfs = append(tfs, tf)
		}
		sort.Strings(tfs)
		for _, tf := range tfs {
			block := doc.Timeframes[tf]
			if block == nil || !block.Initialized {
				continue
			}
			path, err := r.exporter.Export(symbol, tf, block.Elements)
			if err != nil {
				r.metrics.RecordError("export")
				errs = append(errs, fmt.Sprintf("%s %s: export: %v", symbol, tf, err))
				continue
			}
			n++
			r.l.Debug("elements exported", applogger.String("path", path))
		}
	}
	return n, errs
}

func (r *Runner) invalidate(ctx context.Context, symbols map[string]bool) {
	if r.cache == nil {
		return
	}
	for symbol := range symbols {
		if err := r.cache.DeleteByPattern(ctx, cache.DocumentPattern(symbol)); err != nil {
			r.l.Warn("cache invalidation failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}
}

func (r *Runner) logSummary(s *models.CycleSummary) {
	r.l.Info("cycle completed",
		applogger.String("cycle_id", s.CycleID),
		applogger.Int("timeframes_processed", s.TimeframesProcessed),
		applogger.Int("files_updated", s.FilesUpdated),
		applogger.Int("skipped_no_data", s.TimeframesSkippedNoData),
		applogger.Int("new_elements", s.NewElements),
		applogger.Int("status_updates", s.StatusUpdates),
		applogger.Int("active_total", s.ActiveTotal),
		applogger.Int("state_updated", s.StateFilesUpdated),
		applogger.Int("trend_updated", s.TrendFilesUpdated),
		applogger.Int("scenarios_updated", s.ScenarioFilesUpdated),
		applogger.Int("scenarios_created", s.ScenariosCreated),
		applogger.Int("scenarios_expired", s.ScenariosExpired),
		applogger.Int("events", s.EventsPublished),
		applogger.Int("errors", len(s.Errors)),
	)
}

// CycleEvents turns trend changes and scenario transitions into events.
func CycleEvents(runID string, now time.Time, trends models.TrendReport, scenarios models.ScenarioReport) []models.Event {
	stamp := models.NewISOTime(now)
	events := make([]models.Event, 0, len(trends.Changes)+len(scenarios.Created)+len(scenarios.Expired))
	for _, c := range trends.Changes {
		block := c.Trend
		events = append(events, models.Event{
			Event:     models.EventTrendChanged,
			RunID:     runID,
			Symbol:    c.Symbol,
			TimeUTC:   stamp,
			Direction: c.Direction,
			Trend:     &block,
		})
	}
	for _, s := range scenarios.Created {
		events = append(events, scenarioEvent(models.EventScenarioCreated, runID, stamp, s))
	}
	for _, s := range scenarios.Expired {
		events = append(events, scenarioEvent(models.EventScenarioExpired, runID, stamp, s))
	}
	return events
}

func scenarioEvent(kind, runID string, at models.ISOTime, s models.Scenario) models.Event {
	e := models.Event{
		Event:        kind,
		RunID:        runID,
		Symbol:       s.Symbol,
		TimeUTC:      at,
		ScenarioID:   s.ScenarioID,
		ScenarioType: s.ScenarioType,
		Direction:    s.Direction,
	}
	if kind == models.EventScenarioExpired {
		e.Reason = s.Metadata.ExpiredReason
	}
	return e
}
