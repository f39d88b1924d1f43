package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/internal/domain/service"
	"AutoEye/internal/services/scheduler"
	applogger "AutoEye/pkg/logger"
)

const minDetectBars = 3

// RefreshResult is the outcome of one refresh run.
type RefreshResult struct {
	Reports []models.TimeframeReport
	// Errors are document-level failures that do not belong to a single timeframe.
	Errors []string
	// Written lists the symbols whose element document was rewritten.
	Written []string
	// Documents holds every loaded document after the refresh, keyed by symbol.
	Documents map[string]*models.ElementDocument
}

// Processed is the number of timeframes that were refreshed.
func (r *RefreshResult) Processed() int {
	if r == nil {
		return 0
	}
	return len(r.Reports)
}

// breakKey identifies a structure break independent of its id. Fresh detections
// hash the same fields into the id, but documents written by older builds carry
// ids derived from zone geometry, and those must keep their original id.
type breakKey struct {
	origin    string
	breakTime int64
	role      string
	breakType string
}

// TimeframeRefresher detects elements for every (symbol, timeframe) and keeps the
// element documents current.
type TimeframeRefresher struct {
	source     domrepo.BarSource
	store      domrepo.ElementStore
	detectors  []service.Detector
	cycle      *scheduler.CycleState
	metrics    domrepo.Metrics
	l          *applogger.Logger
	symbols    []string
	timeframes []string
	clock      func() time.Time
	lastBars   map[string]time.Time
}

type RefresherOption func(*TimeframeRefresher)

// WithRefreshClock replaces time.Now.
func WithRefreshClock(clock func() time.Time) RefresherOption {
	return func(r *TimeframeRefresher) { r.clock = clock }
}

func WithRefreshMetrics(m domrepo.Metrics) RefresherOption {
	return func(r *TimeframeRefresher) {
		if m != nil {
			r.metrics = m
		}
	}
}

func NewTimeframeRefresher(
	source domrepo.BarSource,
	store domrepo.ElementStore,
	detectors []service.Detector,
	cycle *scheduler.CycleState,
	symbols, timeframes []string,
	l *applogger.Logger,
	opts ...RefresherOption,
) *TimeframeRefresher {
	if cycle == nil {
		cycle = scheduler.NewCycleState()
	}
	if l == nil {
		l = applogger.Nop()
	}
	r := &TimeframeRefresher{
		source:     source,
		store:      store,
		detectors:  detectors,
		cycle:      cycle,
		metrics:    nopMetrics{},
		l:          l,
		symbols:    resolveSymbols(source, symbols),
		timeframes: domrepo.NormalizeTimeframes(timeframes),
		clock:      time.Now,
		lastBars:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Symbols returns the resolved source symbols in configuration order.
func (r *TimeframeRefresher) Symbols() []string { return r.symbols }

func (r *TimeframeRefresher) Timeframes() []string { return r.timeframes }

// RunAll refreshes every configured timeframe. force ignores stored last bars and
// reloads the full history window.
func (r *TimeframeRefresher) RunAll(ctx context.Context, force bool) (*RefreshResult, error) {
	return r.run(ctx, r.clock().UTC(), force, false)
}

// RunDue refreshes the timeframes whose period rolled over since the last check.
func (r *TimeframeRefresher) RunDue(ctx context.Context, now time.Time) (*RefreshResult, error) {
	return r.run(ctx, now.UTC(), false, true)
}

func (r *TimeframeRefresher) run(ctx context.Context, now time.Time, force, dueOnly bool) (*RefreshResult, error) {
	if len(r.detectors) == 0 {
		return nil, fmt.Errorf("%w: no detectors configured", domain.ErrConfiguration)
	}

	res := &RefreshResult{Documents: make(map[string]*models.ElementDocument, len(r.symbols))}
	for _, symbol := range r.symbols {
		doc, err := r.store.Load(ctx, symbol)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", symbol, err))
			if errors.Is(err, domain.ErrPersistenceCorrupt) {
				r.metrics.RecordError("persistence_corrupt")
				r.l.Warn("element document corrupt, starting empty",
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
		}
		if doc == nil {
			doc = models.NewElementDocument(symbol)
		}
		res.Documents[symbol] = doc
	}

	dirty := make(map[string]bool, len(r.symbols))
	for _, tf := range r.timeframes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if dueOnly {
			last := r.cycle.LastCheck(tf)
			if last == nil {
				last = newestBlockUpdate(res.Documents, tf)
			}
			if !scheduler.IsDue(tf, last, now) {
				continue
			}
		}

		report := r.refreshTimeframe(ctx, tf, now, force, res.Documents, dirty)
		res.Reports = append(res.Reports, report)
		if !report.SkippedNoData {
			r.cycle.MarkChecked(tf, now)
		}
	}

	for _, symbol := range r.symbols {
		if !dirty[symbol] {
			continue
		}
		doc := res.Documents[symbol]
		doc.UpdatedAtUTC = models.NewISOTime(now)
		written, err := r.store.Save(ctx, doc)
		if err != nil {
			r.metrics.RecordError("element_save")
			res.Errors = append(res.Errors, fmt.Sprintf("%s: save elements: %v", symbol, err))
			continue
		}
		r.metrics.RecordDocumentWrite("elements", written)
		if written {
			res.Written = append(res.Written, symbol)
		}
	}
	return res, nil
}

func (r *TimeframeRefresher) refreshTimeframe(
	ctx context.Context,
	tf string,
	now time.Time,
	force bool,
	docs map[string]*models.ElementDocument,
	dirty map[string]bool,
) models.TimeframeReport {
	start := time.Now()
	defer func() { r.metrics.RecordLatency("refresh_"+tf, time.Since(start).Seconds()) }()

	cutoff := r.source.Cutoff(now)
	report := models.TimeframeReport{Timeframe: tf, Errors: []string{}}
	activeByKind := map[models.Kind]int{}
	totalByKind := map[models.Kind]int{}
	attempted, failed := 0, 0

	for _, symbol := range r.symbols {
		doc := docs[symbol]
		block := doc.Block(tf)
		if !block.Initialized {
			report.PrimaryLoad = true
		}
		attempted++

		bars, err := r.fetch(ctx, symbol, tf, block, now, force)
		if err != nil {
			failed++
			r.metrics.RecordError("data_unavailable")
			report.Errors = append(report.Errors, fmt.Sprintf("%s %s: %v", symbol, tf, err))
			r.l.Warn("timeframe unit skipped, no data",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", tf),
				applogger.Error(err),
			)
			continue
		}

		lastBar := block.LastBarTimeUTC.TimePtr()
		if len(bars) > 0 {
			t := bars[len(bars)-1].Time
			lastBar = &t
			r.lastBars[lastBarKey(tf, symbol)] = t
		}

		existing := make([]*models.Element, 0, len(block.Elements))
		for _, e := range block.Elements {
			if e != nil && domrepo.NormalizeTimeframe(e.Timeframe) == tf {
				existing = append(existing, e)
			}
		}

		var next []*models.Element
		if len(bars) < minDetectBars {
			r.l.Warn("not enough bars, elements carried forward",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", tf),
				applogger.Int("bars", len(bars)),
			)
			next = cloneAll(existing)
		} else {
			next = r.process(symbol, tf, bars, r.source.PointSize(ctx, symbol), existing)
		}

		kept := next[:0]
		for _, e := range next {
			if !e.FormationTime.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		elements := dedupeByID(kept)
		models.SortElements(elements)

		oldByID := make(map[string]*models.Element, len(existing))
		for _, e := range existing {
			oldByID[e.ID] = e
		}
		newCount, updates, active := 0, 0, 0
		for _, e := range elements {
			totalByKind[e.Kind]++
			if e.Status == models.StatusActive {
				active++
				activeByKind[e.Kind]++
			}
			old, ok := oldByID[e.ID]
			if !ok {
				newCount++
				continue
			}
			if elementStateChanged(old, e) {
				updates++
			}
		}

		report.NewCount += newCount
		report.StatusUpdatedCount += updates
		report.TotalActive += active
		report.TotalElements += len(elements)

		if !block.Initialized || newCount > 0 || updates > 0 {
			stamp := models.NewISOTime(now)
			doc.Timeframes[tf] = &models.TimeframeBlock{
				Initialized:    true,
				UpdatedAtUTC:   &stamp,
				LastBarTimeUTC: models.ISOTimePtr(lastBar),
				Elements:       elements,
			}
			dirty[symbol] = true
			report.FileUpdated = true
		}
	}

	if attempted > 0 && failed == attempted {
		report.SkippedNoData = true
		report.FileUpdated = false
		report.Message = "no data, documents left untouched"
		return report
	}

	for _, d := range r.detectors {
		r.metrics.RecordElements(tf, string(d.Kind()), activeByKind[d.Kind()], totalByKind[d.Kind()])
	}

	if report.FileUpdated {
		report.Message = "updated"
		r.l.Info("timeframe updated",
			applogger.String("timeframe", tf),
			applogger.Int("new", report.NewCount),
			applogger.Int("status_updated", report.StatusUpdatedCount),
			applogger.Int("active", report.TotalActive),
			applogger.Int("total", report.TotalElements),
		)
	} else {
		report.Message = "no changes"
		r.l.Debug("timeframe unchanged",
			applogger.String("timeframe", tf),
			applogger.Int("active", report.TotalActive),
			applogger.Int("total", report.TotalElements),
		)
	}
	return report
}

func (r *TimeframeRefresher) fetch(ctx context.Context, symbol, tf string, block *models.TimeframeBlock, now time.Time, force bool) ([]models.Bar, error) {
	last := block.LastBarTimeUTC.TimePtr()
	if cached, ok := r.lastBars[lastBarKey(tf, symbol)]; ok {
		last = &cached
	}
	if force || !block.Initialized || last == nil {
		return r.source.FetchHistory(ctx, symbol, tf, now)
	}
	return r.source.FetchIncremental(ctx, symbol, tf, *last, now)
}

// process merges fresh detections into the existing elements of one unit and
// advances every lifecycle. Elements of kinds without a detector are kept unchanged.
func (r *TimeframeRefresher) process(symbol, tf string, bars []models.Bar, pointSize float64, existing []*models.Element) []*models.Element {
	out := make([]*models.Element, 0, len(existing))
	enabled := make(map[models.Kind]bool, len(r.detectors))

	for _, d := range r.detectors {
		kind := d.Kind()
		enabled[kind] = true

		byID := make(map[string]*models.Element)
		secondary := make(map[breakKey]bool)
		order := make([]*models.Element, 0)
		for _, e := range existing {
			if e.Kind != kind {
				continue
			}
			if _, dup := byID[e.ID]; dup {
				continue
			}
			c := e.Clone()
			byID[c.ID] = c
			order = append(order, c)
			if k, ok := secondaryKey(c); ok {
				secondary[k] = true
			}
		}

		for _, item := range d.Detect(symbol, tf, bars, pointSize) {
			if _, known := byID[item.ID]; known {
				continue
			}
			k, ok := secondaryKey(item)
			if ok && secondary[k] {
				continue
			}
			if ok {
				secondary[k] = true
			}
			byID[item.ID] = item
			order = append(order, item)
		}

		for _, e := range order {
			d.UpdateStatus(e, bars)
		}
		out = append(out, order...)
	}

	for _, e := range existing {
		if !enabled[e.Kind] {
			out = append(out, e.Clone())
		}
	}
	return out
}

func secondaryKey(e *models.Element) (breakKey, bool) {
	if e.Kind != models.KindSNR || e.Break == nil {
		return breakKey{}, false
	}
	return breakKey{
		origin:    e.Break.OriginFractalID,
		breakTime: e.Break.BreakTime.Unix(),
		role:      e.Break.Role,
		breakType: e.Break.BreakType,
	}, true
}

func elementStateChanged(old, cur *models.Element) bool {
	return old.Status != cur.Status ||
		!models.SameTime(old.TouchedTime, cur.TouchedTime) ||
		!models.SameTime(old.MitigatedTime, cur.MitigatedTime) ||
		!models.SameFloat(old.FillPrice, cur.FillPrice) ||
		!models.SameFloat(old.FillPercent, cur.FillPercent)
}

func dedupeByID(elements []*models.Element) []*models.Element {
	index := make(map[string]int, len(elements))
	out := make([]*models.Element, 0, len(elements))
	for _, e := range elements {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

func cloneAll(elements []*models.Element) []*models.Element {
	out := make([]*models.Element, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
	}
	return out
}

func newestBlockUpdate(docs map[string]*models.ElementDocument, tf string) *time.Time {
	var latest *time.Time
	for _, doc := range docs {
		b, ok := doc.Timeframes[tf]
		if !ok || b == nil || b.UpdatedAtUTC == nil {
			continue
		}
		t := b.UpdatedAtUTC.Time
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest
}

func resolveSymbols(source domrepo.BarSource, raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		symbol := source.ResolveSymbol(s)
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}

func lastBarKey(tf, symbol string) string { return tf + "|" + symbol }
