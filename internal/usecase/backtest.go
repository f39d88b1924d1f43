package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/internal/domain/service"
	"AutoEye/internal/services/scenario"
	"AutoEye/internal/services/trend"
	applogger "AutoEye/pkg/logger"
)

const (
	DefaultWarmupBars = 500
	backtestSource    = "MT5-backtest"
	runIDTimeLayout   = "20060102T150405Z"
)

// BacktestParams selects the replay window. Zero values fall back to defaults.
type BacktestParams struct {
	Start      time.Time
	End        time.Time
	Symbols    []string
	RunID      string
	WarmupBars int
}

// Backtester replays M5 bars through state, trend and scenario composition.
type Backtester struct {
	source    domrepo.BarSource
	detectors []service.Detector
	resolver  *trend.Resolver
	composer  *scenario.Composer
	writer    domrepo.BacktestWriter
	sink      domrepo.ProposalSink
	symbols   []string
	l         *applogger.Logger
	clock     func() time.Time
}

type BacktestOption func(*Backtester)

// WithProposalSink also stores proposals in an external sink.
func WithProposalSink(sink domrepo.ProposalSink) BacktestOption {
	return func(b *Backtester) { b.sink = sink }
}

func WithBacktestClock(clock func() time.Time) BacktestOption {
	return func(b *Backtester) { b.clock = clock }
}

func NewBacktester(
	source domrepo.BarSource,
	detectors []service.Detector,
	composer *scenario.Composer,
	writer domrepo.BacktestWriter,
	symbols []string,
	l *applogger.Logger,
	opts ...BacktestOption,
) *Backtester {
	if composer == nil {
		composer = scenario.NewComposer(scenario.DefaultConfig())
	}
	if l == nil {
		l = applogger.Nop()
	}
	b := &Backtester{
		source:    source,
		detectors: detectors,
		resolver:  trend.NewResolver("H1", trend.DefaultHistoryLimit),
		composer:  composer,
		writer:    writer,
		symbols:   symbols,
		l:         l,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type symbolRun struct {
	steps     int
	expired   int
	proposals []models.Proposal
	events    []models.Event
}

// Run replays the window and writes the run artifacts.
func (b *Backtester) Run(ctx context.Context, p BacktestParams) (*models.BacktestSummary, error) {
	if len(b.detectors) == 0 {
		return nil, fmt.Errorf("%w: no detectors configured", domain.ErrConfiguration)
	}
	started := b.clock().UTC()
	start := p.Start.UTC()
	end := p.End.UTC()
	if p.End.IsZero() {
		end = started
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: backtest start is required", domain.ErrConfiguration)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s must be after start %s", domain.ErrConfiguration, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	raw := p.Symbols
	if len(raw) == 0 {
		raw = b.symbols
	}
	symbols := resolveSymbols(b.source, raw)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols resolved for backtest", domain.ErrConfiguration)
	}
	warmup := p.WarmupBars
	if warmup <= 0 {
		warmup = DefaultWarmupBars
	}
	runID := BacktestRunID(p.RunID, start, end, symbols)

	b.l.Info("backtest started",
		applogger.String("run_id", runID),
		applogger.Strings("symbols", symbols),
		applogger.String("start", start.Format(time.RFC3339)),
		applogger.String("end", end.Format(time.RFC3339)),
	)

	summary := &models.BacktestSummary{
		RunID:        runID,
		StartedAtUTC: models.NewISOTime(started),
		StartTimeUTC: models.NewISOTime(start),
		EndTimeUTC:   models.NewISOTime(end),
		Symbols:      symbols,
		Errors:       []string{},
	}
	var proposals []models.Proposal
	var events []models.Event

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run, err := b.runSymbol(ctx, symbol, start, end, runID, warmup)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", symbol, err))
			b.l.Error("backtest symbol failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			continue
		}
		summary.StepsProcessed += run.steps
		summary.ProposalsCreated += len(run.proposals)
		summary.ScenariosExpired += run.expired
		proposals = append(proposals, run.proposals...)
		events = append(events, run.events...)
	}
	summary.SymbolsProcessed = len(symbols)
	summary.EventsWritten = len(events)

	if b.sink != nil && len(proposals) > 0 {
		if err := b.storeProposals(ctx, proposals); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("proposal sink: %v", err))
		}
	}

	summary.FinishedAtUTC = models.NewISOTime(b.clock())
	if _, err := b.writer.WriteRun(runID, proposals, events, summary); err != nil {
		return summary, fmt.Errorf("write backtest run: %w", err)
	}

	b.l.Info("backtest completed",
		applogger.String("run_id", runID),
		applogger.Int("steps", summary.StepsProcessed),
		applogger.Int("proposals", summary.ProposalsCreated),
		applogger.Int("events", summary.EventsWritten),
		applogger.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (b *Backtester) storeProposals(ctx context.Context, proposals []models.Proposal) error {
	if err := b.sink.Init(ctx); err != nil {
		return err
	}
	return b.sink.StoreProposals(ctx, proposals)
}

func (b *Backtester) runSymbol(ctx context.Context, symbol string, start, end time.Time, runID string, warmup int) (*symbolRun, error) {
	m5From := start.Add(-time.Duration(domrepo.TimeframeSeconds("M5")*int64(max(3, warmup))) * time.Second)
	h1From := start.Add(-time.Duration(domrepo.TimeframeSeconds("H1")*int64(max(3, warmup/12))) * time.Second)

	m5, err := b.source.FetchRange(ctx, symbol, "M5", m5From, end)
	if err != nil {
		return nil, err
	}
	h1, err := b.source.FetchRange(ctx, symbol, "H1", h1From, end)
	if err != nil {
		return nil, err
	}

	run := &symbolRun{}
	if len(m5) < minDetectBars || len(h1) < minDetectBars {
		m5n, h1n := len(m5), len(h1)
		run.events = append(run.events, models.Event{
			Event:  models.EventSymbolSkipped,
			RunID:  runID,
			Symbol: symbol,
			Reason: "not_enough_bars",
			M5Bars: &m5n,
			H1Bars: &h1n,
		})
		b.l.Warn("backtest symbol skipped",
			applogger.String("symbol", symbol),
			applogger.Int("m5_bars", m5n),
			applogger.Int("h1_bars", h1n),
		)
		return run, nil
	}

	pointSize := b.source.PointSize(ctx, symbol)
	kinds := make([]models.Kind, 0, len(b.detectors))
	for _, d := range b.detectors {
		kinds = append(kinds, d.Kind())
	}

	var previous *models.ScenarioDocument
	previousTrend := ""
	h1Index := -1

	for i, bar := range m5 {
		step := bar.Time
		if step.Before(start) {
			continue
		}
		if step.After(end) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for h1Index+1 < len(h1) && !h1[h1Index+1].Time.After(step) {
			h1Index++
		}
		if h1Index < 0 {
			continue
		}
		m5Slice, h1Slice := m5[:i+1], h1[:h1Index+1]
		if len(m5Slice) < minDetectBars || len(h1Slice) < minDetectBars {
			continue
		}

		doc := models.NewElementDocument(symbol)
		doc.Timeframes["M5"] = b.detectBlock(symbol, "M5", m5Slice, pointSize, step)
		doc.Timeframes["H1"] = b.detectBlock(symbol, "H1", h1Slice, pointSize, step)

		price := bar.Close
		tick := models.NewISOTime(step)
		market := models.Market{Price: &price, Source: backtestSource, TickTimeUTC: &tick}
		state := ProjectState(symbol, doc, market, nil, kinds, step)

		trendDoc := b.resolver.Build(symbol, state, nil, step)
		if dir := trendDoc.Trend.Direction; dir != previousTrend {
			previousTrend = dir
			block := trendDoc.Trend
			run.events = append(run.events, models.Event{
				Event:     models.EventTrendChanged,
				RunID:     runID,
				Symbol:    symbol,
				TimeUTC:   tick,
				Direction: dir,
				Trend:     &block,
			})
		}

		res := b.composer.Build(symbol, state, trendDoc, previous, step)
		for _, s := range res.Created {
			run.proposals = append(run.proposals, models.NewProposal(runID, s))
			run.events = append(run.events, scenarioEvent(models.EventScenarioCreated, runID, tick, s))
		}
		for _, s := range res.Expired {
			run.events = append(run.events, scenarioEvent(models.EventScenarioExpired, runID, tick, s))
		}
		run.expired += len(res.Expired)
		previous = res.Document
		run.steps++
	}
	return run, nil
}

// detectBlock runs every detector over bars and advances the found elements.
func (b *Backtester) detectBlock(symbol, tf string, bars []models.Bar, pointSize float64, now time.Time) *models.TimeframeBlock {
	var elements []*models.Element
	for _, d := range b.detectors {
		for _, e := range d.Detect(symbol, tf, bars, pointSize) {
			d.UpdateStatus(e, bars)
			elements = append(elements, e)
		}
	}
	elements = dedupeByID(elements)
	models.SortElements(elements)

	stamp := models.NewISOTime(now)
	last := models.NewISOTime(bars[len(bars)-1].Time)
	return &models.TimeframeBlock{
		Initialized:    true,
		UpdatedAtUTC:   &stamp,
		LastBarTimeUTC: &last,
		Elements:       elements,
	}
}

// BacktestRunID returns runID when set, otherwise <SYMBOL|multi>_<start>_<end>.
func BacktestRunID(runID string, start, end time.Time, symbols []string) string {
	if id := strings.TrimSpace(runID); id != "" {
		return id
	}
	part := "multi"
	if len(symbols) == 1 {
		part = symbols[0]
	}
	return fmt.Sprintf("%s_%s_%s", part, start.UTC().Format(runIDTimeLayout), end.UTC().Format(runIDTimeLayout))
}

// IsConfigurationError reports whether err should abort before any I/O.
func IsConfigurationError(err error) bool {
	return errors.Is(err, domain.ErrConfiguration)
}
