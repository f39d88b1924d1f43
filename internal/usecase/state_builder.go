package usecase

import (
	"context"
	"fmt"
	"time"

	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	applogger "AutoEye/pkg/logger"
)

// DefaultMarketSource labels a market block without a live quote.
const DefaultMarketSource = "MT5"

// StateBuilder projects element documents into per-symbol state snapshots.
type StateBuilder struct {
	source     domrepo.BarSource
	elements   domrepo.ElementStore
	states     domrepo.StateStore
	metrics    domrepo.Metrics
	l          *applogger.Logger
	symbols    []string
	timeframes []string
	kinds      []models.Kind
}

func NewStateBuilder(
	source domrepo.BarSource,
	elements domrepo.ElementStore,
	states domrepo.StateStore,
	symbols, timeframes []string,
	kinds []models.Kind,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *StateBuilder {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &StateBuilder{
		source:     source,
		elements:   elements,
		states:     states,
		metrics:    metrics,
		l:          l,
		symbols:    resolveSymbols(source, symbols),
		timeframes: domrepo.NormalizeTimeframes(timeframes),
		kinds:      kinds,
	}
}

// BuildAll rewrites the state of every configured symbol whose content changed.
func (b *StateBuilder) BuildAll(ctx context.Context, now time.Time) models.SnapshotReport {
	now = now.UTC()
	report := models.SnapshotReport{Errors: []string{}}
	if len(b.symbols) == 0 {
		return report
	}

	for _, symbol := range b.symbols {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
			break
		}
		report.SymbolsProcessed++
		written, err := b.buildSymbol(ctx, symbol, now)
		if err != nil {
			b.metrics.RecordError("state_build")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", symbol, err))
			b.l.Error("state snapshot failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			continue
		}
		b.metrics.RecordDocumentWrite("state", written)
		if written {
			report.FilesUpdated++
			report.Written = append(report.Written, symbol)
		} else {
			report.FilesUnchanged++
		}
	}

	marker := &models.SchemaMarker{
		SchemaVersion: models.SchemaVersion,
		UpdatedAtUTC:  models.NewISOTime(now),
		Notes:         models.StateSchemaNotes,
	}
	if _, err := b.states.SaveSchemaMarker(ctx, marker); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("schema marker: %v", err))
	}
	return report
}

func (b *StateBuilder) buildSymbol(ctx context.Context, symbol string, now time.Time) (bool, error) {
	doc, err := b.elements.Load(ctx, symbol)
	if err != nil {
		// A corrupt element file is projected as empty.
		b.l.Warn("element document unreadable",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
	}
	if doc == nil {
		doc = models.NewElementDocument(symbol)
	}

	previous, err := b.states.Load(ctx, symbol)
	if err != nil {
		b.l.Warn("previous state unreadable",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		previous = nil
	}

	quote, err := b.source.Quote(ctx, symbol)
	if err != nil {
		b.l.Warn("quote unavailable",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		quote = nil
	}

	var prevMarket *models.Market
	if previous != nil {
		prevMarket = &previous.Market
	}
	state := ProjectState(symbol, doc, ResolveMarket(quote, prevMarket, now), b.timeframes, b.kinds, now)

	written, err := b.states.Save(ctx, state)
	if err != nil {
		return false, fmt.Errorf("save state: %w", err)
	}
	if written {
		b.l.Debug("state snapshot updated", applogger.String("symbol", symbol))
	}
	return written, nil
}

// ResolveMarket prefers the live quote, then a previous block that carries a price,
// and finally an unpriced block stamped with now.
func ResolveMarket(quote *models.Quote, previous *models.Market, now time.Time) models.Market {
	if quote != nil {
		price := quote.Price
		tick := quote.TickTime
		if tick.IsZero() {
			tick = now
		}
		source := quote.Source
		if source == "" {
			source = DefaultMarketSource
		}
		stamp := models.NewISOTime(tick)
		return models.Market{
			Price:       &price,
			Bid:         quote.Bid,
			Ask:         quote.Ask,
			Source:      source,
			TickTimeUTC: &stamp,
		}
	}
	if previous != nil && previous.HasPrice() {
		return *previous
	}
	// Keep an earlier placeholder so an unpriced symbol does not rewrite its state every cycle.
	if previous != nil && previous.Price == nil && previous.TickTimeUTC != nil && previous.Source != "" {
		return *previous
	}
	stamp := models.NewISOTime(now)
	return models.Market{Source: DefaultMarketSource, TickTimeUTC: &stamp}
}

// ProjectState builds a state document from an element document. Every element
// timeframe appears together with the required and the configured ones; only
// non-terminal elements are kept.
func ProjectState(symbol string, doc *models.ElementDocument, market models.Market, timeframes []string, kinds []models.Kind, now time.Time) *models.StateDocument {
	state := &models.StateDocument{
		SchemaVersion: models.SchemaVersion,
		Symbol:        symbol,
		UpdatedAtUTC:  models.NewISOTime(now),
		Market:        market,
		Timeframes:    map[string]*models.StateTimeframe{},
	}

	for tf, block := range doc.Timeframes {
		tf = domrepo.NormalizeTimeframe(tf)
		if tf == "" || block == nil {
			continue
		}
		state.Timeframes[tf] = projectBlock(block, kinds)
	}
	for _, tf := range append(append([]string{}, models.RequiredStateTimeframes...), timeframes...) {
		if _, ok := state.Timeframes[tf]; !ok {
			state.Timeframes[tf] = models.NewStateTimeframe()
		}
	}
	return state
}

func projectBlock(block *models.TimeframeBlock, kinds []models.Kind) *models.StateTimeframe {
	out := models.NewStateTimeframe()
	out.Initialized = block.Initialized
	out.UpdatedAtUTC = block.UpdatedAtUTC
	out.LastBarTimeUTC = block.LastBarTimeUTC

	for _, e := range block.Elements {
		if e == nil || e.IsTerminal() {
			continue
		}
		switch e.Kind {
		case models.KindFVG:
			out.Elements.FVG = append(out.Elements.FVG, models.ProjectFVG(e))
		case models.KindSNR:
			out.Elements.SNR = append(out.Elements.SNR, models.ProjectSNR(e))
		case models.KindRB:
			out.Elements.RB = append(out.Elements.RB, models.ProjectRB(e))
		case models.KindFractal:
			out.Elements.Fractals = append(out.Elements.Fractals, models.ProjectFractal(e))
		}
	}
	out.Elements.Sort()

	for _, k := range kinds {
		key := stateKey(k)
		out.State.InitializedElements[key] = block.Initialized
		if block.LastBarTimeUTC != nil {
			out.State.LastBarTimeByElementUTC[key] = *block.LastBarTimeUTC
		}
	}
	return out
}

func stateKey(k models.Kind) string {
	if k == models.KindFractal {
		return "fractals"
	}
	return string(k)
}
