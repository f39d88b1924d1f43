package usecase

import (
	"context"
	"fmt"
	"time"

	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/internal/services/trend"
	applogger "AutoEye/pkg/logger"
)

// TrendBuilder resolves the trend of every symbol that has a state snapshot.
type TrendBuilder struct {
	states   domrepo.StateStore
	trends   domrepo.TrendStore
	resolver *trend.Resolver
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewTrendBuilder(states domrepo.StateStore, trends domrepo.TrendStore, resolver *trend.Resolver, metrics domrepo.Metrics, l *applogger.Logger) *TrendBuilder {
	if resolver == nil {
		resolver = trend.NewResolver(trend.DefaultTimeframe, trend.DefaultHistoryLimit)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &TrendBuilder{states: states, trends: trends, resolver: resolver, metrics: metrics, l: l}
}

func (b *TrendBuilder) BuildAll(ctx context.Context, now time.Time) models.TrendReport {
	now = now.UTC()
	report := models.TrendReport{SnapshotReport: models.SnapshotReport{Errors: []string{}}}

	symbols, err := b.states.List(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list states: %v", err))
		return report
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
			break
		}
		report.SymbolsProcessed++

		change, written, err := b.buildSymbol(ctx, symbol, now)
		if err != nil {
			b.metrics.RecordError("trend_build")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", symbol, err))
			b.l.Error("trend build failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			continue
		}
		b.metrics.RecordDocumentWrite("trend", written)
		if written {
			report.FilesUpdated++
			report.Written = append(report.Written, symbol)
		} else {
			report.FilesUnchanged++
		}
		if change != nil {
			report.Changes = append(report.Changes, *change)
		}
	}
	return report
}

func (b *TrendBuilder) buildSymbol(ctx context.Context, symbol string, now time.Time) (*models.TrendChangeEvent, bool, error) {
	state, err := b.states.Load(ctx, symbol)
	if err != nil {
		return nil, false, fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		return nil, false, nil
	}
	existing, err := b.trends.Load(ctx, symbol)
	if err != nil {
		b.l.Warn("trend document unreadable, rebuilding",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		existing = nil
	}

	next := b.resolver.Build(symbol, state, existing, now)
	if !trend.ShouldWrite(existing, next) {
		return nil, false, nil
	}
	if err := b.trends.Save(ctx, next); err != nil {
		return nil, false, fmt.Errorf("save trend: %w", err)
	}

	previous := existing.CurrentDirection()
	if previous == next.Trend.Direction {
		return nil, true, nil
	}
	b.l.Info("trend changed",
		applogger.String("symbol", symbol),
		applogger.String("from", previous),
		applogger.String("to", next.Trend.Direction),
	)
	return &models.TrendChangeEvent{
		Symbol:    symbol,
		Previous:  previous,
		Direction: next.Trend.Direction,
		Trend:     next.Trend,
	}, true, nil
}
