package usecase

import (
	"context"
	"fmt"
	"time"

	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/internal/services/scenario"
	applogger "AutoEye/pkg/logger"
)

// ScenarioBuilder keeps the scenario document of every symbol with a state snapshot.
type ScenarioBuilder struct {
	states    domrepo.StateStore
	trends    domrepo.TrendStore
	scenarios domrepo.ScenarioStore
	composer  *scenario.Composer
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewScenarioBuilder(
	states domrepo.StateStore,
	trends domrepo.TrendStore,
	scenarios domrepo.ScenarioStore,
	composer *scenario.Composer,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *ScenarioBuilder {
	if composer == nil {
		composer = scenario.NewComposer(scenario.DefaultConfig())
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ScenarioBuilder{states: states, trends: trends, scenarios: scenarios, composer: composer, metrics: metrics, l: l}
}

func (b *ScenarioBuilder) BuildAll(ctx context.Context, now time.Time) models.ScenarioReport {
	now = now.UTC()
	report := models.ScenarioReport{SnapshotReport: models.SnapshotReport{Errors: []string{}}}

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

		res, written, err := b.buildSymbol(ctx, symbol, now)
		if err != nil {
			b.metrics.RecordError("scenario_build")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", symbol, err))
			b.l.Error("scenario build failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			continue
		}
		b.metrics.RecordDocumentWrite("scenarios", written)
		b.metrics.RecordScenarios(symbol, len(res.Created), len(res.Expired))
		if written {
			report.FilesUpdated++
			report.Written = append(report.Written, symbol)
		} else {
			report.FilesUnchanged++
		}
		report.ScenariosCreated += len(res.Created)
		report.ScenariosExpired += len(res.Expired)
		report.Created = append(report.Created, res.Created...)
		report.Expired = append(report.Expired, res.Expired...)
	}
	return report
}

func (b *ScenarioBuilder) buildSymbol(ctx context.Context, symbol string, now time.Time) (scenario.Result, bool, error) {
	state, err := b.states.Load(ctx, symbol)
	if err != nil {
		return scenario.Result{}, false, fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		return scenario.Result{}, false, nil
	}
	trendDoc, err := b.trends.Load(ctx, symbol)
	if err != nil {
		b.l.Warn("trend document unreadable, treating as neutral",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		trendDoc = nil
	}
	existing, err := b.scenarios.Load(ctx, symbol)
	if err != nil {
		b.l.Warn("scenario document unreadable, starting empty",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		existing = nil
	}

	res := b.composer.Build(symbol, state, trendDoc, existing, now)
	written, err := b.scenarios.Save(ctx, res.Document)
	if err != nil {
		return scenario.Result{}, false, fmt.Errorf("save scenarios: %w", err)
	}
	if len(res.Created) > 0 || len(res.Expired) > 0 {
		b.l.Info("scenarios updated",
			applogger.String("symbol", symbol),
			applogger.Int("created", len(res.Created)),
			applogger.Int("expired", len(res.Expired)),
			applogger.Int("active", len(res.Document.Active)),
		)
	}
	return res, written, nil
}
