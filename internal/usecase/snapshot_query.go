package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/pkg/cache"
	applogger "AutoEye/pkg/logger"
)

// SnapshotQuery serves the persisted documents to the read API. Views are
// encoded once and cached until the runner invalidates the symbol.
type SnapshotQuery struct {
	elements  domrepo.ElementStore
	states    domrepo.StateStore
	trends    domrepo.TrendStore
	scenarios domrepo.ScenarioStore
	cache     domrepo.SnapshotCache
	ttl       time.Duration
	l         *applogger.Logger
}

func NewSnapshotQuery(
	elements domrepo.ElementStore,
	states domrepo.StateStore,
	trends domrepo.TrendStore,
	scenarios domrepo.ScenarioStore,
	c domrepo.SnapshotCache,
	ttl time.Duration,
	l *applogger.Logger,
) *SnapshotQuery {
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotQuery{
		elements:  elements,
		states:    states,
		trends:    trends,
		scenarios: scenarios,
		cache:     c,
		ttl:       ttl,
		l:         l,
	}
}

// NormalizeSymbol is the canonical form used for file names and cache keys.
func NormalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// State returns the state document. It only holds live elements, so every
// status filter yields the same view.
func (q *SnapshotQuery) State(ctx context.Context, symbol string) (json.RawMessage, error) {
	symbol = NormalizeSymbol(symbol)
	return q.cached(ctx, cache.DocumentKey(symbol, "state"), func() (interface{}, error) {
		doc, err := q.states.Load(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("state %s: %w", symbol, domain.ErrNotFound)
		}
		return doc, nil
	})
}

// Trend returns the current block for active, the change log for history and the
// whole document for all.
func (q *SnapshotQuery) Trend(ctx context.Context, symbol, status string) (json.RawMessage, error) {
	symbol = NormalizeSymbol(symbol)
	return q.cached(ctx, cache.DocumentKey(symbol, "trend", status), func() (interface{}, error) {
		doc, err := q.trends.Load(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("trend %s: %w", symbol, domain.ErrNotFound)
		}
		switch status {
		case models.ViewActive:
			return doc.Trend, nil
		case models.ViewHistory:
			return nonNil(doc.History), nil
		default:
			return doc, nil
		}
	})
}

// Scenarios returns the active list, the history list or the whole document.
func (q *SnapshotQuery) Scenarios(ctx context.Context, symbol, status string) (json.RawMessage, error) {
	symbol = NormalizeSymbol(symbol)
	return q.cached(ctx, cache.DocumentKey(symbol, "scenarios", status), func() (interface{}, error) {
		doc, err := q.scenarios.Load(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("scenarios %s: %w", symbol, domain.ErrNotFound)
		}
		switch status {
		case models.ViewActive:
			return nonNil(doc.Active), nil
		case models.ViewHistory:
			return nonNil(doc.History), nil
		default:
			return doc, nil
		}
	})
}

// Elements lists one timeframe block, optionally narrowed to a kind. Terminal
// elements are dropped unless includeTerminal is set.
func (q *SnapshotQuery) Elements(ctx context.Context, symbol, timeframe, kind string, includeTerminal bool) (json.RawMessage, error) {
	symbol = NormalizeSymbol(symbol)
	tf := domrepo.NormalizeTimeframe(timeframe)
	if tf == "" {
		return nil, fmt.Errorf("timeframe %q: %w", timeframe, domain.ErrConfiguration)
	}
	key := cache.DocumentKey(symbol, "elements", tf, kind, includeTerminal)
	return q.cached(ctx, key, func() (interface{}, error) {
		doc, err := q.elements.Load(ctx, symbol)
		if err != nil {
			return nil, err
		}
		block := doc.Timeframes[tf]
		if block == nil {
			return nil, fmt.Errorf("elements %s %s: %w", symbol, tf, domain.ErrNotFound)
		}
		out := make([]*models.Element, 0, len(block.Elements))
		for _, e := range block.Elements {
			if e == nil || (kind != "" && string(e.Kind) != kind) {
				continue
			}
			if !includeTerminal && e.IsTerminal() {
				continue
			}
			out = append(out, e)
		}
		return out, nil
	})
}

func (q *SnapshotQuery) cached(ctx context.Context, key string, load func() (interface{}, error)) (json.RawMessage, error) {
	if q.cache != nil && q.ttl > 0 {
		var hit []byte
		if err := q.cache.Get(ctx, key, &hit); err == nil && len(hit) > 0 {
			return hit, nil
		}
	}

	view, err := load()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}

	if q.cache != nil && q.ttl > 0 {
		if err := q.cache.Set(ctx, key, data, q.ttl); err != nil {
			q.l.Warn("snapshot cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return data, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
