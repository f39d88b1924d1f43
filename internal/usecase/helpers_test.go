package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	"AutoEye/internal/domain/service"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

// fakeSource serves canned bars per (symbol, timeframe) and records how they were asked for.
type fakeSource struct {
	mu     sync.Mutex
	bars   map[string][]models.Bar
	fail   map[string]bool
	quotes map[string]*models.Quote
	calls  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bars:   map[string][]models.Bar{},
		fail:   map[string]bool{},
		quotes: map[string]*models.Quote{},
	}
}

func unitKey(symbol, tf string) string { return symbol + "|" + tf }

func (f *fakeSource) record(kind, symbol, tf string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind+":"+unitKey(symbol, tf))
}

func (f *fakeSource) get(symbol, tf string) ([]models.Bar, error) {
	if f.fail[unitKey(symbol, tf)] {
		return nil, fmt.Errorf("%w: %s %s: source offline", domain.ErrDataUnavailable, symbol, tf)
	}
	return append([]models.Bar(nil), f.bars[unitKey(symbol, tf)]...), nil
}

func (f *fakeSource) ResolveSymbol(raw string) string { return strings.TrimSpace(raw) }

func (f *fakeSource) Cutoff(now time.Time) time.Time { return now.Add(-30 * 24 * time.Hour) }

func (f *fakeSource) FetchHistory(_ context.Context, symbol, tf string, _ time.Time) ([]models.Bar, error) {
	f.record("history", symbol, tf)
	return f.get(symbol, tf)
}

func (f *fakeSource) FetchIncremental(_ context.Context, symbol, tf string, _, _ time.Time) ([]models.Bar, error) {
	f.record("incremental", symbol, tf)
	return f.get(symbol, tf)
}

func (f *fakeSource) FetchRange(_ context.Context, symbol, tf string, from, to time.Time) ([]models.Bar, error) {
	f.record("range", symbol, tf)
	bars, err := f.get(symbol, tf)
	if err != nil {
		return nil, err
	}
	out := bars[:0]
	for _, b := range bars {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSource) Quote(_ context.Context, symbol string) (*models.Quote, error) {
	return f.quotes[symbol], nil
}

func (f *fakeSource) PointSize(context.Context, string) float64 { return 0.0001 }

// stubDetector returns the elements of detect and applies update to every element.
type stubDetector struct {
	kind   models.Kind
	detect func(symbol, tf string, bars []models.Bar) []*models.Element
	update func(e *models.Element, bars []models.Bar)
}

func (d *stubDetector) Kind() models.Kind { return d.kind }

func (d *stubDetector) Detect(symbol, tf string, bars []models.Bar, _ float64) []*models.Element {
	if d.detect == nil {
		return nil
	}
	return d.detect(symbol, tf, bars)
}

func (d *stubDetector) UpdateStatus(e *models.Element, bars []models.Bar) {
	if d.update != nil && !e.IsTerminal() {
		d.update(e, bars)
	}
}

var _ service.Detector = (*stubDetector)(nil)

func gap(id, symbol, tf, direction string, c3 time.Time, low, high float64) *models.Element {
	return &models.Element{
		ID:            id,
		Kind:          models.KindFVG,
		Symbol:        symbol,
		Timeframe:     tf,
		Direction:     direction,
		FormationTime: c3,
		ZoneLow:       low,
		ZoneHigh:      high,
		C1Time:        c3.Add(-10 * time.Minute),
		C2Time:        c3.Add(-5 * time.Minute),
		C3Time:        c3,
		Status:        models.StatusActive,
		Gap:           &models.GapMeta{},
	}
}

// gapPerThirdBar emits one bullish gap on every third bar of the series.
func gapPerThirdBar() *stubDetector {
	return &stubDetector{
		kind: models.KindFVG,
		detect: func(symbol, tf string, bars []models.Bar) []*models.Element {
			var out []*models.Element
			for i := 2; i < len(bars); i += 3 {
				b := bars[i]
				out = append(out, gap(fmt.Sprintf("%s-%s-%d", symbol, tf, b.Time.Unix()), symbol, tf, models.DirectionBullish, b.Time, b.Low, b.High))
			}
			return out
		},
	}
}

func barsFrom(start time.Time, step time.Duration, closes ...float64) []models.Bar {
	out := make([]models.Bar, 0, len(closes))
	for i, c := range closes {
		out = append(out, models.Bar{
			Time:  start.Add(time.Duration(i) * step),
			Open:  c,
			High:  c + 0.5,
			Low:   c - 0.5,
			Close: c,
		})
	}
	return out
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEvents(ctx context.Context, events []models.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

type MockRunLock struct {
	mock.Mock
}

func (m *MockRunLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunLock) Unlock(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockDocumentCache struct {
	mock.Mock
}

func (m *MockDocumentCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return m.Called(ctx, pattern).Error(0)
}
