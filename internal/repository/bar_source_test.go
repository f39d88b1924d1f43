package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
)

type MockCandleReader struct {
	mock.Mock
}

func (m *MockCandleReader) GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error) {
	args := m.Called(ctx, symbol, timeframe, from, to)
	return args.Get(0).([]models.Bar), args.Error(1)
}

func (m *MockCandleReader) GetLatestBars(ctx context.Context, symbol, timeframe string, n int) ([]models.Bar, error) {
	args := m.Called(ctx, symbol, timeframe, n)
	return args.Get(0).([]models.Bar), args.Error(1)
}

func (m *MockCandleReader) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	args := m.Called(ctx, symbol)
	q, _ := args.Get(0).(*models.Quote)
	return q, args.Error(1)
}

func (m *MockCandleReader) GetPointSize(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func TestMarketBarSource_IncrementalRewind(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(48 * time.Hour)
	last := now.Add(-30 * time.Minute)
	reader := new(MockCandleReader)
	src := NewMarketBarSource(reader, BarSourceConfig{HistoryDays: 30, HistoryBufferDays: 5, IncrementalBars: 500}, nil)

	bars := barsFrom(last.Add(-20*time.Minute), 5*time.Minute, 1, 2, 3, 4)
	reader.On("GetBars", ctx, "EURUSD", "M5", last.Add(-20*time.Minute), now).Return(bars, nil).Once()

	got, err := src.FetchIncremental(ctx, "EURUSD", "M5", last, now)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	reader.AssertExpectations(t)
}

func TestMarketBarSource_IncrementalFallsBackToLatest(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(48 * time.Hour)
	last := now.Add(-time.Hour)
	reader := new(MockCandleReader)
	src := NewMarketBarSource(reader, BarSourceConfig{HistoryDays: 30, HistoryBufferDays: 5, IncrementalBars: 5}, nil)

	reader.On("GetBars", ctx, "EURUSD", "H1", last.Add(-4*time.Hour), now).Return(barsFrom(last, time.Hour, 1), nil).Once()
	latest := barsFrom(now.Add(-25*time.Hour), time.Hour, 1, 2, 3)
	reader.On("GetLatestBars", ctx, "EURUSD", "H1", 20).Return(latest, nil).Once()

	got, err := src.FetchIncremental(ctx, "EURUSD", "H1", last, now)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	reader.AssertExpectations(t)
}

func TestMarketBarSource_RewindClampedToCutoff(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(48 * time.Hour)
	reader := new(MockCandleReader)
	src := NewMarketBarSource(reader, BarSourceConfig{HistoryDays: 1}, nil)
	cutoff := now.Add(-24 * time.Hour)

	reader.On("GetBars", ctx, "EURUSD", "D1", cutoff, now).Return(barsFrom(cutoff, time.Hour, 1, 2, 3), nil).Once()
	_, err := src.FetchIncremental(ctx, "EURUSD", "D1", now.Add(-23*time.Hour), now)
	require.NoError(t, err)
	reader.AssertExpectations(t)
}

func TestMarketBarSource_ErrorsAreDataUnavailable(t *testing.T) {
	ctx := context.Background()
	now := t0
	reader := new(MockCandleReader)
	src := NewMarketBarSource(reader, BarSourceConfig{HistoryDays: 2, HistoryBufferDays: 1}, nil)

	reader.On("GetBars", ctx, "EURUSD", "M5", now.Add(-72*time.Hour), now).Return([]models.Bar(nil), errors.New("boom"))
	_, err := src.FetchHistory(ctx, "EURUSD", "M5", now)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	reader.On("GetPointSize", ctx, "EURUSD").Return(0.0, errors.New("unknown"))
	assert.Zero(t, src.PointSize(ctx, "EURUSD"))
}

func TestMarketBarSource_ResolveSymbol(t *testing.T) {
	src := NewMarketBarSource(new(MockCandleReader), BarSourceConfig{SymbolMap: map[string]string{"gold": "XAUUSD"}}, nil)
	assert.Equal(t, "XAUUSD", src.ResolveSymbol(" Gold "))
	assert.Equal(t, "EURUSD", src.ResolveSymbol("EURUSD"))
}
