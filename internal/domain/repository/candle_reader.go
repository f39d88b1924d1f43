package repository

import (
	"context"
	"time"

	"AutoEye/internal/domain/models"
)

// CandleReader provides read-only access to OHLC bars and quotes.
type CandleReader interface {
	GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error)
	GetLatestBars(ctx context.Context, symbol, timeframe string, n int) ([]models.Bar, error)
	// GetQuote returns nil without error when the symbol has no quote.
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetPointSize(ctx context.Context, symbol string) (float64, error)
}

// BarSource applies the history and incremental fetch policies on top of a CandleReader.
type BarSource interface {
	ResolveSymbol(raw string) string
	// Cutoff is the oldest instant kept for bars and elements.
	Cutoff(now time.Time) time.Time
	FetchHistory(ctx context.Context, symbol, timeframe string, now time.Time) ([]models.Bar, error)
	FetchIncremental(ctx context.Context, symbol, timeframe string, lastBar, now time.Time) ([]models.Bar, error)
	FetchRange(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error)
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	PointSize(ctx context.Context, symbol string) float64
}
