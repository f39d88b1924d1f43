package domain

import "errors"

// Error kinds shared across the engine. Callers match them with errors.Is.
var (
	// ErrDataUnavailable means the bar source failed or returned nothing usable
	// for a (symbol, timeframe) unit. The unit is skipped and its documents stay untouched.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInsufficientData means fewer bars than a detector needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrPersistenceCorrupt means a persisted document could not be decoded.
	// It is treated as empty and rebuilt on the next write.
	ErrPersistenceCorrupt = errors.New("persistence corrupt")

	// ErrConfiguration aborts before any I/O.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound means a requested document or timeframe block does not exist yet.
	ErrNotFound = errors.New("not found")
)
