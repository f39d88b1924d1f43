package models

// Trend directions.
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// Signal polarities.
const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// TrendSignal is the element that decided a trend.
type TrendSignal struct {
	Type          string  `json:"type"`
	Polarity      string  `json:"polarity"`
	SignalTimeUTC ISOTime `json:"signal_time_utc"`
	ElementID     string  `json:"element_id"`
}

// TrendBlock is the current trend of a symbol.
type TrendBlock struct {
	Timeframe       string       `json:"timeframe"`
	Direction       string       `json:"direction"`
	DeterminedAtUTC ISOTime      `json:"determined_at_utc"`
	SourceSignal    *TrendSignal `json:"source_signal"`
}

// TrendChange is one entry of the trend history log.
type TrendChange struct {
	ChangedAtUTC ISOTime      `json:"changed_at_utc"`
	Direction    string       `json:"direction"`
	SourceSignal *TrendSignal `json:"source_signal"`
}

// TrendDocument is the per-symbol trend file.
type TrendDocument struct {
	SchemaVersion string        `json:"schema_version"`
	Symbol        string        `json:"symbol"`
	UpdatedAtUTC  ISOTime       `json:"updated_at_utc"`
	Trend         TrendBlock    `json:"trend"`
	History       []TrendChange `json:"history"`
}

// CurrentDirection returns the stored direction, neutral for a nil document.
func (d *TrendDocument) CurrentDirection() string {
	if d == nil || d.Trend.Direction == "" {
		return TrendNeutral
	}
	return d.Trend.Direction
}
