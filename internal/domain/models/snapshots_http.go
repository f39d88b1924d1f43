package models

// Snapshot status filters.
const (
	ViewActive  = "active"
	ViewHistory = "history"
	ViewAll     = "all"
)

type SnapshotRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	Status string `query:"status" json:"status" default:"all" validate:"oneof=active history all"`
}

type ElementsRequest struct {
	Symbol          string `param:"symbol" json:"symbol" validate:"required"`
	Timeframe       string `query:"timeframe" json:"timeframe" validate:"required"`
	Kind            string `query:"kind" json:"kind" validate:"omitempty,oneof=fvg snr rb fractal"`
	IncludeTerminal bool   `query:"include_terminal" json:"include_terminal"`
}
