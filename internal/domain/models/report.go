package models

import "time"

// TimeframeReport summarises one timeframe refresh.
type TimeframeReport struct {
	Timeframe          string   `json:"timeframe"`
	FileUpdated        bool     `json:"file_updated"`
	SkippedNoData      bool     `json:"skipped_no_data"`
	PrimaryLoad        bool     `json:"primary_load"`
	NewCount           int      `json:"new_count"`
	StatusUpdatedCount int      `json:"status_updated_count"`
	TotalActive        int      `json:"total_active"`
	TotalElements      int      `json:"total_elements"`
	Message            string   `json:"message"`
	Errors             []string `json:"errors"`
}

// SnapshotReport summarises a state or trend build.
type SnapshotReport struct {
	SymbolsProcessed int      `json:"symbols_processed"`
	FilesUpdated     int      `json:"files_updated"`
	FilesUnchanged   int      `json:"files_unchanged"`
	Errors           []string `json:"errors"`
	// Written lists the symbols whose file was rewritten.
	Written []string `json:"-"`
}

// TrendReport adds the direction changes seen during a trend build.
type TrendReport struct {
	SnapshotReport
	Changes []TrendChangeEvent `json:"-"`
}

// TrendChangeEvent is a direction change of one symbol.
type TrendChangeEvent struct {
	Symbol    string
	Previous  string
	Direction string
	Trend     TrendBlock
}

// ScenarioReport adds created and expired scenarios to a snapshot report.
type ScenarioReport struct {
	SnapshotReport
	ScenariosCreated int        `json:"scenarios_created"`
	ScenariosExpired int        `json:"scenarios_expired"`
	Created          []Scenario `json:"-"`
	Expired          []Scenario `json:"-"`
}

// CycleSummary is logged after every runner cycle.
type CycleSummary struct {
	CycleID                 string        `json:"cycle_id"`
	StartedAt               time.Time     `json:"started_at"`
	Duration                time.Duration `json:"duration"`
	TimeframesProcessed     int           `json:"timeframes_processed"`
	FilesUpdated            int           `json:"files_updated"`
	TimeframesSkippedNoData int           `json:"timeframes_skipped_no_data"`
	NewElements             int           `json:"new_elements"`
	StatusUpdates           int           `json:"status_updates"`
	ActiveTotal             int           `json:"active_total"`
	StateFilesUpdated       int           `json:"state_files_updated"`
	StateFilesUnchanged     int           `json:"state_files_unchanged"`
	TrendFilesUpdated       int           `json:"trend_files_updated"`
	TrendFilesUnchanged     int           `json:"trend_files_unchanged"`
	ScenarioFilesUpdated    int           `json:"scenario_files_updated"`
	ScenarioFilesUnchanged  int           `json:"scenario_files_unchanged"`
	ScenariosCreated        int           `json:"scenarios_created"`
	ScenariosExpired        int           `json:"scenarios_expired"`
	EventsPublished         int           `json:"events_published"`
	ElementFilesExported    int           `json:"element_files_exported"`
	Skipped                 bool          `json:"skipped"`
	Errors                  []string      `json:"errors"`
}

// Event types.
const (
	EventScenarioCreated = "scenario_created"
	EventScenarioExpired = "scenario_expired"
	EventTrendChanged    = "trend_changed"
	EventSymbolSkipped   = "symbol_skipped"
)

// Event is a one-way notification emitted after a cycle or a backtest step.
type Event struct {
	Event        string      `json:"event"`
	RunID        string      `json:"run_id,omitempty"`
	Symbol       string      `json:"symbol"`
	TimeUTC      ISOTime     `json:"time_utc"`
	ScenarioID   string      `json:"scenario_id,omitempty"`
	ScenarioType string      `json:"scenario_type,omitempty"`
	Direction    string      `json:"direction,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	Trend        *TrendBlock `json:"trend,omitempty"`
	M5Bars       *int        `json:"m5_bars,omitempty"`
	H1Bars       *int        `json:"h1_bars,omitempty"`
}

// ProposalEntry is the entry block of a proposal record.
type ProposalEntry struct {
	Type  string     `json:"type"`
	Price float64    `json:"price"`
	Zone  [2]float64 `json:"zone"`
}

// ProposalTP is the take-profit block of a proposal record.
type ProposalTP struct {
	Price    float64 `json:"price"`
	TargetID string  `json:"target_id"`
}

// Proposal is the flat record of a created scenario.
type Proposal struct {
	RunID             string        `json:"run_id"`
	CreatedAtUTC      ISOTime       `json:"created_at_utc"`
	Symbol            string        `json:"symbol"`
	ScenarioID        string        `json:"scenario_id"`
	ScenarioType      string        `json:"scenario_type"`
	Direction         string        `json:"direction"`
	TrendAtCreation   string        `json:"trend_at_creation"`
	HTFAnchorID       string        `json:"htf_anchor_id"`
	LTFConfirmationID string        `json:"ltf_confirmation_id"`
	Entry             ProposalEntry `json:"entry"`
	SL                struct {
		Price float64 `json:"price"`
	} `json:"sl"`
	TP *ProposalTP `json:"tp"`
}

// NewProposal flattens a scenario into a proposal record.
func NewProposal(runID string, s Scenario) Proposal {
	p := Proposal{
		RunID:             runID,
		CreatedAtUTC:      s.CreatedAtUTC,
		Symbol:            s.Symbol,
		ScenarioID:        s.ScenarioID,
		ScenarioType:      s.ScenarioType,
		Direction:         s.Direction,
		TrendAtCreation:   s.TrendAtCreation,
		HTFAnchorID:       s.HTFAnchor.ElementID,
		LTFConfirmationID: s.LTFConfirmation.ElementID,
		Entry:             ProposalEntry{Type: s.Entry.Type, Price: s.Entry.Price, Zone: s.Entry.Zone},
	}
	p.SL.Price = s.SL.Price
	if s.TP != nil {
		p.TP = &ProposalTP{Price: s.TP.Price, TargetID: s.TP.TargetElement.ID}
	}
	return p
}

// BacktestSummary is written to summary.json at the end of a backtest run.
type BacktestSummary struct {
	RunID            string   `json:"run_id"`
	StartedAtUTC     ISOTime  `json:"started_at_utc"`
	FinishedAtUTC    ISOTime  `json:"finished_at_utc"`
	StartTimeUTC     ISOTime  `json:"start_time_utc"`
	EndTimeUTC       ISOTime  `json:"end_time_utc"`
	Symbols          []string `json:"symbols"`
	SymbolsProcessed int      `json:"symbols_processed"`
	StepsProcessed   int      `json:"steps_processed"`
	ProposalsCreated int      `json:"proposals_created"`
	ScenariosExpired int      `json:"scenarios_expired"`
	EventsWritten    int      `json:"events_written"`
	OutputDir        string   `json:"output_dir"`
	Errors           []string `json:"errors"`
}
