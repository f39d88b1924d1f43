package models

import (
	"encoding/json"
	"sort"

	"AutoEye/pkg/util"
)

// Scenario types, statuses and directions.
const (
	ScenarioTrendContinuation = "trend_continuation"
	ScenarioReversal          = "reversal_at_opposite"

	ScenarioPending  = "pending"
	ScenarioApproved = "approved"
	ScenarioExpired  = "expired"

	TradeLong  = "long"
	TradeShort = "short"

	ExpiredByTime            = "time"
	ExpiredMissingElement    = "missing_state_element"
	ExpiredAnchorInvalidated = "anchor_invalidated"
)

// ElementRef points at a state element from a scenario.
type ElementRef struct {
	Type          string    `json:"type"`
	ElementID     string    `json:"element_id"`
	Zone          []float64 `json:"zone,omitempty"`
	SignalTimeUTC *ISOTime  `json:"signal_time_utc,omitempty"`
}

// TargetRef is the element a take-profit level came from.
type TargetRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Entry is the scenario entry plan.
type Entry struct {
	Type  string     `json:"type"`
	Price float64    `json:"price"`
	Zone  [2]float64 `json:"zone"`
}

// StopLoss is the protective level.
type StopLoss struct {
	Price float64 `json:"price"`
	Rule  string  `json:"rule"`
}

// TakeProfit is the target level.
type TakeProfit struct {
	Price         float64   `json:"price"`
	TargetElement TargetRef `json:"target_element"`
}

// ScenarioMeta carries mode, start times and expiry details. Keys this build
// does not know are kept in Extra and written back unchanged.
type ScenarioMeta struct {
	Mode          string              `json:"mode"`
	Start         map[string]*ISOTime `json:"start"`
	OppositeTouch *ElementRef         `json:"opposite_touch,omitempty"`
	ExpiredReason string              `json:"expired_reason,omitempty"`
	Extra         map[string]any      `json:"-"`
}

type scenarioMetaJSON ScenarioMeta

var scenarioMetaKeys = []string{"mode", "start", "opposite_touch", "expired_reason"}

func (m ScenarioMeta) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(scenarioMetaJSON(m))
	if err != nil || len(m.Extra) == 0 {
		return b, err
	}
	out := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, known := out[k]; known {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return json.Marshal(out)
}

func (m *ScenarioMeta) UnmarshalJSON(b []byte) error {
	var known scenarioMetaJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range scenarioMetaKeys {
		delete(all, k)
	}
	*m = ScenarioMeta(known)
	if len(all) > 0 {
		m.Extra = all
	}
	return nil
}

// Scenario is a trade proposal built from H1 and M5 state elements.
type Scenario struct {
	ScenarioID      string       `json:"scenario_id"`
	Symbol          string       `json:"symbol"`
	CreatedAtUTC    ISOTime      `json:"created_at_utc"`
	UpdatedAtUTC    ISOTime      `json:"updated_at_utc"`
	TrendAtCreation string       `json:"trend_at_creation"`
	ScenarioType    string       `json:"scenario_type"`
	Direction       string       `json:"direction"`
	Status          string       `json:"status"`
	HTFAnchor       ElementRef   `json:"htf_anchor"`
	LTFConfirmation ElementRef   `json:"ltf_confirmation"`
	Entry           Entry        `json:"entry"`
	SL              StopLoss     `json:"sl"`
	TP              *TakeProfit  `json:"tp"`
	EvidenceIDs     []string     `json:"evidence_ids"`
	ExpiresAtUTC    ISOTime      `json:"expires_at_utc"`
	Metadata        ScenarioMeta `json:"metadata"`
}

// IsLive reports whether the scenario can still be acted on.
func (s *Scenario) IsLive() bool {
	return s.Status == ScenarioPending || s.Status == ScenarioApproved
}

// ScenarioDocument is the per-symbol scenario file.
type ScenarioDocument struct {
	SchemaVersion string     `json:"schema_version"`
	Symbol        string     `json:"symbol"`
	UpdatedAtUTC  ISOTime    `json:"updated_at_utc"`
	Active        []Scenario `json:"active"`
	History       []Scenario `json:"history"`
}

// SortScenarios orders by (created_at_utc, scenario_id).
func SortScenarios(items []Scenario) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := util.FormatISO(items[i].CreatedAtUTC.Time), util.FormatISO(items[j].CreatedAtUTC.Time)
		if ci != cj {
			return ci < cj
		}
		return items[i].ScenarioID < items[j].ScenarioID
	})
}
