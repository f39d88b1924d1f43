package scenario

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"AutoEye/internal/domain/models"
)

// Config tunes scenario generation.
type Config struct {
	ExpiryHours      int
	TPPreferZones    bool
	RequireTP        bool
	AnchorTimeframe  string
	ConfirmTimeframe string
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		ExpiryHours:      12,
		TPPreferZones:    true,
		AnchorTimeframe:  "H1",
		ConfirmTimeframe: "M5",
	}
}

// Composer expires stale scenarios and proposes new ones from a state snapshot.
type Composer struct {
	cfg Config
}

// NewComposer creates a composer. ExpiryHours below 1 is raised to 1.
func NewComposer(cfg Config) *Composer {
	if cfg.ExpiryHours < 1 {
		cfg.ExpiryHours = 1
	}
	if cfg.AnchorTimeframe == "" {
		cfg.AnchorTimeframe = "H1"
	}
	if cfg.ConfirmTimeframe == "" {
		cfg.ConfirmTimeframe = "M5"
	}
	cfg.AnchorTimeframe = strings.ToUpper(cfg.AnchorTimeframe)
	cfg.ConfirmTimeframe = strings.ToUpper(cfg.ConfirmTimeframe)
	return &Composer{cfg: cfg}
}

// Result is the outcome of one symbol refresh.
type Result struct {
	Document *models.ScenarioDocument
	Created  []models.Scenario
	Expired  []models.Scenario
}

// Build expires then generates scenarios for a symbol. existing and trend may be nil.
func (c *Composer) Build(symbol string, state *models.StateDocument, trend *models.TrendDocument, existing *models.ScenarioDocument, now time.Time) Result {
	now = now.UTC()
	var active, history []models.Scenario
	if existing != nil {
		active = append(active, existing.Active...)
		history = append(history, existing.History...)
	}
	index := stateIndex(state, c.cfg.AnchorTimeframe, c.cfg.ConfirmTimeframe)

	var res Result
	active, history, res.Expired = c.expire(active, history, index, now)

	known := map[string]bool{}
	for _, s := range active {
		known[s.ScenarioID] = true
	}
	for _, s := range history {
		known[s.ScenarioID] = true
	}

	direction := trend.CurrentDirection()
	if direction == models.TrendBullish || direction == models.TrendBearish {
		for _, s := range c.generate(symbol, state, direction, now) {
			if missingReference(&s, index) || s.ScenarioID == "" || known[s.ScenarioID] || duplicatesLive(&s, active) {
				continue
			}
			active = append(active, s)
			known[s.ScenarioID] = true
			res.Created = append(res.Created, s)
		}
	}

	if active == nil {
		active = []models.Scenario{}
	}
	if history == nil {
		history = []models.Scenario{}
	}
	models.SortScenarios(active)
	models.SortScenarios(history)
	res.Document = &models.ScenarioDocument{
		SchemaVersion: models.SchemaVersion,
		Symbol:        symbol,
		UpdatedAtUTC:  models.NewISOTime(now),
		Active:        active,
		History:       history,
	}
	return res
}

func (c *Composer) expire(active, history []models.Scenario, index map[ref]string, now time.Time) ([]models.Scenario, []models.Scenario, []models.Scenario) {
	var live, expired []models.Scenario
	for _, s := range active {
		if !s.IsLive() {
			history = append(history, s)
			continue
		}
		reason := expiryReason(&s, index, now)
		if reason == "" {
			live = append(live, s)
			continue
		}
		s.Status = models.ScenarioExpired
		s.UpdatedAtUTC = models.NewISOTime(now)
		s.Metadata.ExpiredReason = reason
		history = append(history, s)
		expired = append(expired, s)
	}
	return live, history, expired
}

func expiryReason(s *models.Scenario, index map[ref]string, now time.Time) string {
	if !s.ExpiresAtUTC.IsZero() && !s.ExpiresAtUTC.After(now) {
		return models.ExpiredByTime
	}
	if missingReference(s, index) {
		return models.ExpiredMissingElement
	}
	if r, ok := refOf(s.HTFAnchor.Type, s.HTFAnchor.ElementID); ok {
		if status, found := index[r]; found && models.IsTerminalStatus(status) {
			return models.ExpiredAnchorInvalidated
		}
	}
	return ""
}

func refOf(kind, id string) (ref, bool) {
	r := ref{label: strings.ToLower(strings.TrimSpace(kind)), id: strings.TrimSpace(id)}
	return r, r.label != "" && r.id != ""
}

// missingReference reports whether any element the scenario points at is gone
// from the state index. Anchor and confirmation are mandatory.
func missingReference(s *models.Scenario, index map[ref]string) bool {
	for _, er := range []models.ElementRef{s.HTFAnchor, s.LTFConfirmation} {
		r, ok := refOf(er.Type, er.ElementID)
		if !ok {
			return true
		}
		if _, found := index[r]; !found {
			return true
		}
	}
	if s.TP != nil {
		if r, ok := refOf(s.TP.TargetElement.Type, s.TP.TargetElement.ID); ok {
			if _, found := index[r]; !found {
				return true
			}
		}
	}
	if ot := s.Metadata.OppositeTouch; ot != nil {
		if r, ok := refOf(ot.Type, ot.ElementID); ok {
			if _, found := index[r]; !found {
				return true
			}
		}
	}
	for _, ev := range s.EvidenceIDs {
		kind, id, ok := strings.Cut(ev, ":")
		if !ok {
			continue
		}
		if r, ok := refOf(kind, id); ok {
			if _, found := index[r]; !found {
				return true
			}
		}
	}
	return false
}

// duplicatesLive catches a live scenario on the same anchor and confirmation whose
// target moved with price.
func duplicatesLive(s *models.Scenario, active []models.Scenario) bool {
	for i := range active {
		a := &active[i]
		if a.IsLive() &&
			a.ScenarioType == s.ScenarioType &&
			a.Direction == s.Direction &&
			a.HTFAnchor.ElementID == s.HTFAnchor.ElementID &&
			a.LTFConfirmation.ElementID == s.LTFConfirmation.ElementID {
			return true
		}
	}
	return false
}

func (c *Composer) generate(symbol string, state *models.StateDocument, trend string, now time.Time) []models.Scenario {
	if state == nil || state.Market.Price == nil {
		return nil
	}
	price := *state.Market.Price

	var out []models.Scenario
	if s := c.continuation(symbol, state, trend, price, now); s != nil {
		out = append(out, *s)
	}
	if s := c.reversal(symbol, state, trend, price, now); s != nil {
		out = append(out, *s)
	}
	return out
}

func (c *Composer) inefficiencies(state *models.StateDocument, tf, direction string, kinds ...models.Kind) []*candidate {
	var out []*candidate
	for _, item := range collect(state, tf, kinds...) {
		if item.direction == direction && item.qualifies() {
			out = append(out, item)
		}
	}
	return out
}

// continuation builds the with-trend scenario.
func (c *Composer) continuation(symbol string, state *models.StateDocument, trend string, price float64, now time.Time) *models.Scenario {
	anchor := selectStart(c.inefficiencies(state, c.cfg.AnchorTimeframe, trend, models.KindFVG, models.KindSNR), price, now, true)
	if anchor == nil {
		return nil
	}
	conf := selectConfirmation(c.inefficiencies(state, c.cfg.ConfirmTimeframe, trend, models.KindFVG, models.KindSNR), anchor.start)
	if conf == nil {
		return nil
	}

	meta := models.ScenarioMeta{
		Mode: "live",
		Start: map[string]*models.ISOTime{
			"anchor_start_time_utc":       isoOf(&anchor.start),
			"anchor_interaction_time_utc": isoOf(anchor.interaction),
		},
	}
	evidence := []string{evidenceID(anchor), evidenceID(conf)}
	return c.assemble(symbol, state, trend, models.ScenarioTrendContinuation, trend, anchor, conf, price, evidence, meta, now)
}

// reversal builds the counter-trend scenario: an opposite-direction zone touched by
// price, then a counter anchor and confirmation formed after that touch.
func (c *Composer) reversal(symbol string, state *models.StateDocument, trend string, price float64, now time.Time) *models.Scenario {
	counter := models.DirectionBearish
	if trend == models.TrendBearish {
		counter = models.DirectionBullish
	}

	touch := selectStart(c.inefficiencies(state, c.cfg.AnchorTimeframe, counter, models.KindFVG, models.KindSNR), price, now, true)
	if touch == nil {
		return nil
	}
	var anchors []*candidate
	for _, item := range c.inefficiencies(state, c.cfg.AnchorTimeframe, counter, models.KindFVG, models.KindSNR, models.KindRB) {
		if !item.signal.Before(touch.start) {
			anchors = append(anchors, item)
		}
	}
	anchor := selectStart(anchors, price, now, false)
	if anchor == nil {
		return nil
	}
	conf := selectConfirmation(c.inefficiencies(state, c.cfg.ConfirmTimeframe, counter, models.KindFVG, models.KindSNR), anchor.start)
	if conf == nil {
		return nil
	}

	meta := models.ScenarioMeta{
		Mode: "live",
		Start: map[string]*models.ISOTime{
			"opposite_touch_time_utc":             isoOf(&touch.start),
			"counter_anchor_start_time_utc":       isoOf(&anchor.start),
			"counter_anchor_interaction_time_utc": isoOf(anchor.interaction),
		},
		OppositeTouch: &models.ElementRef{
			Type:          touch.label,
			ElementID:     touch.id,
			SignalTimeUTC: isoOf(&touch.signal),
		},
	}
	evidence := []string{evidenceID(touch), evidenceID(anchor), evidenceID(conf)}
	return c.assemble(symbol, state, trend, models.ScenarioReversal, counter, anchor, conf, price, evidence, meta, now)
}

func (c *Composer) assemble(symbol string, state *models.StateDocument, trend, kind, direction string, anchor, conf *candidate, price float64, evidence []string, meta models.ScenarioMeta, now time.Time) *models.Scenario {
	trade, stop := models.TradeLong, anchor.low
	if direction == models.DirectionBearish {
		trade, stop = models.TradeShort, anchor.high
	}
	tp := c.chooseTarget(state, trade, price, anchor.id)
	if tp == nil && c.cfg.RequireTP {
		return nil
	}

	stamp := models.NewISOTime(now)
	s := &models.Scenario{
		Symbol:          symbol,
		CreatedAtUTC:    stamp,
		UpdatedAtUTC:    stamp,
		TrendAtCreation: trend,
		ScenarioType:    kind,
		Direction:       trade,
		Status:          models.ScenarioPending,
		HTFAnchor: models.ElementRef{
			Type:          anchor.label,
			ElementID:     anchor.id,
			Zone:          []float64{anchor.low, anchor.high},
			SignalTimeUTC: isoOf(&anchor.signal),
		},
		LTFConfirmation: models.ElementRef{
			Type:          conf.label,
			ElementID:     conf.id,
			SignalTimeUTC: isoOf(&conf.signal),
		},
		Entry:        models.Entry{Type: "market", Price: price, Zone: [2]float64{conf.low, conf.high}},
		SL:           models.StopLoss{Price: stop, Rule: "behind_anchor"},
		TP:           tp,
		EvidenceIDs:  evidence,
		ExpiresAtUTC: models.NewISOTime(now.Add(time.Duration(c.cfg.ExpiryHours) * time.Hour)),
		Metadata:     meta,
	}
	s.ScenarioID = ScenarioID(s)
	return s
}

// ScenarioID hashes the fields that make two scenarios the same trade idea.
func ScenarioID(s *models.Scenario) string {
	var tpPrice float64
	var target string
	if s.TP != nil {
		tpPrice = s.TP.Price
		target = s.TP.TargetElement.ID
	}
	seed := strings.Join([]string{
		s.Symbol,
		s.ScenarioType,
		s.Direction,
		s.HTFAnchor.ElementID,
		s.LTFConfirmation.ElementID,
		fmt.Sprintf("%.10f", s.Entry.Zone[0]),
		fmt.Sprintf("%.10f", s.Entry.Zone[1]),
		fmt.Sprintf("%.10f", s.SL.Price),
		fmt.Sprintf("%.10f", tpPrice),
		target,
	}, "|")
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func evidenceID(c *candidate) string { return c.label + ":" + c.id }

func isoOf(t *time.Time) *models.ISOTime {
	if t == nil || t.IsZero() {
		return nil
	}
	v := models.NewISOTime(*t)
	return &v
}
