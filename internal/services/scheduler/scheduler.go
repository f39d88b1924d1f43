package scheduler

import (
	"strings"
	"sync"
	"time"
)

var slotSeconds = map[string]int64{
	"M15": 15 * 60,
	"H1":  60 * 60,
	"H4":  4 * 60 * 60,
}

// NormalizeTimeframe upper-cases tf. "M1" is read as the calendar month.
func NormalizeTimeframe(tf string) string {
	n := strings.ToUpper(strings.TrimSpace(tf))
	if n == "M1" {
		return "MN1"
	}
	return n
}

// IsDue reports whether tf has entered a new period since last.
// A nil last is always due; timeframes without a calendar rule are never due.
func IsDue(tf string, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	now = now.UTC()
	prev := last.UTC()
	switch n := NormalizeTimeframe(tf); n {
	case "M15", "H1", "H4":
		period := slotSeconds[n]
		return floorDiv(now.Unix(), period) > floorDiv(prev.Unix(), period)
	case "D1":
		ny, nm, nd := now.Date()
		py, pm, pd := prev.Date()
		return compare3(ny, int(nm), nd, py, int(pm), pd) > 0
	case "W1":
		ny, nw := now.ISOWeek()
		py, pw := prev.ISOWeek()
		return ny > py || (ny == py && nw > pw)
	case "MN1":
		return now.Year() > prev.Year() || (now.Year() == prev.Year() && now.Month() > prev.Month())
	}
	return false
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func compare3(a1, a2, a3, b1, b2, b3 int) int {
	switch {
	case a1 != b1:
		return a1 - b1
	case a2 != b2:
		return a2 - b2
	}
	return a3 - b3
}

// CycleState remembers when each timeframe was last checked. It is owned by the
// runner and safe for concurrent use.
type CycleState struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

// NewCycleState creates an empty state.
func NewCycleState() *CycleState {
	return &CycleState{last: make(map[string]time.Time)}
}

// LastCheck returns the last check of tf, nil when unknown.
func (s *CycleState) LastCheck(tf string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[strings.ToUpper(tf)]
	if !ok {
		return nil
	}
	return &t
}

// MarkChecked records now as the last check of tf.
func (s *CycleState) MarkChecked(tf string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[strings.ToUpper(tf)] = now.UTC()
}
