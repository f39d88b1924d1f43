package detectors

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"AutoEye/pkg/util"
)

const idLength = 20

// stableID hashes the seed parts joined by "|" and keeps the first 20 hex chars.
func stableID(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:idLength]
}

func price(v float64) string { return fmt.Sprintf("%.10f", v) }

func iso(t time.Time) string { return util.FormatISO(t) }

// FractalID is the stable id of a fractal pivot.
func FractalID(symbol, timeframe, fractalType string, pivot time.Time, extreme, lPrice float64) string {
	return stableID("fractal", symbol, timeframe, fractalType, iso(pivot), price(extreme), price(lPrice))
}

// GapID is the stable id of a fair value gap.
func GapID(symbol, timeframe, direction string, c3 time.Time, low, high float64) string {
	return stableID("fvg", symbol, timeframe, direction, iso(c3), price(low), price(high))
}

// BreakID is the stable id of a structure break.
func BreakID(symbol, timeframe, originID string, breakTime time.Time, role, breakType string) string {
	return stableID("snr", symbol, timeframe, originID, iso(breakTime), role, breakType)
}

// BlockID is the stable id of a range block.
func BlockID(symbol, timeframe, rbType string, pivot time.Time, lPrice, extreme float64) string {
	return stableID("rb", symbol, timeframe, rbType, iso(pivot), price(lPrice), price(extreme))
}
