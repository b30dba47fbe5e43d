// Package core defines the domain types and cross-package interfaces shared
// by every component of the trading engine: candles, indicator objects,
// signals, orders, and positions, plus the interfaces components depend on
// to stay decoupled from one another's concrete implementations.
package core

import "fmt"

// Timeframe is a closed enum of minute-aligned candle intervals.
type Timeframe int

const (
	M1 Timeframe = iota
	M5
	M15
	M30
	H1
	H4
	D1
)

// DurationMs returns the timeframe's duration in milliseconds, used for
// open-time alignment checks.
func (tf Timeframe) DurationMs() int64 {
	switch tf {
	case M1:
		return 60_000
	case M5:
		return 5 * 60_000
	case M15:
		return 15 * 60_000
	case M30:
		return 30 * 60_000
	case H1:
		return 60 * 60_000
	case H4:
		return 4 * 60 * 60_000
	case D1:
		return 24 * 60 * 60_000
	default:
		return 0
	}
}

func (tf Timeframe) String() string {
	switch tf {
	case M1:
		return "M1"
	case M5:
		return "M5"
	case M15:
		return "M15"
	case M30:
		return "M30"
	case H1:
		return "H1"
	case H4:
		return "H4"
	case D1:
		return "D1"
	default:
		return "UNKNOWN"
	}
}

// ParseTimeframe parses the canonical string form of a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch s {
	case "M1":
		return M1, nil
	case "M5":
		return M5, nil
	case "M15":
		return M15, nil
	case "M30":
		return M30, nil
	case "H1":
		return H1, nil
	case "H4":
		return H4, nil
	case "D1":
		return D1, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %q", s)
	}
}

// AlignedOpenTime reports whether openTimeMs is a multiple of the
// timeframe's duration, as required of every closed candle (§3 invariant).
func (tf Timeframe) AlignedOpenTime(openTimeMs int64) bool {
	d := tf.DurationMs()
	if d == 0 {
		return false
	}
	return openTimeMs%d == 0
}
