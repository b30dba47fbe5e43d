package strategy

import (
	"sync"

	"ictengine/internal/core"
)

const defaultDuplicateWindow = 100

// maxDeltaTimeMs and maxEntryDeltaPct define a duplicate: same direction,
// within 5 minutes, and within 1% of entry (§4.8).
const (
	maxDeltaTimeMs    int64 = 5 * 60 * 1000
	maxEntryDeltaPct        = 0.01
)

// DuplicateFilter maintains a rolling window of recently accepted signals
// and drops any new signal that matches one closely enough (§4.8).
type DuplicateFilter struct {
	mu       sync.Mutex
	window   []core.Signal
	capacity int
}

// NewDuplicateFilter constructs a filter with the given rolling-window
// capacity (default 100 if non-positive).
func NewDuplicateFilter(capacity int) *DuplicateFilter {
	if capacity <= 0 {
		capacity = defaultDuplicateWindow
	}
	return &DuplicateFilter{capacity: capacity}
}

// Accept reports whether sig is not a duplicate of any signal currently in
// the window, appending it to the window when accepted.
func (f *DuplicateFilter) Accept(sig core.Signal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.window {
		if isDuplicate(existing, sig) {
			return false
		}
	}

	f.window = append(f.window, sig)
	if len(f.window) > f.capacity {
		f.window = f.window[len(f.window)-f.capacity:]
	}
	return true
}

func isDuplicate(a, b core.Signal) bool {
	if a.Direction != b.Direction {
		return false
	}
	deltaTime := a.Timestamp - b.Timestamp
	if deltaTime < 0 {
		deltaTime = -deltaTime
	}
	if deltaTime > maxDeltaTimeMs {
		return false
	}
	if a.Entry.IsZero() {
		return false
	}
	deltaEntryPct := a.Entry.Sub(b.Entry).Abs().Div(a.Entry).InexactFloat64()
	return deltaEntryPct <= maxEntryDeltaPct
}
