package risk

import (
	"context"
	"sync"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// DailyLossLimitPct is the default session loss threshold (§4.9).
const DailyLossLimitPct = 6.0

// dailyLossAccount labels the daily-loss gauge; the engine tracks a single
// trading account per process.
const dailyLossAccount = "default"

// DailyLossMonitor tracks a trading session's starting balance against the
// current balance and trips an entry-block when the loss exceeds the
// configured percentage. A new session starts on UTC day rollover or an
// explicit StartSession call (§4.9).
type DailyLossMonitor struct {
	mu            sync.Mutex
	bus           *eventbus.Bus
	logger        core.ILogger
	limitPct      decimal.Decimal
	startBalance  decimal.Decimal
	currentBalance decimal.Decimal
	sessionDate   string
	entryBlocked  bool
	manualBlock   bool
}

// NewDailyLossMonitor constructs a monitor with the given loss limit.
func NewDailyLossMonitor(limitPct decimal.Decimal, bus *eventbus.Bus, logger core.ILogger) *DailyLossMonitor {
	return &DailyLossMonitor{limitPct: limitPct, bus: bus, logger: logger}
}

// StartSession records a new starting balance and resets the entry block
// for the current UTC day.
func (m *DailyLossMonitor) StartSession(balance decimal.Decimal, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startBalance = balance
	m.currentBalance = balance
	m.sessionDate = utcDateKey(at)
	m.entryBlocked = m.manualBlock
	telemetry.GetGlobalMetrics().SetDailyLossTriggered(dailyLossAccount, m.entryBlocked)
}

// OnBalanceUpdate recomputes the session loss percentage against the new
// balance, rolling over to a fresh session if the UTC date has changed,
// and publishes DAILY_LOSS_LIMIT_REACHED the first time the limit trips.
func (m *DailyLossMonitor) OnBalanceUpdate(ctx context.Context, balance decimal.Decimal, at time.Time) {
	m.mu.Lock()
	today := utcDateKey(at)
	if today != m.sessionDate {
		m.startBalance = balance
		m.currentBalance = balance
		m.sessionDate = today
		m.entryBlocked = m.manualBlock
		blocked := m.entryBlocked
		m.mu.Unlock()
		telemetry.GetGlobalMetrics().SetDailyLossTriggered(dailyLossAccount, blocked)
		return
	}
	m.currentBalance = balance
	tripped := false
	if !m.startBalance.IsZero() {
		lossPct := m.startBalance.Sub(balance).Div(m.startBalance).Mul(decimal.NewFromInt(100))
		if lossPct.GreaterThanOrEqual(m.limitPct) && !m.entryBlocked {
			m.entryBlocked = true
			tripped = true
		}
	}
	m.mu.Unlock()

	if tripped {
		telemetry.GetGlobalMetrics().SetDailyLossTriggered(dailyLossAccount, true)
	}

	if tripped && m.bus != nil {
		evt := eventbus.New(eventbus.DailyLossLimitReached, "", at.UnixMilli(), eventbus.PrioDailyLossLimit, struct {
			StartBalance decimal.Decimal
			CurrentBalance decimal.Decimal
		}{StartBalance: m.startBalance, CurrentBalance: balance})
		if err := m.bus.Publish(ctx, evt); err != nil && m.logger != nil {
			m.logger.Warn("daily loss monitor: failed to publish limit event", "error", err)
		}
	}
}

// EntryBlocked reports whether new entries are currently disallowed,
// either from a tripped daily loss limit or an explicit manual block.
func (m *DailyLossMonitor) EntryBlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entryBlocked
}

// Reset clears the entry block without waiting for session rollover.
func (m *DailyLossMonitor) Reset() {
	m.mu.Lock()
	m.entryBlocked = m.manualBlock
	blocked := m.entryBlocked
	m.mu.Unlock()
	telemetry.GetGlobalMetrics().SetDailyLossTriggered(dailyLossAccount, blocked)
}

// SetManualBlock sets or clears an explicit block that persists across
// session rollovers until cleared here.
func (m *DailyLossMonitor) SetManualBlock(blocked bool) {
	m.mu.Lock()
	m.manualBlock = blocked
	if blocked {
		m.entryBlocked = true
	}
	current := m.entryBlocked
	m.mu.Unlock()
	telemetry.GetGlobalMetrics().SetDailyLossTriggered(dailyLossAccount, current)
}

func utcDateKey(t time.Time) string {
	u := t.UTC()
	return u.Format("2006-01-02")
}
