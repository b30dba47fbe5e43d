package eventbus

// Event kind constants used throughout the pipeline (§4.1).
const (
	CandleReceived          = "CANDLE_RECEIVED"
	CandleClosed             = "CANDLE_CLOSED"
	IndicatorsUpdated        = "INDICATORS_UPDATED"
	LiquiditySweepDetected   = "LIQUIDITY_SWEEP_DETECTED"
	MarketStructureBreak     = "MARKET_STRUCTURE_BREAK"
	MarketStateChanged       = "MARKET_STATE_CHANGED"
	SignalGenerated          = "SIGNAL_GENERATED"
	RiskCheckPassed          = "RISK_CHECK_PASSED"
	RiskCheckFailed          = "RISK_CHECK_FAILED"
	DailyLossLimitReached    = "DAILY_LOSS_LIMIT_REACHED"
	OrderPlaced              = "ORDER_PLACED"
	OrderFilled              = "ORDER_FILLED"
	OrderCancelled           = "ORDER_CANCELLED"
	OrderFailed              = "ORDER_FAILED"
	PositionOpened           = "POSITION_OPENED"
	PositionClosed           = "POSITION_CLOSED"
	PositionUpdated          = "POSITION_UPDATED"
	ExchangeError            = "EXCHANGE_ERROR"
	SystemStart              = "SYSTEM_START"
	SystemStop               = "SYSTEM_STOP"
	HistoricalDataLoaded     = "HISTORICAL_DATA_LOADED"
	GapDetected              = "GAP_DETECTED"
)

// BaseEvent is the common envelope embedded by every concrete event type;
// it satisfies core.Event.
type BaseEvent struct {
	Kind      string
	Symbol    string
	Timestamp int64
	Prio      int
	Source    string
	Payload   interface{}
}

func (e BaseEvent) EventType() string      { return e.Kind }
func (e BaseEvent) EventSymbol() string    { return e.Symbol }
func (e BaseEvent) EventTimestamp() int64  { return e.Timestamp }
func (e BaseEvent) Priority() int          { return e.Prio }

// New builds a BaseEvent carrying an arbitrary payload. Lower Prio values
// are delivered first; see priority constants below.
func New(kind, symbol string, timestamp int64, prio int, payload interface{}) BaseEvent {
	return BaseEvent{Kind: kind, Symbol: symbol, Timestamp: timestamp, Prio: prio, Payload: payload}
}

// Priority defaults per §4.1/§4.5/§4.9/§4.10/§4.12 (lower is more urgent).
const (
	PrioCandleReceived       = 3
	PrioCandleClosed         = 5
	PrioIndicatorsUpdated    = 5
	PrioLiquiditySweep       = 6
	PrioMarketStructureBreak = 6
	PrioMarketStateChanged   = 10
	PrioSignalGenerated      = 5
	PrioRiskCheckPassed      = 5
	PrioRiskCheckFailed      = 7
	PrioDailyLossLimit       = 10
	PrioOrderPlaced          = 7
	PrioOrderFilled          = 8
	PrioOrderCancelled       = 6
	PrioOrderFailed          = 9
	PrioPositionOpened       = 6
	PrioPositionUpdated      = 4
	PrioPositionClosed       = 6
	PrioSystemStop           = 10
	PrioHistoricalLoaded     = 4
	PrioGapDetected          = 6
)
