package risk

import (
	"context"
	"fmt"
	"math"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/pkg/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Params configures the Risk Validator's four checks (§4.9).
type Params struct {
	RiskPerTradePct   decimal.Decimal
	Leverage          int
	MinSizeTolerance  decimal.Decimal // max relative deviation from reference size
	MinSize           decimal.Decimal
	MaxSize           decimal.Decimal
	MinStopPct        decimal.Decimal
	MaxStopPct        decimal.Decimal
	MinRR             decimal.Decimal
	MaxRR             decimal.Decimal
}

// DefaultParams mirrors the spec's defaults.
func DefaultParams() Params {
	return Params{
		RiskPerTradePct:  decimal.NewFromFloat(2.0),
		Leverage:         5,
		MinSizeTolerance: decimal.NewFromFloat(0.05),
		MinSize:          decimal.NewFromFloat(0.001),
		MaxSize:          decimal.NewFromInt(1000),
		MinStopPct:       decimal.NewFromFloat(0.003),
		MaxStopPct:       decimal.NewFromFloat(0.03),
		MinRR:            decimal.NewFromFloat(1.5),
		MaxRR:            decimal.NewFromFloat(5.0),
	}
}

// Violation names one failed check; Validate returns every violation it
// finds rather than stopping at the first one, so a caller can log a
// complete rejection reason.
type Violation struct {
	Check  string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Check, v.Detail)
}

// Validator implements core.IRiskValidator, gating a proposed signal
// against sizing, stop-loss, take-profit and session constraints before
// it reaches the order executor (§4.9).
type Validator struct {
	params  Params
	monitor *DailyLossMonitor
	bus     *eventbus.Bus
	logger  core.ILogger
}

// NewValidator wires a Validator to its daily-loss monitor and event bus.
func NewValidator(params Params, monitor *DailyLossMonitor, bus *eventbus.Bus, logger core.ILogger) *Validator {
	return &Validator{params: params, monitor: monitor, bus: bus, logger: logger}
}

// Params returns the sizing/stop/RR parameters the validator was
// constructed with.
func (v *Validator) Params() Params {
	return v.params
}

// Validate runs the entry-permitted, stop-loss and take-profit checks of
// §4.9 and publishes RISK_CHECK_PASSED or RISK_CHECK_FAILED; position
// sizing is checked only by ValidateWithSize. It satisfies core.IRiskValidator;
// openPositions is accepted for interface compatibility and is not
// consulted directly (position-side conflicts are the order executor's
// concern, per §4.10).
func (v *Validator) Validate(ctx context.Context, signal core.Signal, balance decimal.Decimal, openPositions []core.Position) error {
	violations := v.checkAll(signal, balance)
	evt := v.resultEvent(signal, violations)
	if v.bus != nil {
		if err := v.bus.Publish(ctx, evt); err != nil && v.logger != nil {
			v.logger.Warn("risk validator: failed to publish result", "error", err)
		}
	}
	if len(violations) > 0 {
		return fmt.Errorf("risk check failed: %v", violations)
	}
	return nil
}

// ValidateWithSize runs the same checks as Validate plus the position
// sizing check against an explicit proposed size, which the caller passes
// separately from the signal.
func (v *Validator) ValidateWithSize(ctx context.Context, signal core.Signal, proposedSize, balance decimal.Decimal) ([]Violation, error) {
	violations := v.checkAll(signal, balance)
	violations = append(violations, v.checkSizing(signal, proposedSize, balance)...)
	evt := v.resultEvent(signal, violations)
	if v.bus != nil {
		if err := v.bus.Publish(ctx, evt); err != nil && v.logger != nil {
			v.logger.Warn("risk validator: failed to publish result", "error", err)
		}
	}
	if len(violations) > 0 {
		return violations, fmt.Errorf("risk check failed: %v", violations)
	}
	return nil, nil
}

func (v *Validator) checkAll(signal core.Signal, balance decimal.Decimal) []Violation {
	var violations []Violation
	violations = append(violations, v.checkEntryPermitted()...)
	violations = append(violations, v.checkStopLoss(signal)...)
	violations = append(violations, v.checkTakeProfit(signal)...)
	return violations
}

func (v *Validator) checkEntryPermitted() []Violation {
	if v.monitor != nil && v.monitor.EntryBlocked() {
		return []Violation{{Check: "entry_permitted", Detail: "daily loss limit reached or entry manually blocked"}}
	}
	return nil
}

// checkSizing compares proposedSize against the reference size computed
// from account balance, risk-per-trade percentage and stop distance.
func (v *Validator) checkSizing(signal core.Signal, proposedSize, balance decimal.Decimal) []Violation {
	stopDistance := signal.Entry.Sub(signal.Stop).Abs()
	if stopDistance.IsZero() {
		return []Violation{{Check: "position_sizing", Detail: "entry and stop are equal"}}
	}
	riskAmount := balance.Mul(v.params.RiskPerTradePct).Div(decimal.NewFromInt(100))
	reference := riskAmount.Div(stopDistance).Mul(decimal.NewFromInt(int64(v.params.Leverage)))
	reference = decimal.NewFromFloat(math.Floor(reference.InexactFloat64()))

	if reference.IsZero() {
		return []Violation{{Check: "position_sizing", Detail: "reference size computed as zero"}}
	}
	deviation := proposedSize.Sub(reference).Abs().Div(reference)
	var violations []Violation
	if deviation.GreaterThan(v.params.MinSizeTolerance) {
		violations = append(violations, Violation{
			Check:  "position_sizing",
			Detail: fmt.Sprintf("proposed size %s deviates %.2f%% from reference %s", proposedSize, deviation.Mul(decimal.NewFromInt(100)).InexactFloat64(), reference),
		})
	}
	if proposedSize.LessThan(v.params.MinSize) || proposedSize.GreaterThan(v.params.MaxSize) {
		violations = append(violations, Violation{
			Check:  "position_sizing",
			Detail: fmt.Sprintf("proposed size %s outside [%s, %s]", proposedSize, v.params.MinSize, v.params.MaxSize),
		})
	}
	return violations
}

func (v *Validator) checkStopLoss(signal core.Signal) []Violation {
	var violations []Violation
	switch signal.Direction {
	case core.Long:
		if !signal.Stop.LessThan(signal.Entry) {
			violations = append(violations, Violation{Check: "stop_loss", Detail: "stop must be below entry for a long"})
		}
	case core.Short:
		if !signal.Stop.GreaterThan(signal.Entry) {
			violations = append(violations, Violation{Check: "stop_loss", Detail: "stop must be above entry for a short"})
		}
	}
	if signal.Entry.IsZero() {
		violations = append(violations, Violation{Check: "stop_loss", Detail: "entry is zero"})
		return violations
	}
	stopPct := signal.Entry.Sub(signal.Stop).Abs().Div(signal.Entry)
	if stopPct.LessThan(v.params.MinStopPct) || stopPct.GreaterThan(v.params.MaxStopPct) {
		violations = append(violations, Violation{
			Check:  "stop_loss",
			Detail: fmt.Sprintf("stop distance %.3f%% outside [%.1f%%, %.1f%%]", stopPct.Mul(decimal.NewFromInt(100)).InexactFloat64(), v.params.MinStopPct.Mul(decimal.NewFromInt(100)).InexactFloat64(), v.params.MaxStopPct.Mul(decimal.NewFromInt(100)).InexactFloat64()),
		})
	}
	return violations
}

func (v *Validator) checkTakeProfit(signal core.Signal) []Violation {
	var violations []Violation
	switch signal.Direction {
	case core.Long:
		if !signal.TakeProfit.GreaterThan(signal.Entry) {
			violations = append(violations, Violation{Check: "take_profit", Detail: "take-profit must be above entry for a long"})
		}
	case core.Short:
		if !signal.TakeProfit.LessThan(signal.Entry) {
			violations = append(violations, Violation{Check: "take_profit", Detail: "take-profit must be below entry for a short"})
		}
	}
	rr := core.RR(signal.Entry, signal.Stop, signal.TakeProfit)
	if rr.LessThan(v.params.MinRR) || rr.GreaterThan(v.params.MaxRR) {
		violations = append(violations, Violation{
			Check:  "take_profit",
			Detail: fmt.Sprintf("risk-reward %.2f outside [%.1f, %.1f]", rr.InexactFloat64(), v.params.MinRR.InexactFloat64(), v.params.MaxRR.InexactFloat64()),
		})
	}
	return violations
}

func (v *Validator) resultEvent(signal core.Signal, violations []Violation) eventbus.BaseEvent {
	if len(violations) == 0 {
		return eventbus.New(eventbus.RiskCheckPassed, signal.Symbol, signal.Timestamp, eventbus.PrioRiskCheckPassed, signal)
	}
	telemetry.GetGlobalMetrics().OrdersRejectedTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("symbol", signal.Symbol),
		attribute.String("stage", "risk_validation"),
	))
	return eventbus.New(eventbus.RiskCheckFailed, signal.Symbol, signal.Timestamp, eventbus.PrioRiskCheckFailed, struct {
		Signal     core.Signal
		Violations []Violation
	}{Signal: signal, Violations: violations})
}
