package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the buy/sell direction of an order.
type OrderSide int

const (
	OrderBuy OrderSide = iota
	OrderSell
)

// OrderType is the exchange order type.
type OrderType int

const (
	Market OrderType = iota
	Limit
	Stop
	TakeProfitOrder
)

// TimeInForce mirrors the exchange's time-in-force enum.
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
	FOK
)

// OrderStatus is the order lifecycle state machine (§3, §4.11).
type OrderStatus int

const (
	OrderPending OrderStatus = iota
	OrderPlaced
	OrderPartiallyFilled
	OrderFilled
	OrderFailed
	OrderCancelled
	OrderExpired
)

// Terminal reports whether status is a final state with no further
// transitions permitted.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderFailed, OrderCancelled, OrderExpired:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "PENDING"
	case OrderPlaced:
		return "PLACED"
	case OrderPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderFilled:
		return "FILLED"
	case OrderFailed:
		return "FAILED"
	case OrderCancelled:
		return "CANCELLED"
	case OrderExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// validTransitions encodes the guarded order state machine of §4.11:
// only PENDING->PLACED->{PARTIALLY_FILLED*,FILLED,CANCELLED,EXPIRED,FAILED}.
var validTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending: {OrderPlaced: true},
	OrderPlaced: {
		OrderPartiallyFilled: true,
		OrderFilled:          true,
		OrderCancelled:       true,
		OrderExpired:         true,
		OrderFailed:          true,
	},
	OrderPartiallyFilled: {
		OrderPartiallyFilled: true,
		OrderFilled:          true,
		OrderCancelled:       true,
		OrderExpired:         true,
	},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// of the order status state machine.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// StatusTransition is one entry in an order's status history.
type StatusTransition struct {
	From      OrderStatus
	To        OrderStatus
	Timestamp time.Time
	FilledQty decimal.Decimal
	FillPrice decimal.Decimal
	Error     string
	Regressive bool // recorded but did not apply; state did not change
}

// Order is the engine's record of an exchange order.
type Order struct {
	ClientID      string
	ExchangeID    string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	TimeInForce   TimeInForce
	ReduceOnly    bool
	PositionSide  SignalDirection
	Status        OrderStatus
	FilledQty     decimal.Decimal
	AvgFillPrice  decimal.Decimal
	Fee           decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StatusHistory []StatusTransition
}

// ApplyTransition appends a history entry and, if the edge is legal,
// updates Status; an illegal (regressive/out-of-order) transition is
// recorded but does not change the order's state (§4.11).
func (o *Order) ApplyTransition(to OrderStatus, at time.Time, filledQty, fillPrice decimal.Decimal, errMsg string) {
	legal := CanTransition(o.Status, to)
	entry := StatusTransition{
		From:       o.Status,
		To:         to,
		Timestamp:  at,
		FilledQty:  filledQty,
		FillPrice:  fillPrice,
		Error:      errMsg,
		Regressive: !legal,
	}
	o.StatusHistory = append(o.StatusHistory, entry)
	if !legal {
		return
	}
	o.Status = to
	o.FilledQty = filledQty
	if !fillPrice.IsZero() {
		o.AvgFillPrice = fillPrice
	}
	o.UpdatedAt = at
}

// Validate checks the pre-send invariants of §4.10: quantity > 0; LIMIT
// requires price > 0; STOP/TP requires stop-price > 0.
func (o Order) Validate() error {
	if o.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("order quantity must be positive, got %s", o.Quantity)
	}
	if o.Type == Limit && o.Price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("limit order requires price > 0")
	}
	if (o.Type == Stop || o.Type == TakeProfitOrder) && o.StopPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("stop/take-profit order requires stop-price > 0")
	}
	return nil
}
