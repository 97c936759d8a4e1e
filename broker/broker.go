package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Broker is the command surface presentation code talks to. The sim
// engine is the only implementation; it never routes orders anywhere.
type Broker interface {
	ExecuteOrder(ctx context.Context, req OrderRequest, referencePrice decimal.Decimal) (Result, error)
	MarkPrice(ctx context.Context, symbol string, price decimal.Decimal) error
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
	Stop   OrderType = "stop"
)

func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(strings.ToLower(strings.TrimSpace(s))) {
	case "", Market:
		return Market, nil
	case Limit:
		return Limit, nil
	case Stop:
		return Stop, nil
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

func (t OrderType) Valid() bool { return t == Market || t == Limit || t == Stop }

// OrderStatus is always Filled for executed trades; orders are never
// left pending.
type OrderStatus string

const Filled OrderStatus = "filled"

// OrderRequest is an order intent before validation. LimitPrice and
// StopPrice are the requested triggers, not the fill price.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   int64
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal
}

// Reason names why an order was rejected.
type Reason string

const (
	InvalidQuantity       Reason = "InvalidQuantity"
	InsufficientFunds     Reason = "InsufficientFunds"
	InsufficientShares    Reason = "InsufficientShares"
	MissingPriceParameter Reason = "MissingPriceParameter"

	InvalidOrder Reason = "InvalidOrder" // empty symbol, unknown side or type
	InvalidPrice Reason = "InvalidPrice" // non-positive reference price

	// FeesExceedProceeds is a sell whose commission and slippage would
	// leave negative net proceeds.
	FeesExceedProceeds Reason = "FeesExceedProceeds"
)

// Result is the outcome of ExecuteOrder: either Accepted with the ID of
// the new trade, or Rejected with a Reason. A rejected order changes nothing.
type Result struct {
	Accepted bool   `json:"accepted"`
	TradeID  string `json:"trade_id,omitempty"`
	Reason   Reason `json:"reason,omitempty"`
}

func Accepted(tradeID string) Result { return Result{Accepted: true, TradeID: tradeID} }

func Rejected(r Reason) Result { return Result{Reason: r} }

func (r Result) String() string {
	if r.Accepted {
		return "accepted " + r.TradeID
	}
	return "rejected: " + string(r.Reason)
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
