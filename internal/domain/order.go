package domain

import "time"

// OrderType is the broker order type.
type OrderType string

const (
	OrderMarket   OrderType = "MARKET"
	OrderLimit    OrderType = "LIMIT"
	OrderSLMarket OrderType = "SL-M"
	OrderSLLimit  OrderType = "SL"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderOpen      OrderStatus = "OPEN"
	OrderComplete  OrderStatus = "COMPLETE"
	OrderRejected  OrderStatus = "REJECTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether the status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderComplete || s == OrderRejected || s == OrderCancelled
}

// Order is a broker order tracked by the order lifecycle manager.
type Order struct {
	ID               string // Local identifier
	BrokerOrderID    string // Identifier assigned by the broker once accepted
	Symbol           string
	Quantity         float64
	Side             OrderSide
	Type             OrderType
	Price            *float64
	TriggerPrice     *float64
	ReduceOnly       bool
	Status           OrderStatus
	FilledQuantity   float64
	AverageFillPrice float64
	StrategyTag      string
	Reason           string
	RejectionReason  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
