package ports

import (
	"context"
	"time"

	"intradayBot/internal/domain"
)

// OrderRequest describes an order to submit to a broker.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Quantity      float64
	Side          domain.OrderSide
	Type          domain.OrderType
	Price         *float64 // Limit price, if any
	TriggerPrice  *float64 // Stop trigger, if any
	ReduceOnly    bool     // Must only shrink an existing position
}

// OrderUpdate is the broker's view of an order.
type OrderUpdate struct {
	BrokerOrderID  string
	Status         domain.OrderStatus
	FilledQuantity float64
	AveragePrice   float64
	Message        string // Rejection or cancellation detail
	UpdatedAt      time.Time
}

// BrokerPosition is an open position as reported by the broker.
type BrokerPosition struct {
	Symbol       string
	Quantity     float64 // Signed, positive for long
	AveragePrice float64
}

// Broker is the order-routing boundary used in broker-routed mode.
// Implementations must honor ctx deadlines; callers always pass a bounded context.
type Broker interface {
	// Name returns the broker identifier (e.g. "binance", "alpaca").
	Name() string

	// PlaceOrder submits an order and returns the broker's order id.
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)

	// OrderStatus returns the current state and fill of an order.
	OrderStatus(ctx context.Context, brokerOrderID string) (*OrderUpdate, error)

	// CancelOrder requests cancellation of an open order.
	CancelOrder(ctx context.Context, brokerOrderID string) error

	// Positions returns the open positions held at the broker.
	Positions(ctx context.Context) ([]BrokerPosition, error)
}
