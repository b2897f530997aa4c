// Package alpacabroker routes orders to Alpaca equities.
package alpacabroker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

const (
	paperBaseURL = "https://paper-api.alpaca.markets"
	liveBaseURL  = "https://api.alpaca.markets"
)

// tradingAPI is the subset of *alpaca.Client the broker uses.
type tradingAPI interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetOrder(orderID string) (*alpaca.Order, error)
	CancelOrder(orderID string) error
	GetPositions() ([]alpaca.Position, error)
}

// Config holds the Alpaca adapter settings.
type Config struct {
	APIKey    string
	APISecret string
	Paper     bool
	BaseURL   string // Overrides the paper/live default
	Logger    ports.Logger
}

// Broker implements ports.Broker against the Alpaca trading API.
type Broker struct {
	api    tradingAPI
	logger ports.Logger
}

// New creates an Alpaca broker.
func New(cfg Config) (*Broker, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca broker")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: Alpaca API key and secret are required", ports.ErrConfigurationError)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = liveBaseURL
		if cfg.Paper {
			baseURL = paperBaseURL
		}
	}
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   baseURL,
	})
	cfg.Logger.Info(context.Background(), "Alpaca broker configured", map[string]interface{}{"baseURL": baseURL})
	return newBroker(client, cfg.Logger), nil
}

func newBroker(api tradingAPI, logger ports.Logger) *Broker {
	return &Broker{api: api, logger: logger}
}

// Name implements ports.Broker.
func (b *Broker) Name() string {
	return "alpaca"
}

// PlaceOrder implements ports.Broker.
func (b *Broker) PlaceOrder(ctx context.Context, req ports.OrderRequest) (string, error) {
	op := "PlaceOrder"
	areq, err := buildRequest(req)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", op, err)
	}
	order, err := call(ctx, func() (*alpaca.Order, error) { return b.api.PlaceOrder(areq) })
	if err != nil {
		return "", b.handleError(ctx, err, op, ports.ErrOrderPlacementFailed)
	}
	b.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     req.Type,
		"quantity": areq.Qty.String(),
		"orderID":  order.ID,
		"status":   order.Status,
	})
	return order.ID, nil
}

// OrderStatus implements ports.Broker.
func (b *Broker) OrderStatus(ctx context.Context, brokerOrderID string) (*ports.OrderUpdate, error) {
	op := "OrderStatus"
	order, err := call(ctx, func() (*alpaca.Order, error) { return b.api.GetOrder(brokerOrderID) })
	if err != nil {
		return nil, b.handleError(ctx, err, op, ports.ErrBroker)
	}
	return translateOrder(order), nil
}

// CancelOrder implements ports.Broker.
func (b *Broker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	op := "CancelOrder"
	_, err := call(ctx, func() (struct{}, error) { return struct{}{}, b.api.CancelOrder(brokerOrderID) })
	if err != nil {
		return b.handleError(ctx, err, op, ports.ErrOrderCancelFailed)
	}
	b.logger.Info(ctx, op+" successful", map[string]interface{}{"orderID": brokerOrderID})
	return nil
}

// Positions implements ports.Broker.
func (b *Broker) Positions(ctx context.Context) ([]ports.BrokerPosition, error) {
	op := "Positions"
	positions, err := call(ctx, b.api.GetPositions)
	if err != nil {
		return nil, b.handleError(ctx, err, op, ports.ErrBroker)
	}
	out := make([]ports.BrokerPosition, 0, len(positions))
	for _, p := range positions {
		qty := p.Qty.InexactFloat64()
		if strings.EqualFold(p.Side, "short") && qty > 0 {
			qty = -qty
		}
		out = append(out, ports.BrokerPosition{
			Symbol:       p.Symbol,
			Quantity:     qty,
			AveragePrice: p.AvgEntryPrice.InexactFloat64(),
		})
	}
	return out, nil
}

// call runs a blocking SDK call and gives up when ctx is done. The SDK call
// itself keeps running; its result is discarded.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (b *Broker) handleError(ctx context.Context, err error, operation string, kind error) error {
	var finalErr error
	var apiErr *alpaca.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case errors.As(err, &apiErr):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, mapStatus(apiErr.StatusCode, kind), err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, kind, err)
	}
	b.logger.Error(ctx, err, operation+" failed", map[string]interface{}{"operation": operation})
	return finalErr
}

func mapStatus(code int, kind error) error {
	switch code {
	case 401:
		return ports.ErrAuthenticationFailed
	case 403:
		return ports.ErrInsufficientFunds
	case 404:
		return ports.ErrOrderNotFound
	case 422:
		return ports.ErrInvalidRequest
	case 429:
		return ports.ErrRateLimited
	default:
		return kind
	}
}

func buildRequest(req ports.OrderRequest) (alpaca.PlaceOrderRequest, error) {
	qty := decimal.NewFromFloat(req.Quantity).Truncate(0)
	if !qty.IsPositive() {
		return alpaca.PlaceOrderRequest{}, fmt.Errorf("%w: quantity %v rounds to zero", ports.ErrInvalidRequest, req.Quantity)
	}
	side := alpaca.Buy
	if req.Side == domain.Sell {
		side = alpaca.Sell
	}
	out := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          side,
		TimeInForce:   alpaca.Day,
		ClientOrderID: req.ClientOrderID,
	}
	switch req.Type {
	case domain.OrderMarket:
		out.Type = alpaca.Market
	case domain.OrderLimit:
		if req.Price == nil {
			return out, fmt.Errorf("%w: limit order without price", ports.ErrInvalidRequest)
		}
		out.Type = alpaca.Limit
		out.LimitPrice = priceDecimal(*req.Price)
	case domain.OrderSLMarket:
		if req.TriggerPrice == nil {
			return out, fmt.Errorf("%w: stop order without trigger", ports.ErrInvalidRequest)
		}
		out.Type = alpaca.Stop
		out.StopPrice = priceDecimal(*req.TriggerPrice)
	default:
		return out, fmt.Errorf("%w: unsupported order type %s", ports.ErrInvalidRequest, req.Type)
	}
	return out, nil
}

func priceDecimal(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v).Round(2)
	return &d
}

func mapOrderStatus(s string) domain.OrderStatus {
	switch strings.ToLower(s) {
	case "filled":
		return domain.OrderComplete
	case "canceled", "expired", "done_for_day", "replaced":
		return domain.OrderCancelled
	case "rejected", "suspended", "stopped":
		return domain.OrderRejected
	case "new", "accepted", "partially_filled", "pending_cancel", "pending_replace", "calculated":
		return domain.OrderOpen
	default:
		return domain.OrderPending
	}
}

func translateOrder(o *alpaca.Order) *ports.OrderUpdate {
	avg := 0.0
	if o.FilledAvgPrice != nil {
		avg = o.FilledAvgPrice.InexactFloat64()
	}
	return &ports.OrderUpdate{
		BrokerOrderID:  o.ID,
		Status:         mapOrderStatus(o.Status),
		FilledQuantity: o.FilledQty.InexactFloat64(),
		AveragePrice:   avg,
		Message:        o.Status,
		UpdatedAt:      o.UpdatedAt,
	}
}
