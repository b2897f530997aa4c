package binanceclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// PlaceOrder implements ports.Broker. Quantity and trigger are truncated to the
// symbol's precision before submission.
func (c *Client) PlaceOrder(ctx context.Context, req ports.OrderRequest) (string, error) {
	op := "PlaceOrder"
	prec := c.precisionFor(req.Symbol)
	qty := formatQuantity(req.Quantity, prec.Quantity)
	if qty == "0" {
		return "", fmt.Errorf("%s failed: %w: quantity %v rounds to zero", op, ports.ErrInvalidRequest, req.Quantity)
	}

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Quantity(qty)
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	fields := map[string]interface{}{"symbol": req.Symbol, "side": req.Side, "type": req.Type, "quantity": qty}
	switch req.Type {
	case domain.OrderMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	case domain.OrderLimit:
		if req.Price == nil {
			return "", fmt.Errorf("%s failed: %w: limit order without price", op, ports.ErrInvalidRequest)
		}
		price := formatPrice(*req.Price, prec.Price)
		svc = svc.Type(futures.OrderTypeLimit).TimeInForce(futures.TimeInForceTypeGTC).Price(price)
		fields["price"] = price
	case domain.OrderSLMarket:
		if req.TriggerPrice == nil {
			return "", fmt.Errorf("%s failed: %w: stop order without trigger", op, ports.ErrInvalidRequest)
		}
		stop := formatPrice(*req.TriggerPrice, prec.Price)
		svc = svc.Type(futures.OrderTypeStopMarket).StopPrice(stop).ReduceOnly(true)
		fields["stopPrice"] = stop
	default:
		return "", fmt.Errorf("%s failed: %w: unsupported order type %s", op, ports.ErrInvalidRequest, req.Type)
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
		fields["reduceOnly"] = true
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return "", c.handleError(ctx, err, op)
	}
	id := strconv.FormatInt(order.OrderID, 10)
	c.mu.Lock()
	c.orderSymbols[id] = req.Symbol
	c.mu.Unlock()

	fields["orderID"] = id
	fields["status"] = order.Status
	c.logger.Info(ctx, op+" successful", fields)
	return id, nil
}

// OrderStatus implements ports.Broker.
func (c *Client) OrderStatus(ctx context.Context, brokerOrderID string) (*ports.OrderUpdate, error) {
	op := "OrderStatus"
	symbol, orderID, err := c.lookupOrder(brokerOrderID)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	order, err := c.futuresClient.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return translateOrder(order), nil
}

// CancelOrder implements ports.Broker.
func (c *Client) CancelOrder(ctx context.Context, brokerOrderID string) error {
	op := "CancelOrder"
	symbol, orderID, err := c.lookupOrder(brokerOrderID)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	res, err := c.futuresClient.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": res.Status})
	return nil
}

// Positions implements ports.Broker. Flat entries are skipped.
func (c *Client) Positions(ctx context.Context) ([]ports.BrokerPosition, error) {
	op := "Positions"
	risks, err := c.futuresClient.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	out := make([]ports.BrokerPosition, 0, len(risks))
	for _, r := range risks {
		if p, ok := translatePositionRisk(r); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) lookupOrder(brokerOrderID string) (string, int64, error) {
	c.mu.RLock()
	symbol, ok := c.orderSymbols[brokerOrderID]
	c.mu.RUnlock()
	if !ok {
		return "", 0, fmt.Errorf("%w: unknown order %s", ports.ErrOrderNotFound, brokerOrderID)
	}
	id, err := strconv.ParseInt(brokerOrderID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: malformed order id %q", ports.ErrInvalidRequest, brokerOrderID)
	}
	return symbol, id, nil
}

// --- Translation Helpers ---

func formatQuantity(qty float64, places int32) string {
	return decimal.NewFromFloat(qty).Truncate(places).String()
}

func formatPrice(price float64, places int32) string {
	return decimal.NewFromFloat(price).Round(places).String()
}

func mapOrderStatus(s futures.OrderStatusType) domain.OrderStatus {
	switch s {
	case futures.OrderStatusTypeFilled:
		return domain.OrderComplete
	case futures.OrderStatusTypeRejected, futures.OrderStatusTypeExpired:
		return domain.OrderRejected
	case futures.OrderStatusTypeCanceled:
		return domain.OrderCancelled
	case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
		return domain.OrderOpen
	default:
		return domain.OrderPending
	}
}

func translateOrder(o *futures.Order) *ports.OrderUpdate {
	filled, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
	avg, _ := strconv.ParseFloat(o.AvgPrice, 64)
	return &ports.OrderUpdate{
		BrokerOrderID:  strconv.FormatInt(o.OrderID, 10),
		Status:         mapOrderStatus(o.Status),
		FilledQuantity: filled,
		AveragePrice:   avg,
		Message:        string(o.Status),
		UpdatedAt:      time.UnixMilli(o.UpdateTime),
	}
}

func translatePositionRisk(pos *futures.PositionRisk) (ports.BrokerPosition, bool) {
	if pos == nil {
		return ports.BrokerPosition{}, false
	}
	qty, _ := strconv.ParseFloat(pos.PositionAmt, 64)
	if qty == 0 {
		return ports.BrokerPosition{}, false
	}
	entry, _ := strconv.ParseFloat(pos.EntryPrice, 64)
	return ports.BrokerPosition{Symbol: pos.Symbol, Quantity: qty, AveragePrice: entry}, true
}
