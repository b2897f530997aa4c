package execution

import (
	"context"
	"fmt"
	"math"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/orders"
	"intradayBot/internal/ports"
)

const defaultMaxOrdersPerDay = 10

// BrokerConfig holds settings for broker-routed execution.
type BrokerConfig struct {
	FillWait        time.Duration // How long to wait for a market order to fill
	MaxOrdersPerDay int
	Location        *time.Location // Trading day boundaries for the order cap
	Logger          ports.Logger
}

type brokerPending struct {
	orderID string
	instr   domain.TradeInstruction
	qty     float64
}

// BrokerRouted sends orders through the order lifecycle manager.
// Entries place a protective stop-market order once filled; exits cancel it first.
type BrokerRouted struct {
	manager  *orders.Manager
	logger   ports.Logger
	fillWait time.Duration
	maxDaily int
	loc      *time.Location

	pending    map[string]brokerPending
	stopOrders map[string]string // symbol -> local stop order id

	day         string
	ordersToday int
}

// NewBrokerRouted creates a broker-routed execution adapter.
func NewBrokerRouted(manager *orders.Manager, cfg BrokerConfig) (*BrokerRouted, error) {
	if manager == nil {
		return nil, fmt.Errorf("%w: order manager is required", ports.ErrInvalidRequest)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrInvalidRequest)
	}
	if cfg.MaxOrdersPerDay <= 0 {
		cfg.MaxOrdersPerDay = defaultMaxOrdersPerDay
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &BrokerRouted{
		manager:    manager,
		logger:     cfg.Logger,
		fillWait:   cfg.FillWait,
		maxDaily:   cfg.MaxOrdersPerDay,
		loc:        cfg.Location,
		pending:    make(map[string]brokerPending),
		stopOrders: make(map[string]string),
	}, nil
}

// Name implements Adapter.
func (b *BrokerRouted) Name() string {
	return "broker_" + b.manager.Broker().Name()
}

// OrdersToday returns the number of market orders placed on the current trading day.
func (b *BrokerRouted) OrdersToday() int {
	return b.ordersToday
}

// StopOrderCount returns the number of working protective stop orders.
func (b *BrokerRouted) StopOrderCount() int {
	return len(b.stopOrders)
}

func (b *BrokerRouted) rollDay(at time.Time) {
	day := at.In(b.loc).Format(time.DateOnly)
	if day != b.day {
		b.day = day
		b.ordersToday = 0
	}
}

// SubmitEntry implements Adapter.
func (b *BrokerRouted) SubmitEntry(ctx context.Context, instr domain.TradeInstruction, qty float64, bar domain.Bar) (*Fill, error) {
	op := "SubmitEntry"
	b.rollDay(bar.Timestamp)
	if b.ordersToday >= b.maxDaily {
		err := fmt.Errorf("%s failed: %w (%d)", op, ports.ErrOrderLimitReached, b.maxDaily)
		b.logger.Warn(ctx, op+": Max orders per day reached", map[string]interface{}{
			"symbol": instr.Symbol,
			"limit":  b.maxDaily,
		})
		return nil, err
	}
	if _, exists := b.pending[instr.Symbol]; exists {
		return nil, fmt.Errorf("%s failed: %w: entry already pending", op, ports.ErrPositionExists)
	}

	order := b.manager.PlaceMarketOrder(ctx, instr.Symbol, qty, instr.Side(), instr.StrategyTag, instr.Reason)
	if order.Status == domain.OrderRejected {
		return nil, fmt.Errorf("%s failed: %w: %s", op, ports.ErrOrderPlacementFailed, order.RejectionReason)
	}
	b.ordersToday++

	order = b.manager.WaitForFill(ctx, order.ID, b.fillWait)
	switch order.Status {
	case domain.OrderComplete:
		fill := b.completeEntry(ctx, order, instr, qty, bar.Close, bar.Timestamp)
		return fill, nil
	case domain.OrderRejected, domain.OrderCancelled:
		return nil, fmt.Errorf("%s failed: %w: %s %s", op, ports.ErrOrderNotFilled, order.Status, order.RejectionReason)
	}

	b.pending[instr.Symbol] = brokerPending{orderID: order.ID, instr: instr, qty: qty}
	b.logger.Warn(ctx, op+": Entry order not filled yet", map[string]interface{}{
		"orderID": order.ID,
		"symbol":  instr.Symbol,
		"status":  order.Status,
	})
	return nil, nil
}

func (b *BrokerRouted) completeEntry(ctx context.Context, order domain.Order, instr domain.TradeInstruction, qty, fallbackPrice float64, at time.Time) *Fill {
	price := order.AverageFillPrice
	if price <= 0 {
		price = fallbackPrice
	}
	if order.FilledQuantity > 0 {
		qty = order.FilledQuantity
	}
	fill := entryFill(order.ID, instr, qty, price, at)
	if instr.StopLoss != nil {
		b.placeStop(ctx, instr.Symbol, qty, instr.Side().Opposite(), *instr.StopLoss, instr.StrategyTag)
	}
	b.logger.Info(ctx, "Entry executed", map[string]interface{}{
		"symbol":   instr.Symbol,
		"side":     instr.Side(),
		"qty":      qty,
		"price":    price,
		"orderID":  order.ID,
		"strategy": instr.StrategyTag,
	})
	return fill
}

func (b *BrokerRouted) placeStop(ctx context.Context, symbol string, qty float64, side domain.OrderSide, trigger float64, tag string) {
	sl := b.manager.PlaceStopLossOrder(ctx, symbol, qty, side, trigger, tag)
	if sl.Status == domain.OrderRejected {
		b.logger.Warn(ctx, "Stop loss order not placed; engine stop check remains active", map[string]interface{}{
			"symbol":  symbol,
			"trigger": trigger,
		})
		return
	}
	b.stopOrders[symbol] = sl.ID
}

// stopFilled refreshes the protective stop for symbol. A stop that reached a
// terminal state is forgotten; the executed order is returned when it filled.
func (b *BrokerRouted) stopFilled(ctx context.Context, symbol string) (domain.Order, bool) {
	id, ok := b.stopOrders[symbol]
	if !ok {
		return domain.Order{}, false
	}
	order, err := b.manager.UpdateOrderStatus(ctx, id)
	if err != nil {
		return domain.Order{}, false
	}
	switch order.Status {
	case domain.OrderComplete:
		delete(b.stopOrders, symbol)
		return order, true
	case domain.OrderRejected, domain.OrderCancelled:
		delete(b.stopOrders, symbol)
		b.logger.Warn(ctx, "Protective stop no longer working; engine stop check remains active", map[string]interface{}{
			"symbol":  symbol,
			"orderID": id,
			"status":  order.Status,
		})
	}
	return domain.Order{}, false
}

func stopFillPrice(order domain.Order, fallback float64) float64 {
	if order.AverageFillPrice > 0 {
		return order.AverageFillPrice
	}
	if order.TriggerPrice != nil {
		return *order.TriggerPrice
	}
	return fallback
}

// PollExits implements Adapter. A protective stop filled at the broker closes
// the position with reason stop_loss at the stop's execution price.
func (b *BrokerRouted) PollExits(ctx context.Context, bar domain.Bar) []Exit {
	order, ok := b.stopFilled(ctx, bar.Symbol)
	if !ok {
		return nil
	}
	price := stopFillPrice(order, bar.Close)
	b.logger.Warn(ctx, "Protective stop filled at broker", map[string]interface{}{
		"symbol":  bar.Symbol,
		"orderID": order.ID,
		"price":   price,
	})
	return []Exit{{OrderID: order.ID, Symbol: bar.Symbol, Price: price, Time: bar.Timestamp, Reason: domain.ExitStopLoss}}
}

// SubmitExit implements Adapter. If the protective stop already filled, no
// closing order is sent and the stop's price is returned.
func (b *BrokerRouted) SubmitExit(ctx context.Context, pos domain.Position, price float64, reason domain.ExitReason) (float64, error) {
	op := "SubmitExit"
	if stop, filled := b.stopFilled(ctx, pos.Symbol); filled {
		return b.stopExit(ctx, pos, stop, price, reason), nil
	}
	if id, ok := b.stopOrders[pos.Symbol]; ok {
		if err := b.manager.CancelOrder(ctx, id); err == nil {
			delete(b.stopOrders, pos.Symbol)
		} else {
			b.logger.Warn(ctx, op+": Stop order cancel failed", map[string]interface{}{"symbol": pos.Symbol})
			// The cancel may have lost a race with the trigger.
			if stop, filled := b.stopFilled(ctx, pos.Symbol); filled {
				return b.stopExit(ctx, pos, stop, price, reason), nil
			}
		}
	}

	side := domain.Sell
	if pos.Side() == domain.SideShort {
		side = domain.Buy
	}
	qty := math.Abs(pos.Quantity)
	order := b.manager.PlaceExitOrder(ctx, pos.Symbol, qty, side, pos.StrategyTag, string(reason))
	if order.Status == domain.OrderRejected {
		b.restoreStop(ctx, pos)
		return 0, fmt.Errorf("%s failed: %w: %s", op, ports.ErrOrderPlacementFailed, order.RejectionReason)
	}
	b.ordersToday++

	order = b.manager.WaitForFill(ctx, order.ID, b.fillWait)
	if order.Status != domain.OrderComplete {
		if !order.Status.IsTerminal() {
			_ = b.manager.CancelOrder(ctx, order.ID)
		}
		b.restoreStop(ctx, pos)
		return 0, fmt.Errorf("%s failed: %w: %s", op, ports.ErrOrderNotFilled, order.Status)
	}

	exitPrice := order.AverageFillPrice
	if exitPrice <= 0 {
		exitPrice = price
	}
	b.logger.Info(ctx, "Exit executed", map[string]interface{}{
		"symbol":  pos.Symbol,
		"qty":     qty,
		"price":   exitPrice,
		"reason":  reason,
		"orderID": order.ID,
	})
	return exitPrice, nil
}

func (b *BrokerRouted) stopExit(ctx context.Context, pos domain.Position, stop domain.Order, price float64, reason domain.ExitReason) float64 {
	exitPrice := stopFillPrice(stop, price)
	b.logger.Warn(ctx, "Protective stop already filled; closing order skipped", map[string]interface{}{
		"symbol":  pos.Symbol,
		"price":   exitPrice,
		"reason":  reason,
		"orderID": stop.ID,
	})
	return exitPrice
}

func (b *BrokerRouted) restoreStop(ctx context.Context, pos domain.Position) {
	if pos.StopLoss == nil {
		return
	}
	if _, ok := b.stopOrders[pos.Symbol]; ok {
		return
	}
	side := domain.Sell
	if pos.Side() == domain.SideShort {
		side = domain.Buy
	}
	b.placeStop(ctx, pos.Symbol, math.Abs(pos.Quantity), side, *pos.StopLoss, pos.StrategyTag)
}

// Poll implements Adapter.
func (b *BrokerRouted) Poll(ctx context.Context, bar domain.Bar) []Fill {
	p, ok := b.pending[bar.Symbol]
	if !ok {
		return nil
	}
	order, err := b.manager.UpdateOrderStatus(ctx, p.orderID)
	if err != nil {
		return nil
	}
	switch order.Status {
	case domain.OrderComplete:
		delete(b.pending, bar.Symbol)
		return []Fill{*b.completeEntry(ctx, order, p.instr, p.qty, bar.Open, bar.Timestamp)}
	case domain.OrderRejected, domain.OrderCancelled:
		delete(b.pending, bar.Symbol)
		b.logger.Warn(ctx, "Pending entry dropped", map[string]interface{}{
			"symbol": bar.Symbol,
			"status": order.Status,
			"reason": order.RejectionReason,
		})
	}
	return nil
}

// HasPending implements Adapter.
func (b *BrokerRouted) HasPending(symbol string) bool {
	_, ok := b.pending[symbol]
	return ok
}

// PendingCount implements Adapter.
func (b *BrokerRouted) PendingCount() int {
	return len(b.pending)
}

// CancelAll implements Adapter. Stop orders are cancelled too.
func (b *BrokerRouted) CancelAll(ctx context.Context) int {
	n := b.manager.CancelAllOrders(ctx)
	b.pending = make(map[string]brokerPending)
	b.stopOrders = make(map[string]string)
	return n
}

// SyncPositions compares broker-held positions with the local book and logs differences.
// Nothing is adopted into the ledger.
func (b *BrokerRouted) SyncPositions(ctx context.Context, local func(symbol string) bool) {
	op := "SyncPositions"
	positions, err := b.manager.Positions(ctx)
	if err != nil {
		b.logger.Error(ctx, err, op+": Failed to fetch broker positions")
		return
	}
	for _, p := range positions {
		if p.Quantity == 0 || local(p.Symbol) {
			continue
		}
		b.logger.Warn(ctx, op+": Broker position not in local portfolio", map[string]interface{}{
			"symbol":   p.Symbol,
			"quantity": p.Quantity,
			"avgPrice": p.AveragePrice,
		})
	}
	b.logger.Info(ctx, op+": Position sync complete", map[string]interface{}{"brokerPositions": len(positions)})
}
