package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

const (
	defaultBrokerTimeout = 10 * time.Second
	defaultPollInterval  = 250 * time.Millisecond
)

// Config holds order manager settings.
type Config struct {
	BrokerTimeout time.Duration // Upper bound for each broker call
	PollInterval  time.Duration // Delay between status polls in WaitForFill
	Logger        ports.Logger
	Now           func() time.Time // Optional clock for tests
}

// Request describes an order to place.
type Request struct {
	Symbol       string
	Quantity     float64
	Side         domain.OrderSide
	Type         domain.OrderType
	Price        *float64
	TriggerPrice *float64
	ReduceOnly   bool
	StrategyTag  string
	Reason       string
}

// Manager tracks broker orders through PENDING -> OPEN -> COMPLETE/REJECTED/CANCELLED.
// Terminal orders never change again. Broker failures are logged and recorded on the
// order; they are never returned from Place*.
type Manager struct {
	broker  ports.Broker
	logger  ports.Logger
	timeout time.Duration
	poll    time.Duration
	now     func() time.Time

	mu     sync.Mutex
	orders map[string]*domain.Order
	seq    []string // insertion order
}

// NewManager creates an order lifecycle manager over broker.
func NewManager(broker ports.Broker, cfg Config) (*Manager, error) {
	if broker == nil {
		return nil, fmt.Errorf("%w: broker is required", ports.ErrInvalidRequest)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrInvalidRequest)
	}
	if cfg.BrokerTimeout <= 0 {
		cfg.BrokerTimeout = defaultBrokerTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		broker:  broker,
		logger:  cfg.Logger,
		timeout: cfg.BrokerTimeout,
		poll:    cfg.PollInterval,
		now:     cfg.Now,
		orders:  make(map[string]*domain.Order),
	}, nil
}

// Broker returns the underlying broker.
func (m *Manager) Broker() ports.Broker {
	return m.broker
}

// Positions returns the broker's open positions within the broker timeout.
func (m *Manager) Positions(ctx context.Context) ([]ports.BrokerPosition, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	positions, err := m.broker.Positions(callCtx)
	if err != nil {
		return nil, fmt.Errorf("Positions failed: %w: %w", ports.ErrBroker, err)
	}
	return positions, nil
}

// PlaceOrder submits req. The returned order is OPEN on success and REJECTED otherwise.
func (m *Manager) PlaceOrder(ctx context.Context, req Request) domain.Order {
	op := "PlaceOrder"
	now := m.now()
	order := &domain.Order{
		ID:           uuid.NewString(),
		Symbol:       req.Symbol,
		Quantity:     req.Quantity,
		Side:         req.Side,
		Type:         req.Type,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		ReduceOnly:   req.ReduceOnly,
		Status:       domain.OrderPending,
		StrategyTag:  req.StrategyTag,
		Reason:       req.Reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	m.mu.Lock()
	m.orders[order.ID] = order
	m.seq = append(m.seq, order.ID)
	m.mu.Unlock()

	fields := map[string]interface{}{
		"orderID":  order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"type":     order.Type,
		"quantity": order.Quantity,
		"broker":   m.broker.Name(),
	}
	if req.Quantity <= 0 {
		m.reject(ctx, order, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest), op, fields)
		return m.snapshot(order)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	brokerID, err := m.broker.PlaceOrder(callCtx, ports.OrderRequest{
		ClientOrderID: order.ID,
		Symbol:        order.Symbol,
		Quantity:      order.Quantity,
		Side:          order.Side,
		Type:          order.Type,
		Price:         order.Price,
		TriggerPrice:  order.TriggerPrice,
		ReduceOnly:    order.ReduceOnly,
	})
	if err != nil {
		m.reject(ctx, order, fmt.Errorf("%w: %w", ports.ErrOrderPlacementFailed, err), op, fields)
		return m.snapshot(order)
	}

	m.mu.Lock()
	order.BrokerOrderID = brokerID
	order.Status = domain.OrderOpen
	order.UpdatedAt = m.now()
	m.mu.Unlock()

	fields["brokerOrderID"] = brokerID
	m.logger.Info(ctx, op+": Order placed", fields)
	return m.snapshot(order)
}

// PlaceMarketOrder places a market order.
func (m *Manager) PlaceMarketOrder(ctx context.Context, symbol string, qty float64, side domain.OrderSide, tag, reason string) domain.Order {
	return m.PlaceOrder(ctx, Request{Symbol: symbol, Quantity: qty, Side: side, Type: domain.OrderMarket, StrategyTag: tag, Reason: reason})
}

// PlaceExitOrder places a reduce-only market order that closes an existing position.
func (m *Manager) PlaceExitOrder(ctx context.Context, symbol string, qty float64, side domain.OrderSide, tag, reason string) domain.Order {
	return m.PlaceOrder(ctx, Request{Symbol: symbol, Quantity: qty, Side: side, Type: domain.OrderMarket, ReduceOnly: true, StrategyTag: tag, Reason: reason})
}

// PlaceStopLossOrder places a reduce-only stop-market order triggered at trigger.
func (m *Manager) PlaceStopLossOrder(ctx context.Context, symbol string, qty float64, side domain.OrderSide, trigger float64, tag string) domain.Order {
	return m.PlaceOrder(ctx, Request{
		Symbol:       symbol,
		Quantity:     qty,
		Side:         side,
		Type:         domain.OrderSLMarket,
		TriggerPrice: domain.Float(trigger),
		ReduceOnly:   true,
		StrategyTag:  tag,
		Reason:       string(domain.ExitStopLoss),
	})
}

// UpdateOrderStatus polls the broker for one order. Terminal orders are returned as is.
// On a broker error the order is left unchanged and the error is returned.
func (m *Manager) UpdateOrderStatus(ctx context.Context, orderID string) (domain.Order, error) {
	op := "UpdateOrderStatus"
	m.mu.Lock()
	order, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return domain.Order{}, fmt.Errorf("%s failed: %w: %s", op, ports.ErrOrderNotFound, orderID)
	}
	if order.Status.IsTerminal() || order.BrokerOrderID == "" {
		snap := *order
		m.mu.Unlock()
		return snap, nil
	}
	brokerID := order.BrokerOrderID
	m.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	update, err := m.broker.OrderStatus(callCtx, brokerID)
	if err != nil {
		err = fmt.Errorf("%s failed: %w: %w", op, ports.ErrBroker, err)
		m.logger.Error(ctx, err, op+": Failed to fetch order status", map[string]interface{}{
			"orderID":       orderID,
			"brokerOrderID": brokerID,
		})
		return m.snapshot(order), err
	}

	m.mu.Lock()
	changed := m.apply(order, update)
	snap := *order
	m.mu.Unlock()

	if changed && snap.Status.IsTerminal() {
		m.logger.Info(ctx, op+": Order reached terminal state", map[string]interface{}{
			"orderID":   snap.ID,
			"symbol":    snap.Symbol,
			"status":    snap.Status,
			"filledQty": snap.FilledQuantity,
			"avgPrice":  snap.AverageFillPrice,
		})
	}
	return snap, nil
}

// apply merges a broker update into order. It only ever moves forward. Caller holds m.mu.
func (m *Manager) apply(order *domain.Order, update *ports.OrderUpdate) bool {
	if update == nil || order.Status.IsTerminal() {
		return false
	}
	changed := false
	if update.FilledQuantity > order.FilledQuantity {
		order.FilledQuantity = update.FilledQuantity
		changed = true
	}
	if update.AveragePrice > 0 && update.AveragePrice != order.AverageFillPrice {
		order.AverageFillPrice = update.AveragePrice
		changed = true
	}
	switch update.Status {
	case domain.OrderComplete, domain.OrderCancelled:
		order.Status = update.Status
		changed = true
	case domain.OrderRejected:
		order.Status = domain.OrderRejected
		order.RejectionReason = update.Message
		changed = true
	}
	if changed {
		order.UpdatedAt = m.now()
	}
	return changed
}

// SyncOrders refreshes every non-terminal order and returns those that became
// terminal during this call.
func (m *Manager) SyncOrders(ctx context.Context) []domain.Order {
	var resolved []domain.Order
	for _, o := range m.PendingOrders() {
		updated, err := m.UpdateOrderStatus(ctx, o.ID)
		if err != nil {
			continue
		}
		if updated.Status.IsTerminal() {
			resolved = append(resolved, updated)
		}
	}
	return resolved
}

// WaitForFill polls an order until it is terminal or wait elapses.
func (m *Manager) WaitForFill(ctx context.Context, orderID string, wait time.Duration) domain.Order {
	deadline := m.now().Add(wait)
	for {
		order, err := m.UpdateOrderStatus(ctx, orderID)
		if errors.Is(err, ports.ErrOrderNotFound) || order.Status.IsTerminal() {
			return order
		}
		if !m.now().Before(deadline) {
			return order
		}
		select {
		case <-ctx.Done():
			return order
		case <-time.After(m.poll):
		}
	}
}

// CancelOrder cancels an open order. Cancelling a terminal order is a no-op.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) error {
	op := "CancelOrder"
	m.mu.Lock()
	order, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s failed: %w: %s", op, ports.ErrOrderNotFound, orderID)
	}
	if order.Status.IsTerminal() {
		m.mu.Unlock()
		return nil
	}
	brokerID := order.BrokerOrderID
	m.mu.Unlock()

	if brokerID != "" {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		if err := m.broker.CancelOrder(callCtx, brokerID); err != nil {
			err = fmt.Errorf("%s failed: %w: %w", op, ports.ErrOrderCancelFailed, err)
			m.logger.Error(ctx, err, op+": Failed to cancel order", map[string]interface{}{
				"orderID":       orderID,
				"brokerOrderID": brokerID,
				"symbol":        order.Symbol,
			})
			return err
		}
	}

	m.mu.Lock()
	if !order.Status.IsTerminal() {
		order.Status = domain.OrderCancelled
		order.UpdatedAt = m.now()
	}
	m.mu.Unlock()
	m.logger.Info(ctx, op+": Order cancelled", map[string]interface{}{"orderID": orderID, "symbol": order.Symbol})
	return nil
}

// CancelAllOrders cancels every PENDING or OPEN order and returns how many were
// cancelled. Individual failures are logged and skipped.
func (m *Manager) CancelAllOrders(ctx context.Context) int {
	cancelled := 0
	for _, o := range m.PendingOrders() {
		if err := m.CancelOrder(ctx, o.ID); err == nil {
			cancelled++
		}
	}
	if cancelled > 0 {
		m.logger.Info(ctx, "CancelAllOrders: Orders cancelled", map[string]interface{}{"count": cancelled})
	}
	return cancelled
}

// Order returns a copy of the order with the given local id.
func (m *Manager) Order(orderID string) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// PendingOrders returns PENDING and OPEN orders in placement order.
func (m *Manager) PendingOrders() []domain.Order {
	return m.filter(func(o *domain.Order) bool { return !o.Status.IsTerminal() })
}

// CompletedOrders returns filled orders in placement order.
func (m *Manager) CompletedOrders() []domain.Order {
	return m.filter(func(o *domain.Order) bool { return o.Status == domain.OrderComplete })
}

// Orders returns every tracked order in placement order.
func (m *Manager) Orders() []domain.Order {
	return m.filter(func(*domain.Order) bool { return true })
}

func (m *Manager) filter(keep func(*domain.Order) bool) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, id := range m.seq {
		if o := m.orders[id]; keep(o) {
			out = append(out, *o)
		}
	}
	return out
}

func (m *Manager) reject(ctx context.Context, order *domain.Order, err error, op string, fields map[string]interface{}) {
	m.mu.Lock()
	order.Status = domain.OrderRejected
	order.RejectionReason = err.Error()
	order.UpdatedAt = m.now()
	m.mu.Unlock()
	m.logger.Error(ctx, err, op+": Order rejected", fields)
}

func (m *Manager) snapshot(order *domain.Order) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *order
}
