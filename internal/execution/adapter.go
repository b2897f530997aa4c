// Package execution turns admitted instructions into fills. The engine is written
// against Adapter and does not know whether fills are simulated or broker routed.
package execution

import (
	"context"
	"time"

	"intradayBot/internal/domain"
)

// Fill is an executed entry ready to be booked as a position.
type Fill struct {
	OrderID     string
	Symbol      string
	Side        domain.OrderSide
	Quantity    float64 // Unsigned
	Price       float64
	Time        time.Time
	StopLoss    *float64
	Target      *float64
	StrategyTag string
}

// Position converts the fill into a ledger position.
func (f Fill) Position() domain.Position {
	qty := f.Quantity
	if f.Side == domain.Sell {
		qty = -qty
	}
	return domain.Position{
		Symbol:       f.Symbol,
		Quantity:     qty,
		AveragePrice: f.Price,
		CurrentPrice: f.Price,
		StopLoss:     f.StopLoss,
		Target:       f.Target,
		EntryTime:    f.Time,
		StrategyTag:  f.StrategyTag,
	}
}

// Exit is a position closed by the venue on its own, such as a protective
// stop that triggered between bars.
type Exit struct {
	OrderID string
	Symbol  string
	Price   float64
	Time    time.Time
	Reason  domain.ExitReason
}

// Adapter executes orders on behalf of the engine. All methods are called from
// inside the engine's critical section.
type Adapter interface {
	// Name identifies the execution mode.
	Name() string

	// SubmitEntry executes an admitted entry of qty units decided on bar.
	// A nil Fill with a nil error means the order is pending and will surface from Poll.
	SubmitEntry(ctx context.Context, instr domain.TradeInstruction, qty float64, bar domain.Bar) (*Fill, error)

	// SubmitExit closes pos near price and returns the executed price.
	// On error the position must be treated as still open.
	SubmitExit(ctx context.Context, pos domain.Position, price float64, reason domain.ExitReason) (float64, error)

	// Poll resolves pending entries for bar.Symbol and returns those that filled.
	Poll(ctx context.Context, bar domain.Bar) []Fill

	// PollExits reports positions in bar.Symbol that were closed outside SubmitExit.
	PollExits(ctx context.Context, bar domain.Bar) []Exit

	// HasPending reports whether symbol has an unresolved entry order.
	HasPending(symbol string) bool

	// PendingCount returns the number of unresolved entry orders.
	PendingCount() int

	// CancelAll cancels every working order and drops pending entries.
	CancelAll(ctx context.Context) int
}

func entryFill(orderID string, instr domain.TradeInstruction, qty, price float64, at time.Time) *Fill {
	return &Fill{
		OrderID:     orderID,
		Symbol:      instr.Symbol,
		Side:        instr.Side(),
		Quantity:    qty,
		Price:       price,
		Time:        at,
		StopLoss:    instr.StopLoss,
		Target:      instr.Target,
		StrategyTag: instr.StrategyTag,
	}
}
