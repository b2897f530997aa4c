// Package portfolio keeps cash, position and trade bookkeeping for a run.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

// Ledger tracks cash, open positions and closed-trade statistics.
// It is not safe for concurrent use; the engine serializes access.
type Ledger struct {
	initialCapital float64
	cash           float64
	positions      map[string]*domain.Position

	realizedPnL   float64
	unrealizedPnL float64

	totalTrades   int
	winningTrades int
	losingTrades  int

	dailyPnL          float64
	dailyTrades       int
	dailyLosingTrades int

	trades []domain.Trade
}

// Snapshot is a copy of the ledger state safe to hand outside the engine.
type Snapshot struct {
	InitialCapital    float64
	Cash              float64
	TotalValue        float64
	RealizedPnL       float64
	UnrealizedPnL     float64
	Positions         []domain.Position
	TotalTrades       int
	WinningTrades     int
	LosingTrades      int
	DailyPnL          float64
	DailyTrades       int
	DailyLosingTrades int
}

// NewLedger creates a ledger funded with initialCapital in cash.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*domain.Position),
	}
}

// AddPosition records a filled entry and debits its cost from cash.
func (l *Ledger) AddPosition(pos domain.Position) error {
	if pos.Quantity == 0 {
		return fmt.Errorf("add position %s: %w: zero quantity", pos.Symbol, ports.ErrInvalidRequest)
	}
	if _, exists := l.positions[pos.Symbol]; exists {
		return fmt.Errorf("add position %s: %w", pos.Symbol, ports.ErrPositionExists)
	}
	if pos.CurrentPrice == 0 {
		pos.CurrentPrice = pos.AveragePrice
	}
	pos.Mark(pos.CurrentPrice)

	p := pos
	l.positions[pos.Symbol] = &p
	l.cash -= p.EntryCost()
	l.recomputeUnrealized()
	return nil
}

// MarkToMarket updates a position's current price. It is a no-op for unknown symbols.
func (l *Ledger) MarkToMarket(symbol string, price float64) {
	if pos, ok := l.positions[symbol]; ok {
		pos.Mark(price)
	}
}

// RecomputeUnrealized refreshes the aggregate unrealized P&L from the positions.
func (l *Ledger) RecomputeUnrealized() {
	l.recomputeUnrealized()
}

func (l *Ledger) recomputeUnrealized() {
	total := 0.0
	for _, pos := range l.positions {
		total += pos.UnrealizedPnL
	}
	l.unrealizedPnL = total
}

// ClosePosition removes a position at exitPrice and returns the resulting trade.
// The position is marked to exitPrice first, so realized P&L equals its final unrealized value.
func (l *Ledger) ClosePosition(symbol string, exitPrice float64, exitTime time.Time, reason domain.ExitReason) (domain.Trade, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Trade{}, fmt.Errorf("close position %s: %w", symbol, ports.ErrNoPosition)
	}
	pos.Mark(exitPrice)
	delete(l.positions, symbol)

	pnl := pos.UnrealizedPnL
	cost := pos.EntryCost()
	l.realizedPnL += pnl
	l.dailyPnL += pnl
	l.cash += cost + pnl

	l.totalTrades++
	l.dailyTrades++
	if pnl > 0 {
		l.winningTrades++
	} else {
		l.losingTrades++
		l.dailyLosingTrades++
	}
	l.recomputeUnrealized()

	pnlPercent := 0.0
	if cost != 0 {
		pnlPercent = pnl / cost * 100
	}
	trade := domain.Trade{
		ID:          symbol + "_" + strconv.FormatInt(pos.EntryTime.Unix(), 10),
		Symbol:      symbol,
		StrategyTag: pos.StrategyTag,
		Side:        pos.Side(),
		EntryTime:   pos.EntryTime,
		ExitTime:    exitTime,
		EntryPrice:  pos.AveragePrice,
		ExitPrice:   exitPrice,
		Quantity:    math.Abs(pos.Quantity),
		PnL:         pnl,
		PnLPercent:  pnlPercent,
		StopLoss:    pos.StopLoss,
		Target:      pos.Target,
		ExitReason:  reason,
	}
	l.trades = append(l.trades, trade)
	return trade, nil
}

// ResetDailyStats zeroes the daily counters. Lifetime counters are untouched.
func (l *Ledger) ResetDailyStats() {
	l.dailyPnL = 0
	l.dailyTrades = 0
	l.dailyLosingTrades = 0
}

// Position returns a copy of the open position for symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// HasPosition reports whether symbol has an open position.
func (l *Ledger) HasPosition(symbol string) bool {
	_, ok := l.positions[symbol]
	return ok
}

// Symbols returns the symbols with open positions, sorted.
func (l *Ledger) Symbols() []string {
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) InitialCapital() float64 { return l.initialCapital }
func (l *Ledger) Cash() float64 { return l.cash }
func (l *Ledger) RealizedPnL() float64 { return l.realizedPnL }
func (l *Ledger) UnrealizedPnL() float64 { return l.unrealizedPnL }
func (l *Ledger) DailyPnL() float64 { return l.dailyPnL }
func (l *Ledger) DailyTrades() int { return l.dailyTrades }
func (l *Ledger) DailyLosingTrades() int { return l.dailyLosingTrades }

// TotalValue is cash plus the market value of open positions.
func (l *Ledger) TotalValue() float64 {
	value := l.cash
	for _, pos := range l.positions {
		value += pos.EntryCost() + pos.UnrealizedPnL
	}
	return value
}

// CostBasis is the sum of entry cost over open positions.
func (l *Ledger) CostBasis() float64 {
	total := 0.0
	for _, pos := range l.positions {
		total += pos.EntryCost()
	}
	return total
}

// Trades returns the closed trades in the order they were closed.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Snapshot copies the current state.
func (l *Ledger) Snapshot() Snapshot {
	positions := make([]domain.Position, 0, len(l.positions))
	for _, s := range l.Symbols() {
		positions = append(positions, *l.positions[s])
	}
	return Snapshot{
		InitialCapital:    l.initialCapital,
		Cash:              l.cash,
		TotalValue:        l.TotalValue(),
		RealizedPnL:       l.realizedPnL,
		UnrealizedPnL:     l.unrealizedPnL,
		Positions:         positions,
		TotalTrades:       l.totalTrades,
		WinningTrades:     l.winningTrades,
		LosingTrades:      l.losingTrades,
		DailyPnL:          l.dailyPnL,
		DailyTrades:       l.dailyTrades,
		DailyLosingTrades: l.dailyLosingTrades,
	}
}

// AnnotateRegime records the advisory regime that was in effect when a trade closed.
func (l *Ledger) AnnotateRegime(tradeID string, regime domain.Regime) {
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].ID == tradeID {
			r := regime
			l.trades[i].Regime = &r
			return
		}
	}
}
