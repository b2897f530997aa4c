package domain

import "time"

// Trade is the immutable record of a closed position.
type Trade struct {
	ID          string
	Symbol      string
	StrategyTag string
	Side        PositionSide
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64 // Absolute quantity traded
	PnL         float64
	PnLPercent  float64
	StopLoss    *float64
	Target      *float64
	ExitReason  ExitReason
	Regime      *Regime
}
