package domain

import (
	"math"
	"time"
)

// Position is an open holding in one symbol. Quantity is signed: positive is long.
type Position struct {
	Symbol        string
	Quantity      float64
	AveragePrice  float64
	CurrentPrice  float64
	StopLoss      *float64
	Target        *float64
	EntryTime     time.Time
	StrategyTag   string
	UnrealizedPnL float64
}

// Side returns the direction of the position.
func (p *Position) Side() PositionSide {
	switch {
	case p.Quantity > 0:
		return SideLong
	case p.Quantity < 0:
		return SideShort
	default:
		return SideFlat
	}
}

// EntryCost is the cash committed to the position.
func (p *Position) EntryCost() float64 {
	return p.AveragePrice * math.Abs(p.Quantity)
}

// Mark updates the current price and recomputes unrealized P&L.
func (p *Position) Mark(price float64) {
	p.CurrentPrice = price
	if p.Quantity >= 0 {
		p.UnrealizedPnL = (price - p.AveragePrice) * p.Quantity
	} else {
		p.UnrealizedPnL = (p.AveragePrice - price) * math.Abs(p.Quantity)
	}
}

// StopBreached reports whether price has crossed the stop on the losing side.
func (p *Position) StopBreached(price float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Quantity >= 0 {
		return price <= *p.StopLoss
	}
	return price >= *p.StopLoss
}

// TargetReached reports whether price has reached the target on the winning side.
func (p *Position) TargetReached(price float64) bool {
	if p.Target == nil {
		return false
	}
	if p.Quantity >= 0 {
		return price >= *p.Target
	}
	return price <= *p.Target
}
