package strategies

import (
	"intradayBot/internal/domain"
	"intradayBot/internal/strategy/indicators"
)

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	name string
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(name string) *BaseStrategy {
	return &BaseStrategy{name: name}
}

// Name returns the strategy tag.
func (b *BaseStrategy) Name() string {
	return b.name
}

func (b *BaseStrategy) noTrade(symbol, reason string) domain.TradeInstruction {
	return domain.TradeInstruction{
		Signal:      domain.NoTrade,
		Symbol:      symbol,
		Reason:      reason,
		StrategyTag: b.name,
	}
}

func (b *BaseStrategy) exit(signal domain.Signal, symbol string, price float64, reason string) domain.TradeInstruction {
	return domain.TradeInstruction{
		Signal:      signal,
		Symbol:      symbol,
		EntryPrice:  domain.Float(price),
		Reason:      reason,
		StrategyTag: b.name,
	}
}

func (b *BaseStrategy) entry(signal domain.Signal, symbol string, price, stop, target float64, reason string) domain.TradeInstruction {
	return domain.TradeInstruction{
		Signal:      signal,
		Symbol:      symbol,
		StopLoss:    domain.Float(stop),
		Target:      domain.Float(target),
		EntryPrice:  domain.Float(price),
		Reason:      reason,
		StrategyTag: b.name,
	}
}

// protectiveStop picks the swing level on the losing side of price when one exists,
// otherwise price -/+ ATR*multiplier. ok is false when neither can be computed.
func protectiveStop(frame *domain.Frame, price float64, long bool, swingLookback int, atrMultiplier float64) (float64, bool) {
	swingHigh, swingLow, ok := indicators.SwingLevels(frame.Bars, swingLookback)
	if ok {
		if long && swingLow > 0 && swingLow < price {
			return swingLow, true
		}
		if !long && swingHigh > 0 && swingHigh > price {
			return swingHigh, true
		}
	}

	atr, ok := frame.Latest(indicators.ColATR)
	if !ok || atr <= 0 {
		return 0, false
	}
	if long {
		return price - atr*atrMultiplier, true
	}
	return price + atr*atrMultiplier, true
}

// rewardTarget projects the stop distance times rewardRatio past the entry.
func rewardTarget(entry, stop, rewardRatio float64, long bool) float64 {
	risk := entry - stop
	if risk < 0 {
		risk = -risk
	}
	if long {
		return entry + risk*rewardRatio
	}
	return entry - risk*rewardRatio
}

func eventRisk(hints domain.Hints) (string, bool) {
	if hints.Sentiment != nil && hints.Sentiment.IsEventRisk {
		return "Risky event detected: " + hints.Sentiment.Rationale, true
	}
	return "", false
}

func symbolOf(frame *domain.Frame) string {
	if frame.Len() == 0 {
		return "UNKNOWN"
	}
	return frame.Last().Symbol
}
