package strategies

import (
	"fmt"

	"intradayBot/internal/domain"
	"intradayBot/internal/strategy/indicators"
)

// MACrossoverConfig holds configuration for the EMA crossover strategy
type MACrossoverConfig struct {
	FastPeriod      int     `yaml:"ema_fast"`          // Fast EMA period (e.g., 9)
	SlowPeriod      int     `yaml:"ema_slow"`          // Slow EMA period (e.g., 21)
	UseVWAPFilter   bool    `yaml:"use_vwap_filter"`   // Require price on the trade side of VWAP
	UseRSIFilter    bool    `yaml:"use_rsi_filter"`    // Require RSI momentum confirmation
	RSIThreshold    float64 `yaml:"rsi_threshold"`     // Long needs RSI >= threshold, short RSI <= 100-threshold
	ATRSLMultiplier float64 `yaml:"atr_sl_multiplier"` // Fallback stop distance in ATRs (e.g., 2.0)
	RewardRatio     float64 `yaml:"reward_ratio"`      // Target distance as a multiple of risk (e.g., 1.5)
	SwingLookback   int     `yaml:"swing_lookback"`    // Bars scanned for the swing level (e.g., 5)
	CrossLookback   int     `yaml:"cross_lookback"`    // Bars within which a crossover counts (e.g., 2)
	AllowShort      bool    `yaml:"allow_short"`
}

// DefaultMACrossoverConfig returns the standard crossover parameters.
func DefaultMACrossoverConfig() MACrossoverConfig {
	return MACrossoverConfig{
		FastPeriod:      9,
		SlowPeriod:      21,
		UseVWAPFilter:   true,
		UseRSIFilter:    false,
		RSIThreshold:    50,
		ATRSLMultiplier: 2.0,
		RewardRatio:     1.5,
		SwingLookback:   5,
		CrossLookback:   2,
	}
}

// MACrossover trades a recent fast/slow EMA crossover confirmed by VWAP,
// and exits on the opposite crossover.
type MACrossover struct {
	*BaseStrategy
	config MACrossoverConfig
}

// NewMACrossover creates a new EMA crossover strategy instance
func NewMACrossover(config MACrossoverConfig) (*MACrossover, error) {
	if config.FastPeriod <= 0 || config.SlowPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if config.FastPeriod >= config.SlowPeriod {
		return nil, fmt.Errorf("fast EMA period must be less than slow EMA period")
	}
	if config.RewardRatio <= 0 || config.ATRSLMultiplier <= 0 {
		return nil, fmt.Errorf("reward ratio and ATR multiplier must be positive")
	}
	if config.SwingLookback <= 0 {
		config.SwingLookback = 5
	}
	if config.CrossLookback <= 0 {
		config.CrossLookback = 2
	}
	return &MACrossover{BaseStrategy: NewBaseStrategy(string(KindEMATrend)), config: config}, nil
}

// RequiredBars returns the slow EMA warmup plus the crossover window.
func (s *MACrossover) RequiredBars() int {
	return s.config.SlowPeriod + s.config.CrossLookback
}

// Evaluate implements ports.Strategy.
func (s *MACrossover) Evaluate(frame *domain.Frame, hints domain.Hints) domain.TradeInstruction {
	symbol := symbolOf(frame)
	if frame.Len() == 0 {
		return s.noTrade(symbol, "No data available")
	}
	price := frame.Last().Close

	switch hints.PositionSide {
	case domain.SideLong:
		if indicators.CrossedBelow(frame, indicators.ColEMAFast, indicators.ColEMASlow, s.config.CrossLookback) {
			return s.exit(domain.ExitLong, symbol, price, "Bearish EMA crossover")
		}
		return s.noTrade(symbol, "Holding position")
	case domain.SideShort:
		if indicators.CrossedAbove(frame, indicators.ColEMAFast, indicators.ColEMASlow, s.config.CrossLookback) {
			return s.exit(domain.ExitShort, symbol, price, "Bullish EMA crossover")
		}
		return s.noTrade(symbol, "Holding position")
	}

	long := s.checkEntry(frame, symbol, price, true, hints)
	if long.Signal != domain.NoTrade || !s.config.AllowShort {
		return long
	}
	return s.checkEntry(frame, symbol, price, false, hints)
}

func (s *MACrossover) checkEntry(frame *domain.Frame, symbol string, price float64, long bool, hints domain.Hints) domain.TradeInstruction {
	if long && !indicators.CrossedAbove(frame, indicators.ColEMAFast, indicators.ColEMASlow, s.config.CrossLookback) {
		return s.noTrade(symbol, "No bullish EMA crossover")
	}
	if !long && !indicators.CrossedBelow(frame, indicators.ColEMAFast, indicators.ColEMASlow, s.config.CrossLookback) {
		return s.noTrade(symbol, "No bearish EMA crossover")
	}

	if s.config.UseVWAPFilter {
		vwap, ok := frame.Latest(indicators.ColVWAP)
		if !ok {
			return s.noTrade(symbol, "VWAP not calculated")
		}
		if long && price <= vwap {
			return s.noTrade(symbol, fmt.Sprintf("Price %.2f not above VWAP %.2f", price, vwap))
		}
		if !long && price >= vwap {
			return s.noTrade(symbol, fmt.Sprintf("Price %.2f not below VWAP %.2f", price, vwap))
		}
	}

	if s.config.UseRSIFilter {
		rsi, ok := frame.Latest(indicators.ColRSI)
		if !ok {
			return s.noTrade(symbol, "RSI not calculated")
		}
		if long && rsi < s.config.RSIThreshold {
			return s.noTrade(symbol, fmt.Sprintf("RSI %.2f below threshold %g", rsi, s.config.RSIThreshold))
		}
		if !long && rsi > 100-s.config.RSIThreshold {
			return s.noTrade(symbol, fmt.Sprintf("RSI %.2f above threshold %g", rsi, 100-s.config.RSIThreshold))
		}
	}

	if reason, risky := eventRisk(hints); risky {
		return s.noTrade(symbol, reason)
	}

	stop, ok := protectiveStop(frame, price, long, s.config.SwingLookback, s.config.ATRSLMultiplier)
	if !ok {
		return s.noTrade(symbol, "Cannot calculate stop loss")
	}
	target := rewardTarget(price, stop, s.config.RewardRatio, long)

	fast, _ := frame.Latest(indicators.ColEMAFast)
	slow, _ := frame.Latest(indicators.ColEMASlow)
	if long {
		return s.entry(domain.EntryLong, symbol, price, stop, target, fmt.Sprintf(
			"Bullish EMA crossover: EMA(%d)=%.2f > EMA(%d)=%.2f, price > VWAP",
			s.config.FastPeriod, fast, s.config.SlowPeriod, slow))
	}
	return s.entry(domain.EntryShort, symbol, price, stop, target, fmt.Sprintf(
		"Bearish EMA crossover: EMA(%d)=%.2f < EMA(%d)=%.2f, price < VWAP",
		s.config.FastPeriod, fast, s.config.SlowPeriod, slow))
}
