package strategies

import (
	"fmt"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/strategy/indicators"
)

// BreakoutConfig holds configuration for the opening-range breakout strategy
type BreakoutConfig struct {
	ORBPeriodMinutes int     `yaml:"orb_period_minutes"`    // Opening range window (e.g., 15)
	IntervalMinutes  int     `yaml:"interval_minutes"`      // Bar interval; set from the engine config
	VolumeMultiplier float64 `yaml:"volume_multiplier"`     // Minimum volume / average volume (e.g., 1.5)
	RSIThreshold     float64 `yaml:"rsi_threshold"`         // Minimum RSI to confirm momentum (e.g., 55)
	SupertrendPeriod int     `yaml:"supertrend_period"`     // ATR period of the trend filter (e.g., 7)
	SupertrendMult   float64 `yaml:"supertrend_multiplier"` // Band width of the trend filter (e.g., 3.0)
	ATRSLMultiplier  float64 `yaml:"atr_sl_multiplier"`     // Fallback stop distance in ATRs (e.g., 2.0)
	RewardRatio      float64 `yaml:"reward_ratio"`          // Target distance as a multiple of risk (e.g., 1.5)
	SwingLookback    int     `yaml:"swing_lookback"`        // Bars scanned for the swing low (e.g., 5)

	Location *time.Location `yaml:"-"` // Session boundaries for the opening range
}

// DefaultBreakoutConfig returns the standard breakout parameters.
func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		ORBPeriodMinutes: 15,
		IntervalMinutes:  5,
		VolumeMultiplier: 1.5,
		RSIThreshold:     55,
		SupertrendPeriod: 7,
		SupertrendMult:   3.0,
		ATRSLMultiplier:  2.0,
		RewardRatio:      1.5,
		SwingLookback:    5,
		Location:         time.UTC,
	}
}

// Breakout enters long when price clears the opening range high with the
// supertrend, volume and momentum all confirming. It exits when the trend flips.
type Breakout struct {
	*BaseStrategy
	config BreakoutConfig
}

// NewBreakout creates a new breakout strategy instance
func NewBreakout(config BreakoutConfig) (*Breakout, error) {
	if config.ORBPeriodMinutes <= 0 || config.IntervalMinutes <= 0 {
		return nil, fmt.Errorf("opening range and interval minutes must be positive")
	}
	if config.ORBPeriodMinutes < config.IntervalMinutes {
		return nil, fmt.Errorf("opening range must span at least one bar")
	}
	if config.RewardRatio <= 0 || config.ATRSLMultiplier <= 0 {
		return nil, fmt.Errorf("reward ratio and ATR multiplier must be positive")
	}
	if config.SwingLookback <= 0 {
		config.SwingLookback = 5
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Breakout{BaseStrategy: NewBaseStrategy(string(KindORBSupertrend)), config: config}, nil
}

// RequiredBars returns the minimum history for the opening range and the trend filter.
func (s *Breakout) RequiredBars() int {
	return max(s.config.ORBPeriodMinutes/s.config.IntervalMinutes, s.config.SupertrendPeriod+1)
}

// Evaluate implements ports.Strategy.
func (s *Breakout) Evaluate(frame *domain.Frame, hints domain.Hints) domain.TradeInstruction {
	symbol := symbolOf(frame)
	if frame.Len() == 0 {
		return s.noTrade(symbol, "No data available")
	}
	price := frame.Last().Close

	switch hints.PositionSide {
	case domain.SideLong:
		if !indicators.IsBullish(frame) {
			return s.exit(domain.ExitLong, symbol, price, "Supertrend turned bearish")
		}
		return s.noTrade(symbol, "Holding position")
	case domain.SideShort:
		return s.noTrade(symbol, "Holding position")
	}

	orbHigh, _, ok := indicators.ORBLevels(frame.Bars, s.config.ORBPeriodMinutes, s.config.IntervalMinutes, s.config.Location)
	if !ok {
		return s.noTrade(symbol, "ORB levels not yet established")
	}
	if price <= orbHigh {
		return s.noTrade(symbol, fmt.Sprintf("Price %.2f has not broken ORB high %.2f", price, orbHigh))
	}
	if !indicators.IsBullish(frame) {
		return s.noTrade(symbol, "Supertrend is not bullish")
	}
	volumeRatio, ok := frame.Latest(indicators.ColVolumeRatio)
	if !ok {
		return s.noTrade(symbol, "Volume ratio not calculated")
	}
	if volumeRatio < s.config.VolumeMultiplier {
		return s.noTrade(symbol, fmt.Sprintf("Volume ratio %.2f below threshold %g", volumeRatio, s.config.VolumeMultiplier))
	}
	rsi, ok := frame.Latest(indicators.ColRSI)
	if !ok {
		return s.noTrade(symbol, "RSI not calculated")
	}
	if rsi < s.config.RSIThreshold {
		return s.noTrade(symbol, fmt.Sprintf("RSI %.2f below threshold %g", rsi, s.config.RSIThreshold))
	}
	if reason, risky := eventRisk(hints); risky {
		return s.noTrade(symbol, reason)
	}

	stop, ok := protectiveStop(frame, price, true, s.config.SwingLookback, s.config.ATRSLMultiplier)
	if !ok {
		return s.noTrade(symbol, "Cannot calculate stop loss")
	}
	target := rewardTarget(price, stop, s.config.RewardRatio, true)

	return s.entry(domain.EntryLong, symbol, price, stop, target, fmt.Sprintf(
		"ORB breakout: price %.2f > ORB high %.2f, Supertrend bullish, volume ratio %.2f, RSI %.2f",
		price, orbHigh, volumeRatio, rsi))
}
