package strategies

import (
	"fmt"
	"math"

	"intradayBot/internal/domain"
	"intradayBot/internal/strategy/indicators"
)

// MeanReversionConfig holds configuration for the VWAP reversion strategy
type MeanReversionConfig struct {
	DeviationPct    float64 `yaml:"vwap_deviation_pct"` // Minimum distance from VWAP in percent (e.g., 1.0)
	RSIOversold     float64 `yaml:"rsi_oversold"`       // Long needs RSI <= oversold (e.g., 30)
	RSIOverbought   float64 `yaml:"rsi_overbought"`     // Short needs RSI >= overbought (e.g., 70)
	ATRSLMultiplier float64 `yaml:"atr_sl_multiplier"`  // Fallback stop distance in ATRs (e.g., 1.0)
	RewardRatio     float64 `yaml:"reward_ratio"`       // Target distance as a multiple of risk (e.g., 1.0)
	SwingLookback   int     `yaml:"swing_lookback"`     // Bars scanned for the swing level (e.g., 3)
	AllowShort      bool    `yaml:"allow_short"`
}

// DefaultMeanReversionConfig returns the standard reversion parameters.
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		DeviationPct:    1.0,
		RSIOversold:     30,
		RSIOverbought:   70,
		ATRSLMultiplier: 1.0,
		RewardRatio:     1.0,
		SwingLookback:   3,
	}
}

// MeanReversion fades stretched moves away from VWAP when RSI is at an extreme
// and takes profit when price returns to VWAP. It stays flat unless the regime
// is range bound or unknown.
type MeanReversion struct {
	*BaseStrategy
	config MeanReversionConfig
}

// NewMeanReversion creates a new VWAP reversion strategy instance
func NewMeanReversion(config MeanReversionConfig) (*MeanReversion, error) {
	if config.DeviationPct <= 0 {
		return nil, fmt.Errorf("VWAP deviation must be positive")
	}
	if config.RSIOversold >= config.RSIOverbought {
		return nil, fmt.Errorf("RSI oversold must be below overbought")
	}
	if config.RewardRatio <= 0 || config.ATRSLMultiplier <= 0 {
		return nil, fmt.Errorf("reward ratio and ATR multiplier must be positive")
	}
	if config.SwingLookback <= 0 {
		config.SwingLookback = 3
	}
	return &MeanReversion{BaseStrategy: NewBaseStrategy(string(KindVWAPReversion)), config: config}, nil
}

// RequiredBars returns the swing window; VWAP and RSI readiness are guarded in Evaluate.
func (s *MeanReversion) RequiredBars() int {
	return s.config.SwingLookback
}

// Evaluate implements ports.Strategy.
func (s *MeanReversion) Evaluate(frame *domain.Frame, hints domain.Hints) domain.TradeInstruction {
	symbol := symbolOf(frame)
	if frame.Len() == 0 {
		return s.noTrade(symbol, "No data available")
	}
	if hints.Regime != nil && *hints.Regime != domain.RegimeRangeBound {
		return s.noTrade(symbol, fmt.Sprintf("Strategy only active in range_bound regime, current: %s", *hints.Regime))
	}
	price := frame.Last().Close

	switch hints.PositionSide {
	case domain.SideLong:
		if vwap, ok := frame.Latest(indicators.ColVWAP); ok && price >= vwap {
			return s.exit(domain.ExitLong, symbol, price, "Price reached VWAP")
		}
		return s.noTrade(symbol, "Holding position")
	case domain.SideShort:
		if vwap, ok := frame.Latest(indicators.ColVWAP); ok && price <= vwap {
			return s.exit(domain.ExitShort, symbol, price, "Price reached VWAP")
		}
		return s.noTrade(symbol, "Holding position")
	}

	long := s.checkEntry(frame, symbol, price, true, hints)
	if long.Signal != domain.NoTrade || !s.config.AllowShort {
		return long
	}
	return s.checkEntry(frame, symbol, price, false, hints)
}

func (s *MeanReversion) checkEntry(frame *domain.Frame, symbol string, price float64, long bool, hints domain.Hints) domain.TradeInstruction {
	vwap, ok := frame.Latest(indicators.ColVWAP)
	if !ok {
		return s.noTrade(symbol, "VWAP not calculated")
	}
	deviation := (price - vwap) / vwap * 100
	if long && deviation >= -s.config.DeviationPct {
		return s.noTrade(symbol, fmt.Sprintf("Price deviation %.2f%% not below -%g%%", deviation, s.config.DeviationPct))
	}
	if !long && deviation <= s.config.DeviationPct {
		return s.noTrade(symbol, fmt.Sprintf("Price deviation %.2f%% not above %g%%", deviation, s.config.DeviationPct))
	}

	rsi, ok := frame.Latest(indicators.ColRSI)
	if !ok {
		return s.noTrade(symbol, "RSI not calculated")
	}
	if long && rsi > s.config.RSIOversold {
		return s.noTrade(symbol, fmt.Sprintf("RSI %.2f not oversold (threshold %g)", rsi, s.config.RSIOversold))
	}
	if !long && rsi < s.config.RSIOverbought {
		return s.noTrade(symbol, fmt.Sprintf("RSI %.2f not overbought (threshold %g)", rsi, s.config.RSIOverbought))
	}

	if reason, risky := eventRisk(hints); risky {
		return s.noTrade(symbol, reason)
	}

	stop, ok := protectiveStop(frame, price, long, s.config.SwingLookback, s.config.ATRSLMultiplier)
	if !ok {
		return s.noTrade(symbol, "Cannot calculate stop loss")
	}

	// The nearer of VWAP and the reward projection.
	if long {
		target := math.Min(vwap, rewardTarget(price, stop, s.config.RewardRatio, true))
		return s.entry(domain.EntryLong, symbol, price, stop, target, fmt.Sprintf(
			"VWAP reversion long: price %.2f is %.2f%% below VWAP %.2f, RSI oversold at %.2f",
			price, deviation, vwap, rsi))
	}
	target := math.Max(vwap, rewardTarget(price, stop, s.config.RewardRatio, false))
	return s.entry(domain.EntryShort, symbol, price, stop, target, fmt.Sprintf(
		"VWAP reversion short: price %.2f is %.2f%% above VWAP %.2f, RSI overbought at %.2f",
		price, deviation, vwap, rsi))
}
