package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the side that closes exposure opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// PositionSide is the direction of an open position, or SideFlat when there is none.
type PositionSide string

const (
	SideFlat  PositionSide = ""
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTargetHit     ExitReason = "target_hit"
	ExitStrategy      ExitReason = "strategy_exit"
	ExitEndOfBacktest ExitReason = "end_of_backtest"
	ExitEmergencyStop ExitReason = "emergency_stop"
	ExitShutdown      ExitReason = "shutdown"
	ExitManual        ExitReason = "manual"
)

// Regime is an advisory market-regime label.
type Regime string

const (
	RegimeTrendingUp   Regime = "trending_up"
	RegimeTrendingDown Regime = "trending_down"
	RegimeRangeBound   Regime = "range_bound"
	RegimeHighVolNoise Regime = "high_volatility_noise"
)

// SentimentLabel is the polarity of an advisory sentiment reading.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Sentiment is a read-only advisory hint for one symbol.
type Sentiment struct {
	Label       SentimentLabel
	Score       float64
	IsEventRisk bool
	Rationale   string
}

// Hints carries the optional context a strategy may read during evaluation.
type Hints struct {
	PositionSide PositionSide
	Regime       *Regime
	Sentiment    *Sentiment
}

// RiskDecision is the outcome of an admission check. It is never persisted.
type RiskDecision struct {
	Allowed bool
	Reason  string
}
