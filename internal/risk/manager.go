package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	InitialCapital        float64
	MaxRiskPerTrade       float64 // Fraction of portfolio value risked per trade
	MaxDailyLoss          float64 // Fraction of initial capital
	MaxLosingTradesPerDay int
	MinMinutesAfterOpen   int
	MarketOpen            ClockTime
	MarketClose           ClockTime
	CutoffTime            ClockTime
	Location              *time.Location // Exchange time zone; nil means UTC
}

// DefaultRiskConfig returns the stock intraday limits for a 09:15-15:30 session.
func DefaultRiskConfig(initialCapital float64) RiskConfig {
	return RiskConfig{
		InitialCapital:        initialCapital,
		MaxRiskPerTrade:       0.02,
		MaxDailyLoss:          0.03,
		MaxLosingTradesPerDay: 3,
		MinMinutesAfterOpen:   15,
		MarketOpen:            ClockTime{9, 15},
		MarketClose:           ClockTime{15, 30},
		CutoffTime:            ClockTime{14, 45},
	}
}

// PortfolioView is the read-only portfolio state the risk manager needs.
type PortfolioView interface {
	DailyPnL() float64
	DailyTrades() int
	DailyLosingTrades() int
	TotalValue() float64
	Cash() float64
	HasPosition(symbol string) bool
}

// KillSwitchState is the state of the deny-all-new-entries latch.
type KillSwitchState int

const (
	KillSwitchInactive KillSwitchState = iota
	KillSwitchActive
)

func (s KillSwitchState) String() string {
	if s == KillSwitchActive {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// RiskManager implements admission control, position sizing and the kill switch.
// It is not safe for concurrent use; the engine serializes access.
type RiskManager struct {
	config RiskConfig
	logger ports.Logger
	stats  *RiskStats

	killSwitch      KillSwitchState
	killReason      string
	killActivatedAt time.Time
}

// RiskStats counts admission outcomes since start.
type RiskStats struct {
	Validations       int
	Allowed           int
	Denied            int
	KillSwitchLatches int
	DenialsByReason   map[string]int
}

// RiskMetrics is a point-in-time view of limits and usage.
type RiskMetrics struct {
	KillSwitchActive   bool
	KillSwitchReason   string
	DailyPnL           float64
	DailyLossLimit     float64
	DailyLossUsedPct   float64
	DailyTrades        int
	DailyLosingTrades  int
	MaxLosingTrades    int
	MaxRiskPerTradePct float64
	MaxDailyLossPct    float64
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig, logger ports.Logger) (*RiskManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	if config.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive", ports.ErrConfigurationError)
	}
	if config.MaxRiskPerTrade <= 0 || config.MaxRiskPerTrade > 1 {
		return nil, fmt.Errorf("%w: max risk per trade must be in (0, 1]", ports.ErrConfigurationError)
	}
	if config.MaxDailyLoss <= 0 || config.MaxDailyLoss > 1 {
		return nil, fmt.Errorf("%w: max daily loss must be in (0, 1]", ports.ErrConfigurationError)
	}
	if config.MaxLosingTradesPerDay < 1 {
		return nil, fmt.Errorf("%w: max losing trades per day must be at least 1", ports.ErrConfigurationError)
	}
	if config.MarketOpen.Minutes() >= config.MarketClose.Minutes() {
		return nil, fmt.Errorf("%w: market open %s must be before close %s", ports.ErrConfigurationError, config.MarketOpen, config.MarketClose)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &RiskManager{
		config: config,
		logger: logger,
		stats:  &RiskStats{DenialsByReason: make(map[string]int)},
	}, nil
}

// ValidateTrade decides whether an instruction may proceed. Checks run in a fixed
// order and the first failure decides.
func (r *RiskManager) ValidateTrade(ctx context.Context, instr domain.TradeInstruction, portfolio PortfolioView, now time.Time) domain.RiskDecision {
	r.stats.Validations++

	if r.killSwitch == KillSwitchActive {
		return r.deny(ctx, instr.Symbol, "Kill switch active: "+r.killReason)
	}

	if !instr.Signal.IsEntry() {
		return r.allow("Not an entry signal")
	}

	if d, ok := r.checkDailyLimits(ctx, instr.Symbol, portfolio); !ok {
		return d
	}

	if ok, reason := r.checkTimeFilters(now); !ok {
		return r.deny(ctx, instr.Symbol, reason)
	}

	if portfolio.HasPosition(instr.Symbol) {
		return r.deny(ctx, instr.Symbol, "Already have position in "+instr.Symbol)
	}

	return r.allow("Trade allowed")
}

// CanTrade runs the symbol-independent checks: kill switch, daily limits and the
// time window. The engine uses it to skip entry evaluation for a whole bar.
func (r *RiskManager) CanTrade(ctx context.Context, portfolio PortfolioView, now time.Time) domain.RiskDecision {
	if r.killSwitch == KillSwitchActive {
		return domain.RiskDecision{Allowed: false, Reason: "Kill switch active: " + r.killReason}
	}
	if d, ok := r.checkDailyLimits(ctx, "", portfolio); !ok {
		return d
	}
	if ok, reason := r.checkTimeFilters(now); !ok {
		return domain.RiskDecision{Allowed: false, Reason: reason}
	}
	return domain.RiskDecision{Allowed: true, Reason: "Trading allowed"}
}

// checkDailyLimits latches the kill switch on a daily loss or losing-count breach.
func (r *RiskManager) checkDailyLimits(ctx context.Context, symbol string, portfolio PortfolioView) (domain.RiskDecision, bool) {
	limit := r.config.InitialCapital * r.config.MaxDailyLoss
	if portfolio.DailyPnL() < -limit {
		reason := fmt.Sprintf("Daily loss limit breached: %.2f < -%.2f", portfolio.DailyPnL(), limit)
		r.ActivateKillSwitch(ctx, reason)
		return r.deny(ctx, symbol, reason), false
	}
	if portfolio.DailyLosingTrades() >= r.config.MaxLosingTradesPerDay {
		reason := fmt.Sprintf("Max losing trades per day reached: %d", portfolio.DailyLosingTrades())
		r.ActivateKillSwitch(ctx, reason)
		return r.deny(ctx, symbol, reason), false
	}
	return domain.RiskDecision{}, true
}

func (r *RiskManager) checkTimeFilters(now time.Time) (bool, string) {
	local := now.In(r.config.Location)
	current := secondsOfDay(local)
	clock := local.Format("15:04:05")

	if current < r.config.MarketOpen.Minutes()*60 || current > r.config.MarketClose.Minutes()*60 {
		return false, "Market closed: current time " + clock
	}

	minutesAfterOpen := local.Hour()*60 + local.Minute() - r.config.MarketOpen.Minutes()
	if minutesAfterOpen < r.config.MinMinutesAfterOpen {
		return false, fmt.Sprintf("Too early: %d minutes after open, minimum %d", minutesAfterOpen, r.config.MinMinutesAfterOpen)
	}

	if current >= r.config.CutoffTime.Minutes()*60 {
		return false, fmt.Sprintf("Past cutoff time: %s >= %s", clock, r.config.CutoffTime)
	}
	return true, "Time filters passed"
}

func (r *RiskManager) allow(reason string) domain.RiskDecision {
	r.stats.Allowed++
	return domain.RiskDecision{Allowed: true, Reason: reason}
}

func (r *RiskManager) deny(ctx context.Context, symbol, reason string) domain.RiskDecision {
	r.stats.Denied++
	r.stats.DenialsByReason[reasonKey(reason)]++
	r.logger.Info(ctx, "Trade denied", map[string]interface{}{"symbol": symbol, "reason": reason})
	return domain.RiskDecision{Allowed: false, Reason: reason}
}

// reasonKey groups deny reasons by their prefix so counters do not explode with values.
func reasonKey(reason string) string {
	for i, c := range reason {
		if c == ':' {
			return reason[:i]
		}
	}
	return reason
}

// CalculatePositionSize returns the quantity to trade for an entry instruction.
// It returns 0 when the instruction cannot be sized.
func (r *RiskManager) CalculatePositionSize(instr domain.TradeInstruction, portfolio PortfolioView) float64 {
	if instr.EntryPrice == nil || instr.StopLoss == nil {
		return 0
	}
	entry := *instr.EntryPrice
	riskPerShare := math.Abs(entry - *instr.StopLoss)
	if riskPerShare == 0 || entry <= 0 {
		return 0
	}

	maxLoss := portfolio.TotalValue() * r.config.MaxRiskPerTrade
	raw := math.Floor(maxLoss / riskPerShare)
	if raw < 1 {
		return 0
	}

	quantity := raw
	if affordable := math.Floor(portfolio.Cash() / entry); quantity > affordable {
		quantity = affordable
	}
	return math.Max(1, quantity)
}

// ActivateKillSwitch latches the kill switch. The first reason is kept.
func (r *RiskManager) ActivateKillSwitch(ctx context.Context, reason string) {
	if r.killSwitch == KillSwitchActive {
		return
	}
	r.killSwitch = KillSwitchActive
	r.killReason = reason
	r.killActivatedAt = time.Now()
	r.stats.KillSwitchLatches++
	r.logger.Warn(ctx, "Kill switch activated", map[string]interface{}{"reason": reason})
}

// ResetKillSwitch is the only way back to INACTIVE.
func (r *RiskManager) ResetKillSwitch(ctx context.Context) {
	if r.killSwitch == KillSwitchInactive {
		return
	}
	r.logger.Info(ctx, "Kill switch reset by operator", map[string]interface{}{"previousReason": r.killReason})
	r.killSwitch = KillSwitchInactive
	r.killReason = ""
	r.killActivatedAt = time.Time{}
}

// KillSwitch returns the latch state and its reason.
func (r *RiskManager) KillSwitch() (KillSwitchState, string) {
	return r.killSwitch, r.killReason
}

// Metrics reports limits and their current usage.
func (r *RiskManager) Metrics(portfolio PortfolioView) RiskMetrics {
	limit := r.config.InitialCapital * r.config.MaxDailyLoss
	used := 0.0
	if limit > 0 && portfolio.DailyPnL() < 0 {
		used = -portfolio.DailyPnL() / limit * 100
	}
	return RiskMetrics{
		KillSwitchActive:   r.killSwitch == KillSwitchActive,
		KillSwitchReason:   r.killReason,
		DailyPnL:           portfolio.DailyPnL(),
		DailyLossLimit:     limit,
		DailyLossUsedPct:   used,
		DailyTrades:        portfolio.DailyTrades(),
		DailyLosingTrades:  portfolio.DailyLosingTrades(),
		MaxLosingTrades:    r.config.MaxLosingTradesPerDay,
		MaxRiskPerTradePct: r.config.MaxRiskPerTrade * 100,
		MaxDailyLossPct:    r.config.MaxDailyLoss * 100,
	}
}

// GetStats returns a copy of the admission statistics.
func (r *RiskManager) GetStats() RiskStats {
	out := *r.stats
	out.DenialsByReason = make(map[string]int, len(r.stats.DenialsByReason))
	for k, v := range r.stats.DenialsByReason {
		out.DenialsByReason[k] = v
	}
	return out
}

// Config returns the configuration in effect.
func (r *RiskManager) Config() RiskConfig {
	return r.config
}
