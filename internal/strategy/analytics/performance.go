// Package analytics computes run statistics from the closed-trade list.
package analytics

import (
	"math"
	"sort"
	"time"

	"intradayBot/internal/domain"
)

const (
	// TradingDaysPerYear annualizes per-trade return statistics.
	TradingDaysPerYear = 252
	// AnnualRiskFreeRate is deducted from the mean trade return in the Sharpe ratio.
	AnnualRiskFreeRate = 0.06
)

// PerformanceMetrics holds performance metrics for a list of trades.
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	WinRate            float64 `json:"win_rate"` // Fraction of trades with PnL > 0
	TotalProfit        float64 `json:"total_profit"`
	AverageWin         float64 `json:"average_win"`
	AverageLoss        float64 `json:"average_loss"` // Negative or zero
	LargestWin         float64 `json:"largest_win"`
	LargestLoss        float64 `json:"largest_loss"`
	AverageTradePnL    float64 `json:"average_trade_pnl"`
	ProfitFactor       float64 `json:"profit_factor"` // Gross profit / gross loss; 0 without losses
	FinalBalance       float64 `json:"final_balance"`
	ReturnOnInvestment float64 `json:"return_on_investment"`

	// Risk Metrics
	MaxDrawdown       float64 `json:"max_drawdown"` // Fraction of the running peak
	MaxDrawdownAmount float64 `json:"max_drawdown_amount"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	Volatility        float64 `json:"volatility_pct"` // Annualized std dev of trade returns, percent

	// Advanced Metrics
	MaxConsecutiveWins   int                `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int                `json:"max_consecutive_losses"`
	AverageTradeDuration time.Duration      `json:"average_trade_duration"`
	RecoveryFactor       float64            `json:"recovery_factor"`
	Expectancy           float64            `json:"expectancy"`
	RiskRewardRatio      float64            `json:"risk_reward_ratio"`
	MonthlyReturns       map[string]float64 `json:"monthly_returns"`
	Drawdowns            []Drawdown         `json:"drawdowns"`
	EquityCurve          []EquityPoint      `json:"equity_curve"`
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	StartValue float64       `json:"start_value"`
	EndValue   float64       `json:"end_value"`
	Depth      float64       `json:"depth"`
	Duration   time.Duration `json:"duration"`
}

// EquityPoint is the balance after a trade closed.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// AnalyzePerformance calculates metrics from trades, replayed in exit order
// on top of initialBalance. The input slice is not reordered.
func AnalyzePerformance(trades []domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}
	if len(trades) == 0 {
		return metrics
	}

	ordered := make([]domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	balance := initialBalance
	peak := initialBalance
	var grossProfit, grossLoss float64
	var current *Drawdown
	var wins, losses int
	var totalDuration time.Duration
	returns := make([]float64, 0, len(ordered))

	for _, trade := range ordered {
		metrics.TotalTrades++
		if trade.PnL > 0 {
			metrics.WinningTrades++
			grossProfit += trade.PnL
			metrics.LargestWin = math.Max(metrics.LargestWin, trade.PnL)
			wins++
			losses = 0
		} else {
			metrics.LosingTrades++
			grossLoss += -trade.PnL
			metrics.LargestLoss = math.Min(metrics.LargestLoss, trade.PnL)
			losses++
			wins = 0
		}
		if wins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = wins
		}
		if losses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = losses
		}

		if cost := trade.EntryPrice * trade.Quantity; cost > 0 {
			returns = append(returns, trade.PnL/cost)
		}
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)

		balance += trade.PnL
		metrics.TotalProfit += trade.PnL
		metrics.MonthlyReturns[trade.ExitTime.Format("2006-01")] += trade.PnL

		if balance > peak {
			peak = balance
			if current != nil {
				current.EndTime = trade.ExitTime
				current.EndValue = balance
				current.Duration = current.EndTime.Sub(current.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *current)
				current = nil
			}
		} else if balance < peak {
			depth := (peak - balance) / peak
			if current == nil {
				current = &Drawdown{StartTime: trade.ExitTime, StartValue: peak}
			}
			current.Depth = math.Max(current.Depth, depth)
			if peak-balance > metrics.MaxDrawdownAmount {
				metrics.MaxDrawdownAmount = peak - balance
			}
			metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, depth)
		}

		dd := 0.0
		if peak > 0 {
			dd = (peak - balance) / peak
		}
		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.ExitTime,
			Value:    balance,
			Drawdown: dd,
		})
	}

	if current != nil {
		last := ordered[len(ordered)-1]
		current.EndTime = last.ExitTime
		current.EndValue = balance
		current.Duration = current.EndTime.Sub(current.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *current)
	}

	n := float64(metrics.TotalTrades)
	metrics.FinalBalance = balance
	metrics.WinRate = float64(metrics.WinningTrades) / n
	metrics.AverageTradePnL = metrics.TotalProfit / n
	metrics.AverageTradeDuration = totalDuration / time.Duration(metrics.TotalTrades)
	if initialBalance > 0 {
		metrics.ReturnOnInvestment = (balance - initialBalance) / initialBalance
	}
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = -grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss > 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
	if metrics.MaxDrawdownAmount > 0 {
		metrics.RecoveryFactor = metrics.TotalProfit / metrics.MaxDrawdownAmount
	}
	metrics.Expectancy = metrics.WinRate*metrics.AverageWin + (1-metrics.WinRate)*metrics.AverageLoss
	metrics.SharpeRatio, metrics.Volatility = sharpe(returns)

	return metrics
}

// sharpe returns the annualized Sharpe ratio and volatility (percent) of
// per-trade returns. Fewer than two returns, or zero dispersion, yield zeros.
func sharpe(returns []float64) (ratio, volatility float64) {
	if len(returns) < 2 {
		return 0, 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std == 0 {
		return 0, 0
	}
	annual := math.Sqrt(TradingDaysPerYear)
	riskFree := AnnualRiskFreeRate / TradingDaysPerYear
	return (mean - riskFree) / std * annual, std * annual * 100
}

// Breakdown groups trades by key and analyzes each group against initialBalance.
func Breakdown(trades []domain.Trade, initialBalance float64, key func(domain.Trade) string) map[string]*PerformanceMetrics {
	groups := make(map[string][]domain.Trade)
	for _, t := range trades {
		k := key(t)
		groups[k] = append(groups[k], t)
	}
	out := make(map[string]*PerformanceMetrics, len(groups))
	for k, g := range groups {
		out[k] = AnalyzePerformance(g, initialBalance)
	}
	return out
}

// ByStrategy keys trades by strategy tag.
func ByStrategy(t domain.Trade) string { return t.StrategyTag }

// ByExitReason keys trades by exit reason.
func ByExitReason(t domain.Trade) string { return string(t.ExitReason) }

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
