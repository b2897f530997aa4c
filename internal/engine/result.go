package engine

import (
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/execution"
	"intradayBot/internal/portfolio"
	"intradayBot/internal/risk"
)

// Result is the outcome of a finite run.
type Result struct {
	Portfolio portfolio.Snapshot `json:"portfolio"`
	Trades    []domain.Trade     `json:"trades"`
	Summary   Summary            `json:"summary"`
}

// Summary aggregates a run. Counters are taken from what actually happened.
type Summary struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Execution         string    `json:"execution"`
	InitialCapital    float64   `json:"initial_capital"`
	FinalCapital      float64   `json:"final_capital"`
	TotalReturnPct    float64   `json:"total_return_pct"`
	TotalTrades       int       `json:"total_trades"`
	WinningTrades     int       `json:"winning_trades"`
	LosingTrades      int       `json:"losing_trades"`
	BarsProcessed     int       `json:"bars_processed"`
	BarsSkipped       int       `json:"bars_skipped"`
	EntrySignals      int       `json:"entry_signals"`
	EntriesSubmitted  int       `json:"entries_submitted"`
	EntriesFilled     int       `json:"entries_filled"`
	EntriesRejected   int       `json:"entries_rejected"`
	RiskDenials       int       `json:"risk_denials"`
	ExitFailures      int       `json:"exit_failures"`
	StrategyFailures  int       `json:"strategy_failures"`
	KillSwitchLatches int       `json:"kill_switch_latches"`
	EmergencyStops    int       `json:"emergency_stops"`
}

// Result snapshots the run so far. Replay fills in the time range.
func (e *Engine) Result() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.ledger.Snapshot()
	c := e.counters
	ret := 0.0
	if snap.InitialCapital > 0 {
		ret = (snap.TotalValue - snap.InitialCapital) / snap.InitialCapital * 100
	}
	return &Result{
		Portfolio: snap,
		Trades:    e.ledger.Trades(),
		Summary: Summary{
			Execution:         e.exec.Name(),
			InitialCapital:    snap.InitialCapital,
			FinalCapital:      snap.TotalValue,
			TotalReturnPct:    ret,
			TotalTrades:       snap.TotalTrades,
			WinningTrades:     snap.WinningTrades,
			LosingTrades:      snap.LosingTrades,
			BarsProcessed:     c.barsProcessed,
			BarsSkipped:       c.barsSkipped,
			EntrySignals:      c.entrySignals,
			EntriesSubmitted:  c.entriesSubmitted,
			EntriesFilled:     c.entriesFilled,
			EntriesRejected:   c.entriesRejected,
			RiskDenials:       c.riskDenials,
			ExitFailures:      c.exitFailures,
			StrategyFailures:  c.strategyFailures,
			KillSwitchLatches: e.risk.GetStats().KillSwitchLatches,
			EmergencyStops:    c.emergencyStops,
		},
	}
}

// Status is a point-in-time view of a running engine.
type Status struct {
	Time             time.Time         `json:"time"`
	Execution        string            `json:"execution"`
	Cash             float64           `json:"cash"`
	TotalValue       float64           `json:"total_value"`
	Positions        []domain.Position `json:"positions"`
	PendingOrders    int               `json:"pending_orders"`
	KillSwitch       string            `json:"kill_switch"`
	KillSwitchReason string            `json:"kill_switch_reason,omitempty"`
	EmergencyStop    bool              `json:"emergency_stop"`
	OrdersToday      int               `json:"orders_today"`
	Risk             risk.RiskMetrics  `json:"risk"`
	Regime           *domain.Regime    `json:"regime,omitempty"`
}

// Status reports the engine's current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.ledger.Snapshot()
	state, reason := e.risk.KillSwitch()
	st := Status{
		Time:             e.lastBarAt,
		Execution:        e.exec.Name(),
		Cash:             snap.Cash,
		TotalValue:       snap.TotalValue,
		Positions:        snap.Positions,
		PendingOrders:    e.exec.PendingCount(),
		KillSwitch:       state.String(),
		KillSwitchReason: reason,
		EmergencyStop:    e.emergency != nil && e.emergency.Active(),
		Risk:             e.risk.Metrics(e.ledger),
	}
	if br, ok := e.exec.(*execution.BrokerRouted); ok {
		st.OrdersToday = br.OrdersToday()
	}
	if e.regime != nil {
		r := *e.regime
		st.Regime = &r
	}
	return st
}
