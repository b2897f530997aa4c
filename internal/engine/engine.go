// Package engine runs the per-bar trading pipeline for replay and live sessions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/execution"
	"intradayBot/internal/orders"
	"intradayBot/internal/portfolio"
	"intradayBot/internal/ports"
	"intradayBot/internal/risk"
	"intradayBot/internal/strategy/indicators"
)

const (
	defaultMinBars = 50
	defaultMaxBars = 200

	emergencyKillReason = "Emergency stop - daily loss limit"
)

// Config wires the engine's collaborators.
type Config struct {
	Strategies []ports.Strategy // Priority order; the first entry signal wins
	Indicators *indicators.Engine
	Risk       *risk.RiskManager
	Ledger     *portfolio.Ledger
	Execution  execution.Adapter
	Emergency  *orders.EmergencyStop // Optional
	Journal    ports.TradeJournal    // Optional
	Logger     ports.Logger
	Location   *time.Location // Trading day boundaries
	MinBars    int            // History required before evaluating strategies
	MaxBars    int            // History kept per symbol
}

// Engine is the trading orchestrator. ProcessBar is its critical section: all
// ledger, risk and execution state is mutated only while e.mu is held.
type Engine struct {
	strategies []ports.Strategy
	indicators *indicators.Engine
	risk       *risk.RiskManager
	ledger     *portfolio.Ledger
	exec       execution.Adapter
	emergency  *orders.EmergencyStop
	journal    ports.TradeJournal
	logger     ports.Logger
	loc        *time.Location
	minBars    int
	maxBars    int

	mu        sync.Mutex
	history   map[string][]domain.Bar
	regime    *domain.Regime
	sentiment map[string]domain.Sentiment
	day       string
	lastBarAt time.Time
	counters  counters
}

type counters struct {
	barsProcessed    int
	barsSkipped      int
	entrySignals     int
	entriesSubmitted int
	entriesFilled    int
	entriesRejected  int
	riskDenials      int
	exitFailures     int
	strategyFailures int
	emergencyStops   int
}

// New validates cfg and creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for engine")
	}
	if len(cfg.Strategies) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy is required", ports.ErrConfigurationError)
	}
	if cfg.Risk == nil || cfg.Ledger == nil || cfg.Execution == nil {
		return nil, fmt.Errorf("%w: risk manager, ledger and execution adapter are required", ports.ErrConfigurationError)
	}
	if cfg.Indicators == nil {
		cfg.Indicators = indicators.NewEngine(indicators.DefaultEngineConfig())
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = defaultMinBars
	}
	for _, s := range cfg.Strategies {
		if s.RequiredBars() > cfg.MinBars {
			cfg.MinBars = s.RequiredBars()
		}
	}
	if cfg.MaxBars <= 0 {
		cfg.MaxBars = defaultMaxBars
	}
	if cfg.MaxBars < cfg.MinBars {
		return nil, fmt.Errorf("%w: max bars %d below required history %d", ports.ErrConfigurationError, cfg.MaxBars, cfg.MinBars)
	}
	return &Engine{
		strategies: cfg.Strategies,
		indicators: cfg.Indicators,
		risk:       cfg.Risk,
		ledger:     cfg.Ledger,
		exec:       cfg.Execution,
		emergency:  cfg.Emergency,
		journal:    cfg.Journal,
		logger:     cfg.Logger,
		loc:        cfg.Location,
		minBars:    cfg.MinBars,
		maxBars:    cfg.MaxBars,
		history:    make(map[string][]domain.Bar),
		sentiment:  make(map[string]domain.Sentiment),
	}, nil
}

// SetRegime sets the advisory market regime. nil clears it.
func (e *Engine) SetRegime(regime *domain.Regime) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if regime == nil {
		e.regime = nil
		return
	}
	r := *regime
	e.regime = &r
}

// SetSentiment sets the advisory sentiment for one symbol. nil clears it.
func (e *Engine) SetSentiment(symbol string, sentiment *domain.Sentiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sentiment == nil {
		delete(e.sentiment, symbol)
		return
	}
	e.sentiment[symbol] = *sentiment
}

// Warmup seeds indicator history from past bars without evaluating strategies
// or touching the ledger. Bars that would be skipped by ProcessBar are dropped.
// It returns the number of bars kept.
func (e *Engine) Warmup(ctx context.Context, bars []domain.Bar) int {
	ordered := make([]domain.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })

	e.mu.Lock()
	defer e.mu.Unlock()
	kept := 0
	for _, bar := range ordered {
		if err := e.acceptBar(bar); err == nil {
			kept++
		}
	}
	e.logger.Info(ctx, "Indicator history warmed up", map[string]interface{}{
		"bars":    len(bars),
		"kept":    kept,
		"symbols": len(e.history),
	})
	return kept
}

// ProcessBar runs the pipeline for one completed bar. A returned error means the
// bar was skipped; it is never fatal to the run.
func (e *Engine) ProcessBar(ctx context.Context, bar domain.Bar) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.counters.barsSkipped++
			err = fmt.Errorf("%w: panic processing %s: %v", ports.ErrUnknown, bar.Symbol, r)
			e.logger.Error(ctx, err, "Bar processing failed", map[string]interface{}{"symbol": bar.Symbol})
		}
	}()
	return e.processBar(ctx, bar)
}

func (e *Engine) processBar(ctx context.Context, bar domain.Bar) error {
	if err := e.acceptBar(bar); err != nil {
		e.counters.barsSkipped++
		e.logger.Warn(ctx, "Bar skipped", map[string]interface{}{
			"symbol":    bar.Symbol,
			"timestamp": bar.Timestamp,
			"reason":    err.Error(),
		})
		return err
	}
	e.counters.barsProcessed++
	e.rollDay(ctx, bar.Timestamp)
	symbol := bar.Symbol

	for _, exit := range e.exec.PollExits(ctx, bar) {
		if e.ledger.HasPosition(exit.Symbol) {
			e.bookExit(ctx, exit.Symbol, exit.Price, exit.Time, exit.Reason)
		}
	}
	for _, fill := range e.exec.Poll(ctx, bar) {
		e.bookFill(ctx, fill)
	}

	var frame *domain.Frame
	frameFor := func() *domain.Frame {
		if frame == nil && len(e.history[symbol]) >= e.minBars {
			frame = e.indicators.Compute(e.history[symbol])
		}
		return frame
	}

	if e.ledger.HasPosition(symbol) {
		e.ledger.MarkToMarket(symbol, bar.Close)
		e.checkExits(ctx, bar, frameFor)
	}
	e.ledger.RecomputeUnrealized()

	gate := e.risk.CanTrade(ctx, e.ledger, bar.Timestamp)
	if !gate.Allowed {
		e.logger.Debug(ctx, "Entries blocked", map[string]interface{}{"symbol": symbol, "reason": gate.Reason})
		return nil
	}
	if e.ledger.HasPosition(symbol) || e.exec.HasPending(symbol) {
		return nil
	}
	f := frameFor()
	if f == nil {
		e.logger.Debug(ctx, "Insufficient history for evaluation", map[string]interface{}{
			"symbol": symbol,
			"bars":   len(e.history[symbol]),
			"need":   e.minBars,
		})
		return nil
	}
	e.evaluateEntries(ctx, bar, f)
	return nil
}

// acceptBar validates bar and appends it to the symbol history.
func (e *Engine) acceptBar(bar domain.Bar) error {
	if bar.Symbol == "" || bar.Timestamp.IsZero() {
		return fmt.Errorf("%w: bar without symbol or timestamp", ports.ErrDataGap)
	}
	if bar.Close <= 0 || bar.High < bar.Low {
		return fmt.Errorf("%w: malformed bar for %s", ports.ErrDataGap, bar.Symbol)
	}
	hist := e.history[bar.Symbol]
	if n := len(hist); n > 0 && !bar.Timestamp.After(hist[n-1].Timestamp) {
		return fmt.Errorf("%w: bar for %s at %s is not after %s", ports.ErrDataGap, bar.Symbol,
			bar.Timestamp.Format(time.RFC3339), hist[n-1].Timestamp.Format(time.RFC3339))
	}
	hist = append(hist, bar)
	if len(hist) > e.maxBars {
		hist = append([]domain.Bar(nil), hist[e.trimFrom(hist):]...)
	}
	e.history[bar.Symbol] = hist
	if bar.Timestamp.After(e.lastBarAt) {
		e.lastBarAt = bar.Timestamp
	}
	return nil
}

// trimFrom returns the first index kept when hist exceeds maxBars. Bars of the
// last bar's session are never dropped so session-anchored indicators (VWAP,
// opening range) always see the session open.
func (e *Engine) trimFrom(hist []domain.Bar) int {
	cut := len(hist) - e.maxBars
	session := hist[len(hist)-1].Timestamp.In(e.loc).Format(time.DateOnly)
	for cut > 0 && hist[cut-1].Timestamp.In(e.loc).Format(time.DateOnly) == session {
		cut--
	}
	return cut
}

func (e *Engine) rollDay(ctx context.Context, at time.Time) {
	day := at.In(e.loc).Format(time.DateOnly)
	if day == e.day {
		return
	}
	if e.day != "" {
		e.logger.Info(ctx, "New trading day, daily stats reset", map[string]interface{}{
			"previousDay": e.day,
			"day":         day,
			"dailyPnL":    e.ledger.DailyPnL(),
		})
		e.ledger.ResetDailyStats()
	}
	e.day = day
}

func (e *Engine) hints(symbol string, side domain.PositionSide) domain.Hints {
	h := domain.Hints{PositionSide: side}
	if e.regime != nil {
		r := *e.regime
		h.Regime = &r
	}
	if s, ok := e.sentiment[symbol]; ok {
		sc := s
		h.Sentiment = &sc
	}
	return h
}

// checkExits applies stop, then target, then the opening strategy's exit.
func (e *Engine) checkExits(ctx context.Context, bar domain.Bar, frameFor func() *domain.Frame) {
	pos, ok := e.ledger.Position(bar.Symbol)
	if !ok {
		return
	}
	var reason domain.ExitReason
	switch {
	case pos.StopBreached(bar.Close):
		reason = domain.ExitStopLoss
	case pos.TargetReached(bar.Close):
		reason = domain.ExitTargetHit
	default:
		frame := frameFor()
		if frame == nil {
			return
		}
		strat := e.strategyByName(pos.StrategyTag)
		if strat == nil {
			return
		}
		instr := e.safeEvaluate(ctx, strat, frame, e.hints(bar.Symbol, pos.Side()))
		if (pos.Side() == domain.SideLong && instr.Signal == domain.ExitLong) ||
			(pos.Side() == domain.SideShort && instr.Signal == domain.ExitShort) {
			reason = domain.ExitStrategy
		}
	}
	if reason == "" {
		return
	}
	e.closePosition(ctx, bar.Symbol, bar.Close, bar.Timestamp, reason)
}

func (e *Engine) strategyByName(name string) ports.Strategy {
	for _, s := range e.strategies {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// safeEvaluate turns a strategy panic into a logged NO_TRADE.
func (e *Engine) safeEvaluate(ctx context.Context, s ports.Strategy, frame *domain.Frame, hints domain.Hints) (instr domain.TradeInstruction) {
	defer func() {
		if r := recover(); r != nil {
			e.counters.strategyFailures++
			err := fmt.Errorf("%w: strategy %s panicked: %v", ports.ErrUnknown, s.Name(), r)
			e.logger.Error(ctx, err, "Strategy evaluation failed", map[string]interface{}{
				"strategy": s.Name(),
				"symbol":   frame.Last().Symbol,
			})
			instr = domain.TradeInstruction{Signal: domain.NoTrade, Symbol: frame.Last().Symbol, Reason: "strategy failure", StrategyTag: s.Name()}
		}
	}()
	return s.Evaluate(frame, hints)
}

func (e *Engine) evaluateEntries(ctx context.Context, bar domain.Bar, frame *domain.Frame) {
	hints := e.hints(bar.Symbol, domain.SideFlat)
	for _, s := range e.strategies {
		instr := e.safeEvaluate(ctx, s, frame, hints)
		if !instr.Signal.IsEntry() {
			e.logger.Debug(ctx, "No entry", map[string]interface{}{
				"symbol":   bar.Symbol,
				"strategy": s.Name(),
				"reason":   instr.Reason,
			})
			continue
		}
		instr.Symbol = bar.Symbol
		if instr.StrategyTag == "" {
			instr.StrategyTag = s.Name()
		}
		e.counters.entrySignals++
		e.submitEntry(ctx, instr, bar)
		return
	}
}

func (e *Engine) submitEntry(ctx context.Context, instr domain.TradeInstruction, bar domain.Bar) {
	decision := e.risk.ValidateTrade(ctx, instr, e.ledger, bar.Timestamp)
	if !decision.Allowed {
		e.counters.riskDenials++
		return
	}
	qty := e.risk.CalculatePositionSize(instr, e.ledger)
	if qty <= 0 {
		e.counters.entriesRejected++
		e.logger.Info(ctx, "Position size is zero, entry skipped", map[string]interface{}{
			"symbol":   instr.Symbol,
			"strategy": instr.StrategyTag,
		})
		return
	}

	e.counters.entriesSubmitted++
	fill, err := e.exec.SubmitEntry(ctx, instr, qty, bar)
	if err != nil {
		e.counters.entriesRejected++
		e.logger.Error(ctx, err, "Entry execution failed", map[string]interface{}{
			"symbol":   instr.Symbol,
			"strategy": instr.StrategyTag,
			"qty":      qty,
		})
		return
	}
	if fill == nil {
		e.logger.Info(ctx, "Entry order pending", map[string]interface{}{
			"symbol":   instr.Symbol,
			"strategy": instr.StrategyTag,
			"qty":      qty,
			"reason":   instr.Reason,
		})
		return
	}
	e.bookFill(ctx, *fill)
}

func (e *Engine) bookFill(ctx context.Context, fill execution.Fill) {
	if err := e.ledger.AddPosition(fill.Position()); err != nil {
		e.counters.entriesRejected++
		e.logger.Error(ctx, err, "Failed to book entry fill", map[string]interface{}{"symbol": fill.Symbol})
		return
	}
	e.counters.entriesFilled++
	fields := map[string]interface{}{
		"symbol":   fill.Symbol,
		"side":     fill.Side,
		"qty":      fill.Quantity,
		"price":    fill.Price,
		"strategy": fill.StrategyTag,
	}
	if fill.StopLoss != nil {
		fields["stopLoss"] = *fill.StopLoss
	}
	if fill.Target != nil {
		fields["target"] = *fill.Target
	}
	e.logger.Info(ctx, "Position opened", fields)
}

// closePosition exits symbol through the adapter and books the trade.
// It reports whether the position was closed.
func (e *Engine) closePosition(ctx context.Context, symbol string, price float64, at time.Time, reason domain.ExitReason) bool {
	pos, ok := e.ledger.Position(symbol)
	if !ok {
		return false
	}
	fillPrice, err := e.exec.SubmitExit(ctx, pos, price, reason)
	if err != nil {
		e.counters.exitFailures++
		e.logger.Error(ctx, err, "Exit execution failed, position remains open", map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		})
		return false
	}
	return e.bookExit(ctx, symbol, fillPrice, at, reason)
}

// bookExit records an executed exit in the ledger and journal, then runs the
// emergency check unless the exit is already part of a flatten.
func (e *Engine) bookExit(ctx context.Context, symbol string, fillPrice float64, at time.Time, reason domain.ExitReason) bool {
	trade, err := e.ledger.ClosePosition(symbol, fillPrice, at, reason)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to book exit", map[string]interface{}{"symbol": symbol})
		return false
	}
	if e.regime != nil {
		e.ledger.AnnotateRegime(trade.ID, *e.regime)
		r := *e.regime
		trade.Regime = &r
	}
	e.logger.Info(ctx, "Position closed", map[string]interface{}{
		"symbol":     symbol,
		"price":      fillPrice,
		"pnl":        trade.PnL,
		"pnlPercent": trade.PnLPercent,
		"reason":     reason,
		"strategy":   trade.StrategyTag,
	})
	e.recordTrade(ctx, trade)

	if !flattening(reason) && e.emergency != nil &&
		e.emergency.Check(ctx, e.ledger.DailyPnL(), e.ledger.InitialCapital(), at) {
		e.triggerEmergency(ctx, at)
	}
	return true
}

func flattening(reason domain.ExitReason) bool {
	switch reason {
	case domain.ExitEmergencyStop, domain.ExitShutdown, domain.ExitEndOfBacktest:
		return true
	}
	return false
}

func (e *Engine) recordTrade(ctx context.Context, trade domain.Trade) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordTrade(ctx, &trade); err != nil {
		e.logger.Error(ctx, err, "Failed to journal trade", map[string]interface{}{"tradeID": trade.ID})
	}
}

func (e *Engine) triggerEmergency(ctx context.Context, at time.Time) {
	e.counters.emergencyStops++
	e.risk.ActivateKillSwitch(ctx, emergencyKillReason)
	cancelled := e.exec.CancelAll(ctx)
	e.logger.Warn(ctx, "Emergency stop: flattening all positions", map[string]interface{}{
		"cancelledOrders": cancelled,
		"openPositions":   len(e.ledger.Symbols()),
	})
	e.flatten(ctx, at, domain.ExitEmergencyStop)
}

// flatten closes every open position at its last marked price.
func (e *Engine) flatten(ctx context.Context, at time.Time, reason domain.ExitReason) int {
	closed := 0
	for _, symbol := range e.ledger.Symbols() {
		pos, _ := e.ledger.Position(symbol)
		if e.closePosition(ctx, symbol, pos.CurrentPrice, at, reason) {
			closed++
		}
	}
	e.ledger.RecomputeUnrealized()
	return closed
}

// Replay processes bars in global timestamp order and flattens whatever is
// still open with reason end_of_backtest. Bars need not be pre-sorted.
func (e *Engine) Replay(ctx context.Context, bars []domain.Bar) (*Result, error) {
	ordered := make([]domain.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})

	e.logger.Info(ctx, "Replay started", map[string]interface{}{
		"bars":       len(ordered),
		"strategies": len(e.strategies),
		"execution":  e.exec.Name(),
	})
	var runErr error
	var first, last time.Time
	for i, bar := range ordered {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
			break
		}
		if i == 0 {
			first = bar.Timestamp
		}
		if err := e.ProcessBar(ctx, bar); err != nil && !errors.Is(err, ports.ErrDataGap) {
			e.logger.Warn(ctx, "Replay continues after bar failure", map[string]interface{}{"error": err.Error()})
		}
		last = bar.Timestamp
	}

	e.mu.Lock()
	pending := e.exec.CancelAll(ctx)
	closed := e.flatten(ctx, e.lastBarAt, domain.ExitEndOfBacktest)
	e.mu.Unlock()
	e.logger.Info(ctx, "Replay finished", map[string]interface{}{
		"flattened":       closed,
		"cancelledOrders": pending,
	})

	res := e.Result()
	res.Summary.StartTime = first
	res.Summary.EndTime = last
	return res, runErr
}

// Run consumes bars until ctx is cancelled or the channel closes, then tears down.
// A closed channel while ctx is still live means the feed died and is reported
// as ErrFeedUnavailable.
func (e *Engine) Run(ctx context.Context, bars <-chan domain.Bar) error {
	e.logger.Info(ctx, "Engine started", map[string]interface{}{"execution": e.exec.Name()})
	for {
		select {
		case <-ctx.Done():
			e.Shutdown(context.WithoutCancel(ctx))
			return nil
		case bar, ok := <-bars:
			if !ok {
				e.Shutdown(context.WithoutCancel(ctx))
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("engine run failed: %w: bar channel closed", ports.ErrFeedUnavailable)
			}
			if err := e.ProcessBar(ctx, bar); err != nil {
				e.logger.Debug(ctx, "Bar not processed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// Shutdown cancels working orders, then flattens open positions with reason shutdown.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancelled := e.exec.CancelAll(ctx)
	at := e.lastBarAt
	if at.IsZero() {
		at = time.Now()
	}
	closed := e.flatten(ctx, at, domain.ExitShutdown)
	e.logger.Info(ctx, "Engine shut down", map[string]interface{}{
		"cancelledOrders": cancelled,
		"flattened":       closed,
		"openPositions":   len(e.ledger.Symbols()),
	})
}

// HasPosition reports whether the ledger holds an open position in symbol.
func (e *Engine) HasPosition(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.HasPosition(symbol)
}

// Admitting reports whether new entries can be accepted at all.
func (e *Engine) Admitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, _ := e.risk.KillSwitch()
	if state == risk.KillSwitchActive {
		return false
	}
	return e.emergency == nil || !e.emergency.Active()
}

// ResetKillSwitch clears the kill switch and the emergency stop. It is an operator action.
func (e *Engine) ResetKillSwitch(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.risk.ResetKillSwitch(ctx)
	if e.emergency != nil {
		e.emergency.Reset(ctx)
	}
}
