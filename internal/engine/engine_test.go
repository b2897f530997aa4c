package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intradayBot/internal/domain"
	"intradayBot/internal/execution"
	"intradayBot/internal/orders"
	"intradayBot/internal/portfolio"
	"intradayBot/internal/ports"
	"intradayBot/internal/risk"
	"intradayBot/internal/strategy/indicators"
)

type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// stubStrategy enters once the frame reaches entryAt rows and exits when exitNow is set.
// It goes long unless short is set.
type stubStrategy struct {
	name    string
	entryAt int
	stop    float64
	target  float64
	exitNow bool
	short   bool
	panics  bool
}

func (s *stubStrategy) Name() string      { return s.name }
func (s *stubStrategy) RequiredBars() int { return 1 }
func (s *stubStrategy) Evaluate(frame *domain.Frame, hints domain.Hints) domain.TradeInstruction {
	if s.panics {
		panic("indicator column missing")
	}
	symbol := frame.Last().Symbol
	if hints.PositionSide != domain.SideFlat {
		if s.exitNow {
			signal := domain.ExitLong
			if hints.PositionSide == domain.SideShort {
				signal = domain.ExitShort
			}
			return domain.TradeInstruction{Signal: signal, Symbol: symbol, Reason: "stub exit", StrategyTag: s.name}
		}
		return domain.TradeInstruction{Signal: domain.NoTrade, Symbol: symbol, StrategyTag: s.name}
	}
	if frame.Len() != s.entryAt {
		return domain.TradeInstruction{Signal: domain.NoTrade, Symbol: symbol, StrategyTag: s.name}
	}
	price := frame.Last().Close
	signal := domain.EntryLong
	if s.short {
		signal = domain.EntryShort
	}
	return domain.TradeInstruction{
		Signal:      signal,
		Symbol:      symbol,
		EntryPrice:  domain.Float(price),
		StopLoss:    domain.Float(s.stop),
		Target:      domain.Float(s.target),
		Reason:      "stub entry",
		StrategyTag: s.name,
	}
}

var sessionStart = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func bar(symbol string, at time.Time, closePrice float64) domain.Bar {
	return domain.Bar{
		Timestamp: at,
		Symbol:    symbol,
		Open:      closePrice,
		High:      closePrice + 1,
		Low:       closePrice - 1,
		Close:     closePrice,
		Volume:    1000,
	}
}

// series builds one-minute bars from start with the given closes.
func series(symbol string, start time.Time, closes ...float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = bar(symbol, start.Add(time.Duration(i)*time.Minute), c)
	}
	return out
}

func flat(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

type fixture struct {
	engine *Engine
	ledger *portfolio.Ledger
	risk   *risk.RiskManager
	logger *mockLogger
}

func newFixture(t *testing.T, exec func(ports.Logger) execution.Adapter, emergency *orders.EmergencyStop, strats ...ports.Strategy) *fixture {
	t.Helper()
	logger := &mockLogger{}
	rm, err := risk.NewRiskManager(risk.DefaultRiskConfig(100000), logger)
	require.NoError(t, err)
	ledger := portfolio.NewLedger(100000)
	if exec == nil {
		exec = func(l ports.Logger) execution.Adapter { return execution.NewSimulated(execution.FillAtClose, l) }
	}
	eng, err := New(Config{
		Strategies: strats,
		Risk:       rm,
		Ledger:     ledger,
		Execution:  exec(logger),
		Emergency:  emergency,
		Logger:     logger,
	})
	require.NoError(t, err)
	return &fixture{engine: eng, ledger: ledger, risk: rm, logger: logger}
}

func TestNew_Validation(t *testing.T) {
	logger := &mockLogger{}
	rm, err := risk.NewRiskManager(risk.DefaultRiskConfig(100000), logger)
	require.NoError(t, err)
	base := Config{
		Strategies: []ports.Strategy{&stubStrategy{name: "s"}},
		Risk:       rm,
		Ledger:     portfolio.NewLedger(100000),
		Execution:  execution.NewSimulated(execution.FillAtClose, logger),
		Logger:     logger,
	}

	noStrategies := base
	noStrategies.Strategies = nil
	_, err = New(noStrategies)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	noLedger := base
	noLedger.Ledger = nil
	_, err = New(noLedger)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	tooShort := base
	tooShort.MaxBars = 10
	_, err = New(tooShort)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(base)
	assert.NoError(t, err)
}

func TestReplay_EntryAndEndOfBacktest(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})

	res, err := f.engine.Replay(context.Background(), series("AAA", sessionStart, flat(60, 100)...))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, domain.ExitEndOfBacktest, tr.ExitReason)
	assert.Equal(t, 400.0, tr.Quantity) // floor(100000*0.02 / 5)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, sessionStart.Add(59*time.Minute), tr.ExitTime)
	assert.Empty(t, res.Portfolio.Positions)
	assert.Equal(t, 100000.0, res.Portfolio.Cash)
	assert.Equal(t, 60, res.Summary.BarsProcessed)
	assert.Equal(t, 1, res.Summary.EntriesFilled)
	assert.Equal(t, 1, res.Summary.TotalTrades)
	assert.Equal(t, sessionStart, res.Summary.StartTime)
}

func TestReplay_ExitPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		short     bool
		lastClose float64
		exitNow   bool
		reason    domain.ExitReason
		pnl       float64
	}{
		{"stop beats strategy exit", false, 94, true, domain.ExitStopLoss, -2400},
		{"target beats strategy exit", false, 111, true, domain.ExitTargetHit, 4400},
		{"strategy exit", false, 101, true, domain.ExitStrategy, 400},
		{"held to end", false, 101, false, domain.ExitEndOfBacktest, 400},
		{"short stop beats strategy exit", true, 106, true, domain.ExitStopLoss, -2400},
		{"short target beats strategy exit", true, 89, true, domain.ExitTargetHit, 4400},
		{"short strategy exit", true, 99, true, domain.ExitStrategy, 400},
		{"short held to end", true, 99, false, domain.ExitEndOfBacktest, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110, exitNow: tt.exitNow}
			if tt.short {
				strat.short, strat.stop, strat.target = true, 105, 90
			}
			f := newFixture(t, nil, nil, strat)
			closes := append(flat(50, 100), tt.lastClose)

			res, err := f.engine.Replay(context.Background(), series("AAA", sessionStart, closes...))
			require.NoError(t, err)
			require.Len(t, res.Trades, 1)
			assert.Equal(t, tt.reason, res.Trades[0].ExitReason)
			assert.Equal(t, tt.lastClose, res.Trades[0].ExitPrice)
			assert.InDelta(t, tt.pnl, res.Trades[0].PnL, 1e-9)
		})
	}
}

func TestReplay_FirstEligibleStrategyWins(t *testing.T) {
	tests := []struct {
		name     string
		firstAt  int
		secondAt int
		winner   string
	}{
		{"both signal on the same bar", 50, 50, "first"},
		{"only the second signals", 0, 50, "second"},
		{"first signals later", 52, 50, "second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil,
				&stubStrategy{name: "first", entryAt: tt.firstAt, stop: 95, target: 110},
				&stubStrategy{name: "second", entryAt: tt.secondAt, stop: 95, target: 110})

			res, err := f.engine.Replay(context.Background(), series("AAA", sessionStart, flat(55, 100)...))
			require.NoError(t, err)
			require.Len(t, res.Trades, 1)
			assert.Equal(t, tt.winner, res.Trades[0].StrategyTag)
			assert.Equal(t, 1, res.Summary.EntrySignals)
			assert.Equal(t, 1, res.Summary.EntriesFilled)
		})
	}
}

func TestReplay_Deterministic(t *testing.T) {
	build := func() []domain.Bar {
		a := series("AAA", sessionStart, append(flat(50, 100), 94, 100, 100)...)
		b := series("BBB", sessionStart, append(flat(50, 50), 52, 56, 50)...)
		// interleave out of order
		out := make([]domain.Bar, 0, len(a)+len(b))
		for i := len(a) - 1; i >= 0; i-- {
			out = append(out, b[i], a[i])
		}
		return out
	}
	run := func() *Result {
		f := newFixture(t, nil, nil,
			&stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 55})
		res, err := f.engine.Replay(context.Background(), build())
		require.NoError(t, err)
		return res
	}

	first := run()
	second := run()
	require.NotEmpty(t, first.Trades)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Portfolio, second.Portfolio)
	assert.Equal(t, 0, first.Summary.BarsSkipped)
}

func TestReplay_KillSwitchBlocksEntries(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})
	f.risk.ActivateKillSwitch(context.Background(), "manual halt")
	assert.False(t, f.engine.Admitting())

	res, err := f.engine.Replay(context.Background(), series("AAA", sessionStart, flat(60, 100)...))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Summary.EntrySignals)

	f.engine.ResetKillSwitch(context.Background())
	assert.True(t, f.engine.Admitting())
}

func TestReplay_StrategyPanicIsolated(t *testing.T) {
	f := newFixture(t, nil, nil,
		&stubStrategy{name: "broken", panics: true},
		&stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})

	res, err := f.engine.Replay(context.Background(), series("AAA", sessionStart, flat(55, 100)...))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "stub", res.Trades[0].StrategyTag)
	assert.Greater(t, res.Summary.StrategyFailures, 0)
	assert.Contains(t, f.logger.errorMsgs, "Strategy evaluation failed")
}

func TestReplay_EmergencyStopFlattens(t *testing.T) {
	logger := &mockLogger{}
	stop := orders.NewEmergencyStop(0.02, logger)
	f := newFixture(t, nil, stop, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})

	bars := append(series("AAA", sessionStart, append(flat(50, 100), 94)...),
		series("BBB", sessionStart, append(flat(50, 100), 100, 100)...)...)
	res, err := f.engine.Replay(context.Background(), bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, "AAA", res.Trades[0].Symbol)
	assert.Equal(t, domain.ExitStopLoss, res.Trades[0].ExitReason)
	assert.Equal(t, "BBB", res.Trades[1].Symbol)
	assert.Equal(t, domain.ExitEmergencyStop, res.Trades[1].ExitReason)
	assert.True(t, stop.Active())
	assert.False(t, f.engine.Admitting())
	assert.Equal(t, 1, res.Summary.EmergencyStops)
	assert.Equal(t, 1, res.Summary.KillSwitchLatches)

	state, reason := f.risk.KillSwitch()
	assert.Equal(t, risk.KillSwitchActive, state)
	assert.Equal(t, emergencyKillReason, reason)
}

func TestReplay_NextOpenFill(t *testing.T) {
	nextOpen := func(l ports.Logger) execution.Adapter { return execution.NewSimulated(execution.FillNextOpen, l) }
	f := newFixture(t, nextOpen, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})

	bars := series("AAA", sessionStart, append(flat(50, 100), 102, 103)...)
	bars[50].Open = 101
	res, err := f.engine.Replay(context.Background(), bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, 101.0, tr.EntryPrice)
	assert.Equal(t, bars[50].Timestamp, tr.EntryTime)
	assert.Equal(t, 103.0, tr.ExitPrice)
	assert.Equal(t, domain.ExitEndOfBacktest, tr.ExitReason)
}

func TestReplay_PendingCancelledAtEnd(t *testing.T) {
	nextOpen := func(l ports.Logger) execution.Adapter { return execution.NewSimulated(execution.FillNextOpen, l) }
	f := newFixture(t, nextOpen, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})

	res, err := f.engine.Replay(context.Background(), series("AAA", sessionStart, flat(50, 100)...))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, f.engine.Status().PendingOrders)
}

func TestProcessBar_DataGap(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub"})
	ctx := context.Background()

	require.NoError(t, f.engine.ProcessBar(ctx, bar("AAA", sessionStart.Add(time.Minute), 100)))

	err := f.engine.ProcessBar(ctx, bar("AAA", sessionStart, 100))
	assert.ErrorIs(t, err, ports.ErrDataGap)

	err = f.engine.ProcessBar(ctx, bar("AAA", sessionStart.Add(2*time.Minute), 0))
	assert.ErrorIs(t, err, ports.ErrDataGap)

	// other symbols are unaffected
	assert.NoError(t, f.engine.ProcessBar(ctx, bar("BBB", sessionStart, 100)))
	assert.Equal(t, 2, f.engine.Result().Summary.BarsSkipped)
}

func TestProcessBar_DailyReset(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})
	ctx := context.Background()

	for _, b := range series("AAA", sessionStart, append(flat(50, 100), 94)...) {
		require.NoError(t, f.engine.ProcessBar(ctx, b))
	}
	assert.Equal(t, 1, f.ledger.DailyTrades())
	assert.Equal(t, 1, f.ledger.DailyLosingTrades())
	assert.InDelta(t, -2400, f.ledger.DailyPnL(), 1e-9)

	require.NoError(t, f.engine.ProcessBar(ctx, bar("AAA", sessionStart.AddDate(0, 0, 1), 100)))
	assert.Equal(t, 0, f.ledger.DailyTrades())
	assert.Equal(t, 0.0, f.ledger.DailyPnL())
	assert.Len(t, f.ledger.Trades(), 1)
	assert.Contains(t, f.logger.infoMsgs, "New trading day, daily stats reset")
}

func TestRun_FeedClosedShutsDown(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})
	ch := make(chan domain.Bar, 64)
	for _, b := range series("AAA", sessionStart, flat(52, 100)...) {
		ch <- b
	}
	close(ch)

	err := f.engine.Run(context.Background(), ch)
	assert.True(t, errors.Is(err, ports.ErrFeedUnavailable))

	trades := f.ledger.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, domain.ExitShutdown, trades[0].ExitReason)
	assert.Empty(t, f.ledger.Symbols())
}

func TestRun_ContextCancelled(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.engine.Run(ctx, make(chan domain.Bar))
	assert.NoError(t, err)
	assert.Contains(t, f.logger.infoMsgs, "Engine shut down")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})
	ctx := context.Background()
	for _, b := range series("AAA", sessionStart, flat(50, 100)...) {
		require.NoError(t, f.engine.ProcessBar(ctx, b))
	}
	regime := domain.RegimeRangeBound
	f.engine.SetRegime(&regime)

	st := f.engine.Status()
	assert.Equal(t, "simulated_close", st.Execution)
	require.Len(t, st.Positions, 1)
	assert.Equal(t, 60000.0, st.Cash)
	assert.Equal(t, 100000.0, st.TotalValue)
	assert.Equal(t, "INACTIVE", st.KillSwitch)
	assert.False(t, st.EmergencyStop)
	require.NotNil(t, st.Regime)
	assert.Equal(t, domain.RegimeRangeBound, *st.Regime)
	assert.Equal(t, 3000.0, st.Risk.DailyLossLimit)
}

func TestWarmup_SeedsHistoryWithoutTrading(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})
	ctx := context.Background()

	bars := series("AAA", sessionStart, flat(50, 100)...)
	warm := append([]domain.Bar{}, bars[:49]...)
	warm = append(warm, domain.Bar{Symbol: "AAA", Timestamp: sessionStart.Add(-time.Minute)}) // malformed
	assert.Equal(t, 49, f.engine.Warmup(ctx, warm))
	assert.False(t, f.ledger.HasPosition("AAA"))
	assert.Zero(t, f.engine.Result().Summary.BarsProcessed)

	require.NoError(t, f.engine.ProcessBar(ctx, bars[49]))
	assert.True(t, f.ledger.HasPosition("AAA"), "the 50th bar completes the frame the stub enters on")

	err := f.engine.ProcessBar(ctx, bars[10])
	assert.ErrorIs(t, err, ports.ErrDataGap, "warmed bars count for ordering")
}

// venueStopAdapter reports a stop filled by the venue at stopAt.
type venueStopAdapter struct {
	*execution.Simulated
	stopAt    time.Time
	stopPrice float64
	exits     int
}

func (a *venueStopAdapter) PollExits(ctx context.Context, b domain.Bar) []execution.Exit {
	if !b.Timestamp.Equal(a.stopAt) {
		return nil
	}
	return []execution.Exit{{OrderID: "S1", Symbol: b.Symbol, Price: a.stopPrice, Time: b.Timestamp, Reason: domain.ExitStopLoss}}
}

func (a *venueStopAdapter) SubmitExit(ctx context.Context, pos domain.Position, price float64, reason domain.ExitReason) (float64, error) {
	a.exits++
	return a.Simulated.SubmitExit(ctx, pos, price, reason)
}

func TestReplay_VenueStopClosesPosition(t *testing.T) {
	adapter := &venueStopAdapter{stopAt: sessionStart.Add(50 * time.Minute), stopPrice: 95.5}
	f := newFixture(t, func(l ports.Logger) execution.Adapter {
		adapter.Simulated = execution.NewSimulated(execution.FillAtClose, l)
		return adapter
	}, nil, &stubStrategy{name: "stub", entryAt: 50, stop: 95, target: 110})

	// 97 stays above the engine's stop; only the venue saw the trigger.
	res, err := f.engine.Replay(context.Background(), series("AAA", sessionStart, append(flat(50, 100), 97, 97, 97)...))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, domain.ExitStopLoss, tr.ExitReason)
	assert.Equal(t, 95.5, tr.ExitPrice)
	assert.Equal(t, adapter.stopAt, tr.ExitTime)
	assert.InDelta(t, -1800, tr.PnL, 1e-9)
	assert.Zero(t, adapter.exits, "no closing order for a position the venue already closed")
	assert.Empty(t, res.Portfolio.Positions)
}

func TestFlatten_DoesNotTripEmergencyStop(t *testing.T) {
	tests := []struct {
		name   string
		reason domain.ExitReason
		run    func(t *testing.T, f *fixture, bars []domain.Bar) []domain.Trade
	}{
		{
			name:   "shutdown",
			reason: domain.ExitShutdown,
			run: func(t *testing.T, f *fixture, bars []domain.Bar) []domain.Trade {
				ctx := context.Background()
				for _, b := range bars {
					require.NoError(t, f.engine.ProcessBar(ctx, b))
				}
				f.engine.Shutdown(ctx)
				return f.ledger.Trades()
			},
		},
		{
			name:   "end of backtest",
			reason: domain.ExitEndOfBacktest,
			run: func(t *testing.T, f *fixture, bars []domain.Bar) []domain.Trade {
				res, err := f.engine.Replay(context.Background(), bars)
				require.NoError(t, err)
				return res.Trades
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 200 units per symbol, each marked 600 down; the 1000 threshold is crossed by the second close.
			stop := orders.NewEmergencyStop(0.01, &mockLogger{})
			f := newFixture(t, nil, stop, &stubStrategy{name: "stub", entryAt: 50, stop: 90, target: 120})
			var bars []domain.Bar
			for _, symbol := range []string{"AAA", "BBB", "CCC"} {
				bars = append(bars, series(symbol, sessionStart, append(flat(50, 100), 97)...)...)
			}
			if tt.reason == domain.ExitShutdown {
				sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
			}

			trades := tt.run(t, f, bars)
			require.Len(t, trades, 3)
			for _, tr := range trades {
				assert.Equal(t, tt.reason, tr.ExitReason, tr.Symbol)
			}
			assert.False(t, stop.Active())
			assert.True(t, f.engine.Admitting())
		})
	}
}

func TestProcessBar_HistoryKeepsSessionOpen(t *testing.T) {
	f := newFixture(t, nil, nil, &stubStrategy{name: "stub"})
	ctx := context.Background()

	closes := flat(15, 100)
	for i := 0; i < 285; i++ {
		closes = append(closes, 101+float64(i)*0.1)
	}
	for _, b := range series("AAA", sessionStart, closes...) {
		require.NoError(t, f.engine.ProcessBar(ctx, b))
	}

	hist := f.engine.history["AAA"]
	require.Len(t, hist, 300, "a session longer than max bars is kept whole")
	assert.Equal(t, sessionStart, hist[0].Timestamp)
	high, low, ok := indicators.ORBLevels(hist, 15, 1, time.UTC)
	require.True(t, ok)
	assert.Equal(t, 101.0, high)
	assert.Equal(t, 99.0, low)

	require.NoError(t, f.engine.ProcessBar(ctx, bar("AAA", sessionStart.AddDate(0, 0, 1), 100)))
	hist = f.engine.history["AAA"]
	assert.Len(t, hist, defaultMaxBars, "older sessions are trimmed to max bars")
	assert.Equal(t, sessionStart.Add(101*time.Minute), hist[0].Timestamp)
}
