package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intradayBot/config"
	"intradayBot/internal/domain"
	"intradayBot/internal/execution"
	"intradayBot/internal/feed"
	"intradayBot/internal/ports"
	"intradayBot/internal/risk"
	"intradayBot/internal/strategy/strategies"
)

// --- Mocks ---

type mockLogger struct {
	mu       sync.Mutex
	infoMsgs []string
	warnMsgs []string
	errMsgs  []string
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
	m.errMsgs = append(m.errMsgs, msg)
}

func (m *mockLogger) hasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.infoMsgs {
		if s == msg {
			return true
		}
	}
	return false
}

type mockBroker struct {
	positions []ports.BrokerPosition
}

func (m *mockBroker) Name() string { return "mock" }
func (m *mockBroker) PlaceOrder(ctx context.Context, req ports.OrderRequest) (string, error) {
	return "", errors.New("not used")
}
func (m *mockBroker) OrderStatus(ctx context.Context, id string) (*ports.OrderUpdate, error) {
	return nil, errors.New("not used")
}
func (m *mockBroker) CancelOrder(ctx context.Context, id string) error { return nil }
func (m *mockBroker) Positions(ctx context.Context) ([]ports.BrokerPosition, error) {
	return m.positions, nil
}

type mockHistory struct {
	bars []domain.Bar
	err  error
}

func (m *mockHistory) GetBarsRange(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.Bar, error) {
	return m.bars, m.err
}

type failingFeed struct{}

func (failingFeed) Run(ctx context.Context, out chan<- domain.Bar) error {
	return ports.ErrFeedUnavailable
}

// --- Helpers ---

var day = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

func testConfig(t *testing.T, mode config.Mode) *config.Config {
	t.Helper()
	return &config.Config{
		Mode:                  mode,
		Broker:                "binance",
		Symbols:               []string{"AAA"},
		BarInterval:           time.Minute,
		InitialCapital:        100000,
		MaxRiskPerTrade:       0.02,
		MaxDailyLoss:          0.03,
		MaxLosingTradesPerDay: 3,
		MinMinutesAfterOpen:   15,
		MarketOpen:            risk.ClockTime{Hour: 9, Minute: 15},
		MarketClose:           risk.ClockTime{Hour: 15, Minute: 30},
		CutoffTime:            risk.ClockTime{Hour: 14, Minute: 45},
		Location:              time.UTC,
		EmergencyStopLossPct:  0.05,
		MaxOrdersPerDay:       10,
		Strategies:            []strategies.Kind{strategies.KindEMATrend},
		StrategyParams:        strategies.DefaultParams(),
		FillPolicy:            execution.FillAtClose,
		ReportDir:             t.TempDir(),
		FeedBufferSize:        8,
		BrokerTimeout:         time.Second,
	}
}

func flatBars(symbol string, start time.Time, n int, price float64) []domain.Bar {
	out := make([]domain.Bar, n)
	for i := range out {
		out[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Symbol:    symbol,
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

// --- Tests ---

func TestBuildEngine_Simulated(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeBacktest, config.ModePaper} {
		comps, err := BuildEngine(testConfig(t, mode), &mockLogger{}, nil, nil)
		require.NoError(t, err, mode)
		assert.Nil(t, comps.Router)
		assert.Nil(t, comps.Emergency)
		assert.Equal(t, "simulated_close", comps.Execution.Name())
		assert.Equal(t, 100000.0, comps.Ledger.Cash())
	}
}

func TestBuildEngine_Live(t *testing.T) {
	cfg := testConfig(t, config.ModeLive)

	_, err := BuildEngine(cfg, &mockLogger{}, nil, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	comps, err := BuildEngine(cfg, &mockLogger{}, &mockBroker{}, nil)
	require.NoError(t, err)
	require.NotNil(t, comps.Router)
	require.NotNil(t, comps.Emergency)
	assert.Equal(t, 0.05, comps.Emergency.Threshold())
	assert.Equal(t, "broker_mock", comps.Engine.Status().Execution)
}

func TestBuildEngine_InvalidRisk(t *testing.T) {
	cfg := testConfig(t, config.ModeBacktest)
	cfg.MaxRiskPerTrade = 0
	_, err := BuildEngine(cfg, &mockLogger{}, nil, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestNewTradingService_Validation(t *testing.T) {
	cfg := testConfig(t, config.ModePaper)
	comps, err := BuildEngine(cfg, &mockLogger{}, nil, nil)
	require.NoError(t, err)

	_, err = NewTradingService(cfg, &mockLogger{}, comps, nil, nil, "")
	assert.Error(t, err)

	cfg.FeedBufferSize = 0
	_, err = NewTradingService(cfg, &mockLogger{}, comps, feed.NewReplay(nil), nil, "")
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestTradingService_FiniteFeedWritesReport(t *testing.T) {
	cfg := testConfig(t, config.ModePaper)
	logger := &mockLogger{}
	comps, err := BuildEngine(cfg, logger, nil, nil)
	require.NoError(t, err)

	svc, err := NewTradingService(cfg, logger, comps, feed.NewReplay(flatBars("AAA", day, 60, 100)), nil, "paper_test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	assert.Equal(t, 60, svc.Engine().Result().Summary.BarsProcessed)
	assert.True(t, logger.hasInfo("Engine shut down"))
	_, err = os.Stat(filepath.Join(cfg.ReportDir, "paper_test_summary.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.ReportDir, "paper_test_trades.csv"))
	assert.NoError(t, err)
}

func TestTradingService_FeedFailure(t *testing.T) {
	cfg := testConfig(t, config.ModePaper)
	logger := &mockLogger{}
	comps, err := BuildEngine(cfg, logger, nil, nil)
	require.NoError(t, err)

	svc, err := NewTradingService(cfg, logger, comps, failingFeed{}, nil, "fail")
	require.NoError(t, err)
	err = svc.Start(context.Background())
	assert.ErrorIs(t, err, ports.ErrFeedUnavailable)
}

func TestTradingService_Warmup(t *testing.T) {
	cfg := testConfig(t, config.ModePaper)
	logger := &mockLogger{}
	comps, err := BuildEngine(cfg, logger, nil, nil)
	require.NoError(t, err)

	history := &mockHistory{bars: flatBars("AAA", day, 30, 100)}
	svc, err := NewTradingService(cfg, logger, comps, feed.NewReplay(nil), history, "warm")
	require.NoError(t, err)
	// The last bar opened at 09:44 and is still forming at 09:44:30.
	svc.now = func() time.Time { return day.Add(29*time.Minute + 30*time.Second) }

	svc.warmup(context.Background())
	assert.True(t, logger.hasInfo("Indicator history warmed up"))

	eng := comps.Engine
	assert.ErrorIs(t, eng.ProcessBar(context.Background(), history.bars[28]), ports.ErrDataGap)
	assert.NoError(t, eng.ProcessBar(context.Background(), history.bars[29]), "forming bar was not seeded")
}

func TestTradingService_WarmupFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t, config.ModePaper)
	logger := &mockLogger{}
	comps, err := BuildEngine(cfg, logger, nil, nil)
	require.NoError(t, err)

	svc, err := NewTradingService(cfg, logger, comps, feed.NewReplay(nil), &mockHistory{err: ports.ErrBroker}, "warm")
	require.NoError(t, err)
	svc.warmup(context.Background())
	assert.Len(t, logger.errMsgs, 1)
}

func TestTradingService_LiveSyncsPositions(t *testing.T) {
	cfg := testConfig(t, config.ModeLive)
	logger := &mockLogger{}
	broker := &mockBroker{positions: []ports.BrokerPosition{{Symbol: "AAA", Quantity: 5, AveragePrice: 100}}}
	comps, err := BuildEngine(cfg, logger, broker, nil)
	require.NoError(t, err)

	svc, err := NewTradingService(cfg, logger, comps, feed.NewReplay(nil), nil, "live")
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Contains(t, logger.warnMsgs, "SyncPositions: Broker position not in local portfolio")
}
