package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"intradayBot/config"
	"intradayBot/internal/adapters/healthserver"
	"intradayBot/internal/domain"
	"intradayBot/internal/engine"
	"intradayBot/internal/ports"
)

const (
	warmupBars     = 200 // History requested per symbol before the first live bar
	statusInterval = time.Minute
)

// TradingService runs the engine against a bar feed until the process is
// signalled or the feed dies, then tears down and writes the run report.
type TradingService struct {
	cfg     *config.Config
	logger  ports.Logger
	comps   *Components
	feed    ports.MarketDataFeed
	history ports.BarHistorySource // Optional warm-up source
	runID   string
	now     func() time.Time
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	comps *Components,
	feed ports.MarketDataFeed,
	history ports.BarHistorySource,
	runID string,
) (*TradingService, error) {
	if cfg == nil || logger == nil || comps == nil || comps.Engine == nil || feed == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.FeedBufferSize <= 0 {
		return nil, fmt.Errorf("%w: feed buffer size must be positive", ports.ErrConfigurationError)
	}
	if runID == "" {
		runID = fmt.Sprintf("%s_%s", cfg.Mode, time.Now().UTC().Format("20060102T150405"))
	}
	return &TradingService{
		cfg:     cfg,
		logger:  logger,
		comps:   comps,
		feed:    feed,
		history: history,
		runID:   runID,
		now:     time.Now,
	}, nil
}

// Engine returns the engine the service drives.
func (s *TradingService) Engine() *engine.Engine {
	return s.comps.Engine
}

// Start runs the session. It returns nil on a signal, a cancelled ctx or a
// feed that finished cleanly, and ErrFeedUnavailable when the feed dies.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{
		"mode":    string(s.cfg.Mode),
		"symbols": s.cfg.Symbols,
		"runID":   s.runID,
	})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	eng := s.comps.Engine
	s.warmup(ctx)
	if s.comps.Router != nil {
		s.comps.Router.SyncPositions(ctx, eng.HasPosition)
	}

	var wg sync.WaitGroup
	if s.cfg.HealthAddr != "" {
		hs, err := healthserver.New(eng, healthserver.Config{Addr: s.cfg.HealthAddr, Logger: s.logger})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hs.Run(ctx); err != nil {
				s.logger.Error(ctx, err, "Health server stopped")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reportStatus(ctx)
	}()

	bars := make(chan domain.Bar, s.cfg.FeedBufferSize)
	feedErr := make(chan error, 1)
	go func() {
		err := s.feed.Run(ctx, bars)
		close(bars)
		feedErr <- err
	}()

	runErr := eng.Run(ctx, bars)
	cancel()
	fErr := <-feedErr
	wg.Wait()

	res := eng.Result()
	if _, err := WriteReport(context.WithoutCancel(ctx), s.logger, s.cfg.ReportDir, s.runID, res); err != nil {
		s.logger.Warn(ctx, "Session ended without a report", map[string]interface{}{"error": err.Error()})
	}
	s.logger.Info(ctx, "Trading session summary", map[string]interface{}{
		"trades":       res.Summary.TotalTrades,
		"wins":         res.Summary.WinningTrades,
		"losses":       res.Summary.LosingTrades,
		"finalCapital": res.Summary.FinalCapital,
		"returnPct":    res.Summary.TotalReturnPct,
	})

	switch {
	case fErr != nil:
		return fErr
	case errors.Is(runErr, ports.ErrFeedUnavailable):
		// The feed returned nil: a finite source ran out of bars.
		return nil
	default:
		return runErr
	}
}

// warmup seeds indicator history so strategies can evaluate on the first live bar.
func (s *TradingService) warmup(ctx context.Context) {
	if s.history == nil {
		return
	}
	end := s.now()
	start := end.Add(-time.Duration(warmupBars) * s.cfg.BarInterval)
	var all []domain.Bar
	for _, symbol := range s.cfg.Symbols {
		bars, err := s.history.GetBarsRange(ctx, symbol, s.cfg.BarInterval, start, end)
		if err != nil {
			s.logger.Error(ctx, err, "Warm-up history unavailable, starting cold", map[string]interface{}{"symbol": symbol})
			continue
		}
		// The newest kline may still be forming.
		for _, b := range bars {
			if !b.Timestamp.Add(s.cfg.BarInterval).After(end) {
				all = append(all, b)
			}
		}
	}
	if len(all) > 0 {
		s.comps.Engine.Warmup(ctx, all)
	}
}

func (s *TradingService) reportStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.comps.Engine.Status()
			s.logger.Info(ctx, "Engine status", map[string]interface{}{
				"cash":          st.Cash,
				"totalValue":    st.TotalValue,
				"positions":     len(st.Positions),
				"pendingOrders": st.PendingOrders,
				"killSwitch":    st.KillSwitch,
				"emergencyStop": st.EmergencyStop,
				"ordersToday":   st.OrdersToday,
				"dailyPnL":      st.Risk.DailyPnL,
			})
		}
	}
}
