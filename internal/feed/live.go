package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

// DefaultBufferSize is the bar channel capacity used when none is configured.
const DefaultBufferSize = 256

// LiveConfig configures a tick-driven feed.
type LiveConfig struct {
	Symbols  []string
	Interval time.Duration
	Volume   VolumeMode
	Logger   ports.Logger
}

// Live aggregates ticks from a TickSource into bars and pushes each completed bar
// onto the engine's channel. Completed bars are delivered in completion order.
type Live struct {
	source  ports.TickSource
	agg     *Aggregator
	symbols []string
	logger  ports.Logger

	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewLive creates a live feed over source.
func NewLive(source ports.TickSource, cfg LiveConfig) (*Live, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: tick source is required", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for live feed")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ports.ErrConfigurationError)
	}
	agg, err := NewAggregator(cfg.Interval, cfg.Volume)
	if err != nil {
		return nil, err
	}
	return &Live{source: source, agg: agg, symbols: cfg.Symbols, logger: cfg.Logger}, nil
}

// Run implements ports.MarketDataFeed. It returns nil when ctx is cancelled and
// ErrFeedUnavailable when the tick stream stops on its own.
func (l *Live) Run(ctx context.Context, out chan<- domain.Bar) error {
	handler := func(tick domain.Tick) {
		bar, ok := l.agg.AddTick(tick)
		if !ok {
			return
		}
		select {
		case out <- bar:
			l.delivered.Add(1)
		case <-ctx.Done():
			l.dropped.Add(1)
		}
	}
	errHandler := func(err error) {
		l.logger.Error(ctx, err, "Live feed: tick stream error", map[string]interface{}{"symbols": l.symbols})
	}

	done, err := l.source.StreamTicks(ctx, l.symbols, handler, errHandler)
	if err != nil {
		return fmt.Errorf("live feed failed: %w: %w", ports.ErrFeedUnavailable, err)
	}
	l.logger.Info(ctx, "Live feed started", map[string]interface{}{
		"symbols":  l.symbols,
		"interval": l.agg.Interval().String(),
	})

	select {
	case <-ctx.Done():
		<-done
		l.logger.Info(ctx, "Live feed stopped", map[string]interface{}{"delivered": l.delivered.Load()})
		return nil
	case <-done:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("live feed failed: %w: tick stream closed", ports.ErrFeedUnavailable)
	}
}

// Delivered returns the number of bars pushed to the engine.
func (l *Live) Delivered() int64 {
	return l.delivered.Load()
}

// Aggregator exposes the underlying aggregator.
func (l *Live) Aggregator() *Aggregator {
	return l.agg
}
