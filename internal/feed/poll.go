package feed

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

const (
	defaultPollDelay   = 2 * time.Second
	defaultMaxFailures = 5
)

// PollConfig configures a polling feed.
type PollConfig struct {
	Symbols     []string
	Interval    time.Duration
	Delay       time.Duration // Wait after each bar boundary before asking for the bar
	MaxFailures int           // Consecutive rounds with every symbol failing before giving up
	Logger      ports.Logger
}

// Poll asks a BarHistorySource for each completed bar shortly after its
// interval ends. It serves venues whose bars are published by REST rather
// than built from a tick stream.
type Poll struct {
	source      ports.BarHistorySource
	symbols     []string
	interval    time.Duration
	delay       time.Duration
	maxFailures int
	logger      ports.Logger
	now         func() time.Time

	last      map[string]time.Time // Newest bar delivered per symbol
	delivered atomic.Int64
}

// NewPoll creates a polling feed over source.
func NewPoll(source ports.BarHistorySource, cfg PollConfig) (*Poll, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: bar history source is required", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for poll feed")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ports.ErrConfigurationError)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: bar interval must be positive", ports.ErrConfigurationError)
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaultPollDelay
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	return &Poll{
		source:      source,
		symbols:     cfg.Symbols,
		interval:    cfg.Interval,
		delay:       cfg.Delay,
		maxFailures: cfg.MaxFailures,
		logger:      cfg.Logger,
		now:         time.Now,
		last:        make(map[string]time.Time),
	}, nil
}

// Run implements ports.MarketDataFeed. It returns nil when ctx is cancelled and
// ErrFeedUnavailable after MaxFailures rounds in a row where no symbol could be fetched.
func (p *Poll) Run(ctx context.Context, out chan<- domain.Bar) error {
	p.logger.Info(ctx, "Poll feed started", map[string]interface{}{
		"symbols":  p.symbols,
		"interval": p.interval.String(),
	})
	failures := 0
	for {
		boundary := p.now().Truncate(p.interval).Add(p.interval)
		timer := time.NewTimer(boundary.Add(p.delay).Sub(p.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info(ctx, "Poll feed stopped", map[string]interface{}{"delivered": p.delivered.Load()})
			return nil
		case <-timer.C:
		}

		bars, failed := p.fetch(ctx, boundary)
		if failed == len(p.symbols) {
			failures++
			if failures >= p.maxFailures {
				return fmt.Errorf("poll feed failed: %w: %d rounds without data", ports.ErrFeedUnavailable, failures)
			}
		} else {
			failures = 0
		}
		for _, bar := range bars {
			select {
			case out <- bar:
				p.delivered.Add(1)
				p.last[bar.Symbol] = bar.Timestamp
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// fetch returns the bars that completed by boundary and were not delivered yet,
// in timestamp order, and the number of symbols whose request failed.
func (p *Poll) fetch(ctx context.Context, boundary time.Time) ([]domain.Bar, int) {
	var out []domain.Bar
	failed := 0
	for _, symbol := range p.symbols {
		last, seen := p.last[symbol]
		from := boundary.Add(-p.interval)
		if seen {
			from = last.Add(p.interval)
		}
		bars, err := p.source.GetBarsRange(ctx, symbol, p.interval, from, boundary.Add(-time.Nanosecond))
		if err != nil {
			failed++
			p.logger.Warn(ctx, "Poll feed: bar request failed", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
			continue
		}
		for _, b := range bars {
			if seen && !b.Timestamp.After(last) {
				continue
			}
			if b.Timestamp.Add(p.interval).After(boundary) {
				continue // still forming
			}
			b.Symbol = symbol
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, failed
}

// Delivered returns the number of bars pushed to the engine.
func (p *Poll) Delivered() int64 {
	return p.delivered.Load()
}
