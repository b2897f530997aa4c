package ports

import (
	"context"
	"time"

	"intradayBot/internal/domain"
)

// MarketDataFeed delivers completed bars to a single consumer.
type MarketDataFeed interface {
	// Run pushes bars onto out until ctx is cancelled or the feed fails permanently.
	// It does not close out.
	Run(ctx context.Context, out chan<- domain.Bar) error
}

// TickSource streams raw trade prints for a set of symbols.
type TickSource interface {
	// StreamTicks starts streaming and returns a channel closed when the stream
	// has stopped for good (context cancelled or reconnect attempts exhausted).
	StreamTicks(ctx context.Context, symbols []string, handler func(tick domain.Tick), errHandler func(err error)) (doneCh <-chan struct{}, err error)
}

// BarHistorySource loads historical bars, used for warmup and offline replay data.
type BarHistorySource interface {
	GetBarsRange(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.Bar, error)
}
