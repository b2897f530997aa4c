package feed

import (
	"context"
	"sort"
	"time"

	"intradayBot/internal/domain"
)

// Replay delivers a fixed bar set in timestamp order, oldest first. Ties are
// broken by symbol. A positive Pace sleeps between bars to simulate a live session.
type Replay struct {
	bars []domain.Bar
	Pace time.Duration
}

// NewReplay creates a replay feed over a copy of bars.
func NewReplay(bars []domain.Bar) *Replay {
	ordered := make([]domain.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})
	return &Replay{bars: ordered}
}

// Len returns the number of bars the feed will deliver.
func (r *Replay) Len() int {
	return len(r.bars)
}

// Run implements ports.MarketDataFeed. It returns nil once every bar has been pushed.
func (r *Replay) Run(ctx context.Context, out chan<- domain.Bar) error {
	for _, bar := range r.bars {
		select {
		case out <- bar:
		case <-ctx.Done():
			return nil
		}
		if r.Pace > 0 {
			select {
			case <-time.After(r.Pace):
			case <-ctx.Done():
				return nil
			}
		}
	}
	return nil
}
