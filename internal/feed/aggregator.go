// Package feed turns raw market data into completed bars for the engine.
package feed

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

// VolumeMode says how tick volumes are read.
type VolumeMode string

const (
	// VolumeTradeSize treats each tick volume as the size of one trade.
	VolumeTradeSize VolumeMode = "trade_size"
	// VolumeCumulative treats tick volume as a running session total.
	VolumeCumulative VolumeMode = "cumulative"
)

// ParseVolumeMode resolves a configured volume mode. Empty means trade size.
func ParseVolumeMode(name string) (VolumeMode, error) {
	switch VolumeMode(strings.ToLower(strings.TrimSpace(name))) {
	case "", VolumeTradeSize:
		return VolumeTradeSize, nil
	case VolumeCumulative:
		return VolumeCumulative, nil
	default:
		return "", fmt.Errorf("%w: unknown volume mode %q", ports.ErrConfigurationError, name)
	}
}

type partialBar struct {
	bar       domain.Bar
	baseVol   float64 // Cumulative reading at the end of the previous bar
	lastCum   float64
	tickCount int
}

// Aggregator builds interval bars from ticks. It is safe for concurrent use and
// keeps its own lock, independent of the engine.
type Aggregator struct {
	interval time.Duration
	mode     VolumeMode

	mu      sync.Mutex
	current map[string]*partialBar
}

// NewAggregator creates an aggregator for bars of the given interval.
func NewAggregator(interval time.Duration, mode VolumeMode) (*Aggregator, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: bar interval must be positive", ports.ErrConfigurationError)
	}
	if mode == "" {
		mode = VolumeTradeSize
	}
	return &Aggregator{interval: interval, mode: mode, current: make(map[string]*partialBar)}, nil
}

// Interval returns the bar interval.
func (a *Aggregator) Interval() time.Duration {
	return a.interval
}

// AddTick folds a tick into its symbol's bar. When the tick falls at or after the
// end of the bar being built, that bar is returned as completed and a new one is
// started from the tick. Ticks with no price or older than the current bar are dropped.
func (a *Aggregator) AddTick(tick domain.Tick) (domain.Bar, bool) {
	if tick.Price <= 0 || tick.Symbol == "" {
		return domain.Bar{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	start := tick.Timestamp.Truncate(a.interval)
	p, ok := a.current[tick.Symbol]
	if !ok {
		a.current[tick.Symbol] = a.open(tick, start, tick.Volume)
		return domain.Bar{}, false
	}
	if tick.Timestamp.Before(p.bar.Timestamp) {
		return domain.Bar{}, false
	}
	if !tick.Timestamp.Before(p.bar.Timestamp.Add(a.interval)) {
		completed := p.bar
		base := p.lastCum
		if a.mode == VolumeCumulative && tick.Volume < base {
			// session total restarted
			base = 0
		}
		a.current[tick.Symbol] = a.open(tick, start, base)
		return completed, true
	}

	p.bar.High = max(p.bar.High, tick.Price)
	p.bar.Low = min(p.bar.Low, tick.Price)
	p.bar.Close = tick.Price
	a.addVolume(p, tick.Volume)
	p.tickCount++
	return domain.Bar{}, false
}

func (a *Aggregator) open(tick domain.Tick, start time.Time, base float64) *partialBar {
	p := &partialBar{
		bar: domain.Bar{
			Timestamp: start,
			Symbol:    tick.Symbol,
			Open:      tick.Price,
			High:      tick.Price,
			Low:       tick.Price,
			Close:     tick.Price,
		},
		baseVol:   base,
		lastCum:   base,
		tickCount: 1,
	}
	a.addVolume(p, tick.Volume)
	return p
}

func (a *Aggregator) addVolume(p *partialBar, v float64) {
	if a.mode == VolumeCumulative {
		if v >= p.lastCum {
			p.lastCum = v
		}
		p.bar.Volume = p.lastCum - p.baseVol
		return
	}
	p.bar.Volume += v
}

// Current returns the bar being built for symbol, if any.
func (a *Aggregator) Current(symbol string) (domain.Bar, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.current[symbol]
	if !ok {
		return domain.Bar{}, false
	}
	return p.bar, true
}

// Reset drops all partial bars.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = make(map[string]*partialBar)
}
