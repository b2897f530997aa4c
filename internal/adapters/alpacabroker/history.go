package alpacabroker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

const defaultDataFeed = "iex"

// barsAPI is the subset of *marketdata.Client the history source uses.
type barsAPI interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// HistoryConfig holds the Alpaca market-data settings.
type HistoryConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // Optional data API override
	Feed      string // "iex" (default) or "sip"
	Logger    ports.Logger
}

// History implements ports.BarHistorySource over the Alpaca market-data API.
type History struct {
	api    barsAPI
	feed   string
	logger ports.Logger
}

// NewHistory creates an Alpaca bar history source.
func NewHistory(cfg HistoryConfig) (*History, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca history")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: Alpaca API key and secret are required", ports.ErrConfigurationError)
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	return newHistory(marketdata.NewClient(opts), cfg.Feed, cfg.Logger), nil
}

func newHistory(api barsAPI, feed string, logger ports.Logger) *History {
	if feed == "" {
		feed = defaultDataFeed
	}
	return &History{api: api, feed: strings.ToLower(feed), logger: logger}
}

// GetBarsRange implements ports.BarHistorySource. Bars come back oldest first.
func (h *History) GetBarsRange(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.Bar, error) {
	op := "GetBarsRange"
	tf, err := timeFrame(interval)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	raw, err := call(ctx, func() ([]marketdata.Bar, error) {
		return h.api.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
			Feed:      marketdata.Feed(h.feed),
		})
	})
	if err != nil {
		var finalErr error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			finalErr = fmt.Errorf("%s failed: %w: %w", op, ports.ErrTimeout, err)
		case errors.Is(err, context.Canceled):
			finalErr = fmt.Errorf("%s operation canceled: %w: %w", op, ports.ErrContextCanceled, err)
		default:
			finalErr = fmt.Errorf("%s failed: %w: %w", op, ports.ErrFeedUnavailable, err)
		}
		h.logger.Error(ctx, err, op+" failed", map[string]interface{}{"symbol": symbol})
		return nil, finalErr
	}

	out := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		out = append(out, domain.Bar{
			Timestamp: b.Timestamp.UTC(),
			Symbol:    strings.ToUpper(symbol),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	h.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "bars": len(out)})
	return out, nil
}

// timeFrame maps a bar interval onto an Alpaca time frame. Minute multiples
// below an hour and whole hours are supported.
func timeFrame(d time.Duration) (marketdata.TimeFrame, error) {
	switch {
	case d <= 0 || d%time.Minute != 0:
		return marketdata.TimeFrame{}, fmt.Errorf("%w: unsupported bar interval %s", ports.ErrInvalidRequest, d)
	case d < time.Hour:
		return marketdata.NewTimeFrame(int(d/time.Minute), marketdata.Min), nil
	case d%time.Hour == 0 && d < 24*time.Hour:
		return marketdata.NewTimeFrame(int(d/time.Hour), marketdata.Hour), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("%w: unsupported bar interval %s", ports.ErrInvalidRequest, d)
	}
}
