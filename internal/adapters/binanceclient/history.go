package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
)

const maxKlinesPerRequest = 1500

var intervals = map[time.Duration]string{
	time.Minute:      "1m",
	3 * time.Minute:  "3m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "1h",
	2 * time.Hour:    "2h",
	4 * time.Hour:    "4h",
}

// IntervalString returns the Binance kline interval for d.
func IntervalString(d time.Duration) (string, error) {
	s, ok := intervals[d]
	if !ok {
		return "", fmt.Errorf("%w: unsupported bar interval %s", ports.ErrInvalidRequest, d)
	}
	return s, nil
}

// GetBarsRange implements ports.BarHistorySource. It pages through klines in
// [start, end] and returns them oldest first.
func (c *Client) GetBarsRange(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.Bar, error) {
	op := "GetBarsRange"
	iv, err := IntervalString(interval)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	var bars []domain.Bar
	from := start
	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(iv).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bar, err := translateKline(k, symbol)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
			}
			bars = append(bars, bar)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < maxKlinesPerRequest {
			break
		}
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": iv, "bars": len(bars)})
	return bars, nil
}

func translateKline(k *futures.Kline, symbol string) (domain.Bar, error) {
	if k == nil {
		return domain.Bar{}, errors.New("received nil historical kline")
	}
	values := [5]float64{}
	for i, raw := range [5]string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing kline field %d %q: %w", i, raw, err)
		}
		values[i] = v
	}
	return domain.Bar{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Symbol:    symbol,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
