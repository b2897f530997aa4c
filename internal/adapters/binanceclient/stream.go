package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"intradayBot/internal/domain"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
)

// StreamTicks implements ports.TickSource over the aggTrade stream, one
// connection per symbol. Dropped connections are retried with capped exponential
// backoff. The returned channel closes once every symbol stream has stopped for
// good, either because ctx is done or reconnect attempts ran out.
func (c *Client) StreamTicks(ctx context.Context, symbols []string, handler func(tick domain.Tick), errHandler func(err error)) (<-chan struct{}, error) {
	op := "StreamTicks"
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%s failed: no symbols", op)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, s := range symbols {
		symbol := strings.ToUpper(s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.streamSymbol(ctx, symbol, handler, errHandler)
		}()
	}
	go func() {
		wg.Wait()
		c.logger.Info(ctx, op+": All tick streams stopped", map[string]interface{}{"symbols": symbols})
		close(done)
	}()
	return done, nil
}

func (c *Client) streamSymbol(ctx context.Context, symbol string, handler func(tick domain.Tick), errHandler func(err error)) {
	op := "StreamTicks"
	b := &backoff.Backoff{
		Min:    c.reconnectDelay,
		Max:    c.maxReconnectDelay,
		Factor: 2,
		Jitter: true,
	}
	fields := map[string]interface{}{"symbol": symbol}

	wsHandler := func(event *futures.WsAggTradeEvent) {
		tick, err := translateAggTrade(event)
		if err != nil {
			c.logger.Error(ctx, err, op+": Failed to translate aggTrade event", fields)
			return
		}
		handler(tick)
	}
	wsErrHandler := func(err error) {
		translated := c.handleError(ctx, err, op+" WebSocket")
		if errHandler != nil {
			errHandler(translated)
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		innerDone, innerStop, err := futures.WsAggTradeServe(symbol, wsHandler, wsErrHandler)
		if err != nil {
			c.handleError(ctx, err, op+" connection attempt")
			if int(b.Attempt()) >= c.maxReconnectAttempts-1 {
				c.logger.Error(ctx, err, op+": Max reconnection attempts exceeded, giving up.", map[string]interface{}{
					"symbol":      symbol,
					"maxAttempts": c.maxReconnectAttempts,
				})
				return
			}
			delay := b.Duration()
			c.logger.Warn(ctx, op+": Connection failed, retrying...", map[string]interface{}{
				"symbol":  symbol,
				"attempt": int(b.Attempt()),
				"delay":   delay.String(),
			})
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		c.logger.Info(ctx, op+": WebSocket connection established.", fields)
		b.Reset()

		select {
		case <-innerDone:
			c.logger.Warn(ctx, op+": WebSocket connection closed unexpectedly. Reconnecting...", fields)
			if !sleepCtx(ctx, b.Duration()) {
				return
			}
		case <-ctx.Done():
			close(innerStop)
			<-innerDone
			c.logger.Info(ctx, op+": Context cancelled, WebSocket stopped.", fields)
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func translateAggTrade(event *futures.WsAggTradeEvent) (domain.Tick, error) {
	if event == nil {
		return domain.Tick{}, errors.New("received nil aggTrade event")
	}
	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parsing price '%s': %w", event.Price, err)
	}
	qty, err := strconv.ParseFloat(event.Quantity, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parsing quantity '%s': %w", event.Quantity, err)
	}
	return domain.Tick{
		Symbol:    event.Symbol,
		Timestamp: time.UnixMilli(event.TradeTime).UTC(),
		Price:     price,
		Volume:    qty,
	}, nil
}
