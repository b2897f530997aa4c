package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"intradayBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	defaultQuantityPrecision = 3
	defaultPricePrecision    = 2
)

// Precision is the number of decimals a symbol accepts for quantity and price.
type Precision struct {
	Quantity int32
	Price    int32
}

// Client implements ports.Broker, ports.TickSource and ports.BarHistorySource
// on Binance USD-M futures using the go-binance library.
type Client struct {
	futuresClient        *futures.Client
	logger               ports.Logger
	reconnectDelay       time.Duration
	maxReconnectDelay    time.Duration
	maxReconnectAttempts int

	mu           sync.RWMutex
	precision    map[string]Precision
	orderSymbols map[string]string // Broker order id -> symbol
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	Logger               ports.Logger
	ReconnectDelay       time.Duration        // Initial reconnect delay (e.g., 1 * time.Second)
	MaxReconnectDelay    time.Duration        // Backoff ceiling
	MaxReconnectAttempts int                  // Max consecutive attempts before giving up
	Precision            map[string]Precision // Optional overrides; see LoadPrecision
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 1 * time.Second
	}
	maxDelay := cfg.MaxReconnectDelay
	if maxDelay < reconnectDelay {
		maxDelay = 30 * reconnectDelay
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	precision := make(map[string]Precision, len(cfg.Precision))
	for s, p := range cfg.Precision {
		precision[strings.ToUpper(s)] = p
	}

	return &Client{
		futuresClient:        client,
		logger:               cfg.Logger,
		reconnectDelay:       reconnectDelay,
		maxReconnectDelay:    maxDelay,
		maxReconnectAttempts: maxAttempts,
		precision:            precision,
		orderSymbols:         make(map[string]string),
	}, nil
}

// Name implements ports.Broker.
func (c *Client) Name() string {
	return "binance"
}

// LoadPrecision fetches quantity and price precision for symbols from exchange info.
// Symbols with a configured override keep it.
func (c *Client) LoadPrecision(ctx context.Context, symbols []string) error {
	op := "LoadPrecision"
	info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[strings.ToUpper(s)] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range info.Symbols {
		if !wanted[s.Symbol] {
			continue
		}
		if _, ok := c.precision[s.Symbol]; ok {
			continue
		}
		c.precision[s.Symbol] = Precision{Quantity: int32(s.QuantityPrecision), Price: int32(s.PricePrecision)}
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbols": len(wanted)})
	return nil
}

func (c *Client) precisionFor(symbol string) Precision {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.precision[symbol]; ok {
		return p
	}
	return Precision{Quantity: defaultQuantityPrecision, Price: defaultPricePrecision}
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mapAPIError(apiErr.Code), err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrBroker, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// mapAPIError maps Binance error codes to ports errors.
func mapAPIError(code int64) error {
	switch code {
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1021: // Timestamp outside of the recvWindow
		return ports.ErrTimeout
	case -1022: // Invalid signature
		return ports.ErrAuthenticationFailed
	case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
		return ports.ErrInvalidRequest
	case -2010, -2022: // New order rejected, ReduceOnly rejected
		return ports.ErrOrderPlacementFailed
	case -2011: // Cancel rejected
		return ports.ErrOrderCancelFailed
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014, -2015: // API-key format, IP or permissions
		return ports.ErrInvalidAPIKeys
	case -2019, -3005, -3041, -4047:
		return ports.ErrInsufficientFunds
	case -4003, -4014, -4015: // Quantity, price or leverage out of range
		return ports.ErrInvalidRequest
	case -4044:
		return ports.ErrNoPosition
	default:
		return ports.ErrBroker
	}
}
