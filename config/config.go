package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"intradayBot/internal/adapters/logger"
	"intradayBot/internal/execution"
	"intradayBot/internal/feed"
	"intradayBot/internal/ports"
	"intradayBot/internal/risk"
	"intradayBot/internal/strategy/strategies"
)

// Mode selects how the engine is driven.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModePaper    Mode = "paper"
	ModeLive     Mode = "live"
)

// Config holds all application configuration.
type Config struct {
	Mode    Mode
	Broker  string // binance or alpaca
	Symbols []string

	// Session and risk
	BarInterval           time.Duration
	InitialCapital        float64
	MaxRiskPerTrade       float64
	MaxDailyLoss          float64
	MaxLosingTradesPerDay int
	MinMinutesAfterOpen   int
	MarketOpen            risk.ClockTime
	MarketClose           risk.ClockTime
	CutoffTime            risk.ClockTime
	Location              *time.Location

	// Live safety
	EmergencyStopLossPct float64
	MaxOrdersPerDay      int

	// Strategies, in priority order
	Strategies     []strategies.Kind
	StrategyParams strategies.Params
	AllowShort     bool
	FillPolicy     execution.FillPolicy
	VolumeMode     feed.VolumeMode

	// Files
	DataPath    string
	JournalPath string
	ReportDir   string

	FeedBufferSize int

	// Connection Settings
	BrokerTimeout        time.Duration
	OrderFillWait        time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	HealthAddr string
	LogLevel   logger.LogLevel

	// Binance API
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceTestnet   bool

	// Alpaca API
	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaPaper     bool
	AlpacaBaseURL   string
	AlpacaDataFeed  string // iex or sip
	AlpacaDataURL   string
}

// RiskConfig returns the risk manager settings.
func (c *Config) RiskConfig() risk.RiskConfig {
	return risk.RiskConfig{
		InitialCapital:        c.InitialCapital,
		MaxRiskPerTrade:       c.MaxRiskPerTrade,
		MaxDailyLoss:          c.MaxDailyLoss,
		MaxLosingTradesPerDay: c.MaxLosingTradesPerDay,
		MinMinutesAfterOpen:   c.MinMinutesAfterOpen,
		MarketOpen:            c.MarketOpen,
		MarketClose:           c.MarketClose,
		CutoffTime:            c.CutoffTime,
		Location:              c.Location,
	}
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.Mode = Mode(strings.ToLower(getEnv("MODE", string(ModeBacktest))))
	switch cfg.Mode {
	case ModeBacktest, ModePaper, ModeLive:
	default:
		errs = append(errs, fmt.Sprintf("MODE must be backtest, paper or live, got %q", cfg.Mode))
	}

	cfg.Broker = strings.ToLower(getEnv("BROKER", "binance"))
	if cfg.Broker != "binance" && cfg.Broker != "alpaca" {
		errs = append(errs, fmt.Sprintf("BROKER must be binance or alpaca, got %q", cfg.Broker))
	}

	cfg.Symbols = getEnvAsList("SYMBOLS", nil)
	if len(cfg.Symbols) == 0 && cfg.Mode != ModeBacktest {
		errs = append(errs, "SYMBOLS must be set")
	}

	intervalMinutes, err := getEnvAsIntRequired("BAR_INTERVAL_MINUTES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BAR_INTERVAL_MINUTES: %v", err))
	} else if intervalMinutes <= 0 {
		errs = append(errs, "BAR_INTERVAL_MINUTES must be positive")
	}
	cfg.BarInterval = time.Duration(intervalMinutes) * time.Minute

	// Risk
	cfg.InitialCapital, err = getEnvAsFloatRequired("INITIAL_CAPITAL", 100000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPITAL: %v", err))
	} else if cfg.InitialCapital <= 0 {
		errs = append(errs, "INITIAL_CAPITAL must be positive")
	}

	cfg.MaxRiskPerTrade, err = getEnvAsFloatRequired("MAX_RISK_PER_TRADE", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RISK_PER_TRADE: %v", err))
	} else if cfg.MaxRiskPerTrade <= 0 || cfg.MaxRiskPerTrade > 1 {
		errs = append(errs, "MAX_RISK_PER_TRADE must be in (0, 1]")
	}

	cfg.MaxDailyLoss, err = getEnvAsFloatRequired("MAX_DAILY_LOSS", 0.03)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_LOSS: %v", err))
	} else if cfg.MaxDailyLoss <= 0 || cfg.MaxDailyLoss > 1 {
		errs = append(errs, "MAX_DAILY_LOSS must be in (0, 1]")
	}

	cfg.MaxLosingTradesPerDay, err = getEnvAsIntRequired("MAX_LOSING_TRADES_PER_DAY", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_LOSING_TRADES_PER_DAY: %v", err))
	} else if cfg.MaxLosingTradesPerDay < 1 {
		errs = append(errs, "MAX_LOSING_TRADES_PER_DAY must be at least 1")
	}

	cfg.MinMinutesAfterOpen, err = getEnvAsIntRequired("MIN_MINUTES_AFTER_OPEN", 15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_MINUTES_AFTER_OPEN: %v", err))
	} else if cfg.MinMinutesAfterOpen < 0 {
		errs = append(errs, "MIN_MINUTES_AFTER_OPEN cannot be negative")
	}

	for _, c := range []struct {
		key, def string
		dst      *risk.ClockTime
	}{
		{"MARKET_OPEN", "09:15", &cfg.MarketOpen},
		{"MARKET_CLOSE", "15:30", &cfg.MarketClose},
		{"CUTOFF_TIME", "14:45", &cfg.CutoffTime},
	} {
		v, err := risk.ParseClock(getEnv(c.key, c.def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", c.key, err))
			continue
		}
		*c.dst = v
	}
	if cfg.MarketOpen.Minutes() >= cfg.MarketClose.Minutes() {
		errs = append(errs, "MARKET_OPEN must be before MARKET_CLOSE")
	}

	cfg.Location, err = time.LoadLocation(getEnv("MARKET_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MARKET_TIMEZONE: %v", err))
		cfg.Location = time.UTC
	}

	// Live safety
	cfg.EmergencyStopLossPct, err = getEnvAsFloatRequired("EMERGENCY_STOP_LOSS_PCT", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EMERGENCY_STOP_LOSS_PCT: %v", err))
	} else if cfg.EmergencyStopLossPct <= 0 || cfg.EmergencyStopLossPct > 1 {
		errs = append(errs, "EMERGENCY_STOP_LOSS_PCT must be in (0, 1]")
	}

	cfg.MaxOrdersPerDay, err = getEnvAsIntRequired("MAX_ORDERS_PER_DAY", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_ORDERS_PER_DAY: %v", err))
	} else if cfg.MaxOrdersPerDay < 1 {
		errs = append(errs, "MAX_ORDERS_PER_DAY must be at least 1")
	}

	// Strategies
	for _, name := range getEnvAsList("STRATEGIES", []string{string(strategies.KindORBSupertrend)}) {
		kind, err := strategies.ParseKind(name)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid STRATEGIES: %v", err))
			continue
		}
		cfg.Strategies = append(cfg.Strategies, kind)
	}
	if len(cfg.Strategies) == 0 {
		errs = append(errs, "STRATEGIES must name at least one strategy")
	}

	cfg.StrategyParams = strategies.DefaultParams()
	if path := getEnv("STRATEGY_CONFIG_PATH", ""); path != "" {
		if err := loadStrategyParams(path, &cfg.StrategyParams); err != nil {
			errs = append(errs, fmt.Sprintf("invalid STRATEGY_CONFIG_PATH: %v", err))
		}
	}
	if v := os.Getenv("ALLOW_SHORT"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid ALLOW_SHORT: %v", err))
		}
		cfg.StrategyParams.EMATrend.AllowShort = allow
		cfg.StrategyParams.VWAPReversion.AllowShort = allow
	}
	cfg.AllowShort = cfg.StrategyParams.EMATrend.AllowShort && cfg.StrategyParams.VWAPReversion.AllowShort

	cfg.FillPolicy, err = execution.ParseFillPolicy(getEnv("FILL_POLICY", string(execution.FillNextOpen)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FILL_POLICY: %v", err))
	}
	cfg.VolumeMode, err = feed.ParseVolumeMode(getEnv("TICK_VOLUME_MODE", ""))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TICK_VOLUME_MODE: %v", err))
	}

	// Files
	cfg.DataPath = getEnv("DATA_PATH", "./data")
	cfg.JournalPath = getEnv("JOURNAL_PATH", "./data/journal.db")
	cfg.ReportDir = getEnv("REPORT_DIR", "./reports")

	cfg.FeedBufferSize = getEnvAsInt("FEED_BUFFER_SIZE", feed.DefaultBufferSize)
	if cfg.FeedBufferSize <= 0 {
		errs = append(errs, "FEED_BUFFER_SIZE must be positive")
	}

	// Connection Settings
	brokerTimeout := getEnvAsInt("BROKER_TIMEOUT_SECONDS", 10)
	if brokerTimeout <= 0 {
		errs = append(errs, "BROKER_TIMEOUT_SECONDS must be positive")
	}
	cfg.BrokerTimeout = time.Duration(brokerTimeout) * time.Second

	fillWait := getEnvAsInt("ORDER_FILL_WAIT_SECONDS", 5)
	if fillWait < 0 {
		errs = append(errs, "ORDER_FILL_WAIT_SECONDS cannot be negative")
	}
	cfg.OrderFillWait = time.Duration(fillWait) * time.Second

	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	cfg.HealthAddr = getEnv("HEALTH_ADDR", "")
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Broker credentials, required only where orders are routed
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.AlpacaAPIKey = getEnv("APCA_API_KEY_ID", getEnv("ALPACA_API_KEY", ""))
	cfg.AlpacaAPISecret = getEnv("APCA_API_SECRET_KEY", getEnv("ALPACA_API_SECRET", ""))
	cfg.AlpacaPaper = getEnvAsBool("ALPACA_PAPER", true)
	cfg.AlpacaBaseURL = getEnv("ALPACA_BASE_URL", "")
	cfg.AlpacaDataFeed = strings.ToLower(getEnv("ALPACA_DATA_FEED", "iex"))
	if cfg.AlpacaDataFeed != "iex" && cfg.AlpacaDataFeed != "sip" {
		errs = append(errs, fmt.Sprintf("ALPACA_DATA_FEED must be iex or sip, got %q", cfg.AlpacaDataFeed))
	}
	cfg.AlpacaDataURL = getEnv("ALPACA_DATA_URL", "")

	// Alpaca market data needs keys even when fills are simulated.
	needKeys := cfg.Mode == ModeLive || (cfg.Mode == ModePaper && cfg.Broker == "alpaca")
	if needKeys {
		switch cfg.Broker {
		case "binance":
			if cfg.BinanceAPIKey == "" || cfg.BinanceSecretKey == "" {
				errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set for live mode")
			}
		case "alpaca":
			if cfg.AlpacaAPIKey == "" || cfg.AlpacaAPISecret == "" {
				errs = append(errs, "APCA_API_KEY_ID and APCA_API_SECRET_KEY must be set for Alpaca data and orders")
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return cfg, nil
}

// loadStrategyParams overlays the YAML file at path onto params. Keys absent
// from the file keep their current values.
func loadStrategyParams(path string, params *strategies.Params) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, params); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
