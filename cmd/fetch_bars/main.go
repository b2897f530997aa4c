package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"intradayBot/config"
	"intradayBot/internal/adapters/alpacabroker"
	"intradayBot/internal/adapters/binanceclient"
	"intradayBot/internal/adapters/logger"
	"intradayBot/internal/ports"
	"intradayBot/internal/utils"
)

func main() {
	source := flag.String("source", "", "history source: binance or alpaca; defaults to BROKER")
	symbols := flag.String("symbols", "", "comma separated symbols; defaults to SYMBOLS")
	interval := flag.Duration("interval", 0, "bar interval; defaults to BAR_INTERVAL")
	days := flag.Int("days", 30, "days of history ending now, used when -start is empty")
	startStr := flag.String("start", "", "range start, 2006-01-02")
	endStr := flag.String("end", "", "range end, 2006-01-02; defaults to now")
	outDir := flag.String("out", "data", "output directory")
	format := flag.String("format", "csv", "output format: csv or parquet")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if *source == "" {
		*source = cfg.Broker
	}
	if *symbols != "" {
		cfg.Symbols = strings.Split(*symbols, ",")
	}
	if *interval > 0 {
		cfg.BarInterval = *interval
	}
	if *format != "csv" && *format != "parquet" {
		log.Fatalf("FATAL: unsupported format %q", *format)
	}

	end := time.Now().UTC()
	if *endStr != "" {
		if end, err = time.ParseInLocation("2006-01-02", *endStr, cfg.Location); err != nil {
			log.Fatalf("FATAL: invalid -end: %v", err)
		}
	}
	start := end.AddDate(0, 0, -*days)
	if *startStr != "" {
		if start, err = time.ParseInLocation("2006-01-02", *startStr, cfg.Location); err != nil {
			log.Fatalf("FATAL: invalid -start: %v", err)
		}
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 3. Initialize History Source
	history, err := newHistory(*source, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize history source")
		log.Fatalf("FATAL: Failed to initialize history source: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("FATAL: Failed to create %s: %v", *outDir, err)
	}
	for _, symbol := range cfg.Symbols {
		symbol = strings.TrimSpace(symbol)
		fmt.Printf("Fetching %s %s bars from %s to %s...\n", symbol, cfg.BarInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
		bars, err := history.GetBarsRange(ctx, symbol, cfg.BarInterval, start, end)
		if err != nil {
			appLogger.Error(ctx, err, "Error fetching bars", map[string]interface{}{"symbol": symbol})
			continue
		}
		filename := filepath.Join(*outDir, fmt.Sprintf("%s_%s_%s_to_%s.%s",
			strings.ReplaceAll(symbol, "/", ""), intervalLabel(cfg.BarInterval), start.Format("20060102"), end.Format("20060102"), *format))
		if err := utils.SaveBars(bars, filename); err != nil {
			appLogger.Error(ctx, err, "Error writing bars", map[string]interface{}{"filename": filename})
			continue
		}
		appLogger.Info(ctx, "Saved bars", map[string]interface{}{"symbol": symbol, "count": len(bars), "filename": filename})
	}
}

func newHistory(source string, cfg *config.Config, l ports.Logger) (ports.BarHistorySource, error) {
	switch source {
	case "binance":
		return binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecretKey,
			UseTestnet: cfg.BinanceTestnet,
			Logger:     l,
		})
	case "alpaca":
		return alpacabroker.NewHistory(alpacabroker.HistoryConfig{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			BaseURL:   cfg.AlpacaDataURL,
			Feed:      cfg.AlpacaDataFeed,
			Logger:    l,
		})
	default:
		return nil, fmt.Errorf("%w: unknown history source %q", ports.ErrConfigurationError, source)
	}
}

func intervalLabel(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
