package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"
	_ "time/tzdata" // MARKET_TIMEZONE must resolve on hosts without zoneinfo

	"intradayBot/config"
	"intradayBot/internal/adapters/alpacabroker"
	"intradayBot/internal/adapters/binanceclient"
	"intradayBot/internal/adapters/logger"
	"intradayBot/internal/adapters/sqlite"
	"intradayBot/internal/app"
	"intradayBot/internal/feed"
	"intradayBot/internal/ports"
	"intradayBot/internal/utils"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	runID := fmt.Sprintf("%s_%s", cfg.Mode, time.Now().UTC().Format("20060102T150405"))
	ctx := logger.WithFields(context.Background(), ports.Fields{"run": runID})
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Trade Journal (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.JournalPath,
		RunID:  runID,
		Logger: appLogger.Named("journal"),
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trade journal")
		log.Fatalf("FATAL: Failed to initialize trade journal: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing trade journal")
		}
	}()

	if cfg.Mode == config.ModeBacktest {
		runBacktest(ctx, cfg, appLogger, repo, runID)
		return
	}

	// 4. Initialize market data and, in live mode, the broker
	var (
		broker  ports.Broker
		history ports.BarHistorySource
		bars    ports.MarketDataFeed
	)
	switch cfg.Broker {
	case "binance":
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:               cfg.BinanceAPIKey,
			SecretKey:            cfg.BinanceSecretKey,
			UseTestnet:           cfg.BinanceTestnet,
			Logger:               appLogger.Named("binance"),
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		if err := client.LoadPrecision(ctx, cfg.Symbols); err != nil {
			if cfg.Mode == config.ModeLive {
				log.Fatalf("FATAL: Failed to load symbol precision: %v", err)
			}
			appLogger.Warn(ctx, "Symbol precision unavailable, using defaults", map[string]interface{}{"error": err.Error()})
		}
		live, err := feed.NewLive(client, feed.LiveConfig{
			Symbols:  cfg.Symbols,
			Interval: cfg.BarInterval,
			Volume:   cfg.VolumeMode,
			Logger:   appLogger,
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize live feed: %v", err)
		}
		history, bars = client, live
		if cfg.Mode == config.ModeLive {
			broker = client
		}
	case "alpaca":
		hist, err := alpacabroker.NewHistory(alpacabroker.HistoryConfig{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			BaseURL:   cfg.AlpacaDataURL,
			Feed:      cfg.AlpacaDataFeed,
			Logger:    appLogger.Named("alpaca"),
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Alpaca market data: %v", err)
		}
		poll, err := feed.NewPoll(hist, feed.PollConfig{
			Symbols:  cfg.Symbols,
			Interval: cfg.BarInterval,
			Logger:   appLogger,
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize poll feed: %v", err)
		}
		history, bars = hist, poll
		if cfg.Mode == config.ModeLive {
			ab, err := alpacabroker.New(alpacabroker.Config{
				APIKey:    cfg.AlpacaAPIKey,
				APISecret: cfg.AlpacaAPISecret,
				Paper:     cfg.AlpacaPaper,
				BaseURL:   cfg.AlpacaBaseURL,
				Logger:    appLogger.Named("alpaca"),
			})
			if err != nil {
				log.Fatalf("FATAL: Failed to initialize Alpaca broker: %v", err)
			}
			broker = ab
		}
	}

	// 5. Build the engine
	comps, err := app.BuildEngine(cfg, appLogger, broker, repo)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to build trading engine")
		log.Fatalf("FATAL: Failed to build trading engine: %v", err)
	}

	// 6. Initialize Application Service
	tradingService, err := app.NewTradingService(cfg, appLogger, comps, bars, history, runID)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 7. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}
	appLogger.Info(ctx, "Application finished gracefully.")
}

func runBacktest(ctx context.Context, cfg *config.Config, appLogger ports.Logger, journal ports.TradeJournal, runID string) {
	bars, err := utils.LoadBarDir(cfg.DataPath, cfg.Location)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars from %s: %v", cfg.DataPath, err)
	}
	report, _, err := app.RunBacktest(ctx, cfg, appLogger, bars, journal, runID)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest failed")
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}
	appLogger.Info(ctx, "Backtest finished", map[string]interface{}{
		"trades":      report.Summary.TotalTrades,
		"returnPct":   report.Summary.TotalReturnPct,
		"sharpe":      report.Performance.SharpeRatio,
		"maxDrawdown": report.Performance.MaxDrawdown,
	})
}
