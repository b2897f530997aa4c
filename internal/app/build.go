package app

import (
	"fmt"

	"intradayBot/config"
	"intradayBot/internal/engine"
	"intradayBot/internal/execution"
	"intradayBot/internal/orders"
	"intradayBot/internal/portfolio"
	"intradayBot/internal/ports"
	"intradayBot/internal/risk"
	"intradayBot/internal/strategy/indicators"
	"intradayBot/internal/strategy/strategies"
)

// Components are the collaborators BuildEngine wires together. They are
// exposed so callers can inspect them after a run.
type Components struct {
	Engine    *engine.Engine
	Risk      *risk.RiskManager
	Ledger    *portfolio.Ledger
	Execution execution.Adapter
	Router    *execution.BrokerRouted // Set only when orders go to a broker
	Emergency *orders.EmergencyStop   // Set only in live mode
}

// BuildExecution returns the execution adapter for cfg.Mode. Live mode routes
// through broker; backtest and paper fill locally with cfg.FillPolicy.
func BuildExecution(cfg *config.Config, logger ports.Logger, broker ports.Broker) (execution.Adapter, *execution.BrokerRouted, error) {
	if cfg.Mode != config.ModeLive {
		return execution.NewSimulated(cfg.FillPolicy, logger), nil, nil
	}
	if broker == nil {
		return nil, nil, fmt.Errorf("%w: live mode needs a broker", ports.ErrConfigurationError)
	}
	manager, err := orders.NewManager(broker, orders.Config{
		BrokerTimeout: cfg.BrokerTimeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, err
	}
	router, err := execution.NewBrokerRouted(manager, execution.BrokerConfig{
		FillWait:        cfg.OrderFillWait,
		MaxOrdersPerDay: cfg.MaxOrdersPerDay,
		Location:        cfg.Location,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return router, router, nil
}

// BuildEngine wires strategies, indicators, risk, ledger and the execution
// adapter for cfg. journal may be nil.
func BuildEngine(cfg *config.Config, logger ports.Logger, broker ports.Broker, journal ports.TradeJournal) (*Components, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for engine")
	}
	strats, err := strategies.BuildAll(cfg.Strategies, cfg.StrategyParams, cfg.BarInterval, cfg.Location)
	if err != nil {
		return nil, err
	}
	rm, err := risk.NewRiskManager(cfg.RiskConfig(), logger)
	if err != nil {
		return nil, err
	}
	exec, router, err := BuildExecution(cfg, logger, broker)
	if err != nil {
		return nil, err
	}

	c := &Components{
		Risk:      rm,
		Ledger:    portfolio.NewLedger(cfg.InitialCapital),
		Execution: exec,
		Router:    router,
	}
	if cfg.Mode == config.ModeLive {
		c.Emergency = orders.NewEmergencyStop(cfg.EmergencyStopLossPct, logger)
	}

	engCfg := engine.Config{
		Strategies: strats,
		Indicators: indicators.NewEngine(strategies.IndicatorConfig(cfg.StrategyParams, cfg.Location)),
		Risk:       rm,
		Ledger:     c.Ledger,
		Execution:  exec,
		Emergency:  c.Emergency,
		Journal:    journal,
		Logger:     logger,
		Location:   cfg.Location,
	}
	c.Engine, err = engine.New(engCfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}
