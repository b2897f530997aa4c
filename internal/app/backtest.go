package app

import (
	"context"
	"fmt"

	"intradayBot/config"
	"intradayBot/internal/domain"
	"intradayBot/internal/engine"
	"intradayBot/internal/ports"
	"intradayBot/internal/strategy/strategies"
)

// Replay runs bars through a freshly built backtest engine without writing a
// report. journal may be nil.
func Replay(ctx context.Context, cfg *config.Config, logger ports.Logger, bars []domain.Bar, journal ports.TradeJournal) (*engine.Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars to replay", ports.ErrDataGap)
	}
	btCfg := *cfg
	btCfg.Mode = config.ModeBacktest

	comps, err := BuildEngine(&btCfg, logger, nil, journal)
	if err != nil {
		return nil, err
	}
	return comps.Engine.Replay(ctx, bars)
}

// RunBacktest replays bars and writes the run report under cfg.ReportDir.
func RunBacktest(ctx context.Context, cfg *config.Config, logger ports.Logger, bars []domain.Bar, journal ports.TradeJournal, runID string) (*Report, *engine.Result, error) {
	res, runErr := Replay(ctx, cfg, logger, bars, journal)
	if res == nil {
		return nil, nil, runErr
	}
	report, err := WriteReport(context.WithoutCancel(ctx), logger, cfg.ReportDir, runID, res)
	if runErr != nil {
		return report, res, runErr
	}
	return report, res, err
}

// ParamRunner returns a function that replays bars with substituted strategy
// parameters and reports the closed trades.
func ParamRunner(cfg *config.Config, logger ports.Logger, bars []domain.Bar) func(context.Context, strategies.Params) ([]domain.Trade, error) {
	return func(ctx context.Context, params strategies.Params) ([]domain.Trade, error) {
		runCfg := *cfg
		runCfg.StrategyParams = params
		res, err := Replay(ctx, &runCfg, logger, bars, nil)
		if err != nil {
			return nil, err
		}
		return res.Trades, nil
	}
}
