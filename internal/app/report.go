package app

import (
	"context"

	"intradayBot/internal/engine"
	"intradayBot/internal/ports"
	"intradayBot/internal/strategy/analytics"
	"intradayBot/internal/utils"
)

// Report is the JSON run summary written next to the trades CSV.
type Report struct {
	Summary     engine.Summary                           `json:"summary"`
	Performance *analytics.PerformanceMetrics            `json:"performance"`
	ByStrategy  map[string]*analytics.PerformanceMetrics `json:"by_strategy"`
}

// NewReport derives the analytics for res.
func NewReport(res *engine.Result) *Report {
	initial := res.Summary.InitialCapital
	return &Report{
		Summary:     res.Summary,
		Performance: analytics.AnalyzePerformance(res.Trades, initial),
		ByStrategy:  analytics.Breakdown(res.Trades, initial, analytics.ByStrategy),
	}
}

// WriteReport writes the summary JSON and trades CSV for res under dir.
func WriteReport(ctx context.Context, logger ports.Logger, dir, name string, res *engine.Result) (*Report, error) {
	report := NewReport(res)
	paths, err := utils.WriteRunReport(dir, name, report, res.Trades)
	if err != nil {
		logger.Error(ctx, err, "Failed to write run report", map[string]interface{}{"dir": dir})
		return report, err
	}
	logger.Info(ctx, "Run report written", map[string]interface{}{
		"summary": paths.Summary,
		"trades":  paths.Trades,
	})
	return report, nil
}
