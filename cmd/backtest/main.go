package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"intradayBot/config"
	"intradayBot/internal/adapters/logger"
	"intradayBot/internal/adapters/sqlite"
	"intradayBot/internal/app"
	"intradayBot/internal/domain"
	"intradayBot/internal/execution"
	"intradayBot/internal/ports"
	"intradayBot/internal/strategy/strategies"
	"intradayBot/internal/utils"
)

func main() {
	data := flag.String("data", "", "bar file (.csv/.parquet) or directory of bar files; defaults to DATA_PATH")
	strategyList := flag.String("strategies", "", "comma separated strategy kinds; defaults to STRATEGIES")
	fill := flag.String("fill", "", "fill policy: close or next_open; defaults to FILL_POLICY")
	runID := flag.String("run-id", "", "run identifier used for the journal and report names")
	reportDir := flag.String("report-dir", "", "directory for the summary and trades report; defaults to REPORT_DIR")
	journal := flag.String("journal", "", "sqlite journal path; empty disables journaling")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *data != "" {
		cfg.DataPath = *data
	}
	if *reportDir != "" {
		cfg.ReportDir = *reportDir
	}
	if *strategyList != "" {
		kinds, err := parseKinds(*strategyList)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		cfg.Strategies = kinds
	}
	if *fill != "" {
		policy, err := execution.ParseFillPolicy(*fill)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		cfg.FillPolicy = policy
	}
	if *runID == "" {
		*runID = fmt.Sprintf("backtest_%s", time.Now().UTC().Format("20060102T150405"))
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	bars, err := loadBars(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars from %s: %v", cfg.DataPath, err)
	}

	var tradeJournal ports.TradeJournal
	if *journal != "" {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: *journal, RunID: *runID, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to open journal: %v", err)
		}
		defer repo.Close()
		tradeJournal = repo
	}

	report, _, err := app.RunBacktest(ctx, cfg, appLogger, bars, tradeJournal, *runID)
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}
	printReport(report)
}

func parseKinds(list string) ([]strategies.Kind, error) {
	var kinds []strategies.Kind
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		k, err := strategies.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func loadBars(cfg *config.Config) ([]domain.Bar, error) {
	info, err := os.Stat(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return utils.LoadBarDir(cfg.DataPath, cfg.Location)
	}
	return utils.LoadBars(cfg.DataPath, cfg.Location)
}

func printReport(r *app.Report) {
	s := r.Summary
	p := r.Performance
	fmt.Printf("Execution:      %s\n", s.Execution)
	fmt.Printf("Period:         %s to %s\n", s.StartTime.Format("2006-01-02 15:04"), s.EndTime.Format("2006-01-02 15:04"))
	fmt.Printf("Capital:        %.2f -> %.2f (%.2f%%)\n", s.InitialCapital, s.FinalCapital, s.TotalReturnPct)
	fmt.Printf("Trades:         %d (won %d, lost %d)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Printf("Win rate:       %.2f%%\n", p.WinRate*100)
	fmt.Printf("Profit factor:  %.2f\n", p.ProfitFactor)
	fmt.Printf("Sharpe:         %.2f\n", p.SharpeRatio)
	fmt.Printf("Max drawdown:   %.2f%% (%.2f)\n", p.MaxDrawdown*100, p.MaxDrawdownAmount)
	fmt.Printf("Bars:           %d processed, %d skipped\n", s.BarsProcessed, s.BarsSkipped)
	fmt.Printf("Risk denials:   %d\n", s.RiskDenials)

	if len(r.ByStrategy) == 0 {
		return
	}
	fmt.Println("\n## By strategy")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Strategy\tTrades\tWinRate\tPnL\tPF\tMaxDD\t")
	for name, m := range r.ByStrategy {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			name, m.TotalTrades, m.WinRate*100, m.TotalProfit, m.ProfitFactor, m.MaxDrawdown*100)
	}
	w.Flush()
}
