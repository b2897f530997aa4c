package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"intradayBot/internal/adapters/logger"
	"intradayBot/internal/adapters/sqlite"
	"intradayBot/internal/domain"
	"intradayBot/internal/strategy/analytics"
)

func main() {
	journal := flag.String("journal", "data/trades.db", "sqlite trade journal")
	run := flag.String("run", "", "only analyze this run id")
	capital := flag.Float64("capital", 10000, "starting balance used for drawdown and ROI")
	flag.Parse()

	appLogger := logger.NewStdLogger(logger.LevelWarn)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: *journal, Logger: appLogger})
	if err != nil {
		log.Fatalf("Error opening journal %s: %v", *journal, err)
	}
	defer repo.Close()

	runs := []string{*run}
	if *run == "" {
		if runs, err = repo.Runs(ctx); err != nil {
			log.Fatalf("Error listing runs: %v", err)
		}
	}
	if len(runs) == 0 {
		log.Println("No runs found in the journal.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Run\tTrades\tWinRate\tAvgWin\tAvgLoss\tTotalPnL\tPF\tSharpe\tMaxDD\t")
	all := make(map[string][]domain.Trade, len(runs))
	for _, id := range runs {
		found, err := repo.FindByRun(ctx, id)
		if err != nil {
			log.Printf("Error reading trades for run %s: %v", id, err)
			continue
		}
		trades := make([]domain.Trade, 0, len(found))
		for _, t := range found {
			trades = append(trades, *t)
		}
		all[id] = trades

		m := analytics.AnalyzePerformance(trades, *capital)
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			id,
			m.TotalTrades,
			m.WinRate*100,
			m.AverageWin,
			m.AverageLoss,
			m.TotalProfit,
			m.ProfitFactor,
			m.SharpeRatio,
			m.MaxDrawdown*100,
		)
	}
	w.Flush()

	fmt.Println("\n## Exit Reason Breakdown")
	for _, id := range runs {
		trades, ok := all[id]
		if !ok || len(trades) == 0 {
			continue
		}
		printBreakdown(id, analytics.Breakdown(trades, *capital, analytics.ByExitReason))
	}

	fmt.Println("\n## Strategy Breakdown")
	for _, id := range runs {
		trades, ok := all[id]
		if !ok || len(trades) == 0 {
			continue
		}
		printBreakdown(id, analytics.Breakdown(trades, *capital, analytics.ByStrategy))
	}
}

func printBreakdown(run string, groups map[string]*analytics.PerformanceMetrics) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s\n", run)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Group\tTrades\tWinRate\tTotalPnL\tAvgTrade\t")
	for _, k := range keys {
		m := groups[k]
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t\n", k, m.TotalTrades, m.WinRate*100, m.TotalProfit, m.AverageTradePnL)
	}
	w.Flush()
}
