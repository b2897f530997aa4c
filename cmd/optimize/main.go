package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	_ "time/tzdata"

	"intradayBot/config"
	"intradayBot/internal/app"
	"intradayBot/internal/ports"
	"intradayBot/internal/strategy/optimization"
	"intradayBot/internal/utils"
)

func main() {
	data := flag.String("data", "", "bar file or directory; defaults to DATA_PATH")
	grid := flag.String("grid", "", "parameter grid, e.g. ema_trend.ema_fast=5:13:2,ema_trend.ema_slow=21:34:13")
	score := flag.String("score", "default", "ranking: default or sharpe")
	workers := flag.Int("workers", 4, "concurrent replays")
	top := flag.Int("top", 10, "rows to print")
	flag.Parse()

	if *grid == "" {
		log.Fatalf("FATAL: -grid is required")
	}
	ranges, err := optimization.ParseRanges(*grid)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *data != "" {
		cfg.DataPath = *data
	}
	info, err := os.Stat(cfg.DataPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	load := utils.LoadBars
	if info.IsDir() {
		load = utils.LoadBarDir
	}
	bars, err := load(cfg.DataPath, cfg.Location)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars from %s: %v", cfg.DataPath, err)
	}

	scoreFn := optimization.DefaultScoreFunction
	if *score == "sharpe" {
		scoreFn = optimization.SharpeScore
	}
	opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: ranges,
		Base:            cfg.StrategyParams,
		InitialCapital:  cfg.InitialCapital,
		Workers:         *workers,
		ScoreFunction:   scoreFn,
	})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	fmt.Printf("Sweeping %d combinations over %d bars...\n", len(opt.Combinations()), len(bars))
	results, err := opt.Optimize(context.Background(), app.ParamRunner(cfg, ports.Nop{}, bars))
	if err != nil {
		log.Fatalf("FATAL: Optimization failed: %v", err)
	}

	names := make([]string, 0, len(ranges))
	for _, r := range ranges {
		names = append(names, r.Name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, strings.Join(names, "\t")+"\tTrades\tWinRate\tPnL\tSharpe\tMaxDD\tScore\t")
	for i, r := range results {
		if i >= *top {
			break
		}
		cells := make([]string, 0, len(names))
		for _, n := range names {
			cells = append(cells, fmt.Sprintf("%g", r.Parameters[n]))
		}
		if r.Err != nil {
			fmt.Fprintf(w, "%s\terror: %v\t\n", strings.Join(cells, "\t"), r.Err)
			continue
		}
		m := r.Metrics
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.3f\t\n",
			strings.Join(cells, "\t"), m.TotalTrades, m.WinRate*100, m.TotalProfit, m.SharpeRatio, m.MaxDrawdown*100, r.Score)
	}
	w.Flush()
}
