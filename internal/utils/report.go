package utils

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"intradayBot/internal/domain"
)

var tradeHeader = []string{
	"id", "symbol", "strategy", "side", "entry_time", "exit_time",
	"entry_price", "exit_price", "quantity", "pnl", "pnl_pct",
	"stop_loss", "target", "exit_reason", "regime",
}

// ReportPaths are the files written by WriteRunReport.
type ReportPaths struct {
	Summary string
	Trades  string
}

// WriteRunReport writes <dir>/<name>_summary.json and <dir>/<name>_trades.csv.
func WriteRunReport(dir, name string, summary interface{}, trades []domain.Trade) (ReportPaths, error) {
	paths := ReportPaths{
		Summary: filepath.Join(dir, name+"_summary.json"),
		Trades:  filepath.Join(dir, name+"_trades.csv"),
	}
	if err := WriteJSON(summary, paths.Summary); err != nil {
		return ReportPaths{}, err
	}
	if err := WriteTradesToCSV(trades, paths.Trades); err != nil {
		return ReportPaths{}, err
	}
	return paths, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(v interface{}, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filename, err)
	}
	return os.WriteFile(filename, append(data, '\n'), 0o644)
}

// WriteTradesToCSV writes closed trades in close order.
func WriteTradesToCSV(trades []domain.Trade, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		regime := ""
		if t.Regime != nil {
			regime = string(*t.Regime)
		}
		if err := writer.Write([]string{
			t.ID,
			t.Symbol,
			t.StrategyTag,
			string(t.Side),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Quantity),
			strconvFixed(t.PnL),
			strconvFixed(t.PnLPercent),
			formatOptional(t.StopLoss),
			formatOptional(t.Target),
			string(t.ExitReason),
			regime,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func strconvFixed(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
