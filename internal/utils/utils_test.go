package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intradayBot/internal/domain"
)

func sampleBars() []domain.Bar {
	start := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	return []domain.Bar{
		{Timestamp: start, Symbol: "BTCUSDT", Open: 100, High: 101.5, Low: 99.25, Close: 101, Volume: 1200},
		{Timestamp: start.Add(5 * time.Minute), Symbol: "BTCUSDT", Open: 101, High: 102, Low: 100.5, Close: 101.75, Volume: 900.5},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "BTCUSDT_5m.csv")
	require.NoError(t, SaveBars(sampleBars(), path))

	got, err := LoadBars(path, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, want := range sampleBars() {
		assert.True(t, want.Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, want.Symbol, got[i].Symbol)
		assert.Equal(t, want.Close, got[i].Close)
		assert.Equal(t, want.Volume, got[i].Volume)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTCUSDT_5m.parquet")
	require.NoError(t, SaveBars(sampleBars(), path))

	got, err := LoadBars(path, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, sampleBars()[1].Timestamp.Equal(got[1].Timestamp))
	assert.Equal(t, 101.75, got[1].Close)
	assert.Equal(t, 900.5, got[1].Volume)
}

func TestReadBarsCSV_HeaderVariants(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	input := "Volume,Close,Low,High,Open,Timestamp,extra\n" +
		"500,10.5,9.5,11,10,2024-01-02 09:15:00,x\n" +
		"600,10.75,10.25,11.25,10.5,1704167400000,y\n"
	bars, err := readBarsCSV(strings.NewReader(input), "INFY", ist)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "INFY", bars[0].Symbol)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 15, 0, 0, ist).Unix(), bars[0].Timestamp.Unix())
	assert.Equal(t, 10.0, bars[0].Open)
	assert.Equal(t, int64(1704167400000), bars[1].Timestamp.UnixMilli())
}

func TestReadBarsCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing column", "timestamp,open,high,low,close\n", "missing column"},
		{"no symbol", "timestamp,open,high,low,close,volume\n", "no symbol column"},
		{"bad price", "timestamp,symbol,open,high,low,close,volume\n2024-01-02T09:15:00Z,A,x,1,1,1,1\n", "invalid open"},
		{"bad time", "timestamp,symbol,open,high,low,close,volume\nyesterday,A,1,1,1,1,1\n", "unrecognized timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readBarsCSV(strings.NewReader(tt.input), "", time.UTC)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBarDir(t *testing.T) {
	dir := t.TempDir()
	bars := sampleBars()
	eth := []domain.Bar{bars[0]}
	eth[0].Symbol = "ETHUSDT"
	require.NoError(t, SaveBars(bars, filepath.Join(dir, "BTCUSDT_5m.csv")))
	require.NoError(t, SaveBars(eth, filepath.Join(dir, "ETHUSDT_5m.parquet")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	all, err := LoadBarDir(dir, time.UTC)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "ETHUSDT", all[2].Symbol)
}

func TestLoadBars_UnsupportedExtension(t *testing.T) {
	_, err := LoadBars("bars.json", time.UTC)
	assert.Error(t, err)
}

func TestSymbolFromFilename(t *testing.T) {
	assert.Equal(t, "BTCUSDT", SymbolFromFilename("data/BTCUSDT_5m_20240101.csv"))
	assert.Equal(t, "AAPL", SymbolFromFilename("AAPL.parquet"))
}

func TestWriteRunReport(t *testing.T) {
	dir := t.TempDir()
	stop := 98.0
	regime := domain.RegimeRangeBound
	trades := []domain.Trade{{
		ID:          "BTCUSDT_1704186900",
		Symbol:      "BTCUSDT",
		StrategyTag: "orb_supertrend",
		Side:        domain.SideLong,
		EntryTime:   time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC),
		ExitTime:    time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		EntryPrice:  100,
		ExitPrice:   104,
		Quantity:    10,
		PnL:         40,
		PnLPercent:  4,
		StopLoss:    &stop,
		ExitReason:  domain.ExitTargetHit,
		Regime:      &regime,
	}}

	paths, err := WriteRunReport(dir, "run1", map[string]interface{}{"total_trades": 1}, trades)
	require.NoError(t, err)

	data, err := os.ReadFile(paths.Summary)
	require.NoError(t, err)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 1.0, summary["total_trades"])

	csvData, err := os.ReadFile(paths.Trades)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,symbol,strategy"))
	assert.Contains(t, lines[1], "long")
	assert.Contains(t, lines[1], "40.00")
	assert.Contains(t, lines[1], ",98,,target_hit,range_bound")
}
