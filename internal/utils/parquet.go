package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"intradayBot/internal/domain"
)

// BarRecord is the parquet schema for bar files.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// WriteBarsToParquet writes bars to a single parquet file.
func WriteBarsToParquet(bars []domain.Bar, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Symbol:    b.Symbol,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	if err := parquet.WriteFile(filename, records); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}

// ReadBarsFromParquet reads a bar file written by WriteBarsToParquet. Rows
// with an empty symbol get defaultSymbol.
func ReadBarsFromParquet(filename, defaultSymbol string) ([]domain.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	bars := make([]domain.Bar, len(records))
	for i, r := range records {
		sym := r.Symbol
		if sym == "" {
			sym = defaultSymbol
		}
		bars[i] = domain.Bar{
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Symbol:    sym,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		}
	}
	return bars, nil
}
