package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"intradayBot/internal/domain"
)

// LoadBars reads a bar file, picking the format from the extension. A file
// without a symbol column takes its symbol from the name up to the first
// underscore, so data/BTCUSDT_5m.csv yields BTCUSDT.
func LoadBars(path string, loc *time.Location) ([]domain.Bar, error) {
	symbol := SymbolFromFilename(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadBarsFromCSV(path, symbol, loc)
	case ".parquet":
		return ReadBarsFromParquet(path, symbol)
	default:
		return nil, fmt.Errorf("unsupported bar file %s: want .csv or .parquet", path)
	}
}

// SaveBars writes bars in the format given by the extension.
func SaveBars(bars []domain.Bar, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteBarsToCSV(bars, path)
	case ".parquet":
		return WriteBarsToParquet(bars, path)
	default:
		return fmt.Errorf("unsupported bar file %s: want .csv or .parquet", path)
	}
}

// LoadBarDir loads every .csv and .parquet file under dir, in file name order.
func LoadBarDir(dir string, loc *time.Location) ([]domain.Bar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".parquet":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []domain.Bar
	for _, name := range names {
		bars, err := LoadBars(filepath.Join(dir, name), loc)
		if err != nil {
			return nil, err
		}
		all = append(all, bars...)
	}
	return all, nil
}

// SymbolFromFilename returns the part of the base name before the first
// underscore or dot.
func SymbolFromFilename(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexAny(base, "_."); i > 0 {
		return base[:i]
	}
	return base
}
