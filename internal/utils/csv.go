package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"intradayBot/internal/domain"
)

var barHeader = []string{"timestamp", "symbol", "open", "high", "low", "close", "volume"}

// Layouts accepted for the timestamp column, tried in order. A bare integer is
// read as Unix milliseconds.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

// WriteBarsToCSV writes bars with a header row. Timestamps are RFC3339.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			b.Timestamp.Format(time.RFC3339),
			b.Symbol,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBarsFromCSV reads a bar file. Columns are matched by header name, so
// order does not matter and extra columns are ignored. When the file has no
// symbol column every bar gets defaultSymbol. Timestamps without a zone are
// interpreted in loc (UTC when nil).
func ReadBarsFromCSV(filename, defaultSymbol string, loc *time.Location) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readBarsCSV(file, defaultSymbol, loc)
}

func readBarsCSV(r io.Reader, defaultSymbol string, loc *time.Location) ([]domain.Bar, error) {
	if loc == nil {
		loc = time.UTC
	}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["timestamp"]; !ok {
		if i, ok := cols["open_time"]; ok {
			cols["timestamp"] = i // fetch_klines era files
		}
	}
	for _, required := range []string{"timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	symbolCol, hasSymbol := cols["symbol"]
	if !hasSymbol && defaultSymbol == "" {
		return nil, fmt.Errorf("no symbol column and no default symbol")
	}

	var bars []domain.Bar
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseTimestamp(record[cols["timestamp"]], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := domain.Bar{Timestamp: ts, Symbol: defaultSymbol}
		if hasSymbol && record[symbolCol] != "" {
			bar.Symbol = record[symbolCol]
		}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
			{"volume", &bar.Volume},
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[cols[f.col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", line, f.col, err)
			}
			*f.dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
