package domain

import "time"

// Bar represents a single completed OHLCV candle for one symbol.
type Bar struct {
	Timestamp time.Time // Start time of the interval
	Symbol    string    // Trading symbol
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume over the interval
}

// Tick is a single trade print used by live feeds to build bars.
type Tick struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	Volume    float64 // Cumulative session volume when the venue reports it, otherwise trade size
}
