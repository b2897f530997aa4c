package indicators

import "intradayBot/internal/domain"

// Supertrend directions.
const (
	TrendUp   = 1.0
	TrendDown = -1.0
)

// SupertrendSeries returns the supertrend line and its direction (+1 bullish, -1 bearish).
// Bands are hl2 +/- multiplier*ATR with the usual ratchet: the lower band never falls
// while bullish and the upper band never rises while bearish.
func SupertrendSeries(bars []domain.Bar, period int, multiplier float64) (line, direction []float64) {
	n := len(bars)
	line = nanSeries(n)
	direction = nanSeries(n)
	atr := ATRSeries(bars, period)

	start := period - 1
	if period <= 0 || n <= start {
		return line, direction
	}

	var prevUpper, prevLower float64
	dir := TrendUp
	for i := start; i < n; i++ {
		mid := (bars[i].High + bars[i].Low) / 2
		upper := mid + multiplier*atr[i]
		lower := mid - multiplier*atr[i]

		if i > start {
			switch {
			case bars[i].Close > prevUpper:
				dir = TrendUp
			case bars[i].Close < prevLower:
				dir = TrendDown
			}
			if dir == TrendUp && lower < prevLower {
				lower = prevLower
			}
			if dir == TrendDown && upper > prevUpper {
				upper = prevUpper
			}
		}

		if dir == TrendUp {
			line[i] = lower
		} else {
			line[i] = upper
		}
		direction[i] = dir
		prevUpper, prevLower = upper, lower
	}
	return line, direction
}

// IsBullish reports whether the latest supertrend direction in f is up.
func IsBullish(f *domain.Frame) bool {
	v, ok := f.Latest(ColSupertrendDir)
	return ok && v == TrendUp
}

// IsBearish reports whether the latest supertrend direction in f is down.
func IsBearish(f *domain.Frame) bool {
	v, ok := f.Latest(ColSupertrendDir)
	return ok && v == TrendDown
}

