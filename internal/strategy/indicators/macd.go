package indicators

import "math"

// MACDSeries returns the MACD line (fast EMA - slow EMA) and its signal EMA.
func MACDSeries(values []float64, fast, slow, signal int) (macd, signalLine []float64) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	macd = nanSeries(len(values))
	for i := range values {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			continue
		}
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	return macd, emaSkipNaN(macd, signal)
}
