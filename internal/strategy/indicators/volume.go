package indicators

import "math"

// VolumeRatioSeries returns volume divided by its rolling mean over lookback bars.
// A zero mean yields NaN.
func VolumeRatioSeries(vols []float64, lookback int) []float64 {
	avg := SMA(vols, lookback)
	out := nanSeries(len(vols))
	for i, v := range vols {
		if math.IsNaN(avg[i]) || avg[i] == 0 {
			continue
		}
		out[i] = v / avg[i]
	}
	return out
}
