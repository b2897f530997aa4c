package indicators

import (
	"time"

	"intradayBot/internal/domain"
)

// VWAPSeries returns the session volume-weighted average of the typical price.
// Accumulation restarts whenever the bar date in loc changes. Rows with no
// session volume yet are NaN.
func VWAPSeries(bars []domain.Bar, loc *time.Location) []float64 {
	if loc == nil {
		loc = time.UTC
	}
	out := nanSeries(len(bars))
	var cumPV, cumVol float64
	var session string
	for i, b := range bars {
		day := b.Timestamp.In(loc).Format(time.DateOnly)
		if day != session {
			session = day
			cumPV, cumVol = 0, 0
		}
		typical := (b.High + b.Low + b.Close) / 3
		cumPV += typical * b.Volume
		cumVol += b.Volume
		if cumVol > 0 {
			out[i] = cumPV / cumVol
		}
	}
	return out
}
