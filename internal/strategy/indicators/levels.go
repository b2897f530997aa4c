package indicators

import (
	"math"
	"time"

	"intradayBot/internal/domain"
)

// ORBLevels returns the opening range of the session the last bar belongs to:
// the high and low of its first periodMinutes/intervalMinutes bars. ok is false
// until that many session bars exist.
func ORBLevels(bars []domain.Bar, periodMinutes, intervalMinutes int, loc *time.Location) (high, low float64, ok bool) {
	if len(bars) == 0 || intervalMinutes <= 0 {
		return 0, 0, false
	}
	if loc == nil {
		loc = time.UTC
	}
	count := periodMinutes / intervalMinutes
	if count <= 0 {
		return 0, 0, false
	}

	session := bars[len(bars)-1].Timestamp.In(loc).Format(time.DateOnly)
	first := len(bars) - 1
	for first > 0 && bars[first-1].Timestamp.In(loc).Format(time.DateOnly) == session {
		first--
	}
	opening := bars[first:]
	if len(opening) < count {
		return 0, 0, false
	}

	high, low = math.Inf(-1), math.Inf(1)
	for _, b := range opening[:count] {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return high, low, true
}

// SwingLevels returns the highest high and lowest low over the last lookback bars,
// the current bar included.
func SwingLevels(bars []domain.Bar, lookback int) (high, low float64, ok bool) {
	if len(bars) == 0 || lookback <= 0 {
		return 0, 0, false
	}
	if lookback > len(bars) {
		lookback = len(bars)
	}
	high, low = math.Inf(-1), math.Inf(1)
	for _, b := range bars[len(bars)-lookback:] {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return high, low, true
}

// CrossedAbove reports whether fast moved from at-or-below slow to above it
// between any two adjacent rows of the last lookback+1 rows.
func CrossedAbove(f *domain.Frame, fast, slow string, lookback int) bool {
	return crossed(f, fast, slow, lookback, func(pf, ps, cf, cs float64) bool {
		return pf <= ps && cf > cs
	})
}

// CrossedBelow is the mirror of CrossedAbove.
func CrossedBelow(f *domain.Frame, fast, slow string, lookback int) bool {
	return crossed(f, fast, slow, lookback, func(pf, ps, cf, cs float64) bool {
		return pf >= ps && cf < cs
	})
}

func crossed(f *domain.Frame, fast, slow string, lookback int, test func(pf, ps, cf, cs float64) bool) bool {
	if f.Len() < lookback+1 {
		return false
	}
	for back := lookback; back > 0; back-- {
		pf, ok1 := f.Value(fast, back)
		ps, ok2 := f.Value(slow, back)
		cf, ok3 := f.Value(fast, back-1)
		cs, ok4 := f.Value(slow, back-1)
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}
		if test(pf, ps, cf, cs) {
			return true
		}
	}
	return false
}
