package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intradayBot/internal/domain"
)

var sessionStart = time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)

func barsFromCloses(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: sessionStart.Add(time.Duration(i) * 5 * time.Minute),
			Symbol:    "INFY",
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func assertSeries(t *testing.T, expected, actual []float64) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		if math.IsNaN(expected[i]) {
			assert.True(t, math.IsNaN(actual[i]), "index %d: expected NaN, got %v", i, actual[i])
			continue
		}
		assert.InDelta(t, expected[i], actual[i], 1e-6, "index %d", i)
	}
}

func TestSMAAndEMA(t *testing.T) {
	nan := math.NaN()
	values := []float64{1, 2, 3, 4, 5}

	assertSeries(t, []float64{nan, nan, 2, 3, 4}, SMA(values, 3))
	assertSeries(t, []float64{nan, nan, 2, 3, 4}, EMA(values, 3))
	assertSeries(t, []float64{nan, nan}, EMA(values[:2], 3))
}

func TestMovingAverage_Calculate(t *testing.T) {
	bars := barsFromCloses(10, 11, 12, 13)

	sma := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 2}, Type: SimpleMovingAverage})
	v, err := sma.Calculate(context.Background(), bars)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, v, 1e-9)
	assert.Equal(t, "SMA", sma.Name())

	_, err = sma.Calculate(context.Background(), bars[:1])
	assert.Error(t, err)

	bad := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 2}, Type: "WMA"})
	_, err = bad.Calculate(context.Background(), bars)
	assert.Error(t, err)
}

func TestRSI_Calculate(t *testing.T) {
	bars := barsFromCloses(100, 102, 101, 103, 102, 104)

	tests := []struct {
		name          string
		period        int
		bars          []domain.Bar
		expectedValue float64
		expectError   bool
	}{
		{name: "Wilder smoothing", period: 3, bars: bars, expectedValue: 77.272727},
		{name: "Insufficient data", period: 7, bars: bars, expectError: true},
		{name: "All gains", period: 3, bars: barsFromCloses(100, 102, 104, 106), expectedValue: 100},
		{name: "No movement", period: 3, bars: barsFromCloses(100, 100, 100, 100), expectedValue: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: tt.period}, Overbought: 70, Oversold: 30})
			v, err := rsi.Calculate(context.Background(), tt.bars)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedValue, v, 1e-4)
		})
	}
}

func TestRSISeries_Warmup(t *testing.T) {
	out := RSISeries([]float64{1, 2, 3, 4}, 3)
	assert.True(t, math.IsNaN(out[2]))
	assert.InDelta(t, 100, out[3], 1e-9)
}

func TestTrueRangeAndATR(t *testing.T) {
	bars := []domain.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 12, Low: 9, Close: 11},  // max(3, |12-9|, |9-9|) = 3
		{High: 11, Low: 10, Close: 10}, // max(1, 0, 1) = 1
		{High: 14, Low: 10, Close: 13}, // max(4, 4, 0) = 4
	}
	assertSeries(t, []float64{2, 3, 1, 4}, TrueRange(bars))

	nan := math.NaN()
	// seed (2+3)/2 = 2.5, then (2.5+1)/2 = 1.75, then (1.75+4)/2 = 2.875
	assertSeries(t, []float64{nan, 2.5, 1.75, 2.875}, ATRSeries(bars, 2))

	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 2}})
	v, err := atr.Calculate(context.Background(), bars)
	require.NoError(t, err)
	assert.InDelta(t, 2.875, v, 1e-9)
}

func TestSupertrendDirection(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 200 - float64(i)
	}

	line, dir := SupertrendSeries(barsFromCloses(rising...), 3, 1.0)
	assert.True(t, math.IsNaN(dir[1]))
	assert.Equal(t, TrendUp, dir[19])
	assert.Less(t, line[19], rising[19])

	line, dir = SupertrendSeries(barsFromCloses(falling...), 3, 1.0)
	assert.Equal(t, TrendDown, dir[19])
	assert.Greater(t, line[19], falling[19])
}

func TestVWAPResetsEachSession(t *testing.T) {
	day1 := sessionStart
	day2 := sessionStart.Add(24 * time.Hour)
	bars := []domain.Bar{
		{Timestamp: day1, High: 11, Low: 9, Close: 10, Volume: 100},
		{Timestamp: day1.Add(5 * time.Minute), High: 21, Low: 19, Close: 20, Volume: 300},
		{Timestamp: day2, High: 51, Low: 49, Close: 50, Volume: 10},
		{Timestamp: day2.Add(5 * time.Minute), High: 1, Low: 1, Close: 1, Volume: 0},
	}
	out := VWAPSeries(bars, time.UTC)
	assert.InDelta(t, 10, out[0], 1e-9)
	assert.InDelta(t, 17.5, out[1], 1e-9)
	assert.InDelta(t, 50, out[2], 1e-9)
	assert.InDelta(t, 50, out[3], 1e-9)
}

func TestMACDAndVolumeRatio(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(i)
	}
	macd, signal := MACDSeries(values, 3, 6, 3)
	assert.True(t, math.IsNaN(macd[4]))
	assert.False(t, math.IsNaN(macd[5]))
	assert.True(t, math.IsNaN(signal[6]))
	assert.False(t, math.IsNaN(signal[7]))
	// linear input: fast minus slow settles at (6-3)/2
	assert.InDelta(t, 1.5, macd[39], 1e-6)

	vols := []float64{100, 100, 100, 400}
	ratio := VolumeRatioSeries(vols, 2)
	assert.True(t, math.IsNaN(ratio[0]))
	assert.InDelta(t, 1.0, ratio[1], 1e-9)
	assert.InDelta(t, 1.6, ratio[3], 1e-9)
}

func TestORBLevels(t *testing.T) {
	prevDay := []domain.Bar{
		{Timestamp: sessionStart.Add(-24 * time.Hour), High: 500, Low: 1},
		{Timestamp: sessionStart.Add(-24*time.Hour + 5*time.Minute), High: 500, Low: 1},
		{Timestamp: sessionStart.Add(-24*time.Hour + 10*time.Minute), High: 500, Low: 1},
	}
	today := []domain.Bar{
		{Timestamp: sessionStart, High: 105, Low: 99},
		{Timestamp: sessionStart.Add(5 * time.Minute), High: 107, Low: 101},
		{Timestamp: sessionStart.Add(10 * time.Minute), High: 104, Low: 98},
		{Timestamp: sessionStart.Add(15 * time.Minute), High: 120, Low: 90},
	}

	_, _, ok := ORBLevels(append(append([]domain.Bar{}, prevDay...), today[:2]...), 15, 5, time.UTC)
	assert.False(t, ok, "opening range needs three bars of the current session")

	high, low, ok := ORBLevels(append(append([]domain.Bar{}, prevDay...), today...), 15, 5, time.UTC)
	require.True(t, ok)
	assert.Equal(t, 107.0, high)
	assert.Equal(t, 98.0, low)
}

func TestSwingLevels(t *testing.T) {
	bars := []domain.Bar{
		{High: 200, Low: 50},
		{High: 110, Low: 95},
		{High: 112, Low: 97},
		{High: 108, Low: 93},
	}
	high, low, ok := SwingLevels(bars, 3)
	require.True(t, ok)
	assert.Equal(t, 112.0, high)
	assert.Equal(t, 93.0, low)

	_, _, ok = SwingLevels(nil, 3)
	assert.False(t, ok)
}

func TestCrossovers(t *testing.T) {
	frame := func(fast, slow []float64) *domain.Frame {
		return &domain.Frame{
			Bars:    make([]domain.Bar, len(fast)),
			Columns: map[string][]float64{ColEMAFast: fast, ColEMASlow: slow},
		}
	}

	tests := []struct {
		name    string
		fast    []float64
		slow    []float64
		bullish bool
		bearish bool
	}{
		{name: "cross up on last bar", fast: []float64{9, 9, 11}, slow: []float64{10, 10, 10}, bullish: true},
		{name: "cross up one bar ago", fast: []float64{10, 11, 12}, slow: []float64{10, 10, 10}, bullish: true},
		{name: "cross up too old", fast: []float64{9, 11, 12, 13}, slow: []float64{10, 10, 10, 10}},
		{name: "cross down", fast: []float64{11, 11, 9}, slow: []float64{10, 10, 10}, bearish: true},
		{name: "warmup NaN", fast: []float64{math.NaN(), math.NaN(), 11}, slow: []float64{10, 10, 10}},
		{name: "too short", fast: []float64{11}, slow: []float64{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frame(tt.fast, tt.slow)
			assert.Equal(t, tt.bullish, CrossedAbove(f, ColEMAFast, ColEMASlow, 2))
			assert.Equal(t, tt.bearish, CrossedBelow(f, ColEMAFast, ColEMASlow, 2))
		})
	}
}

func TestEngineCompute(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/3)*5
	}
	bars := barsFromCloses(closes...)

	engine := NewEngine(EngineConfig{})
	assert.Equal(t, 9, engine.Config().EMAFast)

	frame := engine.Compute(bars)
	require.Equal(t, 60, frame.Len())
	for _, col := range []string{ColEMAFast, ColEMASlow, ColSupertrend, ColSupertrendDir, ColVWAP, ColRSI, ColMACD, ColMACDSignal, ColATR, ColVolumeRatio} {
		require.Len(t, frame.Columns[col], 60, col)
		_, ok := frame.Latest(col)
		assert.True(t, ok, "column %s should be defined on the last row", col)
	}
	_, ok := frame.Value(ColEMASlow, 59)
	assert.False(t, ok, "first row is warmup")

	bars[0].Close = -1
	assert.NotEqual(t, -1.0, frame.Bars[0].Close, "frame owns a copy of the bars")
}
