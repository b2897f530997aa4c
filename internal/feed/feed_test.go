package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

type mockLogger struct {
	mu        sync.Mutex
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// mockTickSource replays ticks on a goroutine. With hold set it keeps the stream
// open until ctx is cancelled.
type mockTickSource struct {
	ticks     []domain.Tick
	hold      bool
	streamErr error
}

func (m *mockTickSource) StreamTicks(ctx context.Context, symbols []string, handler func(domain.Tick), errHandler func(error)) (<-chan struct{}, error) {
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, t := range m.ticks {
			handler(t)
		}
		if m.hold {
			<-ctx.Done()
		}
	}()
	return done, nil
}

var t0 = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

func tick(symbol string, offset time.Duration, price, volume float64) domain.Tick {
	return domain.Tick{Symbol: symbol, Timestamp: t0.Add(offset), Price: price, Volume: volume}
}

func TestAggregator_BuildsBars(t *testing.T) {
	agg, err := NewAggregator(5*time.Minute, VolumeTradeSize)
	require.NoError(t, err)

	for _, tk := range []domain.Tick{
		tick("AAA", 10*time.Second, 100, 5),
		tick("AAA", time.Minute, 103, 2),
		tick("AAA", 2*time.Minute, 98, 1),
		tick("AAA", 4*time.Minute+59*time.Second, 101, 4),
	} {
		_, done := agg.AddTick(tk)
		assert.False(t, done)
	}

	bar, done := agg.AddTick(tick("AAA", 5*time.Minute, 102, 3))
	require.True(t, done)
	assert.Equal(t, domain.Bar{Timestamp: t0, Symbol: "AAA", Open: 100, High: 103, Low: 98, Close: 101, Volume: 12}, bar)

	cur, ok := agg.Current("AAA")
	require.True(t, ok)
	assert.Equal(t, t0.Add(5*time.Minute), cur.Timestamp)
	assert.Equal(t, 102.0, cur.Open)
	assert.Equal(t, 3.0, cur.Volume)
}

func TestAggregator_CumulativeVolume(t *testing.T) {
	agg, err := NewAggregator(time.Minute, VolumeCumulative)
	require.NoError(t, err)

	agg.AddTick(tick("AAA", 0, 100, 1000))
	agg.AddTick(tick("AAA", 30*time.Second, 101, 1400))
	bar, done := agg.AddTick(tick("AAA", time.Minute, 102, 1500))
	require.True(t, done)
	assert.Equal(t, 400.0, bar.Volume)

	bar, done = agg.AddTick(tick("AAA", 2*time.Minute, 102, 1900))
	require.True(t, done)
	assert.Equal(t, 100.0, bar.Volume)
}

func TestAggregator_IgnoresBadTicks(t *testing.T) {
	agg, err := NewAggregator(time.Minute, VolumeTradeSize)
	require.NoError(t, err)

	_, done := agg.AddTick(tick("AAA", 0, 0, 1))
	assert.False(t, done)
	_, ok := agg.Current("AAA")
	assert.False(t, ok)

	agg.AddTick(tick("AAA", 2*time.Minute, 100, 1))
	_, done = agg.AddTick(tick("AAA", time.Minute, 99, 1))
	assert.False(t, done)
	cur, _ := agg.Current("AAA")
	assert.Equal(t, 100.0, cur.Low)
}

func TestAggregator_SymbolsIndependent(t *testing.T) {
	agg, err := NewAggregator(time.Minute, VolumeTradeSize)
	require.NoError(t, err)

	agg.AddTick(tick("AAA", 0, 100, 1))
	agg.AddTick(tick("BBB", 0, 50, 1))
	_, done := agg.AddTick(tick("BBB", 30*time.Second, 51, 1))
	assert.False(t, done)

	bar, done := agg.AddTick(tick("AAA", time.Minute, 101, 1))
	require.True(t, done)
	assert.Equal(t, "AAA", bar.Symbol)
	cur, _ := agg.Current("BBB")
	assert.Equal(t, 51.0, cur.Close)
}

func TestParseVolumeMode(t *testing.T) {
	m, err := ParseVolumeMode("")
	require.NoError(t, err)
	assert.Equal(t, VolumeTradeSize, m)

	m, err = ParseVolumeMode(" Cumulative ")
	require.NoError(t, err)
	assert.Equal(t, VolumeCumulative, m)

	_, err = ParseVolumeMode("weighted")
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestLive_DeliversCompletedBars(t *testing.T) {
	src := &mockTickSource{
		hold: true,
		ticks: []domain.Tick{
			tick("AAA", 0, 100, 1),
			tick("AAA", 30*time.Second, 102, 1),
			tick("AAA", time.Minute, 101, 1),
			tick("AAA", 2*time.Minute, 103, 1),
		},
	}
	live, err := NewLive(src, LiveConfig{Symbols: []string{"AAA"}, Interval: time.Minute, Logger: &mockLogger{}})
	require.NoError(t, err)

	out := make(chan domain.Bar, 8)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- live.Run(ctx, out) }()

	first := <-out
	second := <-out
	assert.Equal(t, t0, first.Timestamp)
	assert.Equal(t, 102.0, first.High)
	assert.Equal(t, t0.Add(time.Minute), second.Timestamp)

	cancel()
	assert.NoError(t, <-errCh)
	assert.Equal(t, int64(2), live.Delivered())
}

func TestLive_StreamEndsUnexpectedly(t *testing.T) {
	src := &mockTickSource{ticks: []domain.Tick{tick("AAA", 0, 100, 1)}}
	live, err := NewLive(src, LiveConfig{Symbols: []string{"AAA"}, Interval: time.Minute, Logger: &mockLogger{}})
	require.NoError(t, err)

	err = live.Run(context.Background(), make(chan domain.Bar, 1))
	assert.ErrorIs(t, err, ports.ErrFeedUnavailable)
}

func TestLive_StreamStartFails(t *testing.T) {
	src := &mockTickSource{streamErr: errors.New("dial tcp: refused")}
	live, err := NewLive(src, LiveConfig{Symbols: []string{"AAA"}, Interval: time.Minute, Logger: &mockLogger{}})
	require.NoError(t, err)

	err = live.Run(context.Background(), make(chan domain.Bar, 1))
	assert.ErrorIs(t, err, ports.ErrFeedUnavailable)
}

func TestNewLive_Validation(t *testing.T) {
	_, err := NewLive(nil, LiveConfig{Symbols: []string{"AAA"}, Interval: time.Minute, Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewLive(&mockTickSource{}, LiveConfig{Interval: time.Minute, Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewLive(&mockTickSource{}, LiveConfig{Symbols: []string{"AAA"}, Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestReplay_OrdersBars(t *testing.T) {
	bars := []domain.Bar{
		{Symbol: "BBB", Timestamp: t0.Add(time.Minute), Close: 1},
		{Symbol: "BBB", Timestamp: t0, Close: 2},
		{Symbol: "AAA", Timestamp: t0, Close: 3},
	}
	r := NewReplay(bars)
	out := make(chan domain.Bar, len(bars))
	require.NoError(t, r.Run(context.Background(), out))
	close(out)

	var got []string
	for b := range out {
		got = append(got, b.Symbol+b.Timestamp.Format("1504"))
	}
	assert.Equal(t, []string{"AAA0915", "BBB0915", "BBB0916"}, got)
	assert.Equal(t, "BBB", bars[0].Symbol)
}

func TestReplay_StopsOnCancel(t *testing.T) {
	r := NewReplay([]domain.Bar{{Symbol: "AAA", Timestamp: t0}, {Symbol: "AAA", Timestamp: t0.Add(time.Minute)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Run(ctx, make(chan domain.Bar)))
}
