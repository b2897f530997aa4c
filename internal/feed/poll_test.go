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

// mockHistory returns one bar opening at start for every request, plus a
// forming bar that must be filtered out.
type mockHistory struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockHistory) GetBarsRange(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []domain.Bar{
		{Timestamp: start, Symbol: symbol, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Timestamp: end.Add(time.Nanosecond), Symbol: symbol, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1},
	}, nil
}

func TestPoll_DeliversCompletedBars(t *testing.T) {
	src := &mockHistory{}
	p, err := NewPoll(src, PollConfig{
		Symbols:  []string{"AAPL"},
		Interval: 20 * time.Millisecond,
		Delay:    time.Millisecond,
		Logger:   &mockLogger{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan domain.Bar, 8)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, out) }()

	var got []domain.Bar
	for len(got) < 3 {
		select {
		case b := <-out:
			got = append(got, b)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for polled bars")
		}
	}
	cancel()
	require.NoError(t, <-done)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp), "bars strictly increase")
		assert.Equal(t, 100.0, got[i].Volume, "forming bar filtered")
	}
	assert.GreaterOrEqual(t, p.Delivered(), int64(3))
}

func TestPoll_GivesUpAfterRepeatedFailures(t *testing.T) {
	src := &mockHistory{err: errors.New("503")}
	p, err := NewPoll(src, PollConfig{
		Symbols:     []string{"AAPL", "MSFT"},
		Interval:    10 * time.Millisecond,
		Delay:       time.Millisecond,
		MaxFailures: 2,
		Logger:      &mockLogger{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = p.Run(ctx, make(chan domain.Bar, 1))
	assert.ErrorIs(t, err, ports.ErrFeedUnavailable)
	assert.Equal(t, 4, src.calls)
}

func TestNewPoll_Validation(t *testing.T) {
	_, err := NewPoll(nil, PollConfig{Symbols: []string{"A"}, Interval: time.Minute, Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewPoll(&mockHistory{}, PollConfig{Interval: time.Minute, Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewPoll(&mockHistory{}, PollConfig{Symbols: []string{"A"}, Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	p, err := NewPoll(&mockHistory{}, PollConfig{Symbols: []string{"A"}, Interval: time.Minute, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, defaultPollDelay, p.delay)
	assert.Equal(t, defaultMaxFailures, p.maxFailures)
}
