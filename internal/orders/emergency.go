package orders

import (
	"context"
	"math"
	"sync"
	"time"

	"intradayBot/internal/ports"
)

// EmergencyStop latches once the day's P&L moves too far from zero. Only Reset clears it.
type EmergencyStop struct {
	threshold float64
	logger    ports.Logger

	mu          sync.Mutex
	active      bool
	triggeredAt time.Time
}

// NewEmergencyStop creates the latch. threshold is a fraction of initial capital (0.05 = 5%).
func NewEmergencyStop(threshold float64, logger ports.Logger) *EmergencyStop {
	return &EmergencyStop{threshold: threshold, logger: logger}
}

// Check evaluates |dailyPnL| / initialCapital against the threshold. It returns true
// only on the call that activates the latch.
func (e *EmergencyStop) Check(ctx context.Context, dailyPnL, initialCapital float64, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active || e.threshold <= 0 || initialCapital <= 0 {
		return false
	}
	lossPct := math.Abs(dailyPnL) / initialCapital
	if lossPct < e.threshold {
		return false
	}
	e.active = true
	e.triggeredAt = now
	e.logger.Error(ctx, ports.ErrEmergencyStop, "Emergency stop activated", map[string]interface{}{
		"dailyPnL":  dailyPnL,
		"lossPct":   lossPct * 100,
		"threshold": e.threshold * 100,
	})
	return true
}

// Active reports whether the latch is set.
func (e *EmergencyStop) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// TriggeredAt returns when the latch was set, or the zero time.
func (e *EmergencyStop) TriggeredAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.triggeredAt
}

// Threshold returns the configured fraction.
func (e *EmergencyStop) Threshold() float64 {
	return e.threshold
}

// Reset clears the latch. It is an explicit operator action.
func (e *EmergencyStop) Reset(ctx context.Context) {
	e.mu.Lock()
	was := e.active
	e.active = false
	e.triggeredAt = time.Time{}
	e.mu.Unlock()
	if was {
		e.logger.Warn(ctx, "Emergency stop reset")
	}
}
