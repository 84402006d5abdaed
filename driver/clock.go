package driver

import (
	"context"
	"time"

	"github.com/sarchlab/akita/v4/sim"
)

// Default timing of the original handheld.
const (
	DefaultClockHz   = 4194304.0
	DefaultRefreshHz = 59.7275
)

// Quantum returns the number of guest cycles in one display refresh.
func Quantum(clockHz, refreshHz float64) uint32 {
	if clockHz <= 0 || refreshHz <= 0 {
		return 0
	}
	return uint32(sim.Freq(clockHz).Cycle(sim.Freq(refreshHz).Period()))
}

// Period returns the wall-clock time between refreshes.
func Period(refreshHz float64) time.Duration {
	if refreshHz <= 0 {
		return 0
	}
	return time.Duration(float64(sim.Freq(refreshHz).Period()) * float64(time.Second))
}

// Scheduler decides when the next tick may run.
type Scheduler interface {
	Wait(ctx context.Context) error
}

// FrameClock paces ticks at the display refresh rate. Refreshes that pass while
// a tick is still running are dropped, not queued.
type FrameClock struct {
	ticker *time.Ticker
}

// NewFrameClock starts a clock at refreshHz, or DefaultRefreshHz if refreshHz <= 0.
func NewFrameClock(refreshHz float64) *FrameClock {
	if refreshHz <= 0 {
		refreshHz = DefaultRefreshHz
	}
	return &FrameClock{ticker: time.NewTicker(Period(refreshHz))}
}

// Wait blocks until the next refresh.
func (c *FrameClock) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (c *FrameClock) Stop() {
	c.ticker.Stop()
}

// Immediate lets every tick run as soon as the previous one finished.
type Immediate struct{}

// Wait returns at once unless ctx is done.
func (Immediate) Wait(ctx context.Context) error {
	return ctx.Err()
}
