package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/dialfloor/internal/game"
)

// pausedPoll is how often a stopped clock checks for a new speed.
const pausedPoll = 100 * time.Millisecond

// Clock drives a step function in real time, once every Interval/Speed.
type Clock struct {
	Interval time.Duration // base interval per step, default 1s
	Step     func()

	mu    sync.Mutex
	speed float64 // 1 = real time, 0 = stopped
	steps uint64
}

// NewClock creates a clock at speed 1.
func NewClock(interval time.Duration, step func()) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{Interval: interval, Step: step, speed: 1}
}

// Speed returns the current multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetSpeed changes the multiplier. Zero or less stops stepping.
func (c *Clock) SetSpeed(v float64) {
	c.mu.Lock()
	c.speed = max(v, 0)
	c.mu.Unlock()
}

// Steps is the number of steps run so far.
func (c *Clock) Steps() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}

// Run steps until ctx is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	slog.Info("simulation clock started", "interval", c.Interval, "speed", c.Speed())
	defer slog.Info("simulation clock stopped", "steps", c.Steps())

	for {
		speed := c.Speed()
		if speed <= 0 {
			if !sleep(ctx, pausedPoll) {
				return ctx.Err()
			}
			continue
		}

		start := time.Now()
		c.Step()
		c.mu.Lock()
		c.steps++
		c.mu.Unlock()

		target := time.Duration(float64(c.Interval) / speed)
		wait := target - time.Since(start)
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// sleep waits for d or until ctx is done, reporting false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SimTime formats the simulated clock for logs and summaries.
func SimTime(t game.GameTime) string {
	return fmt.Sprintf("Day %d, %02d:%02d", t.Day, t.Hour, t.Minute)
}
