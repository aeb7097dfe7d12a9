package gateway

import (
	"context"
	"sync"
	"time"
)

// cooldown is a gateway-wide pause opened by rate-limit responses; every
// caller waits it out before its next attempt.
type cooldown struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
}

func newCooldown(now func() time.Time) *cooldown {
	return &cooldown{now: now}
}

// extend pushes the pause to at least now+d. It never shortens it.
func (c *cooldown) extend(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if until := c.now().Add(d); until.After(c.until) {
		c.until = until
	}
}

func (c *cooldown) remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.until.IsZero() {
		return 0
	}
	return c.until.Sub(c.now())
}

func (c *cooldown) wait(ctx context.Context, sleep func(context.Context, time.Duration) error) error {
	for {
		d := c.remaining()
		if d <= 0 {
			return ctx.Err()
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}
