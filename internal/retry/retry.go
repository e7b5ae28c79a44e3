// Package retry provides the bounded retry policy shared by the login path
// and the poll-loop restart path.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	logx "goalbot/pkg/logx"
)

// Policy is an explicit bounded-retry description: max attempts, base
// delay, multiplier, and a classifier for upstream-like failures which get
// stretched delays.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// UpstreamFactor stretches the delay when Classify reports an
	// upstream-like failure (provider outage rather than a local problem).
	UpstreamFactor float64
	Classify       func(error) bool
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Minute
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.UpstreamFactor < 1 {
		p.UpstreamFactor = 1
	}
	return p
}

// Delay computes the wait before the next attempt. attempt starts at 1.
func (p Policy) Delay(attempt int, upstream bool) time.Duration {
	p = p.withDefaults()
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if upstream {
		d *= p.UpstreamFactor
	}
	// Jitter 0.7..1.3 so synchronized restarts don't stampede.
	d *= 0.7 + rand.Float64()*0.6
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Do runs fn up to MaxAttempts times with growing backoff. The last error
// is returned after exhaustion.
func (p Policy) Do(ctx context.Context, log logx.Logger, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		upstream := p.Classify != nil && p.Classify(lastErr)
		if attempt >= p.MaxAttempts {
			break
		}
		wait := p.Delay(attempt, upstream)
		log.Warn("attempt failed; backing off",
			logx.String("op", op),
			logx.Int("attempt", attempt),
			logx.Int("max", p.MaxAttempts),
			logx.Bool("upstream", upstream),
			logx.Duration("backoff", wait),
			logx.Err(lastErr))

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: attempts exhausted: %w", op, lastErr)
}
