package crawler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// pauseController abstracts fixed waits so tests can observe them.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// throttle keeps navigations at least delay apart. A zero delay disables it.
type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(delay time.Duration) *throttle {
	if delay <= 0 {
		return &throttle{}
	}
	return &throttle{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

func (t *throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait request slot: %w", err)
	}
	return nil
}
