package crawler

import "time"

// Defaults for locating the product list.
const (
	defaultRetryAttempts = 3
	defaultRetryStep     = 15 * time.Second
	defaultRetryPause    = 8 * time.Second
)

// LinearRetryPolicy grants attempt n a wait of n*Step.
type LinearRetryPolicy struct {
	attempts int
	step     time.Duration
	pause    time.Duration
}

// NewLinearRetryPolicy builds a policy; non-positive values fall back to defaults.
func NewLinearRetryPolicy(attempts int, step, pause time.Duration) *LinearRetryPolicy {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if step <= 0 {
		step = defaultRetryStep
	}
	if pause < 0 {
		pause = defaultRetryPause
	}
	return &LinearRetryPolicy{attempts: attempts, step: step, pause: pause}
}

// MaxAttempts implements RetryPolicy.
func (p *LinearRetryPolicy) MaxAttempts() int {
	return p.attempts
}

// Timeout implements RetryPolicy.
func (p *LinearRetryPolicy) Timeout(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.step
}

// Pause implements RetryPolicy.
func (p *LinearRetryPolicy) Pause(int) time.Duration {
	return p.pause
}
