package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// Browser is a running browser instance able to open tabs.
type Browser interface {
	OpenTab(ctx context.Context) (Tab, error)
	Close(ctx context.Context) error
}

// Tab is a single browser tab. Only one tab is driven at a time.
type Tab interface {
	// Navigate loads rawURL and returns once the load event fires.
	Navigate(ctx context.Context, rawURL string) error
	// Evaluate runs a JavaScript expression. A nil out discards the result.
	Evaluate(ctx context.Context, expression string, out any) error
	// WaitSelector blocks until selector is present or timeout elapses.
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	// WaitVisible blocks until selector is present and displayed or timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click scrolls the first match of selector into view and clicks it.
	Click(ctx context.Context, selector string) error
	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher starts a browser for one crawl.
type Launcher func(ctx context.Context) (Browser, error)

// Sink receives extracted products.
type Sink interface {
	Write(ctx context.Context, product leaderboard.Product) error
	Close(ctx context.Context) error
}

// RobotsPolicy decides whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// RetryPolicy paces attempts at locating dynamically rendered elements.
type RetryPolicy interface {
	MaxAttempts() int
	// Timeout is how long attempt (1-based) may wait for the element.
	Timeout(attempt int) time.Duration
	// Pause is the delay after a failed attempt.
	Pause(attempt int) time.Duration
}
