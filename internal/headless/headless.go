// Package headless drives a real Chrome instance for the crawler. Two drivers
// are available: chromedp, which talks CDP directly, and rod, which can patch
// pages with stealth scripts.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/leaderboard-crawler/internal/crawler"
)

// Supported driver names.
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// ErrUnknownDriver is returned by Launch for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown browser driver")

// Options configures the browser process.
type Options struct {
	Driver        string
	Headless      bool
	NoSandbox     bool
	UserAgent     string
	WindowWidth   int
	WindowHeight  int
	ActionTimeout time.Duration
	// Stealth applies evasion scripts to every tab. Only rod supports it.
	Stealth  bool
	ExecPath string
}

// DefaultOptions returns the settings used by the crawl command.
func DefaultOptions() Options {
	return Options{
		Driver:        DriverChromedp,
		Headless:      true,
		NoSandbox:     true,
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		WindowWidth:   1920,
		WindowHeight:  1080,
		ActionTimeout: 60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Driver == "" {
		o.Driver = def.Driver
	}
	if o.UserAgent == "" {
		o.UserAgent = def.UserAgent
	}
	if o.WindowWidth <= 0 || o.WindowHeight <= 0 {
		o.WindowWidth, o.WindowHeight = def.WindowWidth, def.WindowHeight
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = def.ActionTimeout
	}
	return o
}

// Launch starts a browser with the configured driver.
func Launch(ctx context.Context, opts Options) (crawler.Browser, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(opts.Driver) {
	case DriverChromedp:
		return launchChromedp(ctx, opts)
	case DriverRod:
		return launchRod(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// Launcher binds opts into a crawler.Launcher.
func Launcher(opts Options) crawler.Launcher {
	return func(ctx context.Context) (crawler.Browser, error) {
		return Launch(ctx, opts)
	}
}

// ValidateDriver reports whether name is a supported driver.
func ValidateDriver(name string) error {
	switch strings.ToLower(name) {
	case DriverChromedp, DriverRod:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}

// forwardCancel cancels a detached task context when parent is done.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
