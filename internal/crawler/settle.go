package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	readyStateJS     = `document.readyState`
	scrollHeightJS   = `document.body.scrollHeight`
	scrollBottomJS   = `window.scrollTo(0, document.body.scrollHeight)`
	scrollTopJS      = `window.scrollTo(0, 0)`
	defaultReadyPoll = 250 * time.Millisecond
)

// SettleConfig tunes the page-ready heuristic.
type SettleConfig struct {
	ReadyTimeout time.Duration
	ReadyPoll    time.Duration
	InitialDelay time.Duration
	MaxScrolls   int
	ScrollDelay  time.Duration
	TopDelay     time.Duration
}

// DefaultSettleConfig mirrors the delays the site has been observed to need.
func DefaultSettleConfig() SettleConfig {
	return SettleConfig{
		ReadyTimeout: 30 * time.Second,
		ReadyPoll:    defaultReadyPoll,
		InitialDelay: 3 * time.Second,
		MaxScrolls:   5,
		ScrollDelay:  3 * time.Second,
		TopDelay:     2 * time.Second,
	}
}

// Settler waits for a page's lazy content to load: readyState must reach
// "complete", then the page is scrolled to the bottom until its height stops
// growing, then back to the top.
type Settler struct {
	cfg    SettleConfig
	pauser pauseController
}

// NewSettler builds a Settler.
func NewSettler(cfg SettleConfig) *Settler {
	if cfg.ReadyPoll <= 0 {
		cfg.ReadyPoll = defaultReadyPoll
	}
	return &Settler{cfg: cfg, pauser: &timerPauseController{}}
}

// Settle runs the heuristic against tab.
func (s *Settler) Settle(ctx context.Context, tab Tab) error {
	if err := s.waitReady(ctx, tab); err != nil {
		return err
	}
	s.pauser.Pause(ctx, s.cfg.InitialDelay)

	var (
		prev     int64
		havePrev bool
	)
	for i := 0; i < s.cfg.MaxScrolls; i++ {
		if err := tab.Evaluate(ctx, scrollBottomJS, nil); err != nil {
			return fmt.Errorf("scroll to bottom: %w", err)
		}
		s.pauser.Pause(ctx, s.cfg.ScrollDelay)
		var height int64
		if err := tab.Evaluate(ctx, scrollHeightJS, &height); err != nil {
			return fmt.Errorf("read scroll height: %w", err)
		}
		if havePrev && height == prev {
			break
		}
		prev, havePrev = height, true
	}

	if err := tab.Evaluate(ctx, scrollTopJS, nil); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	s.pauser.Pause(ctx, s.cfg.TopDelay)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("settle interrupted: %w", err)
	}
	return nil
}

func (s *Settler) waitReady(ctx context.Context, tab Tab) error {
	readyCtx := ctx
	if s.cfg.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		readyCtx, cancel = context.WithTimeout(ctx, s.cfg.ReadyTimeout)
		defer cancel()
	}
	for {
		var state string
		err := tab.Evaluate(readyCtx, readyStateJS, &state)
		if err == nil && state == "complete" {
			return nil
		}
		if readyCtx.Err() != nil {
			if err == nil {
				err = readyCtx.Err()
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return fmt.Errorf("wait for ready state: %w", ctx.Err())
			}
			return fmt.Errorf("document not ready within %s: %w", s.cfg.ReadyTimeout, err)
		}
		s.pauser.Pause(readyCtx, s.cfg.ReadyPoll)
	}
}
