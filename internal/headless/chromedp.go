package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/leaderboard-crawler/internal/crawler"
)

type chromedpBrowser struct {
	opts          Options
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", opts.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

// launchChromedp starts Chrome. The allocator is detached from ctx so the
// process lives until Close, not until the caller's context ends.
func launchChromedp(ctx context.Context, opts Options) (crawler.Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and must not carry a deadline.
	stop := forwardCancel(ctx, browserCancel)
	defer stop()
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &chromedpBrowser{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func (b *chromedpBrowser) OpenTab(ctx context.Context) (crawler.Tab, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	tab := &chromedpTab{ctx: tabCtx, cancel: cancel, timeout: b.opts.ActionTimeout}
	setup := chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(b.opts.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(tabCtx, setup); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return tab, nil
}

func (b *chromedpBrowser) Close(context.Context) error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

type chromedpTab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (t *chromedpTab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(t.ctx, timeout)
	defer cancelTask()
	stop := forwardCancel(ctx, cancelTask)
	defer stop()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("chromedp run: %w", ctx.Err())
		}
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (t *chromedpTab) Navigate(ctx context.Context, rawURL string) error {
	return t.run(ctx, t.timeout, chromedp.Navigate(rawURL))
}

func (t *chromedpTab) Evaluate(ctx context.Context, expression string, out any) error {
	return t.run(ctx, t.timeout, chromedp.Evaluate(expression, out))
}

func (t *chromedpTab) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return t.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (t *chromedpTab) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return t.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (t *chromedpTab) Click(ctx context.Context, selector string) error {
	return t.run(ctx, t.timeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (t *chromedpTab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, t.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (t *chromedpTab) Close() error {
	err := chromedp.Cancel(t.ctx)
	t.cancel()
	if err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}
