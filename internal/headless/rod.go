package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/JakeFAU/leaderboard-crawler/internal/crawler"
)

type rodBrowser struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func newRodLauncher(opts Options) *launcher.Launcher {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-notifications").
		Set("disable-extensions").
		Set("disable-infobars").
		Set("window-size", strconv.Itoa(opts.WindowWidth)+","+strconv.Itoa(opts.WindowHeight)).
		Set("user-agent", opts.UserAgent)
	if opts.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}
	if opts.ExecPath != "" {
		l = l.Bin(opts.ExecPath)
	}
	return l
}

func launchRod(ctx context.Context, opts Options) (crawler.Browser, error) {
	l := newRodLauncher(opts).Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &rodBrowser{opts: opts, launcher: l, browser: browser}, nil
}

func (b *rodBrowser) OpenTab(ctx context.Context) (crawler.Tab, error) {
	var (
		page *rod.Page
		err  error
	)
	if b.opts.Stealth {
		page, err = stealth.Page(b.browser.Context(ctx))
	} else {
		page, err = b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.opts.UserAgent}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set user-agent: %w", err)
	}
	return &rodTab{page: page, timeout: b.opts.ActionTimeout}, nil
}

func (b *rodBrowser) Close(context.Context) error {
	err := b.browser.Close()
	b.launcher.Kill()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type rodTab struct {
	page    *rod.Page
	timeout time.Duration
}

func (t *rodTab) bound(ctx context.Context, timeout time.Duration) *rod.Page {
	return t.page.Context(ctx).Timeout(timeout)
}

func (t *rodTab) Navigate(ctx context.Context, rawURL string) error {
	if err := t.bound(ctx, t.timeout).Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// rodFunction turns an expression into the function declaration Page.Eval
// requires; rod applies whatever it is given as a function.
func rodFunction(expression string) string {
	return "() => (" + strings.TrimRight(strings.TrimSpace(expression), ";") + ")"
}

func (t *rodTab) Evaluate(ctx context.Context, expression string, out any) error {
	res, err := t.bound(ctx, t.timeout).Eval(rodFunction(expression))
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode eval result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return nil
}

func (t *rodTab) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := t.bound(ctx, timeout).Element(selector); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (t *rodTab) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := t.bound(ctx, timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait for %s to be visible: %w", selector, err)
	}
	return nil
}

func (t *rodTab) Click(ctx context.Context, selector string) error {
	el, err := t.bound(ctx, t.timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll to %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (t *rodTab) HTML(ctx context.Context) (string, error) {
	html, err := t.bound(ctx, t.timeout).HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (t *rodTab) Close() error {
	if err := t.page.Close(); err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}
