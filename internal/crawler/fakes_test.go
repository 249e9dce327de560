package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

var errFakeNavigate = errors.New("net::ERR_CONNECTION_RESET")

type waitCall struct {
	selector string
	timeout  time.Duration
}

// fakeBrowser is an in-memory Browser whose tabs serve canned HTML.
type fakeBrowser struct {
	mu sync.Mutex

	pages        map[string]string
	fallbackHTML string
	failNavigate map[string]bool
	// waitFailures counts how many more times WaitSelector fails per selector;
	// a negative value fails forever.
	waitFailures map[string]int
	// hidden selectors are present in the DOM but never displayed.
	hidden  map[string]bool
	heights []int64
	openErr error

	tabs        []*fakeTab
	navigations []string
	waits       []waitCall
	visible     []waitCall
	clicks      []string
	closed      bool
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		pages:        map[string]string{},
		failNavigate: map[string]bool{},
		waitFailures: map[string]int{},
		hidden:       map[string]bool{},
	}
}

func (b *fakeBrowser) launcher() Launcher {
	return func(context.Context) (Browser, error) { return b, nil }
}

func (b *fakeBrowser) OpenTab(context.Context) (Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	tab := &fakeTab{browser: b, heights: append([]int64(nil), b.heights...)}
	b.tabs = append(b.tabs, tab)
	return tab, nil
}

func (b *fakeBrowser) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) navigationsTo(rawURL string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, u := range b.navigations {
		if u == rawURL {
			n++
		}
	}
	return n
}

func (b *fakeBrowser) waitsFor(selector string) []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []time.Duration
	for _, w := range b.waits {
		if w.selector == selector {
			out = append(out, w.timeout)
		}
	}
	return out
}

type fakeTab struct {
	browser *fakeBrowser

	url         string
	notReady    int
	heights     []int64
	heightReads int
	scrolls     int
	scrolledTop bool
	evaluateErr error
	closed      bool
}

func (t *fakeTab) Navigate(_ context.Context, rawURL string) error {
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigations = append(b.navigations, rawURL)
	if b.failNavigate[rawURL] {
		return errFakeNavigate
	}
	t.url = rawURL
	return nil
}

func (t *fakeTab) Evaluate(ctx context.Context, expression string, out any) error {
	if t.evaluateErr != nil {
		return t.evaluateErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	switch expression {
	case readyStateJS:
		state := "complete"
		if t.notReady > 0 {
			t.notReady--
			state = "loading"
		}
		*out.(*string) = state
	case scrollHeightJS:
		var h int64 = 1000
		if len(t.heights) > 0 {
			i := min(t.heightReads, len(t.heights)-1)
			h = t.heights[i]
		}
		t.heightReads++
		*out.(*int64) = h
	case scrollBottomJS:
		t.scrolls++
	case scrollTopJS:
		t.scrolledTop = true
	}
	return nil
}

func (t *fakeTab) WaitSelector(_ context.Context, selector string, timeout time.Duration) error {
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waits = append(b.waits, waitCall{selector: selector, timeout: timeout})
	remaining := b.waitFailures[selector]
	switch {
	case remaining < 0:
		return context.DeadlineExceeded
	case remaining > 0:
		b.waitFailures[selector] = remaining - 1
		return context.DeadlineExceeded
	}
	return nil
}

func (t *fakeTab) WaitVisible(_ context.Context, selector string, timeout time.Duration) error {
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visible = append(b.visible, waitCall{selector: selector, timeout: timeout})
	if b.hidden[selector] {
		return context.DeadlineExceeded
	}
	return nil
}

func (t *fakeTab) Click(_ context.Context, selector string) error {
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clicks = append(b.clicks, selector)
	return nil
}

func (t *fakeTab) HTML(context.Context) (string, error) {
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	if html, ok := b.pages[t.url]; ok {
		return html, nil
	}
	return b.fallbackHTML, nil
}

func (t *fakeTab) Close() error {
	t.closed = true
	return nil
}

type memorySink struct {
	mu       sync.Mutex
	products []leaderboard.Product
	failFor  string
}

func (s *memorySink) Write(_ context.Context, p leaderboard.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Name == s.failFor {
		return errors.New("sink unavailable")
	}
	s.products = append(s.products, p)
	return nil
}

func (s *memorySink) Close(context.Context) error { return nil }

type denyPolicy struct{ substr string }

func (d denyPolicy) Allowed(_ context.Context, rawURL string) bool {
	return !strings.Contains(rawURL, d.substr)
}

func readLeaderboardFixture(t *testing.T, name string) string {
	t.Helper()
	// #nosec G304 -- test reads fixtures shared with the leaderboard package.
	data, err := os.ReadFile(filepath.Join("..", "leaderboard", "testdata", name))
	require.NoError(t, err)
	return string(data)
}
