package crawler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
	"github.com/JakeFAU/leaderboard-crawler/internal/metrics"
)

var (
	// ErrProductsNotFound reports that the product list never appeared on a page.
	ErrProductsNotFound = errors.New("product list not found")
	// ErrDisallowed reports that robots.txt forbids a page.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// Config controls one crawl.
type Config struct {
	BaseURL         string
	StartYear       int
	EndYear         int
	EndWeek         int
	RequestDelay    time.Duration
	CollectComments bool
	MaxCommentPages int
	CommentWait     time.Duration
	LoadMoreWait    time.Duration
	LoadMorePause   time.Duration
	Settle          SettleConfig
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:         leaderboard.DefaultBaseURL,
		RequestDelay:    2 * time.Second,
		MaxCommentPages: 10,
		CommentWait:     10 * time.Second,
		LoadMoreWait:    5 * time.Second,
		LoadMorePause:   2 * time.Second,
		Settle:          DefaultSettleConfig(),
	}
}

// Stats summarizes a finished crawl.
type Stats struct {
	Pages           int
	PagesSucceeded  int
	PagesFailed     int
	PagesDisallowed int
	Products        int
	EntryErrors     int
	SinkErrors      int
	Comments        int
}

// Engine walks the weekly leaderboards in a single browser session.
type Engine struct {
	cfg       Config
	launch    Launcher
	extractor *leaderboard.Extractor
	sink      Sink
	robots    RobotsPolicy
	retry     RetryPolicy
	settler   *Settler
	throttle  *throttle
	pauser    pauseController
	logger    *zap.Logger

	stats    Stats
	snapshot atomic.Pointer[Stats]
	err      error
}

// NewEngine wires an Engine. sink may be nil when only Products is used.
func NewEngine(
	cfg Config,
	launch Launcher,
	extractor *leaderboard.Extractor,
	sink Sink,
	robots RobotsPolicy,
	retry RetryPolicy,
	logger *zap.Logger,
) (*Engine, error) {
	if launch == nil {
		return nil, errors.New("crawler: launcher is required")
	}
	if extractor == nil {
		return nil, errors.New("crawler: extractor is required")
	}
	if _, err := leaderboard.Weeks(cfg.StartYear, cfg.EndYear, cfg.EndWeek); err != nil {
		return nil, fmt.Errorf("crawler: %w", err)
	}
	if robots == nil {
		robots = allowAllPolicy{}
	}
	if retry == nil {
		retry = NewLinearRetryPolicy(0, 0, defaultRetryPause)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxCommentPages <= 0 {
		cfg.MaxCommentPages = 1
	}
	metrics.Init()
	return &Engine{
		cfg:       cfg,
		launch:    launch,
		extractor: extractor,
		sink:      sink,
		robots:    robots,
		retry:     retry,
		settler:   NewSettler(cfg.Settle),
		throttle:  newThrottle(cfg.RequestDelay),
		pauser:    &timerPauseController{},
		logger:    logger,
	}, nil
}

// Stats returns the counters of the current or most recent crawl. It is
// safe to call while a crawl is running.
func (e *Engine) Stats() Stats {
	if s := e.snapshot.Load(); s != nil {
		return *s
	}
	return Stats{}
}

func (e *Engine) publish() {
	s := e.stats
	e.snapshot.Store(&s)
}

// Err returns the error that ended the most recent Products sequence early,
// if any. Individual page failures are not reported here.
func (e *Engine) Err() error {
	return e.err
}

// Products lazily crawls every configured week, newest first, yielding
// products in page order. The browser is started on first iteration and
// closed when the sequence ends, including when the consumer stops early.
func (e *Engine) Products(ctx context.Context) iter.Seq[leaderboard.Product] {
	return func(yield func(leaderboard.Product) bool) {
		e.stats = Stats{}
		e.err = nil
		e.publish()
		defer e.publish()

		weeks, err := leaderboard.Seq(e.cfg.StartYear, e.cfg.EndYear, e.cfg.EndWeek)
		if err != nil {
			e.err = err
			return
		}

		browser, err := e.launch(ctx)
		if err != nil {
			e.err = fmt.Errorf("launch browser: %w", err)
			return
		}
		defer func() {
			if cerr := browser.Close(context.WithoutCancel(ctx)); cerr != nil {
				e.logger.Warn("close browser", zap.Error(cerr))
			}
		}()

		tab, err := browser.OpenTab(ctx)
		if err != nil {
			e.err = fmt.Errorf("open tab: %w", err)
			return
		}
		defer closeTab(tab, e.logger)

		for week := range weeks {
			if err := ctx.Err(); err != nil {
				e.err = err
				return
			}
			products, err := e.crawlWeek(ctx, tab, week)
			e.publish()
			if err != nil {
				continue
			}
			for _, product := range products {
				if e.cfg.CollectComments {
					product.Comments = e.collectComments(ctx, browser, product.ProductURL)
					e.publish()
				}
				if !yield(product) {
					return
				}
			}
		}
		e.err = ctx.Err()
	}
}

// Run crawls every week and writes each product to the sink.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	if e.sink == nil {
		return Stats{}, errors.New("crawler: sink is required")
	}
	run := time.Now()
	for product := range e.Products(ctx) {
		if err := e.sink.Write(ctx, product); err != nil {
			e.stats.SinkErrors++
			e.publish()
			e.logger.Error("write product",
				zap.String("name", product.Name),
				zap.Int("year", product.Year),
				zap.Int("week", product.Week),
				zap.Error(err))
		}
	}
	stats := e.stats

	e.logger.Info("crawl finished",
		zap.Int("pages", stats.Pages),
		zap.Int("pages_succeeded", stats.PagesSucceeded),
		zap.Int("pages_failed", stats.PagesFailed),
		zap.Int("pages_disallowed", stats.PagesDisallowed),
		zap.Int("products", stats.Products),
		zap.Int("entry_errors", stats.EntryErrors),
		zap.Int("sink_errors", stats.SinkErrors),
		zap.Int("comments", stats.Comments),
		zap.Duration("elapsed", time.Since(run)))

	if e.err != nil {
		return stats, e.err
	}
	return stats, nil
}

func (e *Engine) crawlWeek(ctx context.Context, tab Tab, week leaderboard.Week) ([]leaderboard.Product, error) {
	pageURL := leaderboard.URL(e.cfg.BaseURL, week)
	log := e.logger.With(zap.Int("year", week.Year), zap.Int("week", week.Week), zap.String("url", pageURL))
	start := time.Now()
	e.stats.Pages++

	if !e.robots.Allowed(ctx, pageURL) {
		e.stats.PagesDisallowed++
		metrics.ObservePage(metrics.PageDisallowed, 0)
		log.Warn("skipping page", zap.Error(ErrDisallowed))
		return nil, ErrDisallowed
	}

	log.Info("crawling leaderboard page")
	html, err := e.loadProductPage(ctx, tab, pageURL, log)
	if err != nil {
		e.stats.PagesFailed++
		metrics.ObservePage(metrics.PageFailed, time.Since(start))
		log.Error("page failed", zap.Error(err))
		return nil, err
	}

	products, entryErrs, err := e.extractor.Products(html, pageURL, week)
	if err != nil {
		e.stats.PagesFailed++
		metrics.ObservePage(metrics.PageFailed, time.Since(start))
		log.Error("extract products", zap.Error(err))
		return nil, err
	}
	for _, entryErr := range entryErrs {
		log.Error("skipping product entry", zap.Error(entryErr))
	}

	e.stats.PagesSucceeded++
	e.stats.Products += len(products)
	e.stats.EntryErrors += len(entryErrs)
	metrics.ObservePage(metrics.PageSucceeded, time.Since(start))
	metrics.AddProducts(len(products))
	metrics.AddEntryErrors(len(entryErrs))
	log.Info("extracted products", zap.Int("products", len(products)), zap.Int("skipped", len(entryErrs)))
	return products, nil
}

// loadProductPage navigates and settles once, then waits for the product
// list with growing timeouts. Navigation and settle failures skip the page.
func (e *Engine) loadProductPage(ctx context.Context, tab Tab, pageURL string, log *zap.Logger) (string, error) {
	if err := e.throttle.Wait(ctx); err != nil {
		return "", err
	}
	if err := tab.Navigate(ctx, pageURL); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := e.settler.Settle(ctx, tab); err != nil {
		return "", fmt.Errorf("settle: %w", err)
	}

	productItem := e.extractor.Selectors().ProductItem
	attempts := e.retry.MaxAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := tab.WaitSelector(ctx, productItem, e.retry.Timeout(attempt))
		if err == nil {
			html, err := tab.HTML(ctx)
			if err != nil {
				return "", fmt.Errorf("read page html: %w", err)
			}
			return html, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("load %s: %w", pageURL, ctxErr)
		}
		lastErr = err
		metrics.IncRetry()
		log.Warn("product list not ready",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
		if attempt < attempts {
			e.pauser.Pause(ctx, e.retry.Pause(attempt))
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrProductsNotFound, attempts, lastErr)
}

// collectComments opens the detail page in its own tab and gathers every
// visible comment, pressing "load more" until it disappears or the page
// limit is reached. Failures yield an empty list.
func (e *Engine) collectComments(ctx context.Context, browser Browser, productURL string) []leaderboard.Comment {
	comments := []leaderboard.Comment{}
	log := e.logger.With(zap.String("product_url", productURL))

	if !e.robots.Allowed(ctx, productURL) {
		log.Warn("skipping comments", zap.Error(ErrDisallowed))
		return comments
	}

	tab, err := browser.OpenTab(ctx)
	if err != nil {
		log.Error("open detail tab", zap.Error(err))
		return comments
	}
	defer closeTab(tab, e.logger)

	if err := e.throttle.Wait(ctx); err != nil {
		log.Error("wait for detail page", zap.Error(err))
		return comments
	}
	if err := tab.Navigate(ctx, productURL); err != nil {
		log.Error("navigate to detail page", zap.Error(err))
		return comments
	}
	if err := e.settler.Settle(ctx, tab); err != nil {
		log.Error("settle detail page", zap.Error(err))
		return comments
	}

	sel := e.extractor.Selectors()
	if err := tab.WaitSelector(ctx, sel.Comment, e.cfg.CommentWait); err != nil {
		log.Info("no comments found", zap.Error(err))
		return comments
	}

	for page := 1; page <= e.cfg.MaxCommentPages; page++ {
		html, err := tab.HTML(ctx)
		if err != nil {
			log.Error("read detail html", zap.Error(err))
			break
		}
		found, err := e.extractor.Comments(html)
		if err != nil {
			log.Error("extract comments", zap.Error(err))
			break
		}
		comments = leaderboard.MergeComments(comments, found)

		if page == e.cfg.MaxCommentPages {
			break
		}
		if err := tab.WaitVisible(ctx, sel.LoadMore, e.cfg.LoadMoreWait); err != nil {
			log.Debug("load more not visible", zap.Error(err))
			break
		}
		if err := tab.Click(ctx, sel.LoadMore); err != nil {
			log.Debug("click load more", zap.Error(err))
			break
		}
		e.pauser.Pause(ctx, e.cfg.LoadMorePause)
	}

	e.stats.Comments += len(comments)
	metrics.AddComments(len(comments))
	log.Info("collected comments", zap.Int("comments", len(comments)))
	return comments
}

func closeTab(tab Tab, logger *zap.Logger) {
	if err := tab.Close(); err != nil {
		logger.Debug("close tab", zap.Error(err))
	}
}
