// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/leaderboard-crawler/internal/crawler"
	"github.com/JakeFAU/leaderboard-crawler/internal/export"
	"github.com/JakeFAU/leaderboard-crawler/internal/headless"
	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// Config captures every knob of a crawl run.
type Config struct {
	Crawler   CrawlerConfig         `mapstructure:"crawler"`
	Browser   BrowserConfig         `mapstructure:"browser"`
	Settle    SettleConfig          `mapstructure:"settle"`
	Retry     RetryConfig           `mapstructure:"retry"`
	Selectors leaderboard.Selectors `mapstructure:"selectors"`
	Export    ExportConfig          `mapstructure:"export"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	Metrics   MetricsConfig         `mapstructure:"metrics"`
}

// CrawlerConfig selects the leaderboard range and crawl pacing.
type CrawlerConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	StartYear       int           `mapstructure:"start_year"`
	EndYear         int           `mapstructure:"end_year"`
	EndWeek         int           `mapstructure:"end_week"`
	RequestDelay    time.Duration `mapstructure:"request_delay"`
	RespectRobots   bool          `mapstructure:"respect_robots"`
	CollectComments bool          `mapstructure:"collect_comments"`
	MaxCommentPages int           `mapstructure:"max_comment_pages"`
	CommentWait     time.Duration `mapstructure:"comment_wait"`
	LoadMoreWait    time.Duration `mapstructure:"load_more_wait"`
	LoadMorePause   time.Duration `mapstructure:"load_more_pause"`
}

// BrowserConfig configures the headless browser process.
type BrowserConfig struct {
	Driver        string        `mapstructure:"driver"`
	Headless      bool          `mapstructure:"headless"`
	NoSandbox     bool          `mapstructure:"no_sandbox"`
	UserAgent     string        `mapstructure:"user_agent"`
	WindowWidth   int           `mapstructure:"window_width"`
	WindowHeight  int           `mapstructure:"window_height"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	Stealth       bool          `mapstructure:"stealth"`
	ExecPath      string        `mapstructure:"exec_path"`
}

// SettleConfig tunes the page-ready heuristic.
type SettleConfig struct {
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	ReadyPoll    time.Duration `mapstructure:"ready_poll"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxScrolls   int           `mapstructure:"max_scrolls"`
	ScrollDelay  time.Duration `mapstructure:"scroll_delay"`
	TopDelay     time.Duration `mapstructure:"top_delay"`
}

// RetryConfig controls the product-list retry loop.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Step     time.Duration `mapstructure:"step"`
	Pause    time.Duration `mapstructure:"pause"`
}

// ExportConfig enables one or more sinks.
type ExportConfig struct {
	File     FileExportConfig     `mapstructure:"file"`
	GCS      GCSExportConfig      `mapstructure:"gcs"`
	PubSub   PubSubExportConfig   `mapstructure:"pubsub"`
	Postgres PostgresExportConfig `mapstructure:"postgres"`
	Mongo    MongoExportConfig    `mapstructure:"mongo"`
}

// FileExportConfig writes a local file.
type FileExportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Format  string `mapstructure:"format"`
}

// GCSExportConfig uploads a JSONL object; {run_id} in Object is replaced.
type GCSExportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Object  string `mapstructure:"object"`
}

// PubSubExportConfig publishes one message per product.
type PubSubExportConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// PostgresExportConfig inserts rows.
type PostgresExportConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	CreateTable     bool          `mapstructure:"create_table"`
}

// MongoExportConfig inserts documents.
type MongoExportConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"start-year":   "crawler.start_year",
	"end-year":     "crawler.end_year",
	"end-week":     "crawler.end_week",
	"comments":     "crawler.collect_comments",
	"driver":       "browser.driver",
	"metrics-addr": "metrics.addr",
	"output":       "export.file.path",
	"format":       "export.file.format",
	"log-level":    "logging.level",
}

// Load builds a Config from defaults, an optional file, CRAWLER_* environment
// variables, and any flags in flags that were set.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	engine := crawler.DefaultConfig()
	v.SetDefault("crawler.base_url", leaderboard.DefaultBaseURL)
	v.SetDefault("crawler.start_year", 2013)
	v.SetDefault("crawler.end_year", 2024)
	v.SetDefault("crawler.end_week", 49)
	v.SetDefault("crawler.request_delay", engine.RequestDelay)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.collect_comments", false)
	v.SetDefault("crawler.max_comment_pages", engine.MaxCommentPages)
	v.SetDefault("crawler.comment_wait", engine.CommentWait)
	v.SetDefault("crawler.load_more_wait", engine.LoadMoreWait)
	v.SetDefault("crawler.load_more_pause", engine.LoadMorePause)

	browser := headless.DefaultOptions()
	v.SetDefault("browser.driver", browser.Driver)
	v.SetDefault("browser.headless", browser.Headless)
	v.SetDefault("browser.no_sandbox", browser.NoSandbox)
	v.SetDefault("browser.user_agent", browser.UserAgent)
	v.SetDefault("browser.window_width", browser.WindowWidth)
	v.SetDefault("browser.window_height", browser.WindowHeight)
	v.SetDefault("browser.action_timeout", browser.ActionTimeout)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.exec_path", "")

	settle := crawler.DefaultSettleConfig()
	v.SetDefault("settle.ready_timeout", settle.ReadyTimeout)
	v.SetDefault("settle.ready_poll", settle.ReadyPoll)
	v.SetDefault("settle.initial_delay", settle.InitialDelay)
	v.SetDefault("settle.max_scrolls", settle.MaxScrolls)
	v.SetDefault("settle.scroll_delay", settle.ScrollDelay)
	v.SetDefault("settle.top_delay", settle.TopDelay)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.step", 15*time.Second)
	v.SetDefault("retry.pause", 8*time.Second)

	sel := leaderboard.DefaultSelectors()
	v.SetDefault("selectors.product_item", sel.ProductItem)
	v.SetDefault("selectors.name", sel.Name)
	v.SetDefault("selectors.tagline", sel.Tagline)
	v.SetDefault("selectors.tag_list", sel.TagList)
	v.SetDefault("selectors.tag", sel.Tag)
	v.SetDefault("selectors.upvotes_xpath", sel.UpvotesXPath)
	v.SetDefault("selectors.comments_xpath", sel.CommentsXPath)
	v.SetDefault("selectors.comment", sel.Comment)
	v.SetDefault("selectors.comment_text", sel.CommentText)
	v.SetDefault("selectors.comment_author", sel.CommentAuthor)
	v.SetDefault("selectors.comment_date", sel.CommentDate)
	v.SetDefault("selectors.comment_upvotes", sel.CommentUpvotes)
	v.SetDefault("selectors.load_more", sel.LoadMore)

	v.SetDefault("export.file.enabled", true)
	v.SetDefault("export.file.path", "products.json")
	v.SetDefault("export.file.format", export.FormatJSON)
	// Every key needs a default, even a zero one, or AutomaticEnv never
	// reaches it during Unmarshal.
	v.SetDefault("export.gcs.enabled", false)
	v.SetDefault("export.gcs.bucket", "")
	v.SetDefault("export.gcs.object", "leaderboard/{run_id}.jsonl")
	v.SetDefault("export.pubsub.enabled", false)
	v.SetDefault("export.pubsub.project_id", "")
	v.SetDefault("export.pubsub.topic", "")
	v.SetDefault("export.postgres.enabled", false)
	v.SetDefault("export.postgres.dsn", "")
	v.SetDefault("export.postgres.table", "leaderboard_products")
	v.SetDefault("export.postgres.max_conns", 0)
	v.SetDefault("export.postgres.max_conn_lifetime", time.Duration(0))
	v.SetDefault("export.postgres.create_table", false)
	v.SetDefault("export.mongo.enabled", false)
	v.SetDefault("export.mongo.uri", "")
	v.SetDefault("export.mongo.database", "leaderboard")
	v.SetDefault("export.mongo.collection", "products")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := leaderboard.Weeks(c.Crawler.StartYear, c.Crawler.EndYear, c.Crawler.EndWeek); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	if c.Crawler.RequestDelay < 0 {
		return errors.New("crawler.request_delay must be >= 0")
	}
	if c.Crawler.CollectComments && c.Crawler.MaxCommentPages <= 0 {
		return errors.New("crawler.max_comment_pages must be > 0 when comments are collected")
	}
	if err := headless.ValidateDriver(c.Browser.Driver); err != nil {
		return fmt.Errorf("browser.driver: %w", err)
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("retry.attempts must be > 0")
	}
	if c.Retry.Step <= 0 {
		return errors.New("retry.step must be > 0")
	}
	if c.Settle.MaxScrolls < 0 {
		return errors.New("settle.max_scrolls must be >= 0")
	}
	if err := c.Selectors.Validate(); err != nil {
		return err
	}
	return c.Export.Validate()
}

// Validate checks that at least one sink is enabled and fully specified.
func (e ExportConfig) Validate() error {
	enabled := 0
	if e.File.Enabled {
		enabled++
		if e.File.Path == "" {
			return errors.New("export.file.path must be set when the file sink is enabled")
		}
		switch strings.ToLower(e.File.Format) {
		case export.FormatJSON, export.FormatJSONL, export.FormatCSV:
		default:
			return fmt.Errorf("export.file.format %q is not one of json, jsonl, csv", e.File.Format)
		}
	}
	if e.GCS.Enabled {
		enabled++
		if e.GCS.Bucket == "" || e.GCS.Object == "" {
			return errors.New("export.gcs.bucket and export.gcs.object must be set when the gcs sink is enabled")
		}
	}
	if e.PubSub.Enabled {
		enabled++
		if e.PubSub.ProjectID == "" || e.PubSub.Topic == "" {
			return errors.New("export.pubsub.project_id and export.pubsub.topic must be set when the pubsub sink is enabled")
		}
	}
	if e.Postgres.Enabled {
		enabled++
		if e.Postgres.DSN == "" {
			return errors.New("export.postgres.dsn must be set when the postgres sink is enabled")
		}
	}
	if e.Mongo.Enabled {
		enabled++
		if e.Mongo.URI == "" {
			return errors.New("export.mongo.uri must be set when the mongo sink is enabled")
		}
	}
	if enabled == 0 {
		return errors.New("export: at least one sink must be enabled")
	}
	return nil
}

// EngineConfig converts the crawl settings for crawler.NewEngine.
func (c Config) EngineConfig() crawler.Config {
	return crawler.Config{
		BaseURL:         c.Crawler.BaseURL,
		StartYear:       c.Crawler.StartYear,
		EndYear:         c.Crawler.EndYear,
		EndWeek:         c.Crawler.EndWeek,
		RequestDelay:    c.Crawler.RequestDelay,
		CollectComments: c.Crawler.CollectComments,
		MaxCommentPages: c.Crawler.MaxCommentPages,
		CommentWait:     c.Crawler.CommentWait,
		LoadMoreWait:    c.Crawler.LoadMoreWait,
		LoadMorePause:   c.Crawler.LoadMorePause,
		Settle: crawler.SettleConfig{
			ReadyTimeout: c.Settle.ReadyTimeout,
			ReadyPoll:    c.Settle.ReadyPoll,
			InitialDelay: c.Settle.InitialDelay,
			MaxScrolls:   c.Settle.MaxScrolls,
			ScrollDelay:  c.Settle.ScrollDelay,
			TopDelay:     c.Settle.TopDelay,
		},
	}
}

// BrowserOptions converts the browser settings for headless.Launch.
func (c Config) BrowserOptions() headless.Options {
	return headless.Options{
		Driver:        c.Browser.Driver,
		Headless:      c.Browser.Headless,
		NoSandbox:     c.Browser.NoSandbox,
		UserAgent:     c.Browser.UserAgent,
		WindowWidth:   c.Browser.WindowWidth,
		WindowHeight:  c.Browser.WindowHeight,
		ActionTimeout: c.Browser.ActionTimeout,
		Stealth:       c.Browser.Stealth,
		ExecPath:      c.Browser.ExecPath,
	}
}

// RetryPolicy builds the product-list retry policy.
func (c Config) RetryPolicy() *crawler.LinearRetryPolicy {
	return crawler.NewLinearRetryPolicy(c.Retry.Attempts, c.Retry.Step, c.Retry.Pause)
}
