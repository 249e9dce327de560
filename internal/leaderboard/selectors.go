package leaderboard

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
)

// Selectors holds every expression used to read the site's markup. The markup
// changes often, so each one can be overridden from configuration.
type Selectors struct {
	ProductItem    string `mapstructure:"product_item"`
	Name           string `mapstructure:"name"`
	Tagline        string `mapstructure:"tagline"`
	TagList        string `mapstructure:"tag_list"`
	Tag            string `mapstructure:"tag"`
	UpvotesXPath   string `mapstructure:"upvotes_xpath"`
	CommentsXPath  string `mapstructure:"comments_xpath"`
	Comment        string `mapstructure:"comment"`
	CommentText    string `mapstructure:"comment_text"`
	CommentAuthor  string `mapstructure:"comment_author"`
	CommentDate    string `mapstructure:"comment_date"`
	CommentUpvotes string `mapstructure:"comment_upvotes"`
	LoadMore       string `mapstructure:"load_more"`
}

// DefaultSelectors matches the leaderboard markup at the time of writing.
func DefaultSelectors() Selectors {
	return Selectors{
		ProductItem:    `section[data-test^="post-item-"]`,
		Name:           `a[data-test^="post-name-"]`,
		Tagline:        `a.text-16.font-normal.text-dark-gray.text-gray-700`,
		TagList:        `div[data-sentry-component="TagList"]`,
		Tag:            `a`,
		UpvotesXPath:   `.//button[@data-test="vote-button"]//div[contains(@class,"text-14 font-semibold")]`,
		CommentsXPath:  `.//button[not(@data-test="vote-button")]//div[contains(@class,"text-14 font-semibold")]`,
		Comment:        `[data-test="comment"]`,
		CommentText:    `div[class*="text-16 font-normal"]`,
		CommentAuthor:  `a[class*="text-14 font-semibold"]`,
		CommentDate:    `time`,
		CommentUpvotes: `div[data-test="comment-upvote-info"]`,
		LoadMore:       `button[class*="styles_button__BmLM4 styles_secondary__zB2Yb"]`,
	}
}

// Validate compiles every expression so bad overrides fail at startup instead
// of silently matching nothing mid-crawl.
func (s Selectors) Validate() error {
	css := map[string]string{
		"product_item":    s.ProductItem,
		"name":            s.Name,
		"tagline":         s.Tagline,
		"tag_list":        s.TagList,
		"tag":             s.Tag,
		"comment":         s.Comment,
		"comment_text":    s.CommentText,
		"comment_author":  s.CommentAuthor,
		"comment_date":    s.CommentDate,
		"comment_upvotes": s.CommentUpvotes,
		"load_more":       s.LoadMore,
	}
	for key, sel := range css {
		if sel == "" {
			return fmt.Errorf("selectors.%s must be set", key)
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("selectors.%s: %w", key, err)
		}
	}
	for key, expr := range map[string]string{
		"upvotes_xpath":  s.UpvotesXPath,
		"comments_xpath": s.CommentsXPath,
	} {
		if expr == "" {
			return fmt.Errorf("selectors.%s must be set", key)
		}
		if _, err := xpath.Compile(expr); err != nil {
			return fmt.Errorf("selectors.%s: %w", key, err)
		}
	}
	return nil
}
