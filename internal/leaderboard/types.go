// Package leaderboard models the weekly leaderboard pages of the target site and
// extracts product and comment records from their rendered HTML.
package leaderboard

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the site root used when no override is configured.
const DefaultBaseURL = "https://www.producthunt.com"

// Week identifies one leaderboard page.
type Week struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// String renders the pair as YYYY/WW.
func (w Week) String() string {
	return fmt.Sprintf("%d/%02d", w.Year, w.Week)
}

// Product is one entry of a weekly leaderboard. Week and Year come from the
// page request, never from the page body.
type Product struct {
	Name         string    `json:"name" bson:"name"`
	Tagline      string    `json:"tagline" bson:"tagline"`
	Tags         []string  `json:"tags" bson:"tags"`
	Upvotes      string    `json:"upvotes" bson:"upvotes"`
	CommentCount string    `json:"comment_count" bson:"comment_count"`
	ProductURL   string    `json:"product_url" bson:"product_url"`
	Week         int       `json:"week" bson:"week"`
	Year         int       `json:"year" bson:"year"`
	Comments     []Comment `json:"comments_list" bson:"comments_list"`
}

// Comment is one discussion entry from a product detail page.
type Comment struct {
	Text    string `json:"text" bson:"text"`
	Author  string `json:"author" bson:"author"`
	Date    string `json:"date" bson:"date"`
	Upvotes string `json:"upvotes" bson:"upvotes"`
}

// URL builds the leaderboard address for w.
func URL(base string, w Week) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf("%s/leaderboard/weekly/%d/%d", base, w.Year, w.Week)
}
