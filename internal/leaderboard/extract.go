package leaderboard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
)

// ErrMissingField reports a product entry lacking a required element.
var ErrMissingField = errors.New("missing field")

// EntryError ties an extraction failure to the entry's 1-based position on the page.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("product %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Extractor reads products and comments from rendered HTML.
type Extractor struct {
	sel      Selectors
	upvotes  *xpath.Expr
	comments *xpath.Expr
}

// NewExtractor validates sel and precompiles its XPath expressions.
func NewExtractor(sel Selectors) (*Extractor, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	upvotes, err := xpath.Compile(sel.UpvotesXPath)
	if err != nil {
		return nil, fmt.Errorf("compile upvotes xpath: %w", err)
	}
	comments, err := xpath.Compile(sel.CommentsXPath)
	if err != nil {
		return nil, fmt.Errorf("compile comments xpath: %w", err)
	}
	return &Extractor{sel: sel, upvotes: upvotes, comments: comments}, nil
}

// Selectors returns the expressions the extractor was built with.
func (e *Extractor) Selectors() Selectors {
	return e.sel
}

// Products parses every product entry on a leaderboard page. Entries that
// fail are reported in entryErrs and do not affect their neighbours; err is
// only set when the document itself cannot be parsed.
func (e *Extractor) Products(html, pageURL string, w Week) (products []Product, entryErrs []error, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse leaderboard html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse page url: %w", err)
	}

	doc.Find(e.sel.ProductItem).Each(func(i int, entry *goquery.Selection) {
		p, perr := e.product(entry, base, w)
		if perr != nil {
			entryErrs = append(entryErrs, &EntryError{Index: i + 1, Err: perr})
			return
		}
		products = append(products, p)
	})
	return products, entryErrs, nil
}

func (e *Extractor) product(entry *goquery.Selection, base *url.URL, w Week) (Product, error) {
	nameEl := entry.Find(e.sel.Name).First()
	if nameEl.Length() == 0 {
		return Product{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	taglineEl := entry.Find(e.sel.Tagline).First()
	if taglineEl.Length() == 0 {
		return Product{}, fmt.Errorf("%w: tagline", ErrMissingField)
	}

	node := entry.Get(0)
	commentsNode := htmlquery.QuerySelector(node, e.comments)
	if commentsNode == nil {
		return Product{}, fmt.Errorf("%w: comment count", ErrMissingField)
	}
	upvotesNode := htmlquery.QuerySelector(node, e.upvotes)
	if upvotesNode == nil {
		return Product{}, fmt.Errorf("%w: upvotes", ErrMissingField)
	}

	href, ok := nameEl.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return Product{}, fmt.Errorf("%w: product url", ErrMissingField)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return Product{}, fmt.Errorf("parse product url %q: %w", href, err)
	}

	return Product{
		Name:         cleanText(nameEl.Text()),
		Tagline:      cleanText(taglineEl.Text()),
		Tags:         e.tags(entry),
		Upvotes:      cleanText(htmlquery.InnerText(upvotesNode)),
		CommentCount: cleanText(htmlquery.InnerText(commentsNode)),
		ProductURL:   base.ResolveReference(ref).String(),
		Week:         w.Week,
		Year:         w.Year,
		Comments:     []Comment{},
	}, nil
}

func (e *Extractor) tags(entry *goquery.Selection) []string {
	tags := []string{}
	entry.Find(e.sel.TagList).First().Find(e.sel.Tag).Each(func(_ int, tag *goquery.Selection) {
		tags = append(tags, cleanText(tag.Text()))
	})
	return tags
}

// Comments reads every complete comment on a detail page, dropping repeats.
func (e *Extractor) Comments(html string) ([]Comment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}
	var all []Comment
	doc.Find(e.sel.Comment).Each(func(_ int, c *goquery.Selection) {
		text := c.Find(e.sel.CommentText).First()
		author := c.Find(e.sel.CommentAuthor).First()
		date := c.Find(e.sel.CommentDate).First()
		upvotes := c.Find(e.sel.CommentUpvotes).First()
		if text.Length() == 0 || author.Length() == 0 || date.Length() == 0 || upvotes.Length() == 0 {
			return
		}
		datetime, ok := date.Attr("datetime")
		if !ok {
			return
		}
		all = append(all, Comment{
			Text:    cleanText(text.Text()),
			Author:  cleanText(author.Text()),
			Date:    strings.TrimSpace(datetime),
			Upvotes: cleanText(upvotes.Text()),
		})
	})
	return MergeComments(nil, all), nil
}

// MergeComments appends the entries of src not already in dst, keeping
// first-seen order.
func MergeComments(dst, src []Comment) []Comment {
	seen := make(map[Comment]struct{}, len(dst)+len(src))
	for _, c := range dst {
		seen[c] = struct{}{}
	}
	for _, c := range src {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		dst = append(dst, c)
	}
	return dst
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
