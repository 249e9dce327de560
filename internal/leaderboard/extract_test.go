package leaderboard

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePageURL = "https://www.producthunt.com/leaderboard/weekly/2024/49"

func readFixture(t *testing.T, name string) string {
	t.Helper()
	// #nosec G304 -- test reads from the package testdata directory.
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	ex, err := NewExtractor(DefaultSelectors())
	require.NoError(t, err)
	return ex
}

func TestExtractorProducts(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t)
	products, _, err := ex.Products(readFixture(t, "weekly_2024_49.html"), fixturePageURL, Week{Year: 2024, Week: 49})
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, Product{
		Name:         "Alpha",
		Tagline:      "Fast alpha tool",
		Tags:         []string{"Developer Tools", "Artificial Intelligence"},
		Upvotes:      "1,234",
		CommentCount: "42",
		ProductURL:   "https://www.producthunt.com/posts/alpha",
		Week:         49,
		Year:         2024,
		Comments:     []Comment{},
	}, products[0])

	gamma := products[1]
	assert.Equal(t, "Gamma", gamma.Name)
	assert.Equal(t, "https://www.producthunt.com/posts/gamma", gamma.ProductURL)
	assert.Equal(t, "7", gamma.Upvotes)
	assert.Equal(t, "0", gamma.CommentCount)
	assert.Empty(t, gamma.Tags)
	assert.NotNil(t, gamma.Tags, "tags serialize as an empty list")
}

func TestExtractorSkipsMalformedEntry(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t)
	_, entryErrs, err := ex.Products(readFixture(t, "weekly_2024_49.html"), fixturePageURL, Week{Year: 2024, Week: 49})
	require.NoError(t, err)
	require.Len(t, entryErrs, 1)

	var entryErr *EntryError
	require.True(t, errors.As(entryErrs[0], &entryErr))
	assert.Equal(t, 2, entryErr.Index)
	assert.ErrorIs(t, entryErrs[0], ErrMissingField)
	assert.Contains(t, entryErrs[0].Error(), "tagline")
}

func TestExtractorWeekComesFromRequest(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t)
	products, _, err := ex.Products(readFixture(t, "weekly_2024_49.html"), fixturePageURL, Week{Year: 2019, Week: 3})
	require.NoError(t, err)
	for _, p := range products {
		assert.Equal(t, 2019, p.Year)
		assert.Equal(t, 3, p.Week)
	}
}

func TestExtractorNoEntries(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t)
	products, entryErrs, err := ex.Products("<html><body><p>nothing</p></body></html>", fixturePageURL, Week{Year: 2024, Week: 1})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Empty(t, entryErrs)
}

func TestExtractorComments(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t)
	comments, err := ex.Comments(readFixture(t, "detail_alpha.html"))
	require.NoError(t, err)
	assert.Equal(t, []Comment{
		{Text: "Congrats on the launch!", Author: "Maker One", Date: "2024-12-02T09:15:00.000Z", Upvotes: "5"},
		{Text: "Looks great", Author: "Hunter", Date: "2024-12-02T10:00:00.000Z", Upvotes: "1"},
	}, comments)
}

func TestMergeCommentsKeepsOrder(t *testing.T) {
	t.Parallel()

	a := Comment{Text: "a", Author: "x", Date: "d", Upvotes: "1"}
	b := Comment{Text: "b", Author: "y", Date: "d", Upvotes: "2"}
	c := Comment{Text: "c", Author: "z", Date: "d", Upvotes: "3"}

	merged := MergeComments([]Comment{a, b}, []Comment{b, c, a})
	assert.Equal(t, []Comment{a, b, c}, merged)
}

func TestProductJSONShape(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(Product{Name: "Alpha", Tags: []string{}, Comments: []Comment{}, Week: 1, Year: 2024})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Alpha",
		"tagline": "",
		"tags": [],
		"upvotes": "",
		"comment_count": "",
		"product_url": "",
		"week": 1,
		"year": 2024,
		"comments_list": []
	}`, string(payload))
}

func TestSelectorsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultSelectors().Validate())

	bad := DefaultSelectors()
	bad.UpvotesXPath = ".//button[@data-test="
	assert.ErrorContains(t, bad.Validate(), "upvotes_xpath")

	bad = DefaultSelectors()
	bad.ProductItem = "section[data-test^="
	assert.ErrorContains(t, bad.Validate(), "product_item")

	bad = DefaultSelectors()
	bad.Name = ""
	assert.ErrorContains(t, bad.Validate(), "selectors.name")

	_, err := NewExtractor(bad)
	assert.Error(t, err)
}
