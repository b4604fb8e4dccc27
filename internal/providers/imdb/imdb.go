package imdb

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"filmstrip/internal/fetch"
)

// Client scrapes rating and popularity off IMDB title pages. It contributes
// only the volatile numeric fields; everything textual comes from the API
// providers.
type Client struct {
	baseURL string
	loader  fetch.Loader
}

func New(baseURL string, loader fetch.Loader) *Client {
	return &Client{baseURL: baseURL, loader: loader}
}

// Rating is the aggregate score and vote count for one title. Zero values
// mean the page had no rating block (unreleased or obscure titles).
type Rating struct {
	Rating    float64
	VoteCount int
}

func (c *Client) titlePage(ctx context.Context, imdbID string) (*goquery.Document, error) {
	raw, err := c.loader.Load(ctx, fmt.Sprintf("%s/title/%s/", c.baseURL, imdbID))
	if err != nil {
		if fetch.IsPermanent(err) {
			return nil, nil
		}
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse imdb page for %s: %w", imdbID, err)
	}

	// a page without the hero block is a consent wall or an error page, not
	// a title page; treat it as no contribution
	if doc.Find("[data-testid=hero__pageTitle]").Length() == 0 {
		return nil, nil
	}
	return doc, nil
}

// GetRating returns the IMDB rating for imdbID, or a zero Rating when the
// title has none.
func (c *Client) GetRating(ctx context.Context, imdbID string) (Rating, error) {
	doc, err := c.titlePage(ctx, imdbID)
	if err != nil || doc == nil {
		return Rating{}, err
	}

	block := doc.Find("[data-testid=hero-rating-bar__aggregate-rating__score]").First()
	rating, _ := strconv.ParseFloat(strings.TrimSpace(block.Find("span").First().Text()), 64)

	votes := doc.Find("[data-testid=hero-rating-bar__aggregate-rating] [class*=TotalRatingAmount]").First().Text()
	if votes == "" {
		votes = block.Parent().Children().Last().Text()
	}

	return Rating{
		Rating:    rating,
		VoteCount: parseVoteCount(votes),
	}, nil
}

// GetPopularity returns the IMDB popularity rank (lower is more popular), or
// 0 when the page has no popularity block.
func (c *Client) GetPopularity(ctx context.Context, imdbID string) (int, error) {
	doc, err := c.titlePage(ctx, imdbID)
	if err != nil || doc == nil {
		return 0, err
	}

	text := doc.Find("[data-testid=hero-rating-bar__popularity__score]").First().Text()
	rank, _ := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	return rank, nil
}

// parseVoteCount handles IMDB's abbreviated counts: "1,234", "456K", "2.1M".
func parseVoteCount(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'K':
		multiplier = 1e3
		s = s[:len(s)-1]
	case 'M':
		multiplier = 1e6
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v * multiplier)
}
