// Package feed collects raw items from the configured sources: RSS
// feeds, HTML pages scraped with goquery, and the GitHub/HuggingFace
// trending APIs.
package feed

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/dailyhot/hotspot/pkg/domain"
)

const maxSummaryRunes = 500

// RSSFetcher fetches RSS/Atom feeds via HTTP
type RSSFetcher struct {
	client    *http.Client
	sanitize  *bluemonday.Policy
	userAgent string
}

// NewRSSFetcher creates a new feed fetcher
func NewRSSFetcher(timeout time.Duration, userAgent string) *RSSFetcher {
	return &RSSFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sanitize:  bluemonday.StrictPolicy(),
		userAgent: userAgent,
	}
}

// Fetch retrieves and parses a feed from the given URL, returning at
// most limit items. Summaries are stripped of HTML and truncated.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string, limit int) ([]domain.RawItem, error) {
	body, err := f.fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}

		title := item.Title
		if title == "" {
			title = "Untitled"
		}

		// description first, full content as fallback
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		parsed := domain.RawItem{
			Title:   title,
			URL:     item.Link,
			Summary: f.cleanSummary(summary),
		}

		if item.PublishedParsed != nil {
			parsed.Published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			parsed.Published = item.UpdatedParsed
		}

		items = append(items, parsed)
	}

	return items, nil
}

// fetch retrieves feed content from a URL
func (f *RSSFetcher) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req, acceptFeed)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// cleanSummary strips HTML markup and truncates to a readable length
func (f *RSSFetcher) cleanSummary(s string) string {
	s = strings.TrimSpace(html.UnescapeString(f.sanitize.Sanitize(s)))
	runes := []rune(s)
	if len(runes) > maxSummaryRunes {
		return string(runes[:maxSummaryRunes]) + "..."
	}
	return s
}
