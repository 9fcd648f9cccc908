package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dailyhot/hotspot/pkg/domain"
)

// Crawler scrapes sources that publish HTML lists instead of feeds.
// Each named fetcher knows the page layout of one site.
type Crawler struct {
	client    *http.Client
	userAgent string
	pages     map[string]string
}

// default page URLs, overridable per source in the config
const (
	aibaseNewsURL = "https://www.aibase.com/zh/news"
	aibotDailyURL = "https://ai-bot.cn/daily-ai-news/"
	ithomeAITag   = "https://www.ithome.com/tag/ai"
)

// NewCrawler creates a crawler with the built-in fetcher pages
func NewCrawler(timeout time.Duration, userAgent string) *Crawler {
	return &Crawler{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		pages: map[string]string{
			"aibase": aibaseNewsURL,
			"aibot":  aibotDailyURL,
			"ithome": ithomeAITag,
		},
	}
}

// SetPageURL overrides the page a named fetcher scrapes
func (c *Crawler) SetPageURL(name, pageURL string) {
	c.pages[name] = pageURL
}

// Names lists the registered fetcher names
func (c *Crawler) Names() []string {
	names := make([]string, 0, len(c.pages))
	for name := range c.pages {
		names = append(names, name)
	}
	return names
}

// Fetch scrapes the page behind the named fetcher and returns at most
// limit items
func (c *Crawler) Fetch(ctx context.Context, name string, limit int) ([]domain.RawItem, error) {
	pageURL, ok := c.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown crawler fetcher %q", name)
	}

	doc, err := c.getDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", name, err)
	}

	switch name {
	case "aibase":
		return parseAIBase(doc, pageURL, limit), nil
	case "aibot":
		return parseAIBot(doc, pageURL, limit), nil
	case "ithome":
		return parseITHome(doc, pageURL, limit), nil
	default:
		return nil, fmt.Errorf("no parser for fetcher %q", name)
	}
}

func (c *Crawler) getDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	addBrowserHeaders(req, acceptHTML)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// aibaseNewsPath matches news detail pages, list anchors also link to
// category pages we want to skip
var aibaseNewsPath = regexp.MustCompile(`/news/\d+`)

// aibasePrefix strips the "刚刚.AIbase" style time/author prefix glued
// onto list titles
var aibasePrefix = regexp.MustCompile(`^.*\.AIbase`)

func parseAIBase(doc *goquery.Document, pageURL string, limit int) []domain.RawItem {
	var items []domain.RawItem
	seen := map[string]bool{}

	doc.Find("a[href*='/news/']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if href == "" || seen[href] || !aibaseNewsPath.MatchString(href) {
			return true
		}
		seen[href] = true

		rawTitle := strings.TrimSpace(sel.Text())
		if rawTitle == "" {
			return true
		}
		title := strings.TrimSpace(aibasePrefix.ReplaceAllString(rawTitle, ""))
		if title == "" {
			title = rawTitle
		}

		items = append(items, domain.RawItem{
			Title: title,
			URL:   resolveURL(pageURL, href),
			// list page summaries are JS-rendered, reuse the title
			Summary: title,
		})
		return limit <= 0 || len(items) < limit
	})

	return items
}

func parseAIBot(doc *goquery.Document, pageURL string, limit int) []domain.RawItem {
	var items []domain.RawItem

	containers := doc.Find(".news-content")
	if containers.Length() == 0 {
		containers = doc.Find("h2")
	}

	containers.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var titleSel, linkSel, descSel *goquery.Selection
		if goquery.NodeName(sel) == "div" {
			titleSel = sel.Find("h2, h3").First()
			linkSel = sel.Find("a[href]").First()
			if linkSel.Length() == 0 {
				linkSel = sel.ParentsFiltered("a").First()
			}
			descSel = sel.Find("p").First()
		} else {
			titleSel = sel
			linkSel = sel.Find("a[href]").First()
			descSel = sel.NextAllFiltered("p").First()
		}

		title := strings.TrimSpace(titleSel.Text())
		if len([]rune(title)) < 5 {
			return true
		}

		itemURL := pageURL
		if href, ok := linkSel.Attr("href"); ok && href != "" {
			itemURL = resolveURL(pageURL, href)
		}

		summary := strings.TrimSpace(descSel.Text())
		if summary == "" {
			summary = title
		}

		items = append(items, domain.RawItem{Title: title, URL: itemURL, Summary: summary})
		return limit <= 0 || len(items) < limit
	})

	return items
}

func parseITHome(doc *goquery.Document, pageURL string, limit int) []domain.RawItem {
	var items []domain.RawItem
	seen := map[string]bool{}

	doc.Find(".block li, .news-list li, ul.bl li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok || seen[href] {
			return true
		}
		seen[href] = true

		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(sel.Find("h2, h3").First().Text())
		}
		if title == "" {
			return true
		}

		summary := strings.TrimSpace(sel.Find(".memo").First().Text())
		if summary == "" {
			summary = strings.TrimSpace(sel.Find(".m").First().Text())
		}

		items = append(items, domain.RawItem{
			Title:   title,
			URL:     resolveURL(pageURL, href),
			Summary: summary,
		})
		return limit <= 0 || len(items) < limit
	})

	return items
}

// resolveURL makes href absolute relative to the page it came from
func resolveURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
