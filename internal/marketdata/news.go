package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/cclview/cclview/pkg/models"
)

// DefaultNewsFeedURL is the per-ticker Yahoo Finance headline RSS feed. The
// ticker is substituted for %s; both BYMA listings and ADRs resolve through it.
const DefaultNewsFeedURL = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"

// News fetches recent headlines for a ticker from a per-symbol RSS feed.
type News struct {
	feedURL string
	parser  *gofeed.Parser
	limiter *RateLimiter

	mu    sync.RWMutex
	cache map[string]newsEntry
	ttl   time.Duration
}

type newsEntry struct {
	articles  []models.NewsArticle
	expiresAt time.Time
}

// NewNews creates a news fetcher against the default Yahoo headline feed.
func NewNews() *News {
	return NewNewsWithFeed(DefaultNewsFeedURL)
}

// NewNewsWithFeed creates a news fetcher against a custom feed URL template
// containing one %s placeholder for the ticker.
func NewNewsWithFeed(feedURL string) *News {
	return &News{
		feedURL: feedURL,
		parser:  gofeed.NewParser(),
		limiter: NewRateLimiter(2, time.Second), // conservative: 2 req/s
		cache:   make(map[string]newsEntry),
		ttl:     10 * time.Minute,
	}
}

// FetchNews returns up to limit recent articles about ticker, newest first.
func (n *News) FetchNews(ctx context.Context, ticker string, limit int) ([]models.NewsArticle, error) {
	key := strings.ToUpper(ticker)

	n.mu.RLock()
	entry, ok := n.cache[key]
	n.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return clip(entry.articles, limit), nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(fmt.Sprintf(n.feedURL, key), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse news feed for %s: %w", ticker, err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			Title:   item.Title,
			URL:     item.Link,
			Source:  feed.Title,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})

	n.mu.Lock()
	n.cache[key] = newsEntry{articles: articles, expiresAt: time.Now().Add(n.ttl)}
	n.mu.Unlock()

	return clip(articles, limit), nil
}

func clip(articles []models.NewsArticle, limit int) []models.NewsArticle {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
