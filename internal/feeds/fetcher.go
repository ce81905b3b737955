// Package feeds fetches articles from RSS feeds, scraping full article
// bodies where the feed only carries a snippet.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/news"
)

// Source identifies one RSS feed.
type Source struct {
	URL    string
	Source string
}

// articleSelectors are common article body containers, tried in order.
var articleSelectors = []string{
	"article",
	".article-body",
	".story-body",
	".main-content",
	"main",
}

// Config holds fetcher configuration.
type Config struct {
	// PerFeedLimit caps articles taken per feed. Default: 15.
	PerFeedLimit int

	// MinContentLength drops articles whose content is shorter than this
	// many bytes. Default: 200.
	MinContentLength int

	// ItemDelay is the polite pause between per-article scrapes.
	// Default: 500ms.
	ItemDelay time.Duration

	// ScrapeTimeout bounds a single article scrape. Default: 5s.
	ScrapeTimeout time.Duration

	// UserAgent is sent on scrape requests. Defaults to a browser UA since
	// several news sites reject obvious bots.
	UserAgent string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.PerFeedLimit == 0 {
		c.PerFeedLimit = 15
	}
	if c.MinContentLength == 0 {
		c.MinContentLength = 200
	}
	if c.ItemDelay == 0 {
		c.ItemDelay = 500 * time.Millisecond
	}
	if c.ScrapeTimeout == 0 {
		c.ScrapeTimeout = 5 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
}

// Fetcher retrieves and scrapes articles from RSS feeds.
type Fetcher struct {
	parser *gofeed.Parser
	client *http.Client
	logger *logging.Logger
	config Config
}

// NewFetcher creates a feed fetcher.
func NewFetcher(cfg Config, logger *logging.Logger) *Fetcher {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	client := &http.Client{Timeout: cfg.ScrapeTimeout}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = cfg.UserAgent

	return &Fetcher{
		parser: parser,
		client: client,
		logger: logger,
		config: cfg,
	}
}

// Fetch downloads the feed and returns its recent articles. Each item is
// scraped for its full body; the scraped text is used when it is longer
// than what the feed itself carried. Items with too little content are
// skipped.
func (f *Fetcher) Fetch(ctx context.Context, source Source) ([]news.Article, error) {
	feed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", source.URL, err)
	}

	items := feed.Items
	if len(items) > f.config.PerFeedLimit {
		items = items[:f.config.PerFeedLimit]
	}

	articles := make([]news.Article, 0, len(items))
	for i, item := range items {
		content := item.Description
		if len(item.Content) > len(content) {
			content = item.Content
		}

		if item.Link != "" {
			scraped, err := f.scrape(ctx, item.Link)
			if err != nil {
				f.logger.Warn(ctx, "article scrape failed",
					zap.String("url", item.Link),
					zap.Error(err),
				)
			} else if len(scraped) > len(content) {
				content = scraped
			}
		}

		if len(content) < f.config.MinContentLength {
			continue
		}

		title := item.Title
		if title == "" {
			title = "No Title"
		}
		articles = append(articles, news.Article{
			Title:   title,
			Link:    item.Link,
			Content: content,
			PubDate: item.Published,
			Source:  source.Source,
		})

		// Polite delay between scrapes; nothing follows the last item.
		if i < len(items)-1 {
			select {
			case <-time.After(f.config.ItemDelay):
			case <-ctx.Done():
				return articles, ctx.Err()
			}
		}
	}

	f.logger.Info(ctx, "feed fetched",
		zap.String("source", source.Source),
		zap.Int("items", len(items)),
		zap.Int("articles", len(articles)),
	)
	return articles, nil
}

// scrape pulls paragraph text out of an article page, preferring known
// article containers and falling back to every <p> on the page.
func (f *Fetcher) scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	for _, selector := range articleSelectors {
		container := doc.Find(selector)
		if container.Length() > 0 {
			if text := paragraphText(container); text != "" {
				return text, nil
			}
		}
	}
	return paragraphText(doc.Selection), nil
}

// paragraphText joins the text of all <p> elements under sel.
func paragraphText(sel *goquery.Selection) string {
	var paragraphs []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}
