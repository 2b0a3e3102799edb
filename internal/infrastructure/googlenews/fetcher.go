package googlenews

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"NewsIntent/internal/domain"
	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

const (
	// SourceName identifies the strategy inside the source registry.
	SourceName = "googlenews"

	defaultUserAgent = "Mozilla/5.0"
	sourceCustomKey  = "source"
	maxFeedBytes     = 10 << 20
)

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher retrieves the Google News RSS feed for a query.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

var _ ports.FeedSource = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; a nil client gets a default one without timeout.
func NewFetcher(client *http.Client, opts FetcherOptions, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultSearchURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    client,
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		logger:    logging.OrDiscard(log),
	}
}

// Name identifies the strategy inside the registry.
func (f *Fetcher) Name() string {
	return SourceName
}

// Fetch builds the search URL for the query and returns at most maxResults entries.
func (f *Fetcher) Fetch(ctx context.Context, query domain.Query, maxResults int) []domain.FeedEntry {
	return f.FetchURL(ctx, BuildSearchURL(f.baseURL, query), maxResults)
}

// FetchURL retrieves and parses a feed. Any failure is logged and yields an empty slice.
func (f *Fetcher) FetchURL(ctx context.Context, feedURL string, maxResults int) []domain.FeedEntry {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	body, err := f.download(ctx, feedURL)
	if err != nil {
		f.logger.Warn("feed fetch failed", "url", feedURL, "error", err)
		return []domain.FeedEntry{}
	}

	entries, err := parseEntries(body, maxResults)
	if err != nil {
		f.logger.Warn("feed parse failed", "url", feedURL, "error", err)
		return []domain.FeedEntry{}
	}

	f.logger.Debug("feed fetched", "url", feedURL, "entries", len(entries))
	return entries
}

func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return body, nil
}

func parseEntries(body []byte, maxResults int) ([]domain.FeedEntry, error) {
	parser := gofeed.NewParser()
	parser.RSSTranslator = &sourceTranslator{}

	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	items := feed.Items
	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}

	entries := make([]domain.FeedEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, domain.FeedEntry{
			Title:       strings.TrimSpace(item.Title),
			Description: CleanDescription(item.Description),
			RawLink:     strings.TrimSpace(item.Link),
			Published:   strings.TrimSpace(item.Published),
			SourceName:  strings.TrimSpace(item.Custom[sourceCustomKey]),
		})
	}
	return entries, nil
}

// CleanDescription strips HTML tags, turns non-breaking spaces into plain spaces and trims.
func CleanDescription(s string) string {
	if s == "" {
		return ""
	}

	text := s
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err == nil {
		text = doc.Text()
	}

	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	return strings.TrimSpace(text)
}

// sourceTranslator keeps the RSS <source> title, which the default translator drops.
type sourceTranslator struct {
	base gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	rssFeed, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("feed did not match expected type of *rss.Feed")
	}

	out, err := t.base.Translate(rssFeed)
	if err != nil {
		return nil, err
	}

	for i, item := range rssFeed.Items {
		if i >= len(out.Items) || item == nil || item.Source == nil {
			continue
		}
		if out.Items[i].Custom == nil {
			out.Items[i].Custom = map[string]string{}
		}
		out.Items[i].Custom[sourceCustomKey] = item.Source.Title
	}
	return out, nil
}
