package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

const (
	defaultUserAgent = "Mozilla/5.0"
	textCachePrefix  = "text:"
	maxPageBytes     = 8 << 20
)

// Options configures a Readability extractor.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Cache     ports.Cache
	CacheTTL  time.Duration
}

// Readability downloads article pages and keeps only their main body text.
type Readability struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	cache     ports.Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

var _ ports.ContentExtractor = (*Readability)(nil)

// NewReadability wires the extractor; a nil client gets a default one without timeout.
func NewReadability(client *http.Client, opts Options, log *slog.Logger) *Readability {
	if client == nil {
		client = &http.Client{}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Readability{
		client:    client,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		logger:    logging.OrDiscard(log),
	}
}

// Extract returns the readable text of the page at rawURL, or "" on any failure.
func (e *Readability) Extract(ctx context.Context, rawURL string) string {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") || pageURL.Host == "" {
		e.logger.Warn("skip extraction for invalid url", "url", rawURL)
		return ""
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, textCachePrefix+rawURL); ok {
			return string(cached)
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text, err := e.extract(ctx, pageURL)
	if err != nil {
		e.logger.Warn("content extraction failed", "url", rawURL, "error", err)
		return ""
	}

	if text != "" && e.cache != nil {
		if err := e.cache.Set(ctx, textCachePrefix+rawURL, []byte(text), e.cacheTTL); err != nil {
			e.logger.Debug("text cache write failed", "url", rawURL, "error", err)
		}
	}
	return text
}

func (e *Readability) extract(ctx context.Context, pageURL *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	// Redirects move the base used to resolve relative links.
	base := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), base)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
