package googlenews

import (
	"net/url"
	"strings"

	"NewsIntent/internal/domain"
)

// DefaultSearchURL is the RSS search endpoint of Google News.
const DefaultSearchURL = "https://news.google.com/rss/search"

// BuildSearchURL renders the feed search URL for a query.
// The entity is percent-encoded with spaces as %20; date filters are appended
// as "before:" and "after:" search operators inside the q parameter.
func BuildSearchURL(baseURL string, q domain.Query) string {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}

	var b strings.Builder
	b.WriteString(baseURL)
	b.WriteString("?q=")
	b.WriteString(quote(q.Entity()))

	if end, ok := q.EndDate(); ok {
		b.WriteString("%20before%3A")
		b.WriteString(end.Format(domain.DateLayout))
	}
	if start, ok := q.StartDate(); ok {
		b.WriteString("%20after%3A")
		b.WriteString(start.Format(domain.DateLayout))
	}

	lang := quote(q.Language())
	region := quote(q.Region())
	b.WriteString("&hl=" + lang)
	b.WriteString("&gl=" + region)
	b.WriteString("&ceid=" + region + ":" + lang)

	return b.String()
}

func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
