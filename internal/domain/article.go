package domain

import "time"

// DateLayout is the calendar-date format used for query filters and table rows.
const DateLayout = "2006-01-02"

// FeedEntry is a raw record returned by a feed source.
type FeedEntry struct {
	Title       string
	Description string
	RawLink     string
	Published   string
	SourceName  string
}

// Article is a feed entry enriched with its canonical URL and body text.
type Article struct {
	Title       string
	Description string
	URL         string
	Published   *time.Time
	SourceName  string
	FullText    string
}

// Day returns the publication date as YYYY-MM-DD, or false when unknown.
func (a Article) Day() (string, bool) {
	if a.Published == nil {
		return "", false
	}
	return a.Published.Format(DateLayout), true
}

// ClassifiedArticle attaches an intent label to an article.
type ClassifiedArticle struct {
	Article Article
	Intent  Intent
}
