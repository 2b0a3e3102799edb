package ports

import (
	"context"
	"time"

	"NewsIntent/internal/domain"
)

// FeedSource retrieves raw entries for a query from an aggregator feed.
// Implementations never fail the batch: transport problems yield an empty slice.
type FeedSource interface {
	Fetch(ctx context.Context, query domain.Query, maxResults int) []domain.FeedEntry
}

// LinkResolver turns an aggregator redirect link into the publisher URL.
// On failure it returns the input unchanged.
type LinkResolver interface {
	Resolve(ctx context.Context, link string) string
}

// ContentExtractor downloads a page and returns its readable body text, or "" on failure.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) string
}

// LabelScore is one entry of a zero-shot ranking.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ZeroShotModel ranks candidate labels for a text.
type ZeroShotModel interface {
	Rank(ctx context.Context, text string, labels []string) ([]LabelScore, error)
}

// IntentClassifier assigns a taxonomy label to an article. It never fails.
type IntentClassifier interface {
	ClassifyArticle(ctx context.Context, article domain.Article) domain.Intent
}

// Cache stores small blobs (resolved links, extracted text) between runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RunRepository persists classified batches and their daily counts.
type RunRepository interface {
	SaveRun(ctx context.Context, entity string, articles []domain.ClassifiedArticle, counts domain.DailyIntentCounts) error
	LoadCounts(ctx context.Context, entity string, from, to time.Time) (domain.DailyIntentCounts, error)
}

// Notifier streams count digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
