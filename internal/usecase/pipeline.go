package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsIntent/internal/aggregate"
	"NewsIntent/internal/domain"
	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

const (
	defaultExtractionConcurrency = 16
	defaultClassifierWorkers     = 4
)

// Defaults fill request fields the caller leaves empty.
type Defaults struct {
	Language   string
	Region     string
	MaxResults int
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Resolver, Extractor, Repository and Notifier are optional.
type PipelineDeps struct {
	Source     ports.FeedSource
	Resolver   ports.LinkResolver
	Extractor  ports.ContentExtractor
	Classifier ports.IntentClassifier
	Repository ports.RunRepository
	Notifier   ports.Notifier
	Logger     *slog.Logger

	Defaults              Defaults
	ExtractionConcurrency int
	ClassifierWorkers     int
}

// Request names the entity and optional date window of one batch.
type Request struct {
	Entity     string
	Start      *time.Time
	End        *time.Time
	Language   string
	Region     string
	MaxResults int
}

// Result carries everything a batch produced, including a partial batch after cancellation.
type Result struct {
	Query    domain.Query
	Fetched  int
	Articles []domain.ClassifiedArticle
	Counts   domain.DailyIntentCounts
}

// Pipeline implements the fetch, resolve, extract, classify and aggregate workflow.
type Pipeline struct {
	source     ports.FeedSource
	resolver   ports.LinkResolver
	extractor  ports.ContentExtractor
	classifier ports.IntentClassifier
	repository ports.RunRepository
	notifier   ports.Notifier
	logger     *slog.Logger

	defaults    Defaults
	extractions int
	workers     int
}

var (
	errNoSource     = errors.New("pipeline: feed source is not configured")
	errNoClassifier = errors.New("pipeline: classifier is not configured")
)

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	extractions := deps.ExtractionConcurrency
	if extractions < 1 {
		extractions = defaultExtractionConcurrency
	}
	workers := deps.ClassifierWorkers
	if workers < 1 {
		workers = defaultClassifierWorkers
	}

	return &Pipeline{
		source:      deps.Source,
		resolver:    deps.Resolver,
		extractor:   deps.Extractor,
		classifier:  deps.Classifier,
		repository:  deps.Repository,
		notifier:    deps.Notifier,
		logger:      logging.OrDiscard(deps.Logger),
		defaults:    deps.Defaults,
		extractions: extractions,
		workers:     workers,
	}
}

// Run executes one batch. Per-article failures degrade the article instead of the batch.
// When ctx is cancelled mid-run, the articles completed so far are returned with the
// wrapped context error.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if p.source == nil {
		return Result{}, errNoSource
	}
	if p.classifier == nil {
		return Result{}, errNoClassifier
	}

	req = p.withDefaults(req)
	query, err := domain.NewQuery(req.Entity, req.Language, req.Region, req.Start, req.End)
	if err != nil {
		return Result{}, fmt.Errorf("build query: %w", err)
	}

	started := time.Now()
	entries := p.source.Fetch(ctx, query, req.MaxResults)
	p.logger.Info("feed fetched", "entity", query.Entity(), "entries", len(entries))

	articles := p.enrich(ctx, entries)
	classified := p.classify(ctx, articles)
	counts := aggregate.Aggregate(classified)

	result := Result{
		Query:    query,
		Fetched:  len(entries),
		Articles: classified,
		Counts:   counts,
	}

	if err := ctx.Err(); err != nil {
		p.logger.Warn("pipeline cancelled", "entity", query.Entity(), "completed", len(classified), "fetched", len(entries))
		return result, fmt.Errorf("pipeline cancelled: %w", err)
	}

	p.logger.Info("pipeline finished",
		"entity", query.Entity(),
		"articles", len(classified),
		"dated", counts.Total(),
		"days", len(counts.Dates()),
		"duration", time.Since(started).Round(time.Millisecond))

	p.persist(ctx, query.Entity(), classified, counts)
	p.notify(ctx, query.Entity(), counts)

	return result, nil
}

func (p *Pipeline) withDefaults(req Request) Request {
	if req.Language == "" {
		req.Language = p.defaults.Language
	}
	if req.Region == "" {
		req.Region = p.defaults.Region
	}
	if req.MaxResults <= 0 {
		req.MaxResults = p.defaults.MaxResults
	}
	return req
}

// enrich resolves and extracts every entry concurrently. Each goroutine owns one slot.
func (p *Pipeline) enrich(ctx context.Context, entries []domain.FeedEntry) []domain.Article {
	slots := make([]domain.Article, len(entries))
	done := make([]bool, len(entries))

	var g errgroup.Group
	g.SetLimit(p.extractions)

	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		i, entry := i, entry
		g.Go(func() error {
			article := p.enrichOne(ctx, entry)
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = article
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	articles := make([]domain.Article, 0, len(entries))
	for i := range slots {
		if done[i] {
			articles = append(articles, slots[i])
		}
	}
	return articles
}

func (p *Pipeline) enrichOne(ctx context.Context, entry domain.FeedEntry) domain.Article {
	target := entry.RawLink
	if p.resolver != nil && target != "" {
		target = p.resolver.Resolve(ctx, target)
	}

	var text string
	if p.extractor != nil && target != "" {
		text = p.extractor.Extract(ctx, target)
	}

	published, ok := ParsePublished(entry.Published)
	if !ok {
		p.logger.Debug("unparseable publication date", "title", entry.Title, "published", entry.Published)
	}

	return domain.Article{
		Title:       entry.Title,
		Description: entry.Description,
		URL:         target,
		Published:   published,
		SourceName:  entry.SourceName,
		FullText:    text,
	}
}

// classify runs the classifier over a bounded worker pool.
func (p *Pipeline) classify(ctx context.Context, articles []domain.Article) []domain.ClassifiedArticle {
	slots := make([]domain.ClassifiedArticle, len(articles))
	done := make([]bool, len(articles))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, article := range articles {
		if ctx.Err() != nil {
			break
		}
		i, article := i, article
		g.Go(func() error {
			intent := p.classifier.ClassifyArticle(ctx, article)
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = domain.ClassifiedArticle{Article: article, Intent: intent}
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	classified := make([]domain.ClassifiedArticle, 0, len(articles))
	for i := range slots {
		if done[i] {
			classified = append(classified, slots[i])
		}
	}
	return classified
}

func (p *Pipeline) persist(ctx context.Context, entity string, articles []domain.ClassifiedArticle, counts domain.DailyIntentCounts) {
	if p.repository == nil {
		return
	}
	if err := p.repository.SaveRun(ctx, entity, articles, counts); err != nil {
		p.logger.Error("persist run failed", "entity", entity, "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, entity string, counts domain.DailyIntentCounts) {
	if p.notifier == nil || counts.Empty() {
		return
	}
	if err := p.notifier.PublishDigest(ctx, aggregate.Summary(entity, counts)); err != nil {
		p.logger.Error("publish digest failed", "entity", entity, "error", err)
	}
}
