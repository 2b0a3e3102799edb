package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"NewsIntent/internal/classifier"
	"NewsIntent/internal/config"
	"NewsIntent/internal/domain"
	"NewsIntent/internal/infrastructure/cache/memory"
	rediscache "NewsIntent/internal/infrastructure/cache/redis"
	"NewsIntent/internal/infrastructure/extractor"
	"NewsIntent/internal/infrastructure/googlenews"
	"NewsIntent/internal/infrastructure/llm"
	"NewsIntent/internal/infrastructure/ml"
	"NewsIntent/internal/infrastructure/scheduler"
	"NewsIntent/internal/infrastructure/storage"
	"NewsIntent/internal/infrastructure/telegram"
	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
	"NewsIntent/internal/source"
	"NewsIntent/internal/usecase"
)

const stopTimeout = 10 * time.Second

// ErrNoRepository is returned by History when persistence is disabled.
var ErrNoRepository = errors.New("database is not configured")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	pipeline   *usecase.Pipeline
	classifier *classifier.Service
	repository ports.RunRepository
	memCache   *memory.Cache
	closers    []io.Closer
}

// New builds every adapter named by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: baseLogger}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) wire(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger
	httpClient := &http.Client{}

	cache, err := a.buildCache(ctx)
	if err != nil {
		return err
	}

	registry := source.NewRegistry()
	registry.Register(googlenews.NewFetcher(httpClient, googlenews.FetcherOptions{
		BaseURL:   cfg.Feed.BaseURL,
		UserAgent: cfg.Feed.UserAgent,
		Timeout:   cfg.Feed.Timeout,
	}, log.With("component", "source.googlenews")))

	feeds, err := source.NewStrategySource(registry, cfg.Feed.Sources, log.With("component", "source"))
	if err != nil {
		return fmt.Errorf("feed sources: %w", err)
	}

	resolver := googlenews.NewResolver(httpClient, googlenews.ResolverOptions{
		BaseURL:           cfg.Resolver.BaseURL,
		UserAgent:         cfg.Feed.UserAgent,
		RequestsPerSecond: cfg.Resolver.RequestsPerSecond,
		Burst:             cfg.Resolver.Burst,
		Timeout:           cfg.Resolver.Timeout,
		Cache:             cache,
		CacheTTL:          cfg.Cache.TTL,
	}, log.With("component", "resolver"))

	pages := extractor.NewReadability(httpClient, extractor.Options{
		UserAgent: cfg.Feed.UserAgent,
		Timeout:   cfg.Extraction.Timeout,
		Cache:     cache,
		CacheTTL:  cfg.Cache.TTL,
	}, log.With("component", "extractor"))

	model, err := buildModel(cfg)
	if err != nil {
		return err
	}
	a.classifier = classifier.New(model, classifier.Options{
		Timeout:             cfg.Classifier.Timeout,
		MaxChars:            cfg.Classifier.MaxChars,
		MinConfidence:       cfg.Classifier.MinConfidence,
		LowConfidenceIntent: domain.Intent(cfg.Classifier.LowConfidenceIntent),
	}, log.With("component", "classifier", "backend", cfg.Classifier.Backend))

	if cfg.Database.Driver != "" {
		repo, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, repo)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		a.repository = repo
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     feeds,
		Resolver:   resolver,
		Extractor:  pages,
		Classifier: a.classifier,
		Repository: a.repository,
		Notifier:   notifier,
		Logger:     log.With("component", "pipeline"),
		Defaults: usecase.Defaults{
			Language:   cfg.Feed.Language,
			Region:     cfg.Feed.Region,
			MaxResults: cfg.Feed.MaxResults,
		},
		ExtractionConcurrency: cfg.Extraction.Concurrency,
		ClassifierWorkers:     cfg.Classifier.Workers,
	})

	log.Debug("application wired",
		"sources", cfg.Feed.Sources,
		"cache", cfg.Cache.Type,
		"backend", cfg.Classifier.Backend,
		"database", cfg.Database.Driver != "",
		"telegram", notifier != nil)
	return nil
}

func (a *Application) buildCache(ctx context.Context) (ports.Cache, error) {
	switch a.cfg.Cache.Type {
	case config.CacheMemory:
		a.memCache = memory.New(a.cfg.Cache.TTL, 0)
		return a.memCache, nil
	case config.CacheRedis:
		r := a.cfg.Cache.Redis
		c, err := rediscache.New(ctx, rediscache.Options{
			Address:  r.Address,
			Password: r.Password,
			DB:       r.DB,
		}, a.logger.With("component", "cache.redis"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c)
		return c, nil
	default:
		return nil, nil
	}
}

func buildModel(cfg config.Config) (ports.ZeroShotModel, error) {
	switch cfg.Classifier.Backend {
	case config.BackendInference:
		return ml.NewClient(cfg.ML.InferenceURL, cfg.ML.APIKey, nil), nil
	case config.BackendChatGPT:
		return llm.NewChatGPTClient(cfg.ChatGPT, nil), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
	}
}

// Run performs a single batch.
func (a *Application) Run(ctx context.Context, req usecase.Request) (usecase.Result, error) {
	return a.pipeline.Run(ctx, req)
}

// Watch re-runs the pipeline for entities on the configured interval until ctx ends.
func (a *Application) Watch(ctx context.Context, entities []string, onResult func(usecase.Result)) error {
	if len(entities) == 0 {
		return errors.New("watch needs at least one entity")
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval)
	sched := usecase.NewScheduler(driver, a.pipeline, usecase.ScheduleOptions{
		Entities:   entities,
		WindowDays: a.cfg.Scheduler.WindowDays,
		Location:   a.cfg.Scheduler.Location(),
		OnResult:   onResult,
	}, a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("watching", "entities", entities, "interval", a.cfg.Scheduler.Interval, "window_days", a.cfg.Scheduler.WindowDays)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// History loads persisted counts for entity between from and to.
func (a *Application) History(ctx context.Context, entity string, from, to time.Time) (domain.DailyIntentCounts, error) {
	if a.repository == nil {
		return domain.DailyIntentCounts{}, ErrNoRepository
	}
	return a.repository.LoadCounts(ctx, entity, from, to)
}

// Close releases the model and every connection opened by New.
func (a *Application) Close() error {
	var errs []error
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.memCache != nil {
		a.logger.Info("memory cache released", "entries", a.memCache.Len())
		a.memCache = nil
	}
	return errors.Join(errs...)
}
