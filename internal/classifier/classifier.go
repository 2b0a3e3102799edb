package classifier

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"NewsIntent/internal/domain"
	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

// DefaultMaxChars bounds the text sent to the model.
const DefaultMaxChars = 2000

// Options tunes how articles are turned into model input and how rankings are read.
type Options struct {
	// Timeout bounds each model call; zero leaves it to the caller's context.
	Timeout  time.Duration
	MaxChars int
	// MinConfidence, when positive, routes weaker top labels to LowConfidenceIntent.
	MinConfidence       float64
	LowConfidenceIntent domain.Intent
}

// Service picks the highest-scoring intent for an article using a zero-shot model.
// It is safe for concurrent use and never fails: problems yield domain.IntentUnknown.
type Service struct {
	model  ports.ZeroShotModel
	labels []string
	opts   Options
	logger *slog.Logger
	closed atomic.Bool
}

var _ ports.IntentClassifier = (*Service)(nil)

// New wraps a loaded model. The model is reused for every call until Close.
func New(model ports.ZeroShotModel, opts Options, log *slog.Logger) *Service {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.LowConfidenceIntent == "" {
		opts.LowConfidenceIntent = domain.IntentNeutralInfo
	}
	return &Service{
		model:  model,
		labels: domain.CandidateLabels(),
		opts:   opts,
		logger: logging.OrDiscard(log),
	}
}

// ClassifyArticle classifies the article body, or its headline when the body is missing.
func (s *Service) ClassifyArticle(ctx context.Context, article domain.Article) domain.Intent {
	return s.Classify(ctx, InputText(article))
}

// Classify returns the top intent for text.
func (s *Service) Classify(ctx context.Context, text string) (intent domain.Intent) {
	if s.closed.Load() || s.model == nil {
		return domain.IntentUnknown
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("classifier panicked", "panic", r)
			intent = domain.IntentUnknown
		}
	}()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	ranking, err := s.model.Rank(ctx, Truncate(text, s.opts.MaxChars), s.labels)
	if err != nil {
		s.logger.Warn("classification failed", "error", err)
		return domain.IntentUnknown
	}

	best, ok := Top(ranking)
	if !ok {
		s.logger.Warn("classification returned no labels")
		return domain.IntentUnknown
	}

	intent, known := domain.ParseIntent(best.Label)
	if !known || intent == domain.IntentUnknown {
		s.logger.Warn("classification returned unknown label", "label", best.Label)
		return domain.IntentUnknown
	}

	if s.opts.MinConfidence > 0 && best.Score < s.opts.MinConfidence {
		s.logger.Debug("low confidence label replaced", "label", best.Label, "score", best.Score)
		return s.opts.LowConfidenceIntent
	}
	return intent
}

// Close releases the model. Later calls return domain.IntentUnknown.
func (s *Service) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if closer, ok := s.model.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Top returns the best-scoring entry; ties keep the model's order.
func Top(ranking []ports.LabelScore) (ports.LabelScore, bool) {
	if len(ranking) == 0 {
		return ports.LabelScore{}, false
	}
	best := ranking[0]
	for _, entry := range ranking[1:] {
		if entry.Score > best.Score {
			best = entry
		}
	}
	return best, true
}

// InputText prefers the full body and falls back to "title. description".
func InputText(article domain.Article) string {
	if text := strings.TrimSpace(article.FullText); text != "" {
		return text
	}
	return article.Title + ". " + article.Description
}

// Truncate keeps at most maxChars runes of s.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars])
}
