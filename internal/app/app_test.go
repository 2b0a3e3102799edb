package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NewsIntent/internal/config"
	"NewsIntent/internal/domain"
	"NewsIntent/internal/logging"
	"NewsIntent/internal/usecase"
)

const articleHTML = `<html><head><title>%[1]s</title></head><body><article><h1>%[1]s</h1>
<p>%[2]s Os números foram divulgados nesta segunda-feira, em comunicado ao mercado, e repercutiram entre analistas e investidores.</p>
<p>A empresa afirmou que seguirá acompanhando o cenário, com novas atualizações previstas para as próximas semanas, segundo a nota oficial.</p>
<p>Especialistas ouvidos pela reportagem avaliam que o movimento confirma a tendência observada ao longo do ano, apesar das incertezas.</p>
</article></body></html>`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var base string

	mux.HandleFunc("/rss/search", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "Petrobras") {
			t.Errorf("unexpected feed query %s", r.URL.RawQuery)
		}
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>feed</title>
<item><title>Lucro da Petrobras</title><link>%[1]s/article/1</link><pubDate>Mon, 05 Oct 2020 07:00:00 GMT</pubDate><description>lucro</description><source url="x">Valor</source></item>
<item><title>Agenda da Petrobras</title><link>%[1]s/article/2</link><pubDate>Mon, 05 Oct 2020 10:00:00 GMT</pubDate><description>agenda</description></item>
<item><title>Sem data</title><link>%[1]s/article/3</link><description>x</description></item>
</channel></rss>`, base)
	})
	mux.HandleFunc("/article/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article/1":
			fmt.Fprintf(w, articleHTML, "Lucro recorde", "A Petrobras teve lucro recorde no trimestre.")
		case "/article/2":
			fmt.Fprintf(w, articleHTML, "Agenda", "A Petrobras publicou a agenda de eventos.")
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		top, rest := "neutral_info", "positive_finance"
		if strings.Contains(strings.ToLower(req.Inputs), "lucro") {
			top, rest = rest, top
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"labels": []string{top, rest}, "scores": []float64{0.9, 0.1}})
	})

	srv := httptest.NewServer(mux)
	base = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) config.Config {
	cfg := config.Default()
	cfg.Feed.BaseURL = srv.URL + "/rss/search"
	cfg.ML.InferenceURL = srv.URL + "/classify"
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = filepath.Join(t.TempDir(), "runs.db")
	cfg.Extraction.Timeout = 5 * time.Second
	cfg.Classifier.Timeout = 5 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestApplicationRunAndHistory(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t)
	ctx := context.Background()

	application, err := New(ctx, testConfig(t, srv), logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	res, err := application.Run(ctx, usecase.Request{Entity: "Petrobras"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(res.Articles))
	}
	if res.Articles[0].Intent != domain.IntentPositiveFinance || res.Articles[1].Intent != domain.IntentNeutralInfo {
		t.Fatalf("unexpected intents: %s %s", res.Articles[0].Intent, res.Articles[1].Intent)
	}
	if res.Articles[0].Article.FullText == "" || res.Articles[2].Article.FullText != "" {
		t.Fatal("expected extracted text for the first article and none for the missing page")
	}
	if res.Counts.Count("2020-10-05", domain.IntentPositiveFinance) != 1 || res.Counts.Count("2020-10-05", domain.IntentNeutralInfo) != 1 {
		t.Fatalf("unexpected counts: %v", res.Counts.Intents())
	}

	from := time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 10, 31, 0, 0, 0, 0, time.UTC)
	stored, err := application.History(ctx, "Petrobras", from, to)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !stored.Equal(res.Counts) {
		t.Fatal("persisted counts differ from the run")
	}
}

func TestHistoryWithoutDatabase(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t)
	cfg := testConfig(t, srv)
	cfg.Database.Driver = ""

	application, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	_, err = application.History(context.Background(), "Petrobras", time.Now(), time.Now())
	if !errors.Is(err, ErrNoRepository) {
		t.Fatalf("expected ErrNoRepository, got %v", err)
	}
}

func TestNewRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Feed.Sources = []string{"bing"}

	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatal("expected error for unregistered source")
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t)
	cfg := testConfig(t, srv)
	cfg.Database.Driver = ""
	cfg.Scheduler.Interval = time.Hour

	application, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan usecase.Result, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Watch(ctx, []string{"Petrobras"}, func(r usecase.Result) { results <- r })
	}()

	select {
	case r := <-results:
		if r.Query.Entity() != "Petrobras" {
			t.Fatalf("unexpected entity %s", r.Query.Entity())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("scheduled run did not complete")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestApplicationCloseReportsCacheEntries(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t)
	ctx := context.Background()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	application, err := New(ctx, testConfig(t, srv), logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := application.Run(ctx, usecase.Request{Entity: "Petrobras"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := application.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var entries float64 = -1
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		if record["msg"] == "memory cache released" {
			entries, _ = record["entries"].(float64)
		}
	}
	if entries < 1 {
		t.Fatalf("expected cached extractions to be reported on close, got %v", entries)
	}
}
