package googlenews

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"NewsIntent/internal/domain"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>"Petrobras" - Google News</title>
  <item>
    <title>Petrobras anuncia dividendos - Valor</title>
    <link>https://news.google.com/rss/articles/CBMiAAA?oc=5</link>
    <pubDate>Mon, 05 Oct 2020 07:00:00 GMT</pubDate>
    <description>&lt;a href="https://news.google.com/rss/articles/CBMiAAA"&gt;Petrobras anuncia dividendos&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;Valor&lt;/font&gt;</description>
    <source url="https://valor.globo.com">Valor Econômico</source>
  </item>
  <item>
    <title>Second story</title>
    <link>https://news.google.com/rss/articles/CBMiBBB?oc=5</link>
    <pubDate>Tue, 06 Oct 2020 08:00:00 GMT</pubDate>
    <description>plain text</description>
  </item>
  <item>
    <title>Third story</title>
    <link>https://news.google.com/rss/articles/CBMiCCC?oc=5</link>
  </item>
</channel>
</rss>`

func mustQuery(t *testing.T, entity string, start, end *time.Time) domain.Query {
	t.Helper()
	q, err := domain.NewQuery(entity, "pt", "BR", start, end)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	return q
}

func TestBuildSearchURLEncodesEntityVerbatim(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		" Vale":  "q=%20Vale&",
		"Vale\n": "q=Vale%0A&",
		"AT&T":   "q=AT%26T&",
	}
	for entity, want := range cases {
		got := BuildSearchURL("", mustQuery(t, entity, nil, nil))
		if !strings.Contains(got, want) {
			t.Fatalf("entity %q: expected %s in %s", entity, want, got)
		}
	}
}

func TestBuildSearchURL(t *testing.T) {
	t.Parallel()

	start := time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 10, 31, 0, 0, 0, 0, time.UTC)

	got := BuildSearchURL("", mustQuery(t, "Banco do Brasil", &start, &end))
	want := "https://news.google.com/rss/search?q=Banco%20do%20Brasil%20before%3A2020-10-31%20after%3A2020-10-01&hl=pt&gl=BR&ceid=BR:pt"
	if got != want {
		t.Fatalf("unexpected url:\n got %s\nwant %s", got, want)
	}

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if q := parsed.Query().Get("q"); q != "Banco do Brasil before:2020-10-31 after:2020-10-01" {
		t.Fatalf("unexpected decoded q: %s", q)
	}
}

func TestBuildSearchURLWithoutDates(t *testing.T) {
	t.Parallel()

	got := BuildSearchURL("http://feeds.local/search", mustQuery(t, "Vale", nil, nil))
	want := "http://feeds.local/search?q=Vale&hl=pt&gl=BR&ceid=BR:pt"
	if got != want {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestFetcherParsesFeed(t *testing.T) {
	t.Parallel()

	var gotAgent, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.Client(), FetcherOptions{BaseURL: srv.URL + "/rss/search"}, nil)
	entries := fetcher.Fetch(context.Background(), mustQuery(t, "Petrobras", nil, nil), 30)

	if gotAgent != "Mozilla/5.0" {
		t.Fatalf("expected default user agent, got %q", gotAgent)
	}
	if gotQuery != "Petrobras" {
		t.Fatalf("unexpected q param %q", gotQuery)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "Petrobras anuncia dividendos - Valor" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if first.Description != "Petrobras anuncia dividendos  Valor" {
		t.Fatalf("unexpected description: %q", first.Description)
	}
	if first.SourceName != "Valor Econômico" {
		t.Fatalf("unexpected source: %q", first.SourceName)
	}
	if first.Published != "Mon, 05 Oct 2020 07:00:00 GMT" {
		t.Fatalf("unexpected published: %q", first.Published)
	}
	if !strings.HasPrefix(first.RawLink, "https://news.google.com/rss/articles/") {
		t.Fatalf("unexpected link: %s", first.RawLink)
	}

	third := entries[2]
	if third.Description != "" || third.Published != "" || third.SourceName != "" {
		t.Fatalf("missing fields should be empty: %+v", third)
	}
}

func TestFetcherHonoursMaxResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.Client(), FetcherOptions{BaseURL: srv.URL}, nil)
	entries := fetcher.Fetch(context.Background(), mustQuery(t, "Petrobras", nil, nil), 2)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Title != "Second story" {
		t.Fatalf("expected feed order, got %s", entries[1].Title)
	}
}

func TestFetcherReturnsEmptyOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.Client(), FetcherOptions{BaseURL: srv.URL}, nil)
	entries := fetcher.Fetch(context.Background(), mustQuery(t, "Petrobras", nil, nil), 30)
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", entries)
	}

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("definitely not xml"))
	}))
	defer garbage.Close()

	fetcher = NewFetcher(garbage.Client(), FetcherOptions{BaseURL: garbage.URL}, nil)
	if got := fetcher.Fetch(context.Background(), mustQuery(t, "Petrobras", nil, nil), 30); len(got) != 0 {
		t.Fatalf("expected no entries for malformed feed, got %d", len(got))
	}
}

func TestCleanDescription(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                                   "",
		"  plain  ":                          "plain",
		"<b>bold</b>&nbsp;text":              "bold text",
		"<p>line one</p>":               "line one",
		`<a href="x">Title</a><font>S</font>`: "TitleS",
	}
	for in, want := range cases {
		if got := CleanDescription(in); got != want {
			t.Fatalf("CleanDescription(%q) = %q, want %q", in, got, want)
		}
	}
}

func encodeArticleID(payload string) string {
	raw := append([]byte{}, legacyPrefix...)
	raw = binary.AppendUvarint(raw, uint64(len(payload)))
	raw = append(raw, payload...)
	raw = append(raw, legacySuffix...)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func TestDecodeOffline(t *testing.T) {
	t.Parallel()

	target := "https://www.infomoney.com.br/mercados/petrobras-dividendos/"
	got, online, err := decodeOffline(encodeArticleID(target))
	if err != nil {
		t.Fatalf("decodeOffline: %v", err)
	}
	if online || got != target {
		t.Fatalf("unexpected decode: %q online=%v", got, online)
	}

	_, online, err = decodeOffline(encodeArticleID("AU_yqLOpaqueToken"))
	if err != nil || !online {
		t.Fatalf("expected online token, err=%v online=%v", err, online)
	}

	if _, _, err := decodeOffline("!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestResolverOfflineLink(t *testing.T) {
	t.Parallel()

	target := "https://valor.globo.com/empresas/noticia/2020/10/05/petrobras.ghtml"
	resolver := NewResolver(nil, ResolverOptions{}, nil)

	link := "https://news.google.com/rss/articles/" + encodeArticleID(target) + "?oc=5"
	if got := resolver.Resolve(context.Background(), link); got != target {
		t.Fatalf("expected %s, got %s", target, got)
	}
}

func TestResolverLeavesForeignLinks(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(nil, ResolverOptions{}, nil)
	for _, link := range []string{
		"https://example.com/story",
		"https://news.google.com/topics/abc",
		"::not a url",
	} {
		if got := resolver.Resolve(context.Background(), link); got != link {
			t.Fatalf("expected passthrough for %q, got %q", link, got)
		}
	}
}

type mapCache struct {
	values map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func TestResolverOnlineLink(t *testing.T) {
	t.Parallel()

	id := encodeArticleID("AU_yqLOpaqueToken")
	var batchCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/rss/articles/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><c-wiz><div jscontroller="x" data-n-a-sg="SIG123" data-n-a-ts="1700000000"></div></c-wiz></body></html>`))
	})
	mux.HandleFunc(batchExecutePath, func(w http.ResponseWriter, r *http.Request) {
		batchCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		req := r.PostForm.Get("f.req")
		if !strings.Contains(req, "Fbv4je") || !strings.Contains(req, id) || !strings.Contains(req, "SIG123") || !strings.Contains(req, "1700000000") {
			t.Errorf("unexpected f.req: %s", req)
		}
		_, _ = w.Write([]byte(")]}'\n\n" + `[["wrb.fr","Fbv4je","[\"garturlres\",\"https://publisher.example/story\",1]",null,null,null,"generic"],["di",42]]` + "\n\n25\n[[\"e\",4]]"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cache := &mapCache{values: map[string][]byte{}}
	resolver := NewResolver(srv.Client(), ResolverOptions{
		BaseURL:           srv.URL,
		RequestsPerSecond: 100,
		Burst:             4,
		Cache:             cache,
	}, nil)

	link := srv.URL + "/rss/articles/" + id + "?oc=5"
	for i := 0; i < 2; i++ {
		if got := resolver.Resolve(context.Background(), link); got != "https://publisher.example/story" {
			t.Fatalf("unexpected resolution: %s", got)
		}
	}
	if batchCalls.Load() != 1 {
		t.Fatalf("expected cached second lookup, got %d batch calls", batchCalls.Load())
	}
}

func TestResolverOnlineFailureReturnsInput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>no signature here</body></html>`))
	}))
	defer srv.Close()

	resolver := NewResolver(srv.Client(), ResolverOptions{BaseURL: srv.URL}, nil)
	link := srv.URL + "/rss/articles/" + encodeArticleID("AU_yqLOpaqueToken")
	if got := resolver.Resolve(context.Background(), link); got != link {
		t.Fatalf("expected original link, got %s", got)
	}
}

func TestParseBatchResponseRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "only one chunk", ")]}'\n\n[]", ")]}'\n\n[[\"wrb.fr\",\"Fbv4je\",\"not json\"]]"} {
		if _, err := parseBatchResponse([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}
