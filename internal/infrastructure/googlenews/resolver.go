package googlenews

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

// DefaultBaseURL hosts both the redirect links and the decoding endpoint.
const DefaultBaseURL = "https://news.google.com"

const (
	batchExecutePath = "/_/DotsSplashUi/data/batchexecute"
	onlinePrefix     = "AU_yqL"
	linkCachePrefix  = "link:"
	maxPageBytes     = 4 << 20
)

var (
	legacyPrefix = []byte{0x08, 0x13, 0x22}
	legacySuffix = []byte{0xd2, 0x01, 0x00}

	errNotRedirect   = errors.New("not an aggregator redirect link")
	errNoSignature   = errors.New("decoding signature not found")
	errBadPayload    = errors.New("malformed link payload")
	errBadBatchReply = errors.New("malformed batchexecute response")
)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Cache             ports.Cache
	CacheTTL          time.Duration
}

// Resolver turns aggregator redirect links into publisher URLs.
type Resolver struct {
	client    *http.Client
	baseURL   string
	host      string
	userAgent string
	limiter   *rate.Limiter
	timeout   time.Duration
	cache     ports.Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

var _ ports.LinkResolver = (*Resolver)(nil)

// NewResolver wires the HTTP client, throttle and optional cache.
func NewResolver(client *http.Client, opts ResolverOptions, log *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	host := ""
	if parsed, err := url.Parse(base); err == nil {
		host = parsed.Host
	}

	return &Resolver{
		client:    client,
		baseURL:   base,
		host:      host,
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   opts.Timeout,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		logger:    logging.OrDiscard(log),
	}
}

// Resolve returns the publisher URL behind link, or link itself when it cannot be decoded.
func (r *Resolver) Resolve(ctx context.Context, link string) string {
	id, err := r.articleID(link)
	if err != nil {
		return link
	}

	if cached, ok := r.cacheGet(ctx, link); ok {
		return cached
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	decoded, err := r.decode(ctx, id)
	if err != nil {
		r.logger.Debug("link decode failed", "link", link, "error", err)
		return link
	}

	r.cacheSet(ctx, link, decoded)
	return decoded
}

func (r *Resolver) articleID(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", errNotRedirect
	}
	if r.host != "" && !strings.EqualFold(parsed.Host, r.host) {
		return "", errNotRedirect
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 {
		return "", errNotRedirect
	}
	kind := segments[len(segments)-2]
	if kind != "articles" && kind != "read" {
		return "", errNotRedirect
	}
	id := segments[len(segments)-1]
	if id == "" {
		return "", errNotRedirect
	}
	return id, nil
}

func (r *Resolver) decode(ctx context.Context, id string) (string, error) {
	target, online, err := decodeOffline(id)
	if err != nil {
		return "", err
	}
	if !online {
		return target, nil
	}

	signature, timestamp, err := r.fetchSignature(ctx, id)
	if err != nil {
		return "", err
	}
	return r.batchExecute(ctx, id, signature, timestamp)
}

// decodeOffline reads the URL embedded in older article ids. online reports that
// the id carries an opaque token (or nothing readable) and must be decoded by the aggregator.
func decodeOffline(id string) (target string, online bool, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(id, "="))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", errBadPayload, err)
	}

	raw = bytes.TrimPrefix(raw, legacyPrefix)
	raw = bytes.TrimSuffix(raw, legacySuffix)

	length, n := binary.Uvarint(raw)
	if n <= 0 {
		return "", true, nil
	}
	body := raw[n:]
	if uint64(len(body)) >= length {
		body = body[:length]
	}

	decoded := string(body)
	if strings.HasPrefix(decoded, onlinePrefix) {
		return "", true, nil
	}
	if !strings.HasPrefix(decoded, "http://") && !strings.HasPrefix(decoded, "https://") {
		return "", true, nil
	}
	return decoded, false, nil
}

func (r *Resolver) fetchSignature(ctx context.Context, id string) (string, string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/rss/articles/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("article page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", err
	}

	node := doc.Find("c-wiz > div[jscontroller]").First()
	signature, okSig := node.Attr("data-n-a-sg")
	timestamp, okTS := node.Attr("data-n-a-ts")
	if !okSig || !okTS || signature == "" || timestamp == "" {
		return "", "", errNoSignature
	}
	return signature, timestamp, nil
}

func (r *Resolver) batchExecute(ctx context.Context, id, signature, timestamp string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	form, err := batchRequestBody(id, signature, timestamp)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+batchExecutePath, strings.NewReader(form))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("batchexecute returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return parseBatchResponse(body)
}

func batchRequestBody(id, signature, timestamp string) (string, error) {
	idJSON, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	sigJSON, err := json.Marshal(signature)
	if err != nil {
		return "", err
	}
	for _, c := range timestamp {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("timestamp %q is not numeric", timestamp)
		}
	}

	inner := `["garturlreq",[["X","X",["X","X"],null,null,1,1,"US:en",null,1,null,null,null,null,null,0,1],"X","X",1,[1,1,1],1,1,null,0,0,null,0],` +
		string(idJSON) + "," + timestamp + "," + string(sigJSON) + "]"

	envelope, err := json.Marshal([][][]string{{{"Fbv4je", inner}}})
	if err != nil {
		return "", err
	}
	return url.Values{"f.req": {string(envelope)}}.Encode(), nil
}

// parseBatchResponse digs the URL out of the second chunk of the reply,
// a JSON array whose first row carries a JSON-encoded payload at index 2.
func parseBatchResponse(body []byte) (string, error) {
	chunks := strings.Split(string(body), "\n\n")
	if len(chunks) < 2 {
		return "", errBadBatchReply
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(chunks[1]), &rows); err != nil || len(rows) == 0 {
		return "", errBadBatchReply
	}

	var row []json.RawMessage
	if err := json.Unmarshal(rows[0], &row); err != nil || len(row) < 3 {
		return "", errBadBatchReply
	}

	var payload string
	if err := json.Unmarshal(row[2], &payload); err != nil {
		return "", errBadBatchReply
	}

	var fields []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil || len(fields) < 2 {
		return "", errBadBatchReply
	}

	var target string
	if err := json.Unmarshal(fields[1], &target); err != nil || target == "" {
		return "", errBadBatchReply
	}
	return target, nil
}

func (r *Resolver) cacheGet(ctx context.Context, link string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	value, ok := r.cache.Get(ctx, linkCachePrefix+link)
	if !ok || len(value) == 0 {
		return "", false
	}
	return string(value), true
}

func (r *Resolver) cacheSet(ctx context.Context, link, target string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, linkCachePrefix+link, []byte(target), r.cacheTTL); err != nil {
		r.logger.Debug("link cache write failed", "link", link, "error", err)
	}
}
