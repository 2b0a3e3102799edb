package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var path, chat, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		chat = r.PostForm.Get("chat_id")
		text = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier("123:abc", "-100").WithAPIBase(srv.URL, srv.Client())
	if err := n.PublishDigest(context.Background(), "Petrobras: 2 articles\n- positive_finance: 1"); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %s", path)
	}
	if chat != "-100" || !strings.Contains(text, "positive_finance") {
		t.Fatalf("unexpected form chat=%s text=%s", chat, text)
	}
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "chat").PublishDigest(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewNotifier("t", "c").WithAPIBase(srv.URL, srv.Client()).PublishDigest(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestClip(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 5000)
	if got := clip(long, maxMessageLen); utf8.RuneCountInString(got) != maxMessageLen {
		t.Fatalf("unexpected clipped length %d", utf8.RuneCountInString(got))
	}
	if clip("short", 10) != "short" {
		t.Fatal("short text should be kept")
	}
}
