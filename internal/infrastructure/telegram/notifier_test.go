package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNotifyPostsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("TOKEN", "42").WithAPIBase(server.URL)
	if err := n.Notify(context.Background(), "feed published: 3 episodes"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" || gotChat != "42" || gotText != "feed published: 3 episodes" {
		t.Fatalf("unexpected request: %s %s %s", gotPath, gotChat, gotText)
	}
}

func TestNotifyReportsFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	err := NewNotifier("bad", "42").WithAPIBase(server.URL).Notify(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected the api description in the error, got %v", err)
	}
	if err := NewNotifier("", "").Notify(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestClipLongMessages(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ő", maxMessageRunes+10)
	if got := utf8.RuneCountInString(clip(long)); got != maxMessageRunes {
		t.Fatalf("expected %d runes, got %d", maxMessageRunes, got)
	}
}
