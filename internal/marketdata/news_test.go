package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Yahoo Finance Headlines</title>
    <item>
      <title>YPF posts quarterly results</title>
      <link>https://example.com/a</link>
      <description>&lt;p&gt;Earnings &lt;b&gt;beat&lt;/b&gt; estimates.&lt;/p&gt;</description>
      <pubDate>Mon, 15 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Energy sector update</title>
      <link>https://example.com/b</link>
      <description>Crude moves higher.</description>
      <pubDate>Tue, 16 Jan 2024 09:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFetchNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("s"); got != "YPF" {
			t.Errorf("ticker query = %q, want YPF", got)
		}
		fmt.Fprint(w, testRSS)
	}))
	defer srv.Close()

	n := NewNewsWithFeed(srv.URL + "?s=%s")
	articles, err := n.FetchNews(context.Background(), "ypf", 10)
	if err != nil {
		t.Fatalf("FetchNews: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len = %d, want 2", len(articles))
	}
	// Newest first.
	if articles[0].Title != "Energy sector update" {
		t.Errorf("first article = %q, want the newer one", articles[0].Title)
	}
	if articles[1].Summary != "Earnings beat estimates." {
		t.Errorf("summary = %q, want HTML stripped", articles[1].Summary)
	}
}

func TestFetchNewsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testRSS)
	}))
	defer srv.Close()

	n := NewNewsWithFeed(srv.URL + "?s=%s")
	articles, err := n.FetchNews(context.Background(), "YPF", 1)
	if err != nil {
		t.Fatalf("FetchNews: %v", err)
	}
	if len(articles) != 1 {
		t.Errorf("len = %d, want 1", len(articles))
	}
}

func TestFetchNewsCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, testRSS)
	}))
	defer srv.Close()

	n := NewNewsWithFeed(srv.URL + "?s=%s")
	ctx := context.Background()
	if _, err := n.FetchNews(ctx, "YPF", 5); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := n.FetchNews(ctx, "YPF", 5); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"<p>nested <b>tags</b></p>", "nested tags"},
		{"  <div> padded </div>  ", "padded"},
	}
	for _, tt := range tests {
		if got := cleanHTML(tt.in); got != tt.want {
			t.Errorf("cleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
