package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"harvester/internal/core"
	"harvester/internal/httpx"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
     xmlns:content="http://purl.org/rss/1.0/modules/content/"
     xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
<title>Example Blog</title>
<link>https://example.com</link>
<item>
<title>Sample Post</title>
<link>https://example.com/posts/sample</link>
<pubDate>Fri, 01 Mar 2024 12:00:00 +0000</pubDate>
<dc:creator>Jane Writer</dc:creator>
<description>Short summary</description>
<content:encoded><![CDATA[<p>Hello <strong>world</strong></p>]]></content:encoded>
</item>
<item>
<title>Second Post</title>
<link>https://example.com/posts/second</link>
<description>Another summary</description>
</item>
<item>
<title></title>
<link>https://example.com/posts/untitled</link>
</item>
</channel>
</rss>`

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
}

func testFetchContext() *core.FetchContext {
	return &core.FetchContext{
		Client: httpx.New(2 * time.Second),
		RunID:  "20240301-120000",
		Now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFetchRSS(t *testing.T) {
	server := feedServer(t, sampleFeed)
	defer server.Close()

	items, err := FetchRSS(context.Background(), testFetchContext(), server.URL, 0, nil)
	if err != nil {
		t.Fatalf("FetchRSS error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (untitled entry skipped)", len(items))
	}

	first := items[0]
	if first.Title != "Sample Post" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.URL != "https://example.com/posts/sample" {
		t.Errorf("URL = %q", first.URL)
	}
	if first.Author != "Jane Writer" {
		t.Errorf("Author = %q", first.Author)
	}
	if first.Summary != "Short summary" {
		t.Errorf("Summary = %q", first.Summary)
	}
	if !strings.Contains(first.ContentMarkdown, "Hello **world**") {
		t.Errorf("ContentMarkdown = %q, want converted entry content", first.ContentMarkdown)
	}
	if first.PublishedAt == "" {
		t.Errorf("PublishedAt missing")
	}

	// An entry without content:encoded converts its description.
	if items[1].ContentMarkdown != "Another summary" {
		t.Errorf("second ContentMarkdown = %q", items[1].ContentMarkdown)
	}
}

func TestFetchRSSLimit(t *testing.T) {
	server := feedServer(t, sampleFeed)
	defer server.Close()

	items, err := FetchRSS(context.Background(), testFetchContext(), server.URL, 1, nil)
	if err != nil {
		t.Fatalf("FetchRSS error: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Sample Post" {
		t.Errorf("limit not honored: %+v", items)
	}
}

func TestFetchRSSConversionHook(t *testing.T) {
	server := feedServer(t, sampleFeed)
	defer server.Close()

	hook := func(html string) string { return "HOOKED" }
	items, err := FetchRSS(context.Background(), testFetchContext(), server.URL, 1, hook)
	if err != nil {
		t.Fatalf("FetchRSS error: %v", err)
	}
	if items[0].ContentMarkdown != "HOOKED" {
		t.Errorf("ContentMarkdown = %q, want hook output", items[0].ContentMarkdown)
	}
}

func TestFetchRSSEmptyFeed(t *testing.T) {
	server := feedServer(t, `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`)
	defer server.Close()

	_, err := FetchRSS(context.Background(), testFetchContext(), server.URL, 0, nil)
	var fetchErr *core.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *core.FetchError", err)
	}
}
