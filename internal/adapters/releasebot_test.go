package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestDecodeSvelteDataResolvesReferences(t *testing.T) {
	data := []any{
		map[string]any{"foo": 1.0, "bar": 2.0},
		"hello",
		[]any{"a", "b"},
	}
	got := DecodeSvelteData(data)
	want := map[string]any{
		"foo": "hello",
		"bar": []any{"a", "b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeSvelteData = %#v, want %#v", got, want)
	}
}

func TestDecodeSvelteDataPlainValues(t *testing.T) {
	data := []any{
		map[string]any{"flag": true, "neg": -1.0, "frac": 1.5, "ref": 1.0},
		"resolved",
	}
	got, ok := DecodeSvelteData(data).(map[string]any)
	if !ok {
		t.Fatalf("root is not a map: %#v", got)
	}
	if got["flag"] != true {
		t.Errorf("bool treated as reference: %#v", got["flag"])
	}
	if got["neg"] != -1.0 || got["frac"] != 1.5 {
		t.Errorf("negative or fractional number rewritten: %#v", got)
	}
	if got["ref"] != "resolved" {
		t.Errorf("integer reference not resolved: %#v", got["ref"])
	}
}

func TestDecodeSvelteDataEmpty(t *testing.T) {
	if got := DecodeSvelteData(nil); got != nil {
		t.Errorf("DecodeSvelteData(nil) = %#v, want nil", got)
	}
}

const releasebotFixture = `{
  "type": "data",
  "nodes": [
    {"type": "data", "data": [
      {"releases": 1},
      [2],
      {"product": 3, "release_details": 6, "release_date": 8},
      {"slug": "widget", "display_name": "Widget", "vendor": 4},
      {"slug": "corp", "display_name": 5},
      "Corp",
      {"release_number": 7, "release_summary": "Bug fixes"},
      "1.0",
      "2024-03-01T09:00:00Z"
    ]}
  ]
}`

func TestFetchReleasebot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(releasebotFixture))
	}))
	defer server.Close()

	items, err := FetchReleasebot(context.Background(), testFetchContext(), server.URL)
	if err != nil {
		t.Fatalf("FetchReleasebot error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}

	item := items[0]
	if item.Title != "Widget — 1.0" {
		t.Errorf("Title = %q, want Widget — 1.0", item.Title)
	}
	if item.URL != "https://releasebot.io/updates/corp/widget" {
		t.Errorf("URL = %q, want synthesized updates page", item.URL)
	}
	if item.Author != "Corp" {
		t.Errorf("Author = %q", item.Author)
	}
	if item.Rank != 1 {
		t.Errorf("Rank = %d", item.Rank)
	}
	if item.PublishedAt != "2024-03-01T09:00:00Z" {
		t.Errorf("PublishedAt = %q", item.PublishedAt)
	}
	if item.Extra["summary"] != "Bug fixes" {
		t.Errorf("Extra = %#v", item.Extra)
	}
}

func TestFetchReleasebotExplicitSourceURL(t *testing.T) {
	fixture := `{
	  "nodes": [
	    {"data": [
	      {"releases": 1},
	      [2],
	      {"product": 3, "source": 5},
	      {"display_name": "Widget", "vendor": 4},
	      {"display_name": "Corp"},
	      {"source_url": "https://corp.example.com/changelog"}
	    ]}
	  ]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	defer server.Close()

	items, err := FetchReleasebot(context.Background(), testFetchContext(), server.URL)
	if err != nil {
		t.Fatalf("FetchReleasebot error: %v", err)
	}
	if items[0].URL != "https://corp.example.com/changelog" {
		t.Errorf("URL = %q, want explicit source url", items[0].URL)
	}
	// No release name anywhere in the payload.
	if items[0].Title != "Widget — Release" {
		t.Errorf("Title = %q", items[0].Title)
	}
}

func TestFetchReleasebotMissingReleases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nodes":[{"data":[{"other":"thing"}]}]}`))
	}))
	defer server.Close()

	if _, err := FetchReleasebot(context.Background(), testFetchContext(), server.URL); err == nil {
		t.Fatal("want error when no node carries releases")
	}
}
