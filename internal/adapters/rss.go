// Package adapters implements one fetcher per transport: feeds, JSON APIs,
// HTML listings, the comment-site walker, the release-notes decoder, and the
// headless agent driver. Every adapter returns a non-empty ordered item
// sequence or an error the orchestrator can record.
package adapters

import (
	"bytes"
	"context"

	"github.com/mmcdole/gofeed"

	"harvester/internal/core"
	"harvester/internal/textproc"
)

// FetchRSS downloads and parses a feed, producing one BlogItem per entry
// that carries both a title and a link. Content HTML comes from the entry
// content when present, else the summary; htmlToMarkdown overrides the
// default conversion for sources that need site-specific cleanup. A limit of
// 0 means all entries.
func FetchRSS(ctx context.Context, fc *core.FetchContext, feedURL string, limit int, htmlToMarkdown func(string) string) ([]core.BlogItem, error) {
	data, err := fc.Client.GetBytes(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, core.Fetchf("RSS parse error for %s: %v", feedURL, err)
	}

	var items []core.BlogItem
	for _, entry := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		if entry.Title == "" || entry.Link == "" {
			continue
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}
		contentHTML := entry.Content
		if contentHTML == "" {
			contentHTML = entry.Description
		}
		contentMarkdown := entry.Description
		if contentHTML != "" {
			if htmlToMarkdown != nil {
				contentMarkdown = htmlToMarkdown(contentHTML)
			} else {
				contentMarkdown = textproc.HTMLToMarkdown(contentHTML)
			}
		}
		items = append(items, core.BlogItem{
			Title:           entry.Title,
			URL:             entry.Link,
			PublishedAt:     published,
			Author:          author,
			Summary:         entry.Description,
			ContentMarkdown: contentMarkdown,
		})
	}
	if len(items) == 0 {
		return nil, core.Fetchf("RSS feed empty for %s", feedURL)
	}
	return items, nil
}
