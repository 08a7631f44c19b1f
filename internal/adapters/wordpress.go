package adapters

import (
	"context"

	"harvester/internal/core"
	"harvester/internal/textproc"
)

type wordPressRendered struct {
	Rendered string `json:"rendered"`
}

type wordPressPost struct {
	Title   wordPressRendered `json:"title"`
	Excerpt wordPressRendered `json:"excerpt"`
	Content wordPressRendered `json:"content"`
	Link    string            `json:"link"`
	Date    string            `json:"date"`
}

// FetchWordPressPosts maps a WordPress REST posts collection into blog
// items. Rendered HTML titles are flattened to text; excerpt and content are
// converted to Markdown.
func FetchWordPressPosts(ctx context.Context, fc *core.FetchContext, apiURL string) ([]core.BlogItem, error) {
	var posts []wordPressPost
	if err := fc.Client.GetJSON(ctx, apiURL, &posts); err != nil {
		return nil, core.Fetchf("WordPress payload invalid for %s: %v", apiURL, err)
	}

	var items []core.BlogItem
	for _, post := range posts {
		if post.Title.Rendered == "" || post.Link == "" {
			continue
		}
		items = append(items, core.BlogItem{
			Title:           textproc.StripHTML(post.Title.Rendered),
			URL:             post.Link,
			PublishedAt:     post.Date,
			Summary:         textproc.HTMLToMarkdown(post.Excerpt.Rendered),
			ContentMarkdown: textproc.HTMLToMarkdown(post.Content.Rendered),
		})
	}
	if len(items) == 0 {
		return nil, core.Fetchf("WordPress list empty for %s", apiURL)
	}
	return items, nil
}
