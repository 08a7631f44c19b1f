package sources

import (
	"context"

	"harvester/internal/adapters"
	"harvester/internal/core"
)

const (
	foundersFundURL = "https://foundersfund.com/wp-json/wp/v2/posts?categories=21&per_page=30"
	claudeBlogURL   = "https://claude.com/blog"
	claudeBlogLimit = 20
)

func rssSource(id, name, feedURL string) core.Source {
	return rssSourceWithHook(id, name, feedURL, nil)
}

// rssSourceWithHook binds a feed source with a site-specific HTML-to-Markdown
// override applied to entry content.
func rssSourceWithHook(id, name, feedURL string, htmlToMarkdown func(string) string) core.Source {
	return core.Source{
		ID:        id,
		Name:      name,
		Kind:      core.KindBlog,
		Transport: core.TransportRSS,
		Enabled:   true,
		FetchBlog: func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
			return adapters.FetchRSS(ctx, fc, feedURL, 0, htmlToMarkdown)
		},
	}
}

func mailchimpArchive() core.Source {
	return rssSourceWithHook(
		"mailchimp-archive",
		"Mailchimp Archive",
		"https://us7.campaign-archive.com/feed?u=6507bf4e4c2df3fdbae6ef738&id=547725049b",
		MailchimpHTMLToMarkdown,
	)
}

func foundersFundAnatomy() core.Source {
	return core.Source{
		ID:        "founders-fund-anatomy",
		Name:      "Founders Fund Anatomy of Next",
		Kind:      core.KindBlog,
		Transport: core.TransportAPI,
		Enabled:   true,
		FetchBlog: func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
			return adapters.FetchWordPressPosts(ctx, fc, foundersFundURL)
		},
	}
}

func claudeBlog() core.Source {
	return core.Source{
		ID:        "claude-blog",
		Name:      "Claude Blog",
		Kind:      core.KindBlog,
		Transport: core.TransportHTML,
		Enabled:   true,
		FetchBlog: func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
			return adapters.FetchHTMLList(ctx, fc, adapters.HTMLListConfig{
				ListURL:       claudeBlogURL,
				ItemSelector:  "main article",
				TitleSelector: "h1, h2, h3",
				Limit:         claudeBlogLimit,
				FetchDetail:   true,
			})
		},
	}
}
