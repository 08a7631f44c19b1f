package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"harvester/internal/adapters"
	"harvester/internal/core"
)

const (
	lobstersURL   = "https://lobste.rs/hottest.json"
	lobstersLimit = 25

	hfPapersURL   = "https://huggingface.co/api/daily_papers"
	hfPapersLimit = 15

	githubSearchURL = "https://api.github.com/search/repositories"
	githubLimit     = 20

	productHuntFeed  = "https://www.producthunt.com/feed"
	productHuntLimit = 20
)

func hackerNews() core.Source {
	return core.Source{
		ID:        "hn",
		Name:      "Hacker News",
		Kind:      core.KindAggregation,
		Transport: core.TransportAPI,
		Enabled:   true,
		FetchAggregation: func(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
			return adapters.FetchHackerNews(ctx, fc, adapters.DefaultHNConfig)
		},
	}
}

func releasebot() core.Source {
	return core.Source{
		ID:        "releasebot",
		Name:      "Releasebot",
		Kind:      core.KindAggregation,
		Transport: core.TransportAPI,
		Enabled:   true,
		FetchAggregation: func(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
			return adapters.FetchReleasebot(ctx, fc, adapters.ReleasebotDataURL)
		},
	}
}

type lobstersEntry struct {
	Title         string          `json:"title"`
	URL           string          `json:"url"`
	CommentsURL   string          `json:"comments_url"`
	CreatedAt     string          `json:"created_at"`
	Score         *int            `json:"score"`
	CommentsCount *int            `json:"comment_count"`
	SubmitterUser json.RawMessage `json:"submitter_user"`
}

func (e lobstersEntry) submitter() string {
	var name string
	if json.Unmarshal(e.SubmitterUser, &name) == nil {
		return name
	}
	var user struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(e.SubmitterUser, &user) == nil {
		return user.Username
	}
	return ""
}

func lobsters() core.Source {
	return core.Source{
		ID:        "lobsters",
		Name:      "Lobsters",
		Kind:      core.KindAggregation,
		Transport: core.TransportAPI,
		Enabled:   true,
		FetchAggregation: fetchLobsters,
	}
}

func fetchLobsters(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
	var payload []lobstersEntry
	if err := fc.Client.GetJSON(ctx, lobstersURL, &payload); err != nil {
		return nil, core.Fetchf("Lobsters payload invalid: %v", err)
	}
	var items []core.AggregationItem
	for _, entry := range payload {
		if len(items) >= lobstersLimit {
			break
		}
		storyURL := entry.URL
		if storyURL == "" {
			storyURL = entry.CommentsURL
		}
		if entry.Title == "" || storyURL == "" {
			continue
		}
		items = append(items, core.AggregationItem{
			Title:         entry.Title,
			URL:           storyURL,
			PublishedAt:   entry.CreatedAt,
			Author:        entry.submitter(),
			Score:         entry.Score,
			CommentsCount: entry.CommentsCount,
			Rank:          len(items) + 1,
			DiscussionURL: entry.CommentsURL,
			Extra:         map[string]string{},
		})
	}
	if len(items) == 0 {
		return nil, core.Fetchf("Lobsters list empty")
	}
	return items, nil
}

type hfPaperEntry struct {
	Title       string `json:"title"`
	PublishedAt string `json:"publishedAt"`
	NumComments *int   `json:"numComments"`
	Paper       struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
		ProjectPage string `json:"projectPage"`
		Upvotes     *int   `json:"upvotes"`
		Authors     []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"paper"`
}

func hfPapers() core.Source {
	return core.Source{
		ID:        "hf-papers",
		Name:      "Hugging Face Papers",
		Kind:      core.KindAggregation,
		Transport: core.TransportAPI,
		Enabled:   true,
		FetchAggregation: fetchHFPapers,
	}
}

func fetchHFPapers(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
	var payload []hfPaperEntry
	if err := fc.Client.GetJSON(ctx, hfPapersURL, &payload); err != nil {
		return nil, core.Fetchf("HF papers payload invalid: %v", err)
	}
	var items []core.AggregationItem
	for _, entry := range payload {
		if len(items) >= hfPapersLimit {
			break
		}
		title := entry.Title
		if title == "" {
			title = entry.Paper.Title
		}
		if title == "" {
			continue
		}
		paperURL := entry.Paper.ProjectPage
		if entry.Paper.ID != "" {
			paperURL = "https://huggingface.co/papers/" + entry.Paper.ID
		}
		if paperURL == "" {
			continue
		}
		published := entry.PublishedAt
		if published == "" {
			published = entry.Paper.PublishedAt
		}
		author := ""
		if len(entry.Paper.Authors) > 0 {
			author = entry.Paper.Authors[0].Name
		}
		items = append(items, core.AggregationItem{
			Title:         title,
			URL:           paperURL,
			PublishedAt:   published,
			Author:        author,
			Score:         entry.Paper.Upvotes,
			CommentsCount: entry.NumComments,
			Rank:          len(items) + 1,
			Extra:         map[string]string{},
		})
	}
	if len(items) == 0 {
		return nil, core.Fetchf("HF papers list empty")
	}
	return items, nil
}

type githubRepo struct {
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	CreatedAt   string `json:"created_at"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Stars       *int   `json:"stargazers_count"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func githubTrending() core.Source {
	return core.Source{
		ID:        "github-trending",
		Name:      "GitHub Trending",
		Kind:      core.KindAggregation,
		Transport: core.TransportAPI,
		Enabled:   true,
		FetchAggregation: fetchGitHubTrending,
	}
}

func fetchGitHubTrending(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
	since := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
	searchURL := fmt.Sprintf(
		"%s?q=%s&sort=stars&order=desc&per_page=%d",
		githubSearchURL, url.QueryEscape("created:>"+since), githubLimit,
	)
	var payload struct {
		Items []githubRepo `json:"items"`
	}
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if err := fc.Client.GetJSONHeaders(ctx, searchURL, headers, &payload); err != nil {
		return nil, core.Fetchf("GitHub search failed: %v", err)
	}
	var items []core.AggregationItem
	for _, repo := range payload.Items {
		if len(items) >= githubLimit {
			break
		}
		if repo.FullName == "" || repo.HTMLURL == "" {
			continue
		}
		items = append(items, core.AggregationItem{
			Title:       repo.FullName,
			URL:         repo.HTMLURL,
			PublishedAt: repo.CreatedAt,
			Author:      repo.Owner.Login,
			Score:       repo.Stars,
			Rank:        len(items) + 1,
			Extra: map[string]string{
				"language":    repo.Language,
				"description": repo.Description,
			},
		})
	}
	if len(items) == 0 {
		return nil, core.Fetchf("GitHub search empty")
	}
	return items, nil
}

func productHunt() core.Source {
	return core.Source{
		ID:        "product-hunt",
		Name:      "Product Hunt",
		Kind:      core.KindAggregation,
		Transport: core.TransportRSS,
		Enabled:   true,
		FetchAggregation: fetchProductHunt,
	}
}

func fetchProductHunt(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
	entries, err := adapters.FetchRSS(ctx, fc, productHuntFeed, productHuntLimit, nil)
	if err != nil {
		return nil, err
	}
	items := make([]core.AggregationItem, 0, len(entries))
	for i, entry := range entries {
		items = append(items, core.AggregationItem{
			Title:       entry.Title,
			URL:         entry.URL,
			PublishedAt: entry.PublishedAt,
			Rank:        i + 1,
			Extra:       map[string]string{},
		})
	}
	return items, nil
}
