package adapters

import (
	"context"
	"fmt"
	"sort"
	"time"

	"harvester/internal/core"
	"harvester/internal/textproc"
	"harvester/internal/timeutil"
)

// HNConfig bounds the Hacker News walk. The zero value is unusable; start
// from DefaultHNConfig.
type HNConfig struct {
	BaseURL        string // Firebase API root
	DiscussionBase string // item page prefix, id appended
	ListLimit      int    // stories kept after re-ranking
	SeedLimit      int    // top-story ids considered
	CommentLimit   int    // comments collected per story
	CommentBudget  time.Duration
}

// DefaultHNConfig matches the live site.
var DefaultHNConfig = HNConfig{
	BaseURL:        "https://hacker-news.firebaseio.com/v0",
	DiscussionBase: "https://news.ycombinator.com/item?id=",
	ListLimit:      10,
	SeedLimit:      20,
	CommentLimit:   20,
	CommentBudget:  30 * time.Second,
}

type hnItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Time        int64  `json:"time"`
	By          string `json:"by"`
	Score       *int   `json:"score"`
	Descendants *int   `json:"descendants"`
	Kids        []int  `json:"kids"`
	Text        string `json:"text"`
}

type hnCandidate struct {
	item core.AggregationItem
	kids []int
}

// FetchHackerNews seeds from the top-story list, re-ranks the seeded stories
// by comment count descending, and collects a bounded comment sample for
// each kept story.
func FetchHackerNews(ctx context.Context, fc *core.FetchContext, cfg HNConfig) ([]core.AggregationItem, error) {
	var topIDs []int
	if err := fc.Client.GetJSON(ctx, cfg.BaseURL+"/topstories.json", &topIDs); err != nil {
		return nil, core.Fetchf("HN topstories payload invalid: %v", err)
	}
	if len(topIDs) > cfg.SeedLimit {
		topIDs = topIDs[:cfg.SeedLimit]
	}

	var candidates []hnCandidate
	for _, storyID := range topIDs {
		candidate, ok := fetchStory(ctx, fc, cfg, storyID)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}
	if len(candidates) == 0 {
		return nil, core.Fetchf("HN list empty")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return commentCount(candidates[i].item) > commentCount(candidates[j].item)
	})
	if len(candidates) > cfg.ListLimit {
		candidates = candidates[:cfg.ListLimit]
	}

	ranked := make([]core.AggregationItem, 0, len(candidates))
	for rank, candidate := range candidates {
		item := candidate.item
		item.Rank = rank + 1
		item.Comments = fetchComments(ctx, fc, cfg, candidate.kids)
		ranked = append(ranked, item)
	}
	return ranked, nil
}

func fetchStory(ctx context.Context, fc *core.FetchContext, cfg HNConfig, storyID int) (hnCandidate, bool) {
	var payload hnItem
	if err := fc.Client.GetJSON(ctx, fmt.Sprintf("%s/item/%d.json", cfg.BaseURL, storyID), &payload); err != nil {
		return hnCandidate{}, false
	}
	if payload.Type != "story" || payload.Title == "" {
		return hnCandidate{}, false
	}
	discussion := fmt.Sprintf("%s%d", cfg.DiscussionBase, storyID)
	url := payload.URL
	if url == "" {
		url = discussion
	}
	comments := 0
	if payload.Descendants != nil {
		comments = *payload.Descendants
	}
	return hnCandidate{
		item: core.AggregationItem{
			Title:         payload.Title,
			URL:           url,
			PublishedAt:   isoFromUnix(payload.Time),
			Author:        payload.By,
			Score:         payload.Score,
			CommentsCount: &comments,
			DiscussionURL: discussion,
			Extra:         map[string]string{},
		},
		kids: payload.Kids,
	}, true
}

// fetchComments walks the kids tree breadth-first. The queue is bounded so
// the walk never holds more pending ids than comments still wanted, and the
// whole story shares one wall-clock budget.
func fetchComments(ctx context.Context, fc *core.FetchContext, cfg HNConfig, rootIDs []int) []core.AggregationComment {
	budgetCtx, cancel := context.WithTimeout(ctx, cfg.CommentBudget)
	defer cancel()

	comments := []core.AggregationComment{}
	queue := append([]int(nil), rootIDs...)
	for len(queue) > 0 && len(comments) < cfg.CommentLimit {
		if budgetCtx.Err() != nil {
			break
		}
		commentID := queue[0]
		queue = queue[1:]

		var payload hnItem
		if err := fc.Client.GetJSON(budgetCtx, fmt.Sprintf("%s/item/%d.json", cfg.BaseURL, commentID), &payload); err != nil {
			continue
		}
		if payload.Type != "comment" {
			continue
		}
		text := "[deleted]"
		if payload.Text != "" {
			text = textproc.StripHTML(payload.Text)
		}
		comments = append(comments, core.AggregationComment{
			Author:      payload.By,
			PublishedAt: isoFromUnix(payload.Time),
			Text:        text,
		})
		for _, kidID := range payload.Kids {
			if len(comments)+len(queue) >= cfg.CommentLimit {
				break
			}
			queue = append(queue, kidID)
		}
	}
	return comments
}

func commentCount(item core.AggregationItem) int {
	if item.CommentsCount == nil {
		return 0
	}
	return *item.CommentsCount
}

func isoFromUnix(seconds int64) string {
	if seconds == 0 {
		return ""
	}
	return timeutil.FormatISO(time.Unix(seconds, 0))
}
