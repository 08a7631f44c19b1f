package adapters

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvester/internal/core"
	"harvester/internal/extract"
	"harvester/internal/logger"
	"harvester/internal/textproc"
	"harvester/internal/timeutil"
)

// HTMLListConfig drives the generic HTML-listing adapter. Selectors are CSS;
// only ListURL and ItemSelector are required.
type HTMLListConfig struct {
	ListURL         string
	ItemSelector    string
	URLSelector     string // default: first <a> in the item
	URLAttr         string // default: href
	TitleSelector   string // default: link text
	DateSelector    string
	AuthorSelector  string
	SummarySelector string
	Limit           int
	FetchDetail     bool // GET each detail page and extract Markdown
}

type htmlListEntry struct {
	item core.BlogItem
}

// FetchHTMLList discovers entries on a listing page and, when configured,
// fetches each detail page through the extractor. Detail failures skip the
// entry rather than failing the source.
func FetchHTMLList(ctx context.Context, fc *core.FetchContext, cfg HTMLListConfig) ([]core.BlogItem, error) {
	if cfg.ListURL == "" {
		return nil, core.Fetchf("missing list URL")
	}
	if cfg.ItemSelector == "" {
		return nil, core.Fetchf("missing item selector for %s", cfg.ListURL)
	}
	page, err := fc.Client.GetText(ctx, cfg.ListURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, core.Fetchf("failed to parse listing %s: %v", cfg.ListURL, err)
	}

	base, err := url.Parse(cfg.ListURL)
	if err != nil {
		return nil, core.Fetchf("bad list URL %s: %v", cfg.ListURL, err)
	}

	entries := discoverEntries(doc, base, cfg)
	if len(entries) == 0 {
		return nil, core.Fetchf("listing empty for %s", cfg.ListURL)
	}

	var items []core.BlogItem
	for _, entry := range entries {
		item := entry.item
		if cfg.FetchDetail {
			markdown, err := fetchDetail(ctx, fc, item.URL)
			if err != nil {
				logger.Warn("skipping listing entry", "url", item.URL, "error", err.Error())
				continue
			}
			item.ContentMarkdown = markdown
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, core.Fetchf("no readable entries for %s", cfg.ListURL)
	}
	return items, nil
}

func discoverEntries(doc *goquery.Document, base *url.URL, cfg HTMLListConfig) []htmlListEntry {
	urlAttr := cfg.URLAttr
	if urlAttr == "" {
		urlAttr = "href"
	}

	var entries []htmlListEntry
	seen := make(map[string]struct{})
	doc.Find(cfg.ItemSelector).EachWithBreak(func(_ int, element *goquery.Selection) bool {
		link := element.Find("a").First()
		if cfg.URLSelector != "" {
			link = element.Find(cfg.URLSelector).First()
		}
		href, ok := link.Attr(urlAttr)
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		detailURL := base.ResolveReference(ref).String()
		if _, dup := seen[detailURL]; dup {
			return true
		}
		seen[detailURL] = struct{}{}

		title := selectText(element, cfg.TitleSelector)
		if title == "" {
			title = strings.Join(strings.Fields(link.Text()), " ")
		}
		published := ""
		if raw := selectText(element, cfg.DateSelector); raw != "" {
			if t, err := timeutil.ParseDateTime(raw); err == nil {
				published = timeutil.FormatISO(t)
			}
		}

		entries = append(entries, htmlListEntry{item: core.BlogItem{
			Title:       title,
			URL:         detailURL,
			PublishedAt: published,
			Author:      selectText(element, cfg.AuthorSelector),
			Summary:     selectText(element, cfg.SummarySelector),
		}})
		return cfg.Limit <= 0 || len(entries) < cfg.Limit
	})
	return entries
}

func selectText(element *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(element.Find(selector).First().Text()), " ")
}

func fetchDetail(ctx context.Context, fc *core.FetchContext, detailURL string) (string, error) {
	page, err := fc.Client.GetText(ctx, detailURL)
	if err != nil {
		return "", err
	}
	markdown, err := extract.Markdown(page)
	if err != nil {
		return "", err
	}
	if pattern := textproc.DetectBlockedText(markdown); pattern != "" {
		return "", &textproc.BlockedError{Pattern: pattern}
	}
	return markdown, nil
}
