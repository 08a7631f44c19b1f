package adapters

import (
	"context"
	"fmt"
	"math"

	"harvester/internal/core"
)

// ReleasebotDataURL is the SSR data endpoint behind the public updates page.
const ReleasebotDataURL = "https://releasebot.io/updates/__data.json"

const releasebotLimit = 10

// DecodeSvelteData resolves a devalue-encoded reference graph: the first
// element is the root, and every non-negative integer inside a list or map
// is an index into the same top-level array. Booleans and negative or
// fractional numbers are plain values.
func DecodeSvelteData(data []any) any {
	if len(data) == 0 {
		return nil
	}
	var resolveValue func(value any) any
	resolveItem := func(item any) any {
		if f, ok := item.(float64); ok && f >= 0 && f == math.Trunc(f) && int(f) < len(data) {
			return resolveValue(data[int(f)])
		}
		return resolveValue(item)
	}
	resolveValue = func(value any) any {
		switch v := value.(type) {
		case []any:
			out := make([]any, len(v))
			for i, item := range v {
				out[i] = resolveItem(item)
			}
			return out
		case map[string]any:
			out := make(map[string]any, len(v))
			for key, item := range v {
				out[key] = resolveItem(item)
			}
			return out
		}
		return value
	}
	return resolveValue(data[0])
}

// FetchReleasebot decodes the release graph at dataURL and maps the first
// root carrying a "releases" list into ranked items. Releases without an
// explicit source URL get a synthesized vendor/product updates page URL.
func FetchReleasebot(ctx context.Context, fc *core.FetchContext, dataURL string) ([]core.AggregationItem, error) {
	var payload map[string]any
	if err := fc.Client.GetJSON(ctx, dataURL, &payload); err != nil {
		return nil, core.Fetchf("Releasebot payload invalid: %v", err)
	}
	root, err := extractReleaseRoot(payload)
	if err != nil {
		return nil, err
	}

	releases, _ := root["releases"].([]any)
	var items []core.AggregationItem
	for _, raw := range releases {
		if len(items) >= releasebotLimit {
			break
		}
		release, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, mapRelease(release, len(items)+1))
	}
	if len(items) == 0 {
		return nil, core.Fetchf("Releasebot list empty")
	}
	return items, nil
}

func extractReleaseRoot(payload map[string]any) (map[string]any, error) {
	nodes, _ := payload["nodes"].([]any)
	for _, rawNode := range nodes {
		node, ok := rawNode.(map[string]any)
		if !ok {
			continue
		}
		data, ok := node["data"].([]any)
		if !ok || len(data) == 0 {
			continue
		}
		root, ok := DecodeSvelteData(data).(map[string]any)
		if !ok {
			continue
		}
		if _, has := root["releases"]; has {
			return root, nil
		}
	}
	return nil, core.Fetchf("Releasebot data missing releases")
}

func mapRelease(release map[string]any, rank int) core.AggregationItem {
	product, _ := release["product"].(map[string]any)
	vendor, _ := product["vendor"].(map[string]any)
	details, _ := release["release_details"].(map[string]any)

	productName := stringField(product, "display_name")
	if productName == "" {
		productName = stringField(vendor, "display_name")
	}
	releaseName := stringField(details, "release_name")
	if releaseName == "" {
		releaseName = stringField(details, "release_number")
	}
	if releaseName == "" {
		releaseName = stringField(release, "slug")
	}
	if releaseName == "" {
		releaseName = "Release"
	}
	title := releaseName
	if productName != "" {
		title = productName + " — " + releaseName
	}

	sourceURL := ""
	if sourceMeta, ok := release["source"].(map[string]any); ok {
		sourceURL = stringField(sourceMeta, "source_url")
	}
	if sourceURL == "" {
		vendorSlug := stringField(vendor, "slug")
		if vendorSlug == "" {
			vendorSlug = "vendor"
		}
		productSlug := stringField(product, "slug")
		if productSlug == "" {
			productSlug = "product"
		}
		sourceURL = fmt.Sprintf("https://releasebot.io/updates/%s/%s", vendorSlug, productSlug)
	}

	publishedAt := stringField(release, "release_date")
	if publishedAt == "" {
		publishedAt = stringField(release, "created_at")
	}

	extra := map[string]string{}
	if summary := stringField(details, "release_summary"); summary != "" {
		extra["summary"] = summary
	}

	return core.AggregationItem{
		Title:       title,
		URL:         sourceURL,
		PublishedAt: publishedAt,
		Author:      stringField(vendor, "display_name"),
		Rank:        rank,
		Extra:       extra,
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
