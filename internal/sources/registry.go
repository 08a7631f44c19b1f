// Package sources holds the registry of concrete sources and the per-site
// configuration binding each one to its adapter.
package sources

import (
	"errors"
	"fmt"

	"harvester/internal/core"
)

// ErrUnknownSource is wrapped by Get for identifiers not in the registry.
var ErrUnknownSource = errors.New("unknown source")

var registry = buildRegistry()

func buildRegistry() []core.Source {
	return []core.Source{
		hackerNews(),
		lobsters(),
		releasebot(),
		hfPapers(),
		githubTrending(),
		productHunt(),
		rssSource("simon-willison", "Simon Willison", "https://simonwillison.net/atom/everything/"),
		rssSource("hf-blog", "Hugging Face Blog", "https://huggingface.co/blog/feed.xml"),
		rssSource("openai-news", "OpenAI News", "https://openai.com/news/rss.xml"),
		rssSource("paul-graham", "Paul Graham", "http://www.aaronsw.com/2002/feeds/pgessays.rss"),
		rssSource("lilian-weng", "Lilian Weng", "https://lilianweng.github.io/index.xml"),
		rssSource("lucumr", "Lars (lucumr)", "https://lucumr.pocoo.org/feed.atom"),
		rssSource("gwern-changelog", "Gwern Changelog", "https://gwern.net/rss"),
		rssSource("latent-space", "Latent Space", "https://www.latent.space/feed"),
		rssSource("techmeme", "Techmeme", "https://techmeme.com/feed.xml"),
		rssSource("crunchbase-news", "Crunchbase News", "https://news.crunchbase.com/feed/"),
		rssSource("trends-vc", "Trends.vc", "https://trends.vc/feed/"),
		mailchimpArchive(),
		foundersFundAnatomy(),
		claudeBlog(),
		alphaSignalLastEmail(),
	}
}

// List returns the registry in its declared order, filtering disabled
// sources unless includeDisabled is set.
func List(includeDisabled bool) []core.Source {
	out := make([]core.Source, 0, len(registry))
	for _, source := range registry {
		if !includeDisabled && !source.Enabled {
			continue
		}
		out = append(out, source)
	}
	return out
}

// Get returns the source with the given id.
func Get(id string) (core.Source, error) {
	for _, source := range registry {
		if source.ID == id {
			return source, nil
		}
	}
	return core.Source{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
}
