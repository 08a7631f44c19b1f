package sources

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvester/internal/adapters"
	"harvester/internal/core"
	"harvester/internal/textproc"
	"harvester/internal/timeutil"
)

const lastEmailURL = "https://alphasignal.ai/last-email"

const iframeScript = "(() => { const iframe = document.querySelector('iframe'); " +
	"return iframe ? { srcdoc: iframe.getAttribute('srcdoc') } : null; })()"

// alphaSignalLastEmail scrapes the newsletter's "last email" page through the
// agent-browser helper. Disabled by default: it needs the helper binary on
// PATH.
func alphaSignalLastEmail() core.Source {
	return core.Source{
		ID:        "alphasignal-last-email",
		Name:      "AlphaSignal Last Email",
		Kind:      core.KindBlog,
		Transport: core.TransportAgent,
		Enabled:   false,
		FetchBlog: fetchLastEmail,
	}
}

func fetchLastEmail(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
	iframeHTML, err := fetchIframeContent(ctx, fc)
	if err != nil {
		return nil, err
	}
	title, bodyHTML := splitEmailDocument(iframeHTML)
	markdown := cleanupEmailMarkdown(textproc.HTMLToMarkdown(normalizeEmailHTML(bodyHTML)))
	if title == "" {
		title = "AlphaSignal Last Email"
	}

	publishedAt := timeutil.FormatDate(fc.Now)
	return []core.BlogItem{{
		Title:           title,
		URL:             fmt.Sprintf("%s?issue=%s", lastEmailURL, publishedAt),
		PublishedAt:     publishedAt,
		ContentMarkdown: markdown,
	}}, nil
}

func fetchIframeContent(ctx context.Context, fc *core.FetchContext) (string, error) {
	driver := &adapters.AgentDriver{Session: "alphasignal-" + fc.RunID}
	if err := driver.Open(ctx, lastEmailURL); err != nil {
		return "", err
	}
	defer driver.Close(ctx)

	if err := driver.Wait(ctx, 2000); err != nil {
		return "", err
	}
	payload, err := driver.Eval(ctx, iframeScript)
	if err != nil {
		return "", err
	}
	srcdoc, _ := payload["srcdoc"].(string)
	if srcdoc == "" {
		return "", fmt.Errorf("%w: iframe srcdoc missing", adapters.ErrAgentNoFrame)
	}
	return html.UnescapeString(srcdoc), nil
}

func splitEmailDocument(iframeHTML string) (title, bodyHTML string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(iframeHTML))
	if err != nil {
		return "", iframeHTML
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return title, iframeHTML
	}
	inner, err := body.Html()
	if err != nil {
		return title, iframeHTML
	}
	return title, inner
}

// normalizeEmailHTML strips the parts of newsletter markup that turn into
// noise: scripts, tracking pixels and other images, and elements hidden by
// inline style.
func normalizeEmailHTML(bodyHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return bodyHTML
	}
	doc.Find("script, style, noscript, meta, img").Remove()
	doc.Find("[style]").Each(func(_ int, element *goquery.Selection) {
		style, _ := element.Attr("style")
		style = strings.ToLower(style)
		if strings.Contains(style, "display:none") ||
			strings.Contains(style, "visibility:hidden") ||
			strings.Contains(style, "max-height:0") {
			element.Remove()
		}
	})
	out, err := doc.Find("body").First().Html()
	if err != nil {
		return bodyHTML
	}
	return out
}

func cleanupEmailMarkdown(markdown string) string {
	var cleaned []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimRight(line, " \t")
		if isTableRule(line) || isPipeSeparator(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return collapseBlankLines(trimPreamble(cleaned))
}

func isTableRule(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") &&
		strings.Count(trimmed, "|") > 4
}

func isPipeSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") {
		return false
	}
	return strings.TrimSpace(strings.ReplaceAll(trimmed, "|", "")) == ""
}

// trimPreamble drops everything before the newsletter greeting so the stored
// article starts at the actual content.
func trimPreamble(lines []string) []string {
	for i, line := range lines {
		lowered := strings.ToLower(line)
		if strings.HasPrefix(lowered, "hey ") || strings.HasPrefix(lowered, "your daily briefing") {
			return lines[i:]
		}
	}
	return lines
}

func collapseBlankLines(lines []string) string {
	var out []string
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			blank = false
			out = append(out, line)
			continue
		}
		if !blank {
			out = append(out, "")
		}
		blank = true
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
