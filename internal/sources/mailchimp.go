package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvester/internal/textproc"
)

// MailchimpHTMLToMarkdown renders a Mailchimp campaign page by keeping only
// its text blocks: everything outside td.mcnTextContent is layout chrome.
// Footer blocks carrying unsubscribe or preference links are dropped, and
// table artifacts the layout leaks into the Markdown are stripped.
func MailchimpHTMLToMarkdown(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return textproc.HTMLToMarkdown(html)
	}

	var blocks []string
	doc.Find("td.mcnTextContent").Each(func(_ int, block *goquery.Selection) {
		lowered := strings.ToLower(block.Text())
		if strings.Contains(lowered, "unsubscribe") || strings.Contains(lowered, "update your preferences") {
			return
		}
		blockHTML, err := block.Html()
		if err != nil {
			return
		}
		markdown := stripTableArtifacts(textproc.HTMLToMarkdown(blockHTML))
		if markdown != "" {
			blocks = append(blocks, markdown)
		}
	})
	return strings.Join(blocks, "\n\n")
}

func stripTableArtifacts(markdown string) string {
	var lines []string
	blank := false
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") {
			continue
		}
		if trimmed == "" {
			if !blank {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
