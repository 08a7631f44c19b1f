// Package extract turns raw article HTML into cleaned Markdown.
package extract

import (
	"errors"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// minContentLength rejects boilerplate-only pages.
const minContentLength = 80

var (
	// ErrEmpty is returned for empty input or empty conversion output.
	ErrEmpty = errors.New("extracted content empty")
	// ErrTooShort is returned when the cleaned Markdown is under the floor.
	ErrTooShort = errors.New("extracted content too short")
)

// mainContentSelectors is the cascade tried to locate the article body
// before falling back to the whole document.
var mainContentSelectors = []string{
	"article",
	"main",
	"[role='main']",
	".post-content",
	".entry-content",
	".article-content",
	".main-content",
	".content",
	"#content",
}

const chromeSelector = "script, style, noscript, header, footer, nav, aside"

var converter = md.NewConverter("", true, &md.Options{HeadingStyle: "atx"})

// Markdown extracts the main content of html and converts it to Markdown
// with ATX headings.
func Markdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", ErrEmpty
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	content := mainContent(doc)
	content.Find(chromeSelector).Remove()

	contentHTML, err := content.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render content: %w", err)
	}

	markdown, err := converter.ConvertString(contentHTML)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", ErrEmpty
	}
	if len(markdown) < minContentLength {
		return "", fmt.Errorf("%w: %d chars", ErrTooShort, len(markdown))
	}
	return markdown, nil
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainContentSelectors {
		candidate := doc.Find(selector).First()
		if candidate.Length() > 0 && strings.TrimSpace(candidate.Text()) != "" {
			return candidate
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}
