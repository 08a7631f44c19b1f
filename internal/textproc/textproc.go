// Package textproc holds the text-level building blocks of the pipeline:
// markdown normalization and hashing, blocked-content sniffing, slug and item
// identifiers, front-matter handling, and HTML conversion helpers.
package textproc

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// blockPatterns are short anti-bot or interstitial strings. A match only
// counts when the whole text is small enough to plausibly be an interstitial
// page rather than an article that merely quotes one.
var blockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)you can.?t perform that action at this time`),
	regexp.MustCompile(`(?i)attention required`),
	regexp.MustCompile(`(?i)checking your browser before accessing`),
	regexp.MustCompile(`(?i)enable javascript and cookies to continue`),
	regexp.MustCompile(`(?i)please enable javascript`),
	regexp.MustCompile(`(?i)access denied`),
	regexp.MustCompile(`(?i)verify you are human`),
}

// BlockedError reports content matching a known anti-bot pattern.
type BlockedError struct {
	Pattern string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked content detected: %s", e.Pattern)
}

// NormalizeMarkdown converts line endings to LF, strips trailing whitespace
// per line, and ensures exactly one trailing newline.
func NormalizeMarkdown(markdown string) string {
	normalized := strings.ReplaceAll(markdown, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
}

// HashContent returns the hex SHA-256 of the normalized markdown.
func HashContent(markdown string) string {
	sum := sha256.Sum256([]byte(NormalizeMarkdown(markdown)))
	return hex.EncodeToString(sum[:])
}

// DetectBlockedText returns the matched anti-bot pattern, or "" when the
// content is clean or too long to be an interstitial (over 1200 characters or
// 120 words). Both the raw text and an ASCII-folded copy are checked so that
// curly quotes and mojibake do not hide a match.
func DetectBlockedText(markdown string) string {
	text := strings.Join(strings.Fields(markdown), " ")
	if text == "" {
		return ""
	}
	if len(strings.Fields(text)) > 120 || len(text) > 1200 {
		return ""
	}
	for _, pattern := range blockPatterns {
		if match := pattern.FindString(text); match != "" {
			return match
		}
	}
	folded := asciiFold(text)
	for _, pattern := range blockPatterns {
		if match := pattern.FindString(folded); match != "" {
			return match
		}
	}
	return ""
}

func asciiFold(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeURL canonicalizes a URL for identity comparison: scheme and host
// lowercased, query pairs sorted, trailing slashes trimmed (the bare root
// path is kept), fragment dropped. Unparseable input comes back unchanged.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	parsed.Path = path
	parsed.RawPath = ""
	if parsed.RawQuery != "" {
		if values, err := url.ParseQuery(parsed.RawQuery); err == nil {
			for _, pairValues := range values {
				sort.Strings(pairValues)
			}
			parsed.RawQuery = values.Encode()
		}
	}
	parsed.Fragment = ""
	return parsed.String()
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases value, collapses every non-alphanumeric run into a
// single hyphen, and truncates to maxLength. Empty input slugs to "item".
func Slugify(value string, maxLength int) string {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	cleaned = slugPattern.ReplaceAllString(cleaned, "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "item"
	}
	if len(cleaned) <= maxLength {
		return cleaned
	}
	return strings.TrimRight(cleaned[:maxLength], "-")
}

// ItemID derives the stable blog item identifier:
// slug(title||url, 80) + "-" + first 8 hex of SHA1(url).
func ItemID(title, url string) string {
	base := title
	if base == "" {
		base = url
	}
	sum := sha1.Sum([]byte(url))
	return Slugify(base, 80) + "-" + hex.EncodeToString(sum[:])[:8]
}

// FrontMatterField is one ordered key/value pair of a front-matter block.
type FrontMatterField struct {
	Key   string
	Value any
}

// BuildFrontMatter renders fields as a minimal YAML front-matter block with a
// trailing newline. String values are JSON-quoted so delimiters stay safe.
func BuildFrontMatter(fields []FrontMatterField) string {
	lines := []string{"---"}
	for _, field := range fields {
		lines = append(lines, field.Key+": "+yamlValue(field.Value))
	}
	lines = append(lines, "---")
	return strings.Join(lines, "\n") + "\n"
}

func yamlValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		quoted, _ := json.Marshal(fmt.Sprintf("%v", v))
		return string(quoted)
	}
}

// SplitFrontMatter splits markdown into its leading front-matter block (with
// delimiters, empty when absent) and the body.
func SplitFrontMatter(markdown string) (front string, body string) {
	if !strings.HasPrefix(markdown, "---\n") {
		return "", markdown
	}
	end := strings.Index(markdown[4:], "\n---\n")
	if end == -1 {
		return "", markdown
	}
	cut := 4 + end + 5
	return markdown[:cut], markdown[cut:]
}

// LooksLikePlaceholder reports whether content is a known corrupted capture:
// a pipe-table artifact or a signup stub in the first 800 characters.
func LooksLikePlaceholder(content string) bool {
	preview := content
	if len(preview) > 800 {
		preview = preview[:800]
	}
	if strings.Contains(preview, "|  |") {
		return true
	}
	if strings.HasPrefix(strings.TrimLeft(preview, " \t\n"), "[Signup]") {
		return true
	}
	for _, line := range strings.Split(preview, "\n") {
		if strings.TrimSpace(line) == "|" {
			return true
		}
	}
	return false
}

var converter = md.NewConverter("", true, nil)

// HTMLToMarkdown converts an HTML fragment to trimmed Markdown. Conversion
// failures collapse to "" so callers fall back to summaries.
func HTMLToMarkdown(html string) string {
	out, err := converter.ConvertString(html)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// StripHTML flattens an HTML fragment to space-joined plain text.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
