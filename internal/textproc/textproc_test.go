package textproc

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"Hello, World!", 80, "hello-world"},
		{"  Go 1.23 Released  ", 80, "go-1-23-released"},
		{"---", 80, "item"},
		{"", 80, "item"},
		{"abcdefgh", 5, "abcde"},
		{"ab--cd", 4, "ab-c"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.input, tt.max); got != tt.want {
			t.Errorf("Slugify(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}

func TestItemIDDeterministic(t *testing.T) {
	url := "https://example.com/posts/hello"
	first := ItemID("Hello World", url)
	second := ItemID("Hello World", url)
	if first != second {
		t.Fatalf("ItemID not deterministic: %q vs %q", first, second)
	}

	sum := sha1.Sum([]byte(url))
	wantSuffix := hex.EncodeToString(sum[:])[:8]
	if first != "hello-world-"+wantSuffix {
		t.Errorf("ItemID = %q, want hello-world-%s", first, wantSuffix)
	}

	shape := regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*-[0-9a-f]{8}$`)
	if !shape.MatchString(first) {
		t.Errorf("ItemID %q does not match expected shape", first)
	}
}

func TestItemIDFallsBackToURL(t *testing.T) {
	id := ItemID("", "https://example.com/p")
	if !strings.HasPrefix(id, "https-example-com-p-") {
		t.Errorf("ItemID with empty title = %q, want url-derived slug", id)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Post", "https://example.com/Post"},
		{"sorts query pairs", "https://example.com/p?b=2&a=1", "https://example.com/p?a=1&b=2"},
		{"keeps blank query values", "https://example.com/p?b=&a=1", "https://example.com/p?a=1&b="},
		{"trims trailing slash", "https://example.com/post/", "https://example.com/post"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"adds missing root path", "https://example.com", "https://example.com/"},
		{"drops fragment", "https://example.com/p#section", "https://example.com/p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.input); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	variants := []string{
		"https://example.com/post?b=2&a=1",
		"HTTPS://EXAMPLE.com/post/?a=1&b=2",
		"https://example.com/post?a=1&b=2#top",
	}
	first := NormalizeURL(variants[0])
	for _, variant := range variants[1:] {
		if got := NormalizeURL(variant); got != first {
			t.Errorf("NormalizeURL(%q) = %q, want %q", variant, got, first)
		}
	}
}

func TestDetectBlockedText(t *testing.T) {
	blocked := []struct {
		name string
		text string
	}{
		{"ascii apostrophe", "You can't perform that action at this time."},
		{"curly apostrophe", "You can’t perform that action at this time."},
		{"mojibake apostrophe", "You canâ€™t perform that action at this time."},
		{"cloudflare", "Attention Required! | Cloudflare"},
		{"js challenge", "Checking your browser before accessing example.com"},
		{"access denied", "Access Denied - you do not have permission"},
	}
	for _, tt := range blocked {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectBlockedText(tt.text); got == "" {
				t.Errorf("DetectBlockedText(%q) = clean, want a match", tt.text)
			}
		})
	}
}

func TestDetectBlockedTextIgnoresLongArticles(t *testing.T) {
	article := "This article quotes the phrase access denied once. " +
		strings.Repeat("More body text follows here. ", 200)
	if got := DetectBlockedText(article); got != "" {
		t.Errorf("long article flagged as blocked: %q", got)
	}
	if got := DetectBlockedText(""); got != "" {
		t.Errorf("empty text flagged as blocked: %q", got)
	}
	if got := DetectBlockedText("A perfectly ordinary short post."); got != "" {
		t.Errorf("clean short text flagged as blocked: %q", got)
	}
}

func TestNormalizeMarkdownAndHash(t *testing.T) {
	a := "# Title\r\n\r\nBody text.   \r\n"
	b := "# Title\n\nBody text.\n"
	if NormalizeMarkdown(a) != NormalizeMarkdown(b) {
		t.Errorf("normalization differs:\n%q\n%q", NormalizeMarkdown(a), NormalizeMarkdown(b))
	}
	if HashContent(a) != HashContent(b) {
		t.Errorf("hashes differ for equivalent content")
	}
	if !strings.HasSuffix(NormalizeMarkdown("x"), "\n") {
		t.Errorf("normalized markdown missing trailing newline")
	}
	if len(HashContent("x")) != 64 {
		t.Errorf("HashContent length = %d, want 64", len(HashContent("x")))
	}
}

func TestFrontMatterRoundTrip(t *testing.T) {
	front := BuildFrontMatter([]FrontMatterField{
		{Key: "title", Value: "Hello: World"},
		{Key: "rank", Value: 3},
		{Key: "draft", Value: false},
		{Key: "author", Value: nil},
	})
	body := "Body line.\n"
	gotFront, gotBody := SplitFrontMatter(front + body)
	if gotFront != front {
		t.Errorf("front mismatch:\n%q\nwant\n%q", gotFront, front)
	}
	if gotBody != body {
		t.Errorf("body mismatch: %q", gotBody)
	}
	if !strings.Contains(front, `title: "Hello: World"`) {
		t.Errorf("string value not quoted: %q", front)
	}
	if !strings.Contains(front, "rank: 3") || !strings.Contains(front, "draft: false") || !strings.Contains(front, "author: null") {
		t.Errorf("scalar values rendered wrong: %q", front)
	}
}

func TestSplitFrontMatterAbsent(t *testing.T) {
	front, body := SplitFrontMatter("just a body\n")
	if front != "" || body != "just a body\n" {
		t.Errorf("SplitFrontMatter without block = (%q, %q)", front, body)
	}
	front, body = SplitFrontMatter("---\nunterminated")
	if front != "" || body != "---\nunterminated" {
		t.Errorf("SplitFrontMatter with unterminated block = (%q, %q)", front, body)
	}
}

func TestLooksLikePlaceholder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty table cells", "| Header |  |\n| --- | --- |\n", true},
		{"signup stub", "  [Signup] Subscribe to our newsletter", true},
		{"bare pipe line", "Intro\n|\nMore\n", true},
		{"real article", "# Title\n\nA normal paragraph of content.\n", false},
		{"artifact past preview", strings.Repeat("a", 900) + "\n|  |\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikePlaceholder(tt.content); got != tt.want {
				t.Errorf("LooksLikePlaceholder = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTMLToMarkdown(t *testing.T) {
	got := HTMLToMarkdown(`<p>Hello <a href="https://example.com">world</a></p>`)
	if !strings.Contains(got, "[world](https://example.com)") {
		t.Errorf("HTMLToMarkdown = %q, want markdown link", got)
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<div><p>One</p>\n<p>Two   three</p></div>")
	if got != "One Two three" {
		t.Errorf("StripHTML = %q, want %q", got, "One Two three")
	}
}
