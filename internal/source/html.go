package source

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(`[ \t]+`)
)

// blockTags get a line break after them so paragraphs survive extraction.
const blockTags = "p, div, li, br, h1, h2, h3, h4, h5, h6, pre, blockquote, tr"

// stripHTML converts a cooked HTML fragment into plain text. Input that is
// not HTML comes back trimmed.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	doc.Find("aside.onebox, .lightbox-wrapper .meta").Remove()
	doc.Find(blockTags).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	text := doc.Text()
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
