// Package filter narrows a feed to what the reader asked to see.
package filter

import (
	"strings"

	"github.com/ppiankov/communitysurf/internal/post"
)

// All disables a filter stage.
const All = "all"

// Options selects the active filters. Empty strings and All disable a stage.
type Options struct {
	Search         string
	Platform       string
	Category       string
	Competitor     string
	Classification string

	// Catalog resolves Category and Competitor. Nil means DefaultCatalog.
	Catalog Catalog
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != All
}

// Apply drops completed posts, then applies search, platform and
// competitor filters, then the classification filter. completed is keyed
// by Post.Key. Input order is preserved and posts are not copied.
func Apply(posts []post.Post, completed map[string]bool, opts Options) []post.Post {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	keywords, byKeyword := competitorKeywords(opts)
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	platform, byPlatform := post.Source(""), false
	if active(opts.Platform) {
		platform, byPlatform = post.ParseSource(opts.Platform)
	}

	out := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		if completed[p.Key()] {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		if byPlatform && p.Source != platform {
			continue
		}
		if byKeyword && !containsAny(combinedText(p), keywords) {
			continue
		}
		if active(opts.Classification) && !classified(p, opts.Classification) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// competitorKeywords resolves the keyword set for the competitor stage.
// The second result is false when the stage passes everything through.
// A named competitor takes precedence over its category.
func competitorKeywords(opts Options) ([]string, bool) {
	var kws []string
	switch {
	case strings.TrimSpace(opts.Competitor) != "":
		kws = opts.Catalog.Keywords(opts.Competitor)
	case active(opts.Category):
		kws = opts.Catalog.CategoryKeywords(opts.Category)
	}
	return kws, len(kws) > 0
}

// combinedText is the lowercased title (content when untitled) followed
// by the content.
func combinedText(p post.Post) string {
	head := p.Title
	if head == "" {
		head = p.Content
	}
	return strings.ToLower(head + " " + p.Content)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func matchesSearch(p post.Post, term string) bool {
	for _, field := range []string{p.Title, p.Content, p.Author, p.Subreddit} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func classified(p post.Post, tag string) bool {
	if p.PrimaryClassification != "" {
		return p.PrimaryClassification == tag
	}
	return p.HasClassification(tag)
}
