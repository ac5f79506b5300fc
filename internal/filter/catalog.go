package filter

import (
	"slices"
	"strings"
)

// Catalog maps a category to its competitors and each competitor to the
// keywords that identify a post about it.
type Catalog map[string]map[string][]string

// DefaultCatalog returns the built-in competitor catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		"ai_ides": {
			"cursor":  {"cursor ide", "cursor editor", "cursor ai", "cursor.so"},
			"codeium": {"codeium", "codeium ai", "codeium extension", "codeium plugin"},
			"copilot": {"github copilot", "copilot", "github co-pilot", "copilot ai"},
			"tabnine": {"tabnine", "tab nine", "tabnine ai", "tabnine autocomplete"},
			"kite":    {"kite autocomplete", "kite ai", "kite code"},
		},
		"website_builders": {
			"lovable":     {"lovable", "lovable app", "lovable.ai", "lovable website"},
			"webflow":     {"webflow", "webflow builder", "webflow designer"},
			"wix":         {"wix", "wix website", "wix builder", "wix ai"},
			"squarespace": {"squarespace", "square space"},
			"framer":      {"framer", "framer website", "framer builder"},
		},
		"code_assistants": {
			"chatgpt": {"chatgpt", "chatgpt code", "openai", "gpt-4 code"},
			"claude":  {"claude ai", "anthropic claude", "claude code"},
			"bard":    {"google bard", "bard ai", "bard code"},
			"llama":   {"llama code", "meta llama", "llama 2", "code llama"},
		},
	}
}

// Categories lists category names in sorted order.
func (c Catalog) Categories() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Competitors lists the competitors of category in sorted order.
func (c Catalog) Competitors(category string) []string {
	out := make([]string, 0, len(c[category]))
	for name := range c[category] {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Keywords returns the lowercased keywords of a competitor in any category.
func (c Catalog) Keywords(competitor string) []string {
	for _, comps := range c {
		if kws, ok := comps[competitor]; ok {
			return lower(kws)
		}
	}
	return nil
}

// CategoryKeywords returns the union of keywords across a category.
func (c Catalog) CategoryKeywords(category string) []string {
	var out []string
	for _, name := range c.Competitors(category) {
		out = append(out, lower(c[category][name])...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func lower(kws []string) []string {
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
