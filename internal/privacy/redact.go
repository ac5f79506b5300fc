// Package privacy masks configured patterns in post text before it is
// cached, stored or served.
package privacy

import (
	"fmt"
	"regexp"

	"github.com/ppiankov/communitysurf/internal/post"
)

const redactedPlaceholder = "[REDACTED]"

// Redactor replaces every match of its patterns with [REDACTED].
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles patterns into a Redactor. It returns an error if any
// pattern is invalid.
func New(patterns []string) (*Redactor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Redactor{patterns: compiled}, nil
}

// Text redacts a single string. A nil Redactor returns text unchanged.
func (r *Redactor) Text(text string) string {
	if r == nil {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// Posts redacts title, content and author of each post. The input slice
// is not modified.
func (r *Redactor) Posts(posts []post.Post) []post.Post {
	out := make([]post.Post, len(posts))
	for i, p := range posts {
		p.Title = r.Text(p.Title)
		p.Content = r.Text(p.Content)
		p.Author = r.Text(p.Author)
		out[i] = p
	}
	return out
}
