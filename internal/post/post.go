// Package post defines the normalized community post shared by every source
// and the rules that turn platform-specific timestamps into one instant.
package post

import "slices"

// Source identifies the platform a post came from.
type Source string

const (
	Reddit  Source = "reddit"
	Twitter Source = "twitter"
	Forum   Source = "forum"
)

// Sources lists the known platforms in display order.
var Sources = []Source{Reddit, Twitter, Forum}

// ParseSource maps upstream source tags onto a known Source.
// It returns false for unrecognized tags.
func ParseSource(s string) (Source, bool) {
	switch s {
	case "reddit":
		return Reddit, true
	case "twitter", "x", "social":
		return Twitter, true
	case "forum", "cursor_forum", "cursor-forum", "discourse":
		return Forum, true
	}
	return "", false
}

// Post is a single item from any source. Engagement counters are pointers
// because "absent" and "zero" rank differently.
type Post struct {
	Source    Source
	ID        string
	Title     string
	Content   string
	Author    string
	URL       string
	Subreddit string

	// Created holds the platform timestamp in its native representation.
	Created Timestamp

	Score       *int
	Likes       *int
	NumComments *int
	Replies     *int
	Retweets    *int
	Views       *int

	RelevanceScore        *float64
	Classifications       []string
	PrimaryClassification string
}

// Key returns the display key. IDs are only unique within a source.
func (p Post) Key() string {
	return string(p.Source) + "-" + p.ID
}

// Points returns score, falling back to likes, then zero.
func (p Post) Points() int {
	if p.Score != nil {
		return *p.Score
	}
	if p.Likes != nil {
		return *p.Likes
	}
	return 0
}

// Comments returns num_comments, falling back to replies, then zero.
func (p Post) Comments() int {
	if p.NumComments != nil {
		return *p.NumComments
	}
	if p.Replies != nil {
		return *p.Replies
	}
	return 0
}

// Reposts returns the retweet count or zero.
func (p Post) Reposts() int {
	if p.Retweets != nil {
		return *p.Retweets
	}
	return 0
}

// Relevance returns relevance_score or zero.
func (p Post) Relevance() float64 {
	if p.RelevanceScore != nil {
		return *p.RelevanceScore
	}
	return 0
}

// HasClassification reports whether tag is among the post's classifications.
func (p Post) HasClassification(tag string) bool {
	return slices.Contains(p.Classifications, tag)
}

// Clone returns a deep copy so callers can mutate it freely.
func (p Post) Clone() Post {
	c := p
	c.Score = cloneInt(p.Score)
	c.Likes = cloneInt(p.Likes)
	c.NumComments = cloneInt(p.NumComments)
	c.Replies = cloneInt(p.Replies)
	c.Retweets = cloneInt(p.Retweets)
	c.Views = cloneInt(p.Views)
	if p.RelevanceScore != nil {
		v := *p.RelevanceScore
		c.RelevanceScore = &v
	}
	if p.Classifications != nil {
		c.Classifications = slices.Clone(p.Classifications)
	}
	return c
}

// CloneAll deep-copies a slice of posts. A nil input stays nil.
func CloneAll(posts []Post) []Post {
	if posts == nil {
		return nil
	}
	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

// Int returns a pointer to v, for building posts in adapters and tests.
func Int(v int) *int {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
