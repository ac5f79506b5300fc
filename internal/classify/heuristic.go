package classify

import (
	"context"
	"slices"
	"strings"

	"github.com/ppiankov/communitysurf/internal/post"
)

// Rule tags a post when its text contains any of Keywords.
type Rule struct {
	Tag      string
	Keywords []string
}

// DefaultRules is the built-in keyword rule set.
var DefaultRules = []Rule{
	{post.BugIssue, []string{"bug", "crash", "broken", "not working", "doesn't work", "stopped working", "regression", "error"}},
	{post.Frustration, []string{"frustrat", "annoying", "unusable", "terrible", "worst", "fed up", "waste of", "hate"}},
	{post.Kudos, []string{"love", "amazing", "awesome", "thank", "great job", "impressive", "game changer"}},
	{post.Demo, []string{"demo", "showcase", "i built", "i made", "built with", "check out"}},
	{post.Question, []string{"?", "how do i", "how to", "anyone know", "is there a way", "help"}},
	{post.ProductFeedback, []string{"feature request", "would be nice", "suggestion", "please add", "wish", "feedback"}},
}

// Heuristic classifies posts by keyword rules. Tags are ordered by the
// number of matching keywords, ties keeping rule order.
type Heuristic struct {
	Rules []Rule // nil means DefaultRules
}

func (h *Heuristic) Classify(_ context.Context, p post.Post) []string {
	rules := h.Rules
	if rules == nil {
		rules = DefaultRules
	}
	textLower := strings.ToLower(p.Title + " " + p.Content)

	type hit struct {
		tag   string
		count int
	}
	var hits []hit
	for _, r := range rules {
		n := 0
		for _, kw := range r.Keywords {
			if strings.Contains(textLower, strings.ToLower(kw)) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{r.Tag, n})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return b.count - a.count })

	tags := make([]string, 0, len(hits))
	for _, x := range hits {
		if !slices.Contains(tags, x.tag) {
			tags = append(tags, x.tag)
		}
	}
	return tags
}
