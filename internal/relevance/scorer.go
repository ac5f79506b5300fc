// Package relevance computes the relevance_score used by the engagement
// ranking when the upstream did not supply one.
package relevance

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ppiankov/communitysurf/internal/config"
	"github.com/ppiankov/communitysurf/internal/post"
)

// Result is a post's relevance with the reasons behind it.
type Result struct {
	Score       float64
	Explanation []Contribution
}

// Contribution records a single scoring reason and its point value.
type Contribution struct {
	Reason string // "engagement", "keyword: tab" or "rule: crash"
	Points float64
}

// Engagement weights. Tweets weigh retweets and replies, everything else
// weighs comments.
const (
	commentWeight = 2
	retweetWeight = 2
	replyWeight   = 1.5
)

// Score evaluates a post's engagement plus the profile's keyword points.
// A nil profile scores engagement only.
func Score(p post.Post, profile *config.RelevanceProfile) Result {
	base := engagement(p)
	total := base
	explanation := []Contribution{{Reason: "engagement", Points: base}}

	if profile == nil {
		return Result{Score: total, Explanation: explanation}
	}

	textLower := strings.ToLower(p.Title + " " + p.Content)

	for _, weights := range []map[string]float64{profile.Weights.HighSignal, profile.Weights.LowSignal} {
		for _, kw := range slices.Sorted(maps.Keys(weights)) {
			if strings.Contains(textLower, strings.ToLower(kw)) {
				total += weights[kw]
				explanation = append(explanation, Contribution{
					Reason: fmt.Sprintf("keyword: %s", kw),
					Points: weights[kw],
				})
			}
		}
	}

	for _, rule := range profile.Rules {
		if kw, ok := ruleMatch(textLower, rule.If); ok {
			total += rule.Then.ScoreAdd
			explanation = append(explanation, Contribution{
				Reason: fmt.Sprintf("rule: %s", kw),
				Points: rule.Then.ScoreAdd,
			})
		}
	}

	return Result{Score: total, Explanation: explanation}
}

func engagement(p post.Post) float64 {
	if p.Source == post.Twitter {
		var replies int
		if p.Replies != nil {
			replies = *p.Replies
		}
		return float64(p.Points()) + retweetWeight*float64(p.Reposts()) + replyWeight*float64(replies)
	}
	return float64(p.Points()) + commentWeight*float64(p.Comments())
}

// ruleMatch returns the first keyword of cond found in textLower.
func ruleMatch(textLower string, cond config.RuleCondition) (string, bool) {
	for _, kw := range cond.ContainsAny {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

// Annotate fills RelevanceScore on posts that lack one. Upstream scores
// are kept. The input slice is not modified.
func Annotate(posts []post.Post, profile *config.RelevanceProfile) []post.Post {
	out := make([]post.Post, len(posts))
	for i, p := range posts {
		if p.RelevanceScore == nil {
			p.RelevanceScore = post.Float(Score(p, profile).Score)
		}
		out[i] = p
	}
	return out
}
