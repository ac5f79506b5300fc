// Package classify tags posts with classifications such as bug reports,
// questions or kudos.
package classify

import (
	"context"

	"github.com/ppiankov/communitysurf/internal/post"
)

// Classifier returns the classifications of a post, most relevant first.
// An empty result leaves the post unclassified.
type Classifier interface {
	Classify(ctx context.Context, p post.Post) []string
}

// Apply classifies posts that carry no classification yet. Upstream tags
// are kept. The first tag becomes the primary classification. Every post
// is offered to c even after ctx is done; c decides how to degrade. The
// input slice is not modified.
func Apply(ctx context.Context, c Classifier, posts []post.Post) []post.Post {
	out := make([]post.Post, len(posts))
	for i, p := range posts {
		if c != nil && len(p.Classifications) == 0 && p.PrimaryClassification == "" {
			if tags := c.Classify(ctx, p); len(tags) > 0 {
				p.Classifications = tags
				p.PrimaryClassification = tags[0]
			}
		}
		out[i] = p
	}
	return out
}
