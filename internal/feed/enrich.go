package feed

import (
	"context"

	"github.com/ppiankov/communitysurf/internal/classify"
	"github.com/ppiankov/communitysurf/internal/config"
	"github.com/ppiankov/communitysurf/internal/privacy"
	"github.com/ppiankov/communitysurf/internal/relevance"
	"github.com/ppiankov/communitysurf/internal/source"
)

// Enricher post-processes fetched posts: redaction first, then
// classification and relevance scoring. Nil parts are skipped.
type Enricher struct {
	Redactor   *privacy.Redactor
	Classifier classify.Classifier
	Profile    *config.RelevanceProfile
}

// Batch returns an enriched copy of b. It is the coordinator's enrich hook,
// so cached batches are already processed.
func (e Enricher) Batch(ctx context.Context, b source.Batch) source.Batch {
	posts := b.Posts
	if e.Redactor != nil {
		posts = e.Redactor.Posts(posts)
	}
	if e.Classifier != nil {
		posts = classify.Apply(ctx, e.Classifier, posts)
	}
	b.Posts = relevance.Annotate(posts, e.Profile)
	return b
}
