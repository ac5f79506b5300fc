// Package render writes a feed view for people (terminal) and programs
// (JSON).
package render

import (
	"io"
	"time"

	"github.com/ppiankov/communitysurf/internal/feed"
	"github.com/ppiankov/communitysurf/internal/fetch"
)

// Input is everything a formatter needs.
type Input struct {
	View     feed.View
	Statuses []fetch.Status
	Now      time.Time
	Limit    int // 0 shows every post
}

func (in Input) posts() int {
	if in.Limit > 0 && in.Limit < len(in.View.Posts) {
		return in.Limit
	}
	return len(in.View.Posts)
}

// Formatter writes a formatted feed to w.
type Formatter interface {
	Format(w io.Writer, in Input) error
}
