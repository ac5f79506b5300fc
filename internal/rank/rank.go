// Package rank orders normalized posts by one of the feed sort modes.
package rank

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ppiankov/communitysurf/internal/post"
)

// Mode selects a ranking strategy.
type Mode string

const (
	New        Mode = "new"
	Top        Mode = "top"
	Engagement Mode = "engagement"
	Hot        Mode = "hot"
)

// Modes lists every supported mode.
var Modes = []Mode{New, Top, Engagement, Hot}

// ParseMode maps a user-supplied mode name to a Mode. Unknown names fall
// back to Hot.
func ParseMode(s string) Mode {
	switch m := Mode(s); m {
	case New, Top, Engagement, Hot:
		return m
	}
	return Hot
}

// Weights holds the tunable constants of the hot strategy.
type Weights struct {
	Day       time.Duration // upper bound of the first bucket
	ThreeDays time.Duration
	Week      time.Duration
	Comment   float64 // multiplier for num_comments/replies
	Retweet   float64 // multiplier for retweets
}

// DefaultWeights returns 24h/72h/168h buckets with comments x2 and retweets x1.5.
func DefaultWeights() Weights {
	return Weights{
		Day:       24 * time.Hour,
		ThreeDays: 72 * time.Hour,
		Week:      168 * time.Hour,
		Comment:   2,
		Retweet:   1.5,
	}
}

func (w Weights) validate() error {
	if w.Day <= 0 || w.ThreeDays <= w.Day || w.Week <= w.ThreeDays {
		return fmt.Errorf("bucket bounds must increase: day=%s three_days=%s week=%s", w.Day, w.ThreeDays, w.Week)
	}
	return nil
}

// Error reports a ranking failure. Callers typically fall back to the
// original order via OrOriginal.
type Error struct {
	Mode Mode
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rank %s: %v", e.Mode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// entry caches the per-post sort keys so each post is normalized once.
type entry struct {
	post post.Post
	at   time.Time
}

// Rank returns a new slice holding posts in mode order. The input slice and
// its elements are never modified. Sorting is stable, so fully tied posts
// keep their input order.
func Rank(posts []post.Post, mode Mode, now time.Time, w Weights) (ranked []post.Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			ranked = nil
			err = &Error{Mode: mode, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if len(posts) == 0 {
		return []post.Post{}, nil
	}

	entries := make([]entry, len(posts))
	for i, p := range posts {
		entries[i] = entry{post: p, at: post.Normalize(p)}
	}

	switch mode {
	case New:
		slices.SortStableFunc(entries, newestFirst)
	case Top:
		slices.SortStableFunc(entries, func(a, b entry) int {
			if c := cmp.Compare(b.post.Points(), a.post.Points()); c != 0 {
				return c
			}
			return newestFirst(a, b)
		})
	case Engagement:
		slices.SortStableFunc(entries, func(a, b entry) int {
			if c := cmp.Compare(b.post.Relevance(), a.post.Relevance()); c != 0 {
				return c
			}
			return newestFirst(a, b)
		})
	default:
		if err := w.validate(); err != nil {
			return nil, &Error{Mode: Hot, Err: err}
		}
		entries = hot(entries, now, w)
	}

	out := make([]post.Post, len(entries))
	for i, e := range entries {
		out[i] = e.post
	}
	return out, nil
}

// OrOriginal ranks posts and, on failure, logs the error and returns a copy
// of the input in its original order.
func OrOriginal(log *slog.Logger, posts []post.Post, mode Mode, now time.Time, w Weights) []post.Post {
	ranked, err := Rank(posts, mode, now, w)
	if err != nil {
		log.Error("ranking failed, keeping original order", "mode", mode, "posts", len(posts), "error", err)
		return slices.Clone(posts)
	}
	return ranked
}

func newestFirst(a, b entry) int {
	return b.at.Compare(a.at)
}
