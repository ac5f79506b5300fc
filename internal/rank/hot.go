package rank

import (
	"cmp"
	"slices"
	"time"
)

// Bucket is an age range used by the hot strategy.
type Bucket int

const (
	BucketDay Bucket = iota
	BucketThreeDays
	BucketWeek
	BucketOlder
)

func (b Bucket) String() string {
	switch b {
	case BucketDay:
		return "day"
	case BucketThreeDays:
		return "threeDays"
	case BucketWeek:
		return "week"
	}
	return "older"
}

// BucketFor places a post created at t into an age bucket relative to now.
// Posts dated in the future count as fresh.
func BucketFor(t, now time.Time, w Weights) Bucket {
	age := now.Sub(t)
	switch {
	case age <= w.Day:
		return BucketDay
	case age <= w.ThreeDays:
		return BucketThreeDays
	case age <= w.Week:
		return BucketWeek
	}
	return BucketOlder
}

// hot partitions entries into age buckets, sorts each bucket by engagement
// and concatenates them freshest bucket first, so recency always dominates
// raw engagement.
func hot(entries []entry, now time.Time, w Weights) []entry {
	var buckets [BucketOlder + 1][]entry
	for _, e := range entries {
		b := BucketFor(e.at, now, w)
		buckets[b] = append(buckets[b], e)
	}

	byEngagement := func(a, b entry) int {
		if c := cmp.Compare(engagement(b, w), engagement(a, w)); c != 0 {
			return c
		}
		return newestFirst(a, b)
	}

	out := make([]entry, 0, len(entries))
	for _, bucket := range buckets {
		slices.SortStableFunc(bucket, byEngagement)
		out = append(out, bucket...)
	}
	return out
}

func engagement(e entry, w Weights) float64 {
	p := e.post
	return float64(p.Points()) + w.Comment*float64(p.Comments()) + w.Retweet*float64(p.Reposts())
}
