package rank

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/communitysurf/internal/post"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) post.Timestamp {
	return post.UnixSeconds(float64(now.Add(-d).Unix()))
}

func keys(posts []post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Key()
	}
	return out
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"new":        New,
		"top":        Top,
		"engagement": Engagement,
		"hot":        Hot,
		"":           Hot,
		"trending":   Hot,
	} {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRank_NewByCreatedUTC(t *testing.T) {
	posts := []post.Post{
		{Source: post.Reddit, ID: "100", Title: "a", Created: post.UnixSeconds(100)},
		{Source: post.Reddit, ID: "300", Title: "b", Created: post.UnixSeconds(300)},
		{Source: post.Reddit, ID: "200", Title: "c", Created: post.UnixSeconds(200)},
	}

	got, err := Rank(posts, New, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	want := []string{"reddit-300", "reddit-200", "reddit-100"}
	if diff := cmp.Diff(want, keys(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if posts[0].ID != "100" {
		t.Errorf("input slice was reordered: %v", keys(posts))
	}
}

func TestRank_NewIsStableAndMonotonic(t *testing.T) {
	posts := []post.Post{
		{Source: post.Forum, ID: "x", Title: "no date"},
		{Source: post.Twitter, ID: "1", Content: "t", Created: post.UnixSeconds(50)},
		{Source: post.Reddit, ID: "1", Title: "r", Created: post.UnixSeconds(50)},
		{Source: post.Forum, ID: "2", Title: "f", Created: post.ISOTime("1970-01-01T00:02:00Z")},
	}

	got, err := Rank(posts, New, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	want := []string{"forum-2", "twitter-1", "reddit-1", "forum-x"}
	if diff := cmp.Diff(want, keys(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if post.Normalize(got[i-1]).Before(post.Normalize(got[i])) {
			t.Errorf("position %d is newer than position %d", i, i-1)
		}
	}
}

func TestRank_TopFallsBackToLikesThenDate(t *testing.T) {
	posts := []post.Post{
		{Source: post.Reddit, ID: "old10", Title: "a", Score: post.Int(10), Created: ago(48 * time.Hour)},
		{Source: post.Twitter, ID: "likes20", Content: "b", Likes: post.Int(20), Created: ago(time.Hour)},
		{Source: post.Reddit, ID: "new10", Title: "c", Score: post.Int(10), Created: ago(2 * time.Hour)},
		{Source: post.Forum, ID: "none", Title: "d", Created: ago(time.Minute)},
	}

	got, err := Rank(posts, Top, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	want := []string{"twitter-likes20", "reddit-new10", "reddit-old10", "forum-none"}
	if diff := cmp.Diff(want, keys(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_EngagementUsesRelevance(t *testing.T) {
	posts := []post.Post{
		{Source: post.Reddit, ID: "a", Title: "a", RelevanceScore: post.Float(0.2), Created: ago(time.Hour)},
		{Source: post.Reddit, ID: "b", Title: "b", Created: ago(time.Minute)},
		{Source: post.Reddit, ID: "c", Title: "c", RelevanceScore: post.Float(0.9), Created: ago(10 * 24 * time.Hour)},
		{Source: post.Reddit, ID: "d", Title: "d", RelevanceScore: post.Float(0.2), Created: ago(time.Minute)},
	}

	got, err := Rank(posts, Engagement, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	want := []string{"reddit-c", "reddit-d", "reddit-a", "reddit-b"}
	if diff := cmp.Diff(want, keys(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_HotRecencyBeatsEngagement(t *testing.T) {
	a := post.Post{Source: post.Reddit, ID: "A", Title: "a", Score: post.Int(10), NumComments: post.Int(1), Created: ago(2 * time.Hour)}
	b := post.Post{Source: post.Reddit, ID: "B", Title: "b", Score: post.Int(50), NumComments: post.Int(0), Created: ago(10 * 24 * time.Hour)}

	got, err := Rank([]post.Post{b, a}, Hot, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	if diff := cmp.Diff([]string{"reddit-A", "reddit-B"}, keys(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_HotBucketsAndComposite(t *testing.T) {
	posts := []post.Post{
		{Source: post.Reddit, ID: "older-huge", Title: "x", Score: post.Int(10000), Created: ago(30 * 24 * time.Hour)},
		{Source: post.Twitter, ID: "day-rt", Content: "x", Likes: post.Int(1), Retweets: post.Int(4), Created: ago(3 * time.Hour)},   // 1 + 6 = 7
		{Source: post.Reddit, ID: "day-comments", Title: "x", Score: post.Int(2), NumComments: post.Int(3), Created: ago(time.Hour)}, // 2 + 6 = 8
		{Source: post.Forum, ID: "week", Title: "x", Likes: post.Int(100), Replies: post.Int(1), Created: ago(100 * time.Hour)},
		{Source: post.Forum, ID: "three", Title: "x", Likes: post.Int(1), Created: ago(48 * time.Hour)},
		{Source: post.Forum, ID: "undated", Title: "x", Likes: post.Int(500)},
		{Source: post.Reddit, ID: "day-tie", Title: "x", Score: post.Int(7), Created: ago(30 * time.Minute)}, // ties day-rt, newer
	}

	got, err := Rank(posts, Hot, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	want := []string{
		"reddit-day-comments",
		"reddit-day-tie",
		"twitter-day-rt",
		"forum-three",
		"forum-week",
		"reddit-older-huge",
		"forum-undated",
	}
	if diff := cmp.Diff(want, keys(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_HotUnresolvableTimestampIsOlder(t *testing.T) {
	var reported []string
	post.SetReporter(func(key string, _ error) { reported = append(reported, key) })
	t.Cleanup(func() { post.SetReporter(nil) })

	posts := []post.Post{
		{Source: post.Forum, ID: "broken", Title: "x", Likes: post.Int(900), Created: post.Unresolvable{Field: "created_at", Value: true}},
		{Source: post.Forum, ID: "old", Title: "x", Likes: post.Int(1), Created: ago(20 * 24 * time.Hour)},
		{Source: post.Forum, ID: "today", Title: "x", Likes: post.Int(1), Created: ago(time.Hour)},
	}
	got, err := Rank(posts, Hot, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if diff := cmp.Diff([]string{"forum-today", "forum-broken", "forum-old"}, keys(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if BucketFor(post.Normalize(posts[0]), now, DefaultWeights()) != BucketOlder {
		t.Error("unresolvable timestamp should land in the older bucket")
	}
	if len(reported) == 0 {
		t.Error("unresolvable timestamp was not reported")
	}
}

func TestRank_UnknownModeIsHot(t *testing.T) {
	posts := []post.Post{
		{Source: post.Reddit, ID: "old", Title: "x", Score: post.Int(99), Created: ago(200 * time.Hour)},
		{Source: post.Reddit, ID: "new", Title: "x", Score: post.Int(1), Created: ago(time.Hour)},
	}
	got, err := Rank(posts, Mode("bogus"), now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got[0].ID != "new" {
		t.Errorf("unknown mode should rank like hot, got %v", keys(got))
	}
}

func TestRank_Idempotent(t *testing.T) {
	posts := []post.Post{
		{Source: post.Reddit, ID: "1", Title: "x", Score: post.Int(5), NumComments: post.Int(1), RelevanceScore: post.Float(0.1), Created: ago(time.Hour)},
		{Source: post.Twitter, ID: "2", Content: "x", Likes: post.Int(9), Retweets: post.Int(2), RelevanceScore: post.Float(0.7), Created: ago(50 * time.Hour)},
		{Source: post.Forum, ID: "3", Title: "x", Likes: post.Int(3), RelevanceScore: post.Float(0.4), Created: ago(20 * time.Hour)},
		{Source: post.Forum, ID: "4", Title: "x", Likes: post.Int(40), RelevanceScore: post.Float(0.3), Created: ago(400 * time.Hour)},
	}

	for _, mode := range Modes {
		once, err := Rank(posts, mode, now, DefaultWeights())
		if err != nil {
			t.Fatalf("%s: rank: %v", mode, err)
		}
		twice, err := Rank(once, mode, now, DefaultWeights())
		if err != nil {
			t.Fatalf("%s: rank again: %v", mode, err)
		}
		if diff := cmp.Diff(keys(once), keys(twice)); diff != "" {
			t.Errorf("%s not idempotent (-once +twice):\n%s", mode, diff)
		}
	}
}

func TestRank_EmptyInput(t *testing.T) {
	got, err := Rank(nil, New, now, DefaultWeights())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestRank_InvalidWeightsError(t *testing.T) {
	posts := []post.Post{{Source: post.Reddit, ID: "1", Title: "x"}}
	_, err := Rank(posts, Hot, now, Weights{Day: time.Hour, ThreeDays: time.Minute, Week: time.Hour})
	var rerr *Error
	if err == nil {
		t.Fatal("expected error for decreasing bucket bounds")
	}
	if !errors.As(err, &rerr) || rerr.Mode != Hot {
		t.Errorf("err = %v, want *Error for hot", err)
	}
}

func TestOrOriginal_FallsBackOnError(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	posts := []post.Post{
		{Source: post.Reddit, ID: "b", Title: "x", Created: ago(time.Hour)},
		{Source: post.Reddit, ID: "a", Title: "x", Created: ago(time.Minute)},
	}

	got := OrOriginal(log, posts, Hot, now, Weights{})
	if diff := cmp.Diff(keys(posts), keys(got)); diff != "" {
		t.Errorf("fallback should keep original order (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "ranking failed") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}

	ok := OrOriginal(slog.New(slog.NewTextHandler(io.Discard, nil)), posts, New, now, DefaultWeights())
	if ok[0].ID != "a" {
		t.Errorf("successful rank should reorder, got %v", keys(ok))
	}
}

func TestBucketFor(t *testing.T) {
	w := DefaultWeights()
	tests := []struct {
		age  time.Duration
		want Bucket
	}{
		{-time.Hour, BucketDay},
		{24 * time.Hour, BucketDay},
		{24*time.Hour + time.Second, BucketThreeDays},
		{72 * time.Hour, BucketThreeDays},
		{168 * time.Hour, BucketWeek},
		{169 * time.Hour, BucketOlder},
	}
	for _, tt := range tests {
		if got := BucketFor(now.Add(-tt.age), now, w); got != tt.want {
			t.Errorf("age %s: bucket %s, want %s", tt.age, got, tt.want)
		}
	}
}
