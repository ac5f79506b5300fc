package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/communitysurf/internal/classify"
	"github.com/ppiankov/communitysurf/internal/clock"
	"github.com/ppiankov/communitysurf/internal/filter"
	"github.com/ppiankov/communitysurf/internal/post"
	"github.com/ppiankov/communitysurf/internal/privacy"
	"github.com/ppiankov/communitysurf/internal/rank"
	"github.com/ppiankov/communitysurf/internal/source"
)

var now = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func secondsAgo(d time.Duration) post.Timestamp {
	return post.UnixSeconds(float64(now.Add(-d).Unix()))
}

type memCompleted struct {
	mu   sync.Mutex
	keys map[string]time.Time
	fail error
}

func (m *memCompleted) MarkCompleted(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.keys == nil {
		m.keys = make(map[string]time.Time)
	}
	m.keys[key] = at
	return nil
}

func (m *memCompleted) UnmarkCompleted(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	delete(m.keys, key)
	return ok, m.fail
}

func (m *memCompleted) Completed(context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool)
	for k := range m.keys {
		out[k] = true
	}
	return out, m.fail
}

func keys(posts []post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Key()
	}
	return out
}

func newService(opts ...Option) *Service {
	opts = append([]Option{WithClock(clock.NewFake(now)), WithLogger(quiet())}, opts...)
	s := New(opts...)
	s.Ingest(source.Batch{Source: source.SlotReddit, Posts: []post.Post{
		{Source: post.Reddit, ID: "old", Title: "cursor ide rocks", Created: secondsAgo(10 * 24 * time.Hour), Score: post.Int(500)},
		{Source: post.Reddit, ID: "new", Title: "weekend plans", Created: secondsAgo(time.Hour), Score: post.Int(1)},
	}})
	s.Ingest(source.Batch{Source: source.SlotForum, Posts: []post.Post{
		{Source: post.Forum, ID: "7", Title: "Crash on save", Created: post.ISOTime(now.Add(-2 * time.Hour).Format(time.RFC3339)), Likes: post.Int(3), PrimaryClassification: post.BugIssue},
	}})
	return s
}

func TestView_DefaultsToHot(t *testing.T) {
	s := newService()
	v := s.View()
	if v.Sort != rank.Hot {
		t.Errorf("sort = %s, want hot", v.Sort)
	}
	// both day-bucket posts come before the ten-day-old one
	if diff := cmp.Diff([]string{"forum-7", "reddit-new", "reddit-old"}, keys(v.Posts)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if v.Total != 3 || v.Hidden != 0 {
		t.Errorf("total=%d hidden=%d", v.Total, v.Hidden)
	}
}

func TestSetSortAndFilters(t *testing.T) {
	s := newService()

	if m := s.SetSort("top"); m != rank.Top {
		t.Errorf("mode = %s", m)
	}
	if m := s.SetSort("bogus"); m != rank.Hot {
		t.Errorf("unknown mode = %s, want hot", m)
	}
	s.SetSort("top")

	if err := s.SetFilters(filter.Options{Category: "ai_ides"}); err != nil {
		t.Fatalf("set filters: %v", err)
	}
	v := s.View()
	if diff := cmp.Diff([]string{"reddit-old"}, keys(v.Posts)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if v.Hidden != 2 {
		t.Errorf("hidden = %d, want 2", v.Hidden)
	}

	for _, bad := range []filter.Options{
		{Category: "spreadsheets"},
		{Competitor: "notepad"},
		{Classification: "spam"},
		{Platform: "mastodon"},
	} {
		if err := s.SetFilters(bad); err == nil {
			t.Errorf("SetFilters(%+v) accepted", bad)
		}
	}
	if s.Filters().Category != "ai_ides" {
		t.Error("rejected filters replaced the active ones")
	}
}

func TestQuery_LeavesStateAlone(t *testing.T) {
	s := newService()
	v := s.Query(rank.New, filter.Options{Classification: post.BugIssue})
	if diff := cmp.Diff([]string{"forum-7"}, keys(v.Posts)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if s.Sort() != rank.Hot || s.Filters().Classification != "" {
		t.Error("query changed the service state")
	}
}

func TestCompleted_PersistsAndHides(t *testing.T) {
	ctx := context.Background()
	st := &memCompleted{}
	s := newService(WithCompletedStore(st))

	if err := s.MarkCompleted(ctx, "reddit-new"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if got := keys(s.View().Posts); len(got) != 2 || got[1] != "reddit-old" {
		t.Errorf("view = %v", got)
	}
	if at := st.keys["reddit-new"]; !at.Equal(now) {
		t.Errorf("completed at %v, want %v", at, now)
	}

	// a restarted service picks the set up from the store
	again := newService(WithCompletedStore(st))
	if err := again.LoadCompleted(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if again.View().Hidden != 1 {
		t.Error("completed set not loaded")
	}

	if err := again.UnmarkCompleted(ctx, "reddit-new"); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if again.View().Hidden != 0 {
		t.Error("unmarked post still hidden")
	}
}

func TestCompleted_StoreFailureKeepsState(t *testing.T) {
	s := newService(WithCompletedStore(&memCompleted{fail: errors.New("disk full")}))
	if err := s.MarkCompleted(context.Background(), "reddit-new"); err == nil {
		t.Fatal("expected store error")
	}
	if s.View().Hidden != 0 {
		t.Error("post hidden although the store rejected it")
	}
}

func TestIngest_ReplacesSlotAndCopies(t *testing.T) {
	s := newService()
	fresh := source.Batch{Source: source.SlotReddit, Posts: []post.Post{{Source: post.Reddit, ID: "only", Created: secondsAgo(time.Minute)}}}
	s.Ingest(fresh)
	fresh.Posts[0].ID = "mutated"

	if diff := cmp.Diff([]string{"forum-7", "reddit-only"}, keys(s.Query(rank.New, filter.Options{}).Posts)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParams_MergesSort(t *testing.T) {
	s := New(WithBaseParams(map[string]source.Params{
		source.SlotReddit: {TimeFilter: "month", Limit: 50},
	}))
	s.SetSort("engagement")

	want := source.Params{Sort: "engagement", TimeFilter: "month", Limit: 50}
	if got := s.Params(source.SlotReddit); got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}
	if got := s.Params(source.SlotSocial); got.Sort != "engagement" || got.Limit != 0 {
		t.Errorf("social params = %+v", got)
	}
}

func TestEnricher_Batch(t *testing.T) {
	red, err := privacy.New([]string{`sk-[a-z0-9]+`})
	if err != nil {
		t.Fatalf("redactor: %v", err)
	}
	raw := source.Batch{Source: source.SlotSocial, Posts: []post.Post{
		{Source: post.Twitter, ID: "1", Content: "app crash, my key sk-abc leaked", Likes: post.Int(4), Retweets: post.Int(1)},
	}}
	b := Enricher{Redactor: red, Classifier: &classify.Heuristic{}}.Batch(context.Background(), raw)

	if b.Source != source.SlotSocial {
		t.Errorf("source = %q", b.Source)
	}
	p := b.Posts[0]
	if p.Content != "app crash, my key [REDACTED] leaked" {
		t.Errorf("content = %q", p.Content)
	}
	if p.PrimaryClassification != post.BugIssue {
		t.Errorf("classification = %q", p.PrimaryClassification)
	}
	if p.RelevanceScore == nil || *p.RelevanceScore != 6 {
		t.Errorf("relevance = %v, want 4 + 2*1", p.RelevanceScore)
	}
	if raw.Posts[0].RelevanceScore != nil || raw.Posts[0].Content != "app crash, my key sk-abc leaked" {
		t.Error("input batch modified")
	}
}
