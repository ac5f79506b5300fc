package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/communitysurf/internal/clock"
	"github.com/ppiankov/communitysurf/internal/post"
)

var start = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func batch(ids ...string) []post.Post {
	out := make([]post.Post, len(ids))
	for i, id := range ids {
		out[i] = post.Post{Source: post.Reddit, ID: id, Title: "t" + id, Score: post.Int(i), Created: post.UnixSeconds(100)}
	}
	return out
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	c := New(post.CloneAll, WithClock(clk), WithLogger(quiet()))

	c.Set(ctx, "reddit?sort=new", batch("a", "b"))

	got, ok := c.Get(ctx, "reddit?sort=new")
	if !ok {
		t.Fatal("expected hit")
	}
	if diff := cmp.Diff(batch("a", "b"), got); diff != "" {
		t.Errorf("cached value mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.Get(ctx, "reddit?sort=top"); ok {
		t.Error("unexpected hit for another key")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	c := New(post.CloneAll, WithClock(clk), WithLogger(quiet()))

	c.Set(ctx, "k", batch("a"))

	clk.Advance(DefaultTTL)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry exactly at TTL should still be fresh")
	}

	clk.Advance(time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry past TTL should be absent")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, len = %d", c.Len())
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("evicted entry reappeared")
	}
}

func TestCache_EvictedEntryStaysGoneWithStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	st := &MemoryStore{}
	c := New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet()))

	c.Set(ctx, "a", batch("1"))
	clk.Advance(DefaultTTL + time.Second)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("entry past TTL should be absent")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0 after eviction", c.Len())
	}

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("unexpected hit for b")
	}
	if c.Len() != 0 {
		t.Errorf("evicted entry reappeared from the snapshot, len = %d", c.Len())
	}

	c.Set(ctx, "b", batch("2"))
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("evicted entry reappeared after a later Set")
	}
}

func TestCache_HydrateSkipsStaleEntries(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	st := &MemoryStore{}

	first := New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet()))
	first.Set(ctx, "old", batch("1"))
	clk.Advance(DefaultTTL)
	first.Set(ctx, "new", batch("2"))
	clk.Advance(time.Second)

	second := New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet()))
	if _, ok := second.Get(ctx, "new"); !ok {
		t.Fatal("fresh entry should hydrate")
	}
	if second.Len() != 1 {
		t.Errorf("len = %d, want only the fresh entry hydrated", second.Len())
	}
}

func TestCache_CopiesOnWriteAndRead(t *testing.T) {
	ctx := context.Background()
	c := New(post.CloneAll, WithClock(clock.NewFake(start)), WithLogger(quiet()))

	in := batch("a")
	c.Set(ctx, "k", in)
	*in[0].Score = 99
	in[0].Title = "changed"

	got, _ := c.Get(ctx, "k")
	if got[0].Title != "ta" || *got[0].Score != 0 {
		t.Fatalf("cache shares memory with caller input: %+v", got[0])
	}

	got[0].Title = "mutated"
	again, _ := c.Get(ctx, "k")
	if again[0].Title != "ta" {
		t.Errorf("cache shares memory with returned value: %+v", again[0])
	}
}

func TestCache_HydratesFromStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	st := &MemoryStore{}

	first := New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet()))
	first.Set(ctx, "forum?sort=new", batch("1", "2"))
	if st.Saves != 1 {
		t.Fatalf("saves = %d, want 1", st.Saves)
	}

	clk.Advance(30 * time.Second)

	second := New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet()))
	got, ok := second.Get(ctx, "forum?sort=new")
	if !ok {
		t.Fatal("expected hit hydrated from store")
	}
	if diff := cmp.Diff(batch("1", "2"), got); diff != "" {
		t.Errorf("hydrated value mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_SetKeepsPersistedSiblings(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	st := &MemoryStore{}

	New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet())).Set(ctx, "a", batch("1"))

	second := New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet()))
	second.Set(ctx, "b", batch("2"))

	third := New(post.CloneAll, WithClock(clk), WithStore(st), WithLogger(quiet()))
	if _, ok := third.Get(ctx, "a"); !ok {
		t.Error("earlier entry lost when a new process wrote the snapshot")
	}
}

func TestCache_StoreFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	st := &MemoryStore{Fail: errors.New("quota exceeded")}
	c := New(post.CloneAll,
		WithClock(clock.NewFake(start)),
		WithStore(st),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	c.Set(ctx, "k", batch("a"))
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("in-memory entry should survive store failure")
	}
	c.Clear(ctx)
	if c.Len() != 0 {
		t.Errorf("len after clear = %d", c.Len())
	}
	if !strings.Contains(logs.String(), "quota exceeded") {
		t.Errorf("store failure not logged: %q", logs.String())
	}
}

func TestCache_ClearRemovesSnapshot(t *testing.T) {
	ctx := context.Background()
	st := &MemoryStore{}
	c := New(post.CloneAll, WithClock(clock.NewFake(start)), WithStore(st), WithLogger(quiet()))

	c.Set(ctx, "k", batch("a"))
	c.Clear(ctx)

	if _, err := st.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("store still holds snapshot, err = %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry survived clear")
	}
}

func TestCache_CustomTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(start)
	c := New[int](nil, WithClock(clk), WithTTL(time.Second), WithLogger(quiet()))

	c.Set(ctx, "n", 7)
	clk.Advance(2 * time.Second)
	if _, ok := c.Get(ctx, "n"); ok {
		t.Error("entry should expire after custom TTL")
	}
	if c.TTL() != time.Second {
		t.Errorf("ttl = %s", c.TTL())
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		source string
		params map[string]string
		want   string
	}{
		{"reddit", nil, "reddit"},
		{"reddit", map[string]string{"sort": "new", "t": "", "limit": "100"}, "reddit?limit=100&sort=new"},
		{"social", map[string]string{"query": " cursor ide "}, "social?query=cursor+ide"},
	}
	for _, tt := range tests {
		if got := Key(tt.source, tt.params); got != tt.want {
			t.Errorf("Key(%q, %v) = %q, want %q", tt.source, tt.params, got, tt.want)
		}
	}
}
