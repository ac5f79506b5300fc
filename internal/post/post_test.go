package post

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func captureReports(t *testing.T) *[]string {
	t.Helper()
	var got []string
	SetReporter(func(key string, err error) {
		got = append(got, key+": "+err.Error())
	})
	t.Cleanup(func() { SetReporter(nil) })
	return &got
}

func TestNormalize_Variants(t *testing.T) {
	tests := []struct {
		name string
		post Post
		want time.Time
	}{
		{
			name: "reddit created_utc seconds",
			post: Post{Source: Reddit, ID: "a", Created: UnixSeconds(1700000000)},
			want: time.Unix(1700000000, 0).UTC(),
		},
		{
			name: "twitter numeric created_at",
			post: Post{Source: Twitter, ID: "b", Created: UnixSeconds(1700000123.5)},
			want: time.UnixMilli(1700000123500).UTC(),
		},
		{
			name: "forum iso string",
			post: Post{Source: Forum, ID: "c", Created: ISOTime("2024-03-01T12:30:00Z")},
			want: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name: "forum naive iso string is utc",
			post: Post{Source: Forum, ID: "d", Created: ISOTime("2024-03-01T12:30:00")},
			want: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name: "millisecond timestamp",
			post: Post{Source: Forum, ID: "e", Created: UnixMillis(1700000000123)},
			want: time.UnixMilli(1700000000123).UTC(),
		},
		{
			name: "missing timestamp",
			post: Post{Source: Reddit, ID: "f"},
			want: Epoch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.post)
			if !got.Equal(tt.want) {
				t.Errorf("Normalize = %v, want %v", got, tt.want)
			}
			if again := Normalize(tt.post); !again.Equal(got) {
				t.Errorf("Normalize not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestNormalize_BadISOFallsBackAndReports(t *testing.T) {
	reports := captureReports(t)

	got := Normalize(Post{Source: Forum, ID: "9", Created: ISOTime("yesterday-ish")})
	if !got.Equal(Epoch) {
		t.Errorf("Normalize = %v, want epoch", got)
	}
	if len(*reports) != 1 || !strings.HasPrefix((*reports)[0], "forum-9:") {
		t.Errorf("reports = %v, want one report for forum-9", *reports)
	}
}

func TestNormalizeRaw_FirstMatchWins(t *testing.T) {
	captureReports(t)

	tests := []struct {
		name string
		raw  map[string]any
		want time.Time
	}{
		{
			name: "created_utc beats created_at",
			raw:  map[string]any{"id": "1", "created_utc": 300.0, "created_at": 999.0},
			want: time.Unix(300, 0).UTC(),
		},
		{
			name: "numeric created_at",
			raw:  map[string]any{"id": "2", "created_at": 200.0},
			want: time.Unix(200, 0).UTC(),
		},
		{
			name: "string created_at is iso, not seconds",
			raw:  map[string]any{"id": "3", "created_at": "2025-01-02T03:04:05Z"},
			want: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name: "timestamp used as milliseconds",
			raw:  map[string]any{"id": "4", "timestamp": 5000.0},
			want: time.UnixMilli(5000).UTC(),
		},
		{
			name: "non-numeric timestamp",
			raw:  map[string]any{"id": "5", "timestamp": "soon"},
			want: Epoch,
		},
		{
			name: "bad created_utc does not fall through",
			raw:  map[string]any{"id": "6", "created_utc": "x", "timestamp": 5000.0},
			want: Epoch,
		},
		{
			name: "nothing",
			raw:  map[string]any{"id": "7"},
			want: Epoch,
		},
		{
			name: "numeric string created_utc",
			raw:  map[string]any{"id": "8", "created_utc": "1700000000"},
			want: time.Unix(1700000000, 0).UTC(),
		},
		{
			name: "numeric string timestamp",
			raw:  map[string]any{"id": "9", "timestamp": " 5000 "},
			want: time.UnixMilli(5000).UTC(),
		},
		{
			name: "boolean created_at",
			raw:  map[string]any{"id": "10", "created_at": true},
			want: Epoch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRaw(tt.raw); !got.Equal(tt.want) {
				t.Errorf("NormalizeRaw = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_DoesNotMutate(t *testing.T) {
	p := Post{Source: Reddit, ID: "x", Title: "t", Created: UnixSeconds(10), Score: Int(3)}
	before := p.Clone()
	_ = Normalize(p)
	if diff := cmp.Diff(before, p); diff != "" {
		t.Errorf("post mutated (-before +after):\n%s", diff)
	}
}

func TestDecode_TwitterPayload(t *testing.T) {
	raw := map[string]any{
		"id":              "1234",
		"source":          "twitter",
		"author":          "dev",
		"title":           "Post by @dev",
		"content":         "cursor ide is great",
		"created_at":      1700000000.0,
		"score":           12.0,
		"num_comments":    3.0,
		"retweets":        4.0,
		"classifications": []any{"kudos", "demo"},
	}

	got, err := Decode(raw, Reddit)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := Post{
		Source:          Twitter,
		ID:              "1234",
		Title:           "Post by @dev",
		Content:         "cursor ide is great",
		Author:          "dev",
		Created:         UnixSeconds(1700000000),
		Score:           Int(12),
		NumComments:     Int(3),
		Retweets:        Int(4),
		Classifications: []string{"kudos", "demo"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded post mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_NumericIDAndSelftext(t *testing.T) {
	got, err := Decode(map[string]any{"id": 42.0, "selftext": "body", "created_utc": 1.0}, Reddit)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "42" || got.Content != "body" || got.Key() != "reddit-42" {
		t.Errorf("got id=%q content=%q key=%q", got.ID, got.Content, got.Key())
	}
}

func TestDecode_UnusableTimestampKeepsPost(t *testing.T) {
	reports := captureReports(t)

	tests := []map[string]any{
		{"id": "1", "title": "t", "created_utc": "yesterday"},
		{"id": "2", "title": "t", "created_at": true},
		{"id": "3", "title": "t", "timestamp": []any{1.0}},
	}
	for _, raw := range tests {
		got, err := Decode(raw, Forum)
		if err != nil {
			t.Fatalf("decode %v: %v", raw, err)
		}
		if !Normalize(got).Equal(Epoch) {
			t.Errorf("%s: Normalize = %v, want epoch", got.Key(), Normalize(got))
		}
	}
	if len(*reports) != len(tests) {
		t.Errorf("reports = %v, want %d", *reports, len(tests))
	}
}

func TestPostJSON_UnresolvableTimestampRoundTrips(t *testing.T) {
	captureReports(t)

	in := Post{Source: Forum, ID: "f", Title: "t", Created: Unresolvable{Field: "created_at", Value: true}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Post
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Key() != "forum-f" || !Normalize(out).Equal(Epoch) {
		t.Errorf("round trip = %s at %v", out.Key(), Normalize(out))
	}
}

func TestDecode_RequiresText(t *testing.T) {
	_, err := Decode(map[string]any{"id": "1"}, Forum)
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("err = %v, want ErrNoText", err)
	}
}

func TestPostJSON_KeepsTimestampRepresentation(t *testing.T) {
	in := []Post{
		{Source: Reddit, ID: "r1", Title: "r", Created: UnixSeconds(100), Score: Int(0)},
		{Source: Twitter, ID: "t1", Content: "t", Created: UnixSeconds(200), Likes: Int(5)},
		{Source: Forum, ID: "f1", Title: "f", Created: ISOTime("2024-01-01T00:00:00Z"), RelevanceScore: Float(0.5)},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"created_utc":100`) {
		t.Errorf("reddit post should serialize created_utc: %s", data)
	}

	var out []Post
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
}

func TestEngagementFallbacks(t *testing.T) {
	p := Post{Likes: Int(7), Replies: Int(2)}
	if p.Points() != 7 || p.Comments() != 2 || p.Reposts() != 0 || p.Relevance() != 0 {
		t.Errorf("points=%d comments=%d reposts=%d relevance=%v", p.Points(), p.Comments(), p.Reposts(), p.Relevance())
	}

	// score wins even when zero
	p.Score = Int(0)
	if p.Points() != 0 {
		t.Errorf("points = %d, want 0 from explicit score", p.Points())
	}
}

func TestClone_IsDeep(t *testing.T) {
	p := Post{Score: Int(1), Classifications: []string{"bug_issue"}}
	c := p.Clone()
	*c.Score = 99
	c.Classifications[0] = "kudos"
	if *p.Score != 1 || p.Classifications[0] != "bug_issue" {
		t.Errorf("clone shares memory with original: %+v", p)
	}
}
