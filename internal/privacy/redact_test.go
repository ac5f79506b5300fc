package privacy

import (
	"testing"

	"github.com/ppiankov/communitysurf/internal/post"
)

func TestNew_Invalid(t *testing.T) {
	if _, err := New([]string{`[invalid`}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		input    string
		want     string
	}{
		{"single", []string{`(?i)token`}, "My API Token is abc123", "My API [REDACTED] is abc123"},
		{"multiple patterns", []string{`(?i)token`, `(?i)secret`}, "Token and Secret values", "[REDACTED] and [REDACTED] values"},
		{"multiple matches", []string{`(?i)password`}, "password is password", "[REDACTED] is [REDACTED]"},
		{"email", []string{`[\w.+-]+@[\w-]+\.[\w.]+`}, "mail me at dev@example.com", "mail me at [REDACTED]"},
		{"no match", []string{`(?i)token`}, "nothing to redact here", "nothing to redact here"},
		{"no patterns", nil, "should not change", "should not change"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.patterns)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if got := r.Text(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestText_NilRedactor(t *testing.T) {
	var r *Redactor
	if got := r.Text("sk-123"); got != "sk-123" {
		t.Errorf("got %q", got)
	}
}

func TestPosts(t *testing.T) {
	r, _ := New([]string{`sk-[a-z0-9]+`})
	posts := []post.Post{{Source: post.Forum, ID: "1", Title: "leaked sk-abc", Content: "key sk-def here", Author: "sk-bot"}}

	got := r.Posts(posts)
	if got[0].Title != "leaked [REDACTED]" || got[0].Content != "key [REDACTED] here" || got[0].Author != "[REDACTED]" {
		t.Errorf("redacted = %+v", got[0])
	}
	if posts[0].Title != "leaked sk-abc" {
		t.Error("input slice modified")
	}
}
