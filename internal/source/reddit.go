package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/communitysurf/internal/post"
)

const (
	redditBaseURL       = "https://www.reddit.com"
	redditRateLimit     = 1 * time.Second
	redditMaxLimit      = 100
	redditDefaultWindow = "week"
)

// RedditSource fetches posts from public subreddits via Reddit's JSON API.
type RedditSource struct {
	subreddits []string
	client     *http.Client
	baseURL    string
	delay      time.Duration
	log        *slog.Logger
}

// NewReddit creates a Reddit source. At least one subreddit is required.
func NewReddit(subreddits []string, log *slog.Logger) (*RedditSource, error) {
	if len(subreddits) == 0 {
		return nil, errors.New("reddit: at least one subreddit is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedditSource{
		subreddits: subreddits,
		client:     newHTTPClient(),
		baseURL:    redditBaseURL,
		delay:      redditRateLimit,
		log:        log,
	}, nil
}

func (rs *RedditSource) Name() string {
	return SlotReddit
}

// Fetch reads every configured subreddit in turn. A failing subreddit is
// logged and skipped; the call fails only when all of them fail.
func (rs *RedditSource) Fetch(ctx context.Context, params Params) (Batch, error) {
	var (
		posts    []post.Post
		firstErr error
		okCount  int
	)

	for i, sub := range rs.subreddits {
		if i > 0 {
			if err := sleepCtx(ctx, rs.delay); err != nil {
				return Batch{}, err
			}
		}

		items, err := rs.fetchSubreddit(ctx, sub, params)
		if err != nil {
			rs.log.Warn("reddit fetch failed", "subreddit", sub, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		okCount++
		posts = append(posts, items...)
	}

	if okCount == 0 && firstErr != nil {
		return Batch{}, firstErr
	}
	return Batch{Source: SlotReddit, Posts: posts}, nil
}

func (rs *RedditSource) listingURL(subreddit string, params Params) string {
	limit := params.Limit
	if limit <= 0 || limit > redditMaxLimit {
		limit = redditMaxLimit
	}
	sort := redditSort(params.Sort)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")

	path := fmt.Sprintf("/r/%s/%s.json", url.PathEscape(subreddit), sort)
	if query := strings.TrimSpace(params.Query); query != "" {
		path = fmt.Sprintf("/r/%s/search.json", url.PathEscape(subreddit))
		q.Set("q", query)
		q.Set("restrict_sr", "1")
		q.Set("sort", sort)
	}
	if sort == "top" || q.Has("q") {
		t := params.TimeFilter
		if t == "" {
			t = redditDefaultWindow
		}
		q.Set("t", t)
	}
	return rs.baseURL + path + "?" + q.Encode()
}

func (rs *RedditSource) fetchSubreddit(ctx context.Context, subreddit string, params Params) ([]post.Post, error) {
	var listing redditListing
	if err := getJSON(ctx, rs.client, rs.listingURL(subreddit, params), "reddit", &listing); err != nil {
		return nil, fmt.Errorf("r/%s: %w", subreddit, err)
	}
	return postsFromListing(listing, subreddit), nil
}

func redditSort(mode string) string {
	switch mode {
	case "top":
		return "top"
	case "engagement", "hot":
		return "hot"
	}
	return "new"
}

func postsFromListing(listing redditListing, subreddit string) []post.Post {
	var posts []post.Post
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.ID == "" || strings.TrimSpace(p.Title) == "" {
			continue
		}
		sub := p.Subreddit
		if sub == "" {
			sub = subreddit
		}

		posts = append(posts, post.Post{
			Source:      post.Reddit,
			ID:          p.ID,
			Title:       p.Title,
			Content:     strings.TrimSpace(p.Selftext),
			Author:      p.Author,
			URL:         redditBaseURL + p.Permalink,
			Subreddit:   sub,
			Created:     post.UnixSeconds(p.CreatedUTC),
			Score:       post.Int(p.Score),
			NumComments: post.Int(p.NumComments),
		})
	}
	return posts
}

type redditListing struct {
	Data struct {
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Data redditPost `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
