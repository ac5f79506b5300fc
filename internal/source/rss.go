package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/communitysurf/internal/post"
)

const (
	rssMaxWorkers  = 4
	rssMaxRetries  = 3
	rssDomainDelay = 3 * time.Second
)

// RSSSource reads forum topics from RSS/Atom feeds, typically a Discourse
// forum's latest.rss and per-category feeds.
type RSSSource struct {
	feeds  []string
	client *http.Client
	log    *slog.Logger
	// sleep is the backoff and same-domain spacing wait.
	sleep func(context.Context, time.Duration) error
}

// NewRSS creates an RSS/Atom forum source. At least one feed URL is required.
func NewRSS(feeds []string, log *slog.Logger) (*RSSSource, error) {
	if len(feeds) == 0 {
		return nil, errors.New("rss: at least one feed URL is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RSSSource{
		feeds: feeds,
		client: &http.Client{
			Timeout:   fetchTimeout,
			Transport: &rssTransport{base: http.DefaultTransport},
		},
		log:   log,
		sleep: sleepCtx,
	}, nil
}

func (rs *RSSSource) Name() string {
	return SlotForum
}

func (rs *RSSSource) Fetch(ctx context.Context, params Params) (Batch, error) {
	type result struct {
		posts []post.Post
		err   error
		url   string
	}

	// Same-domain feeds are serialized; distinct domains run in parallel.
	domainFeeds := make(map[string][]string)
	for _, feedURL := range rs.feeds {
		d := feedDomain(feedURL)
		domainFeeds[d] = append(domainFeeds[d], feedURL)
	}

	results := make(chan result, len(rs.feeds))
	domainJobs := make(chan []string, len(domainFeeds))

	workers := min(rssMaxWorkers, len(domainFeeds))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feeds := range domainJobs {
				for i, feedURL := range feeds {
					if i > 0 {
						if err := rs.sleep(ctx, rssDomainDelay); err != nil {
							results <- result{err: err, url: feedURL}
							continue
						}
					}
					items, err := rs.fetchWithRetry(ctx, feedURL)
					results <- result{posts: items, err: err, url: feedURL}
				}
			}
		}()
	}

	for _, feeds := range domainFeeds {
		domainJobs <- feeds
	}
	close(domainJobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		posts    []post.Post
		firstErr error
		okCount  int
	)
	seen := make(map[string]bool)
	for r := range results {
		if r.err != nil {
			rs.log.Warn("rss fetch failed", "feed", r.url, "error", r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		okCount++
		for _, p := range r.posts {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			posts = append(posts, p)
		}
	}

	if okCount == 0 && firstErr != nil {
		return Batch{}, firstErr
	}

	if q := strings.ToLower(strings.TrimSpace(params.Query)); q != "" {
		kept := posts[:0]
		for _, p := range posts {
			if strings.Contains(strings.ToLower(p.Title+" "+p.Content), q) {
				kept = append(kept, p)
			}
		}
		posts = kept
	}
	if params.Limit > 0 && len(posts) > params.Limit {
		posts = posts[:params.Limit]
	}

	return Batch{Source: SlotForum, Posts: posts}, nil
}

// feedDomain extracts the host from a feed URL for rate limiting grouping.
func feedDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Host
}

// rssTransport injects a User-Agent header into every request.
type rssTransport struct {
	base http.RoundTripper
}

func (t *rssTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(req)
}

func (rs *RSSSource) fetchWithRetry(ctx context.Context, feedURL string) ([]post.Post, error) {
	var lastErr error
	for attempt := range rssMaxRetries {
		posts, err := rs.fetchFeed(ctx, feedURL)
		if err == nil {
			return posts, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
		lastErr = err
		if attempt < rssMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second // 1s, 2s, 4s
			if err := rs.sleep(ctx, backoff); err != nil {
				return nil, asNetworkError(feedURL, err)
			}
		}
	}
	return nil, lastErr
}

func isRetryableError(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 500
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func (rs *RSSSource) fetchFeed(ctx context.Context, feedURL string) ([]post.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = rs.client
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		switch {
		case errors.As(err, &httpErr):
			return nil, &HTTPStatusError{URL: feedURL, Status: httpErr.StatusCode}
		case errors.Is(err, gofeed.ErrFeedTypeNotDetected):
			return nil, &ParseError{Source: "forum", Err: err}
		case ctx.Err() != nil:
			return nil, &NetworkError{URL: feedURL, Err: ctx.Err()}
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, &NetworkError{URL: feedURL, Err: err}
		}
		return nil, &ParseError{Source: "forum", Err: fmt.Errorf("%s: %w", feedURL, err)}
	}

	return postsFromFeed(feed), nil
}

func postsFromFeed(feed *gofeed.Feed) []post.Post {
	var posts []post.Post
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		content := itemText(item)
		if title == "" && content == "" {
			continue
		}

		p := post.Post{
			Source:  post.Forum,
			ID:      itemID(item),
			Title:   title,
			Content: content,
			URL:     item.Link,
		}
		if item.Author != nil {
			p.Author = item.Author.Name
		} else if len(item.Authors) > 0 && item.Authors[0] != nil {
			p.Author = item.Authors[0].Name
		}
		if at := itemPublishedTime(item); !at.IsZero() {
			p.Created = post.ISOTime(at.UTC().Format(time.RFC3339))
		}
		posts = append(posts, p)
	}
	return posts
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// itemID prefers the topic number from a Discourse link (/t/slug/123) so
// RSS and JSON adapters agree on keys; otherwise it hashes GUID or link.
func itemID(item *gofeed.Item) string {
	if id := discourseTopicID(item.Link); id != "" {
		return id
	}
	ref := item.GUID
	if ref == "" {
		ref = item.Link
	}
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:8])
}

func discourseTopicID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "t" {
		return ""
	}
	id := parts[2]
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}

func itemText(item *gofeed.Item) string {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	return stripHTML(raw)
}
