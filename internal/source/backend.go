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

	"github.com/ppiankov/communitysurf/internal/post"
)

const (
	defaultSocialQuery     = "cursor editor"
	defaultRedditWindow    = "week"
	backendForumLimit      = 20
	backendPostsPath       = "/api/posts"
	backendTweetsPath      = "/api/tweets/search"
	backendForumTopicsPath = "/api/cursor-forum/topics"
)

// BackendSource reads one slot from the aggregation backend's JSON API.
type BackendSource struct {
	slot    string
	baseURL string
	client  *http.Client
	log     *slog.Logger
	// DefaultQuery is sent to the social endpoint when params carry none.
	DefaultQuery string
}

// NewBackend creates a backend client for slot ("reddit", "social" or "forum").
func NewBackend(baseURL, slot string, log *slog.Logger) (*BackendSource, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend: base URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL: %w", err)
	}
	switch slot {
	case SlotReddit, SlotSocial, SlotForum:
	default:
		return nil, fmt.Errorf("backend: unknown slot %q", slot)
	}
	if log == nil {
		log = slog.Default()
	}
	return &BackendSource{
		slot:         slot,
		baseURL:      baseURL,
		client:       newHTTPClient(),
		log:          log,
		DefaultQuery: defaultSocialQuery,
	}, nil
}

func (bs *BackendSource) Name() string {
	return bs.slot
}

func (bs *BackendSource) Fetch(ctx context.Context, params Params) (Batch, error) {
	var resp backendResponse
	if err := getJSON(ctx, bs.client, bs.endpoint(params), bs.slot, &resp); err != nil {
		return Batch{}, err
	}
	if resp.Error != "" && len(resp.Posts) == 0 {
		return Batch{}, &ParseError{Source: bs.slot, Err: errors.New(resp.Error)}
	}

	fallback := slotSource(bs.slot)
	posts := make([]post.Post, 0, len(resp.Posts))
	for _, raw := range resp.Posts {
		p, err := post.Decode(raw, fallback)
		if err != nil {
			bs.log.Debug("skip backend item", "slot", bs.slot, "error", err)
			continue
		}
		posts = append(posts, p)
	}

	return Batch{
		Source:    bs.slot,
		Posts:     posts,
		FromCache: resp.Metadata.FromCache,
	}, nil
}

func (bs *BackendSource) endpoint(params Params) string {
	q := url.Values{}
	q.Set("sort", upstreamSort(params.Sort))
	query := strings.TrimSpace(params.Query)

	var path string
	switch bs.slot {
	case SlotReddit:
		path = backendPostsPath
		if query != "" {
			q.Set("search", query)
		}
		window := params.TimeFilter
		if window == "" {
			window = defaultRedditWindow
		}
		q.Set("t", window)
	case SlotSocial:
		path = backendTweetsPath
		if query == "" {
			query = bs.DefaultQuery
		}
		q.Set("query", query)
	case SlotForum:
		path = backendForumTopicsPath
		limit := params.Limit
		if limit <= 0 {
			limit = backendForumLimit
		}
		q.Set("limit", strconv.Itoa(limit))
		if query != "" {
			q.Set("search", query)
		}
	}
	if params.Refresh {
		q.Set("refresh", "true")
	}
	return bs.baseURL + path + "?" + q.Encode()
}

func slotSource(slot string) post.Source {
	switch slot {
	case SlotSocial:
		return post.Twitter
	case SlotForum:
		return post.Forum
	}
	return post.Reddit
}

type backendResponse struct {
	Posts    []map[string]any `json:"posts"`
	Error    string           `json:"error"`
	Metadata struct {
		FromCache bool `json:"from_cache"`
	} `json:"metadata"`
}
