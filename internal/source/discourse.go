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

const discourseDefaultLimit = 20

// DiscourseSource reads topics from a Discourse forum's public JSON API.
// When WithContent is set, each topic's first post is fetched and its
// cooked HTML reduced to text.
type DiscourseSource struct {
	baseURL     string
	client      *http.Client
	withContent bool
	log         *slog.Logger
}

// NewDiscourse creates a forum source rooted at baseURL.
func NewDiscourse(baseURL string, withContent bool, log *slog.Logger) (*DiscourseSource, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("discourse: base URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("discourse: invalid base URL: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &DiscourseSource{
		baseURL:     baseURL,
		client:      newHTTPClient(),
		withContent: withContent,
		log:         log,
	}, nil
}

func (ds *DiscourseSource) Name() string {
	return SlotForum
}

func (ds *DiscourseSource) Fetch(ctx context.Context, params Params) (Batch, error) {
	var list discourseTopicList
	if err := getJSON(ctx, ds.client, ds.listURL(params), "forum", &list); err != nil {
		return Batch{}, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = discourseDefaultLimit
	}

	query := strings.ToLower(strings.TrimSpace(params.Query))
	posts := make([]post.Post, 0, min(limit, len(list.TopicList.Topics)))
	for _, topic := range list.TopicList.Topics {
		if len(posts) >= limit {
			break
		}
		if topic.ID == 0 || strings.TrimSpace(topic.Title) == "" {
			continue
		}

		p := ds.topicPost(topic)
		if ds.withContent {
			content, err := ds.firstPost(ctx, topic.ID)
			if err != nil {
				if ctx.Err() != nil {
					return Batch{}, asNetworkError(ds.baseURL, ctx.Err())
				}
				ds.log.Warn("discourse topic content", "topic", topic.ID, "error", err)
			} else if content != "" {
				p.Content = content
			}
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Content), query) {
			continue
		}
		posts = append(posts, p)
	}

	return Batch{Source: SlotForum, Posts: posts}, nil
}

func (ds *DiscourseSource) listURL(params Params) string {
	path := "/latest.json"
	switch upstreamSort(params.Sort) {
	case "top":
		path = "/top.json"
	case "hot":
		path = "/hot.json"
	}
	return ds.baseURL + path
}

func (ds *DiscourseSource) topicPost(t discourseTopic) post.Post {
	id := strconv.FormatInt(t.ID, 10)
	replies := max(t.PostsCount-1, 0)

	author := t.LastPosterUsername
	if len(t.Posters) > 0 && t.Posters[0].Username != "" {
		author = t.Posters[0].Username
	}

	p := post.Post{
		Source:  post.Forum,
		ID:      id,
		Title:   t.Title,
		Content: stripHTML(t.Excerpt),
		Author:  author,
		URL:     fmt.Sprintf("%s/t/%s/%d", ds.baseURL, t.Slug, t.ID),
		Likes:   post.Int(t.LikeCount),
		Replies: post.Int(replies),
		Views:   post.Int(t.Views),
	}
	if t.CreatedAt != "" {
		p.Created = post.ISOTime(t.CreatedAt)
	}
	return p
}

func (ds *DiscourseSource) firstPost(ctx context.Context, topicID int64) (string, error) {
	var detail discourseTopicDetail
	u := fmt.Sprintf("%s/t/%d.json", ds.baseURL, topicID)
	if err := getJSON(ctx, ds.client, u, "forum", &detail); err != nil {
		return "", err
	}
	if len(detail.PostStream.Posts) == 0 {
		return "", nil
	}
	return stripHTML(detail.PostStream.Posts[0].Cooked), nil
}

type discourseTopicList struct {
	TopicList struct {
		Topics []discourseTopic `json:"topics"`
	} `json:"topic_list"`
}

type discourseTopic struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	Slug               string `json:"slug"`
	Excerpt            string `json:"excerpt"`
	CreatedAt          string `json:"created_at"`
	PostsCount         int    `json:"posts_count"`
	LikeCount          int    `json:"like_count"`
	Views              int    `json:"views"`
	LastPosterUsername string `json:"last_poster_username"`
	Posters            []struct {
		Username string `json:"username"`
	} `json:"posters"`
}

type discourseTopicDetail struct {
	PostStream struct {
		Posts []struct {
			Cooked string `json:"cooked"`
		} `json:"posts"`
	} `json:"post_stream"`
}
