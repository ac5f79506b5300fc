package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoText is returned by Decode when a post has neither title nor content.
var ErrNoText = errors.New("post has neither title nor content")

// Decode builds a Post from a loosely typed upstream JSON object. The
// source tag in raw wins over fallback when it is recognized.
//
// The timestamp is resolved first-match: created_utc, then created_at
// (numeric seconds or an ISO string), then timestamp in ms. An unusable
// value does not fail the decode; the post resolves to Epoch.
func Decode(raw map[string]any, fallback Source) (Post, error) {
	p := fromRaw(raw, fallback)
	if p.ID == "" {
		return Post{}, errors.New("post id is missing")
	}
	if strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Content) == "" {
		return Post{}, fmt.Errorf("post %s: %w", p.Key(), ErrNoText)
	}
	return p, nil
}

func fromRaw(raw map[string]any, fallback Source) Post {
	p := Post{Source: fallback}
	if tag, ok := raw["source"].(string); ok {
		if s, ok := ParseSource(tag); ok {
			p.Source = s
		}
	}

	p.ID = rawKey(raw)
	p.Title = str(raw, "title")
	p.Content = str(raw, "content")
	if p.Content == "" {
		p.Content = str(raw, "selftext")
	}
	p.Author = str(raw, "author")
	p.URL = str(raw, "url")
	p.Subreddit = str(raw, "subreddit")

	p.Created = timestampFromRaw(raw)

	p.Score = intField(raw, "score")
	p.Likes = intField(raw, "likes")
	p.NumComments = intField(raw, "num_comments")
	p.Replies = intField(raw, "replies")
	p.Retweets = intField(raw, "retweets")
	p.Views = intField(raw, "views")
	if v, ok := number(raw["relevance_score"]); ok {
		p.RelevanceScore = &v
	}

	switch cs := raw["classifications"].(type) {
	case []any:
		for _, c := range cs {
			if s, ok := c.(string); ok && s != "" {
				p.Classifications = append(p.Classifications, s)
			}
		}
	case []string:
		p.Classifications = append(p.Classifications, cs...)
	}
	p.PrimaryClassification = str(raw, "primary_classification")

	return p
}

// timestampFromRaw applies the first-match rules without mixing fields: once
// a field is present, a bad value there resolves to Epoch rather than a
// reason to look at the next field. Numeric strings count as numbers.
func timestampFromRaw(raw map[string]any) Timestamp {
	if v, ok := raw["created_utc"]; ok && v != nil {
		n, ok := numeric(v)
		if !ok {
			return Unresolvable{Field: "created_utc", Value: v}
		}
		return UnixSeconds(n)
	}
	if v, ok := raw["created_at"]; ok && v != nil {
		if s, ok := v.(string); ok {
			return ISOTime(s)
		}
		n, ok := number(v)
		if !ok {
			return Unresolvable{Field: "created_at", Value: v}
		}
		return UnixSeconds(n)
	}
	if v, ok := raw["timestamp"]; ok && v != nil {
		n, ok := numeric(v)
		if !ok {
			return Unresolvable{Field: "timestamp", Value: v}
		}
		return UnixMillis(n)
	}
	return nil
}

func rawKey(raw map[string]any) string {
	switch v := raw["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func str(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// numeric is number plus decimal strings such as "1700000000".
func numeric(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return number(v)
}

func intField(raw map[string]any, key string) *int {
	n, ok := number(raw[key])
	if !ok {
		return nil
	}
	v := int(n)
	return &v
}

// wirePost mirrors the upstream JSON shape so cached batches serialize the
// same way sources deliver them.
type wirePost struct {
	ID                    string   `json:"id"`
	Source                Source   `json:"source"`
	Title                 string   `json:"title,omitempty"`
	Content               string   `json:"content,omitempty"`
	Author                string   `json:"author,omitempty"`
	URL                   string   `json:"url,omitempty"`
	Subreddit             string   `json:"subreddit,omitempty"`
	CreatedUTC            *float64 `json:"created_utc,omitempty"`
	CreatedAt             any      `json:"created_at,omitempty"`
	Timestamp             *float64 `json:"timestamp,omitempty"`
	Score                 *int     `json:"score,omitempty"`
	Likes                 *int     `json:"likes,omitempty"`
	NumComments           *int     `json:"num_comments,omitempty"`
	Replies               *int     `json:"replies,omitempty"`
	Retweets              *int     `json:"retweets,omitempty"`
	Views                 *int     `json:"views,omitempty"`
	RelevanceScore        *float64 `json:"relevance_score,omitempty"`
	Classifications       []string `json:"classifications,omitempty"`
	PrimaryClassification string   `json:"primary_classification,omitempty"`
}

// MarshalJSON writes the post in its source's native field layout.
func (p Post) MarshalJSON() ([]byte, error) {
	w := wirePost{
		ID:                    p.ID,
		Source:                p.Source,
		Title:                 p.Title,
		Content:               p.Content,
		Author:                p.Author,
		URL:                   p.URL,
		Subreddit:             p.Subreddit,
		Score:                 p.Score,
		Likes:                 p.Likes,
		NumComments:           p.NumComments,
		Replies:               p.Replies,
		Retweets:              p.Retweets,
		Views:                 p.Views,
		RelevanceScore:        p.RelevanceScore,
		Classifications:       p.Classifications,
		PrimaryClassification: p.PrimaryClassification,
	}
	switch ts := p.Created.(type) {
	case UnixSeconds:
		v := float64(ts)
		if p.Source == Reddit {
			w.CreatedUTC = &v
		} else {
			w.CreatedAt = v
		}
	case UnixMillis:
		v := float64(ts)
		w.Timestamp = &v
	case ISOTime:
		w.CreatedAt = string(ts)
	case Unresolvable:
		// written without a timestamp so it reads back as Epoch
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts any upstream layout understood by Decode.
func (p *Post) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = fromRaw(raw, "")
	return nil
}
