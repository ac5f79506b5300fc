package render

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ppiankov/communitysurf/internal/fetch"
	"github.com/ppiankov/communitysurf/internal/post"
	"github.com/ppiankov/communitysurf/internal/rank"
)

type jsonFeed struct {
	Meta    jsonMeta       `json:"meta"`
	Sources []fetch.Status `json:"sources"`
	Posts   []jsonPost     `json:"posts"`
}

type jsonMeta struct {
	Sort        rank.Mode `json:"sort"`
	Total       int       `json:"total"`
	Hidden      int       `json:"hidden"`
	Shown       int       `json:"shown"`
	GeneratedAt string    `json:"generated_at"`
}

// jsonPost adds the display key and canonical time to the post's own
// fields.
type jsonPost struct {
	post.Post
	CreatedAt string `json:"created_at_canonical"`
}

func (p jsonPost) MarshalJSON() ([]byte, error) {
	raw, err := p.Post.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["key"], _ = json.Marshal(p.Key())
	fields["created_at_canonical"], _ = json.Marshal(p.CreatedAt)
	return json.Marshal(fields)
}

// JSONFormatter formats a feed as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(w io.Writer, in Input) error {
	n := in.posts()
	out := jsonFeed{
		Meta: jsonMeta{
			Sort:        in.View.Sort,
			Total:       in.View.Total,
			Hidden:      in.View.Hidden,
			Shown:       n,
			GeneratedAt: in.Now.UTC().Format(time.RFC3339),
		},
		Sources: in.Statuses,
		Posts:   make([]jsonPost, 0, n),
	}
	if out.Sources == nil {
		out.Sources = []fetch.Status{}
	}
	for _, p := range in.View.Posts[:n] {
		out.Posts = append(out.Posts, jsonPost{Post: p, CreatedAt: post.Normalize(p).UTC().Format(time.RFC3339)})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
