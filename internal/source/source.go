package source

import (
	"context"
	"strconv"
	"time"

	"github.com/ppiankov/communitysurf/internal/post"
)

// Slot names used by the fetch sequence.
const (
	SlotReddit = "reddit"
	SlotSocial = "social"
	SlotForum  = "forum"
)

// Params narrows a fetch. Empty fields fall back to adapter defaults.
type Params struct {
	Sort       string // new, top, engagement, hot
	Query      string // free-text search forwarded upstream
	TimeFilter string // day, week, month, year, all
	Limit      int
	Refresh    bool // ask upstream to bypass its own cache
}

// Values returns the params as a flat map, suitable for cache.Key.
func (p Params) Values() map[string]string {
	v := map[string]string{
		"sort":  p.Sort,
		"query": p.Query,
		"t":     p.TimeFilter,
	}
	if p.Limit > 0 {
		v["limit"] = strconv.Itoa(p.Limit)
	}
	return v
}

// Batch is one adapter's result for a single fetch.
type Batch struct {
	Source    string      `json:"source"`
	Posts     []post.Post `json:"posts"`
	FromCache bool        `json:"from_cache"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Clone returns a deep copy of b.
func (b Batch) Clone() Batch {
	b.Posts = post.CloneAll(b.Posts)
	return b
}

// Adapter fetches one source slot.
type Adapter interface {
	// Name returns the slot name ("reddit", "social" or "forum").
	Name() string

	// Fetch returns the current batch for params.
	Fetch(ctx context.Context, params Params) (Batch, error)
}

// upstreamSort maps a feed sort mode onto the sort names upstream APIs
// understand.
func upstreamSort(mode string) string {
	switch mode {
	case "top":
		return "top"
	case "engagement":
		return "hot"
	}
	return "new"
}
