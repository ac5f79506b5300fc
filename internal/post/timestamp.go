package post

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

// Timestamp is the platform-native representation of a post's creation
// time. Each variant declares its own unit so an ISO string can never be
// mistaken for epoch seconds.
type Timestamp interface {
	instant() (time.Time, error)
}

// UnixSeconds is seconds since the epoch (Reddit created_utc, Twitter created_at).
type UnixSeconds float64

// UnixMillis is milliseconds since the epoch (generic timestamp field).
type UnixMillis float64

// ISOTime is an ISO-8601 date string (forum created_at).
type ISOTime string

// Unresolvable is a timestamp field whose value has an unusable type or
// format. It resolves to Epoch.
type Unresolvable struct {
	Field string
	Value any
}

// Epoch is the fallback instant for posts without a usable timestamp. It
// sorts last under newest-first ordering.
var Epoch = time.UnixMilli(0).UTC()

func (s UnixSeconds) instant() (time.Time, error) {
	return fromMillis(float64(s) * 1000)
}

func (m UnixMillis) instant() (time.Time, error) {
	return fromMillis(float64(m))
}

func (s ISOTime) instant() (time.Time, error) {
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		return Epoch, fmt.Errorf("empty date string")
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return Epoch, fmt.Errorf("unrecognized date %q", raw)
}

// The original backend emits naive UTC timestamps without a zone suffix.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func (u Unresolvable) instant() (time.Time, error) {
	return Epoch, fmt.Errorf("%s: unusable value %v (%T)", u.Field, u.Value, u.Value)
}

func fromMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return Epoch, fmt.Errorf("non-finite timestamp %v", ms)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// Reporter receives timestamps that could not be resolved.
type Reporter func(key string, err error)

var reporter atomic.Pointer[Reporter]

// SetReporter replaces the observer notified about unresolvable timestamps.
// A nil reporter restores the default slog warning.
func SetReporter(r Reporter) {
	if r == nil {
		reporter.Store(nil)
		return
	}
	reporter.Store(&r)
}

func report(key string, err error) {
	if r := reporter.Load(); r != nil {
		(*r)(key, err)
		return
	}
	slog.Warn("normalize date", "post", key, "error", err)
}

// Normalize returns the canonical instant for p. It never fails: a missing
// or malformed timestamp yields Epoch and is reported.
func Normalize(p Post) time.Time {
	if p.Created == nil {
		return Epoch
	}
	t, err := p.Created.instant()
	if err != nil {
		report(p.Key(), err)
		return Epoch
	}
	return t
}

// NormalizeRaw resolves the canonical instant straight from a loosely typed
// upstream object, applying the same first-match rules as Decode.
func NormalizeRaw(raw map[string]any) time.Time {
	return Normalize(Post{ID: rawKey(raw), Created: timestampFromRaw(raw)})
}
