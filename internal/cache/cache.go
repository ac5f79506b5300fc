// Package cache holds recently fetched batches in memory with a fixed TTL and
// mirrors them into a durable side-store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/communitysurf/internal/clock"
)

// DefaultTTL is how long an entry stays fresh.
const DefaultTTL = 120 * time.Second

// ErrNotFound is returned by a Store that holds no snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Store persists the serialized cache map. Load returns ErrNotFound (or
// nil data) when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
}

// StoreError wraps a side-store failure. The cache logs and swallows it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

type entry[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"` // unix ms
}

// Cache is a TTL map keyed by source and query parameters. Values are
// copied on the way in and on the way out, so callers never share a
// cached snapshot.
type Cache[T any] struct {
	mu       sync.Mutex
	entries  map[string]entry[T]
	hydrated bool

	ttl   time.Duration
	clone func(T) T
	store Store
	clock clock.Clock
	log   *slog.Logger
}

// Option configures a Cache.
type Option func(*settings)

type settings struct {
	ttl   time.Duration
	store Store
	clock clock.Clock
	log   *slog.Logger
}

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithStore attaches a durable side-store.
func WithStore(st Store) Option {
	return func(s *settings) { s.store = st }
}

// WithClock replaces the wall clock used to age entries.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithLogger sets the logger for side-store failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// New returns an empty cache. clone must return a deep copy of its
// argument; a nil clone stores values as given.
func New[T any](clone func(T) T, opts ...Option) *Cache[T] {
	s := settings{ttl: DefaultTTL, clock: clock.Real{}, log: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     s.ttl,
		clone:   clone,
		store:   s.store,
		clock:   s.clock,
		log:     s.log,
	}
}

// TTL reports the freshness window.
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// Set stores a copy of value under key and persists the whole map.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	c.mu.Lock()
	c.hydrateLocked(ctx)
	c.entries[key] = entry[T]{Data: c.clone(value), Timestamp: c.clock.Now().UnixMilli()}
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()

	if err != nil {
		c.warn(&StoreError{Op: "encode", Err: err})
		return
	}
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, data); err != nil {
		c.warn(&StoreError{Op: "save", Err: err})
	}
}

// Get returns a copy of the value stored under key. Entries older than the
// TTL are dropped and reported absent.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	c.hydrateLocked(ctx)

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		return zero, false
	}
	return c.clone(e.Data), true
}

func (c *Cache[T]) expired(e entry[T]) bool {
	return c.clock.Now().Sub(time.UnixMilli(e.Timestamp)) > c.ttl
}

// Clear drops every entry and removes the persisted snapshot.
func (c *Cache[T]) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.hydrated = true
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Remove(ctx); err != nil && !errors.Is(err, ErrNotFound) {
		c.warn(&StoreError{Op: "remove", Err: err})
	}
}

// Len reports the number of entries held in memory, fresh or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// hydrateLocked loads the persisted snapshot once, the first time the cache
// is used. Entries already past the TTL are not loaded, so an evicted entry
// never comes back from the snapshot.
func (c *Cache[T]) hydrateLocked(ctx context.Context) {
	if c.hydrated || c.store == nil {
		return
	}
	c.hydrated = true

	data, err := c.store.Load(ctx)
	if errors.Is(err, ErrNotFound) || (err == nil && len(data) == 0) {
		return
	}
	if err != nil {
		c.warn(&StoreError{Op: "load", Err: err})
		return
	}
	loaded := make(map[string]entry[T])
	if err := json.Unmarshal(data, &loaded); err != nil {
		c.warn(&StoreError{Op: "decode", Err: err})
		return
	}
	for k, e := range loaded {
		if _, ok := c.entries[k]; ok || c.expired(e) {
			continue
		}
		c.entries[k] = e
	}
}

func (c *Cache[T]) warn(err error) {
	c.log.Warn("cache side-store failed", "error", err)
}

// Key builds a cache key from a source name and its query parameters.
// Parameters are sorted and empty values dropped, so equivalent queries
// share one key.
func Key(source string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k, v := range params {
		if strings.TrimSpace(v) == "" {
			continue
		}
		names = append(names, k)
	}
	if len(names) == 0 {
		return source
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(source)
	b.WriteByte('?')
	for i, k := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(strings.TrimSpace(params[k])))
	}
	return b.String()
}
