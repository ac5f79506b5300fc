// Package feed holds the fetched batches and the reader's feed state and
// derives the filtered, ranked view from them.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/communitysurf/internal/clock"
	"github.com/ppiankov/communitysurf/internal/filter"
	"github.com/ppiankov/communitysurf/internal/post"
	"github.com/ppiankov/communitysurf/internal/rank"
	"github.com/ppiankov/communitysurf/internal/source"
)

// CompletedStore persists the completed set. *store.Store implements it.
type CompletedStore interface {
	MarkCompleted(ctx context.Context, key string, at time.Time) error
	UnmarkCompleted(ctx context.Context, key string) (bool, error)
	Completed(ctx context.Context) (map[string]bool, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for ranking and completion times.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithWeights overrides rank.DefaultWeights for the hot ranking.
func WithWeights(w rank.Weights) Option {
	return func(s *Service) { s.weights = w }
}

// WithCatalog replaces filter.DefaultCatalog.
func WithCatalog(c filter.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithCompletedStore persists completions through cs.
func WithCompletedStore(cs CompletedStore) Option {
	return func(s *Service) { s.store = cs }
}

// WithBaseParams sets the per-slot fetch defaults (query, time filter,
// limit) that Params merges the current sort into.
func WithBaseParams(base map[string]source.Params) Option {
	return func(s *Service) { s.base = base }
}

// WithSort sets the initial sort mode.
func WithSort(m rank.Mode) Option {
	return func(s *Service) { s.sort = m }
}

// Service is safe for concurrent use. The coordinator delivers batches
// through Ingest while readers call View.
type Service struct {
	clock   clock.Clock
	log     *slog.Logger
	weights rank.Weights
	catalog filter.Catalog
	store   CompletedStore
	base    map[string]source.Params

	mu        sync.RWMutex
	batches   map[string]source.Batch
	completed map[string]bool
	sort      rank.Mode
	filters   filter.Options
}

func New(opts ...Option) *Service {
	s := &Service{
		clock:     clock.Real{},
		log:       slog.Default(),
		weights:   rank.DefaultWeights(),
		catalog:   filter.DefaultCatalog(),
		batches:   make(map[string]source.Batch),
		completed: make(map[string]bool),
		sort:      rank.Hot,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadCompleted replaces the in-memory completed set with the stored one.
func (s *Service) LoadCompleted(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	done, err := s.store.Completed(ctx)
	if err != nil {
		return fmt.Errorf("load completed: %w", err)
	}
	s.mu.Lock()
	s.completed = done
	s.mu.Unlock()
	return nil
}

// Ingest replaces the slot's batch. It is the coordinator's batch
// consumer.
func (s *Service) Ingest(b source.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.Source] = b.Clone()
	s.log.Debug("batch ingested", "source", b.Source, "posts", len(b.Posts), "from_cache", b.FromCache)
}

// Params returns the fetch params for slot under the current sort.
func (s *Service) Params(slot string) source.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.base[slot]
	p.Sort = string(s.sort)
	return p
}

func (s *Service) Sort() rank.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sort
}

// SetSort changes the sort mode. Unknown modes become hot.
func (s *Service) SetSort(mode string) rank.Mode {
	m := rank.ParseMode(mode)
	s.mu.Lock()
	s.sort = m
	s.mu.Unlock()
	return m
}

func (s *Service) Filters() filter.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetFilters replaces the active filters. Unknown categories, competitors
// and classifications are rejected.
func (s *Service) SetFilters(f filter.Options) error {
	if err := s.Validate(f); err != nil {
		return err
	}
	f.Catalog = nil
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	return nil
}

// Validate checks f against the service's catalog without applying it.
func (s *Service) Validate(f filter.Options) error {
	if v := strings.TrimSpace(f.Category); v != "" && v != filter.All {
		if _, ok := s.catalog[v]; !ok {
			return fmt.Errorf("unknown category %q", v)
		}
	}
	if v := strings.TrimSpace(f.Competitor); v != "" && s.catalog.Keywords(v) == nil {
		return fmt.Errorf("unknown competitor %q", v)
	}
	if v := strings.TrimSpace(f.Classification); v != "" && v != filter.All && !post.IsClassification(v) {
		return fmt.Errorf("unknown classification %q", v)
	}
	if v := strings.TrimSpace(f.Platform); v != "" && v != filter.All {
		if _, ok := post.ParseSource(v); !ok {
			return fmt.Errorf("unknown platform %q", v)
		}
	}
	return nil
}

// Catalog returns the competitor catalog filters resolve against.
func (s *Service) Catalog() filter.Catalog {
	return s.catalog
}

// MarkCompleted hides the post with key from the feed.
func (s *Service) MarkCompleted(ctx context.Context, key string) error {
	if s.store != nil {
		if err := s.store.MarkCompleted(ctx, key, s.clock.Now()); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.completed[key] = true
	s.mu.Unlock()
	return nil
}

// UnmarkCompleted restores a completed post.
func (s *Service) UnmarkCompleted(ctx context.Context, key string) error {
	if s.store != nil {
		if _, err := s.store.UnmarkCompleted(ctx, key); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.completed, key)
	s.mu.Unlock()
	return nil
}

// View is a derived snapshot of the feed.
type View struct {
	Posts   []post.Post    `json:"posts"`
	Sort    rank.Mode      `json:"sort"`
	Filters filter.Options `json:"-"`
	Total   int            `json:"total"` // posts held before filtering
	Hidden  int            `json:"hidden"`
}

// View filters and ranks the current batches with the current state.
func (s *Service) View() View {
	s.mu.RLock()
	mode, f := s.sort, s.filters
	s.mu.RUnlock()
	return s.Query(mode, f)
}

// Query filters and ranks the current batches with the given state,
// leaving the service's own sort and filters untouched.
func (s *Service) Query(mode rank.Mode, f filter.Options) View {
	s.mu.RLock()
	var all []post.Post
	for _, slot := range []string{source.SlotReddit, source.SlotSocial, source.SlotForum} {
		if b, ok := s.batches[slot]; ok {
			all = append(all, b.Posts...)
		}
	}
	all = post.CloneAll(all)
	completed := make(map[string]bool, len(s.completed))
	for k := range s.completed {
		completed[k] = true
	}
	s.mu.RUnlock()

	f.Catalog = s.catalog
	filtered := filter.Apply(all, completed, f)
	ranked := rank.OrOriginal(s.log, filtered, mode, s.clock.Now(), s.weights)

	f.Catalog = nil
	return View{
		Posts:   ranked,
		Sort:    mode,
		Filters: f,
		Total:   len(all),
		Hidden:  len(all) - len(ranked),
	}
}
