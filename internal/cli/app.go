package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/communitysurf/internal/cache"
	"github.com/ppiankov/communitysurf/internal/classify"
	"github.com/ppiankov/communitysurf/internal/config"
	"github.com/ppiankov/communitysurf/internal/feed"
	"github.com/ppiankov/communitysurf/internal/fetch"
	"github.com/ppiankov/communitysurf/internal/filter"
	"github.com/ppiankov/communitysurf/internal/privacy"
	"github.com/ppiankov/communitysurf/internal/rank"
	"github.com/ppiankov/communitysurf/internal/source"
	"github.com/ppiankov/communitysurf/internal/store"
)

// cacheSnapshot names the cache row in the SQLite store.
const cacheSnapshot = "results"

// app is everything a command needs, wired from config.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *store.Store
	cache *cache.Cache[source.Batch]
	feed  *feed.Service
	coord *fetch.Coordinator
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return cfg, newLogger(os.Stderr, level), nil
}

// openApp loads config and builds the store, cache, feed service and
// fetch coordinator. Callers must call close.
func openApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: db}

	if err := a.build(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Storage.RetainDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Storage.RetainDays)
		if n, err := a.db.PruneCompleted(ctx, cutoff); err != nil {
			return fmt.Errorf("prune completed: %w", err)
		} else if n > 0 {
			a.log.Info("pruned completed posts", "count", n, "older_than_days", cfg.Storage.RetainDays)
		}
	}

	rc, err := a.buildCache()
	if err != nil {
		return err
	}
	a.cache = rc

	feedOpts := []feed.Option{
		feed.WithLogger(a.log),
		feed.WithWeights(rankWeights(cfg.Ranking)),
		feed.WithCompletedStore(a.db),
		feed.WithBaseParams(baseParams(cfg.Sources)),
		feed.WithSort(rank.ParseMode(cfg.Feed.Sort)),
	}
	if len(cfg.Competitors) > 0 {
		feedOpts = append(feedOpts, feed.WithCatalog(filter.Catalog(cfg.Competitors)))
	}
	a.feed = feed.New(feedOpts...)
	if err := a.feed.LoadCompleted(ctx); err != nil {
		return err
	}

	enricher, err := a.buildEnricher()
	if err != nil {
		return err
	}
	adapters, err := buildAdapters(cfg.Sources, a.log)
	if err != nil {
		return err
	}

	a.coord, err = fetch.New(adapters,
		fetch.WithConfig(fetchConfig(cfg.Refresh)),
		fetch.WithLogger(a.log),
		fetch.WithCache(a.cache),
		fetch.WithParams(a.feed.Params),
		fetch.WithEnrich(enricher.Batch),
		fetch.WithOnBatch(a.feed.Ingest),
	)
	if err != nil {
		return fmt.Errorf("create coordinator: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.coord != nil {
		a.coord.Close()
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
}

func (a *app) buildCache() (*cache.Cache[source.Batch], error) {
	opts := []cache.Option{
		cache.WithTTL(a.cfg.Cache.TTL.Duration),
		cache.WithLogger(a.log),
	}
	switch a.cfg.Cache.Store {
	case "sqlite":
		sn, err := a.db.Snapshot(cacheSnapshot)
		if err != nil {
			return nil, fmt.Errorf("cache snapshot: %w", err)
		}
		opts = append(opts, cache.WithStore(sn))
	case "file":
		f, err := store.NewFile(a.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("cache file: %w", err)
		}
		opts = append(opts, cache.WithStore(f))
	}
	return cache.New(source.Batch.Clone, opts...), nil
}

func (a *app) buildEnricher() (feed.Enricher, error) {
	var e feed.Enricher
	cfg := a.cfg

	if cfg.Privacy.Redact.Enabled && len(cfg.Privacy.Redact.Patterns) > 0 {
		r, err := privacy.New(cfg.Privacy.Redact.Patterns)
		if err != nil {
			return e, fmt.Errorf("compile redact patterns: %w", err)
		}
		e.Redactor = r
	}

	heuristic := &classify.Heuristic{}
	switch cfg.Classify.Mode {
	case "heuristic":
		e.Classifier = heuristic
	case "llm":
		llm := cfg.Classify.LLM
		e.Classifier = classify.NewLLM(llm.APIKey, llm.Model, llm.Endpoint, llm.MaxTokens, heuristic, a.log)
	}

	profile, err := config.LoadRelevanceIn(configDir)
	if err != nil {
		return e, fmt.Errorf("load relevance: %w", err)
	}
	e.Profile = profile
	return e, nil
}

// buildAdapters picks one adapter per slot: direct upstreams where
// configured, otherwise the backend.
func buildAdapters(sc config.SourcesConfig, log *slog.Logger) ([]source.Adapter, error) {
	var out []source.Adapter
	backend := func(slot string) error {
		if sc.Backend.URL == "" {
			return nil
		}
		b, err := source.NewBackend(sc.Backend.URL, slot, log)
		if err != nil {
			return fmt.Errorf("create %s backend source: %w", slot, err)
		}
		out = append(out, b)
		return nil
	}

	if len(sc.Reddit.Subreddits) > 0 {
		rd, err := source.NewReddit(sc.Reddit.Subreddits, log)
		if err != nil {
			return nil, fmt.Errorf("create reddit source: %w", err)
		}
		out = append(out, rd)
	} else if err := backend(source.SlotReddit); err != nil {
		return nil, err
	}

	if err := backend(source.SlotSocial); err != nil {
		return nil, err
	}

	switch {
	case sc.Forum.Discourse != "":
		ds, err := source.NewDiscourse(sc.Forum.Discourse, sc.Forum.WithContent, log)
		if err != nil {
			return nil, fmt.Errorf("create discourse source: %w", err)
		}
		out = append(out, ds)
	case len(sc.Forum.Feeds) > 0:
		rs, err := source.NewRSS(sc.Forum.Feeds, log)
		if err != nil {
			return nil, fmt.Errorf("create rss source: %w", err)
		}
		out = append(out, rs)
	default:
		if err := backend(source.SlotForum); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func baseParams(sc config.SourcesConfig) map[string]source.Params {
	return map[string]source.Params{
		source.SlotReddit: {TimeFilter: sc.Reddit.TimeFilter, Limit: sc.Reddit.Limit},
		source.SlotSocial: {Query: sc.Social.Query, Limit: sc.Social.Limit},
		source.SlotForum:  {Limit: sc.Forum.Limit},
	}
}

func fetchConfig(rc config.RefreshConfig) fetch.Config {
	return fetch.Config{
		MinInterval:        rc.MinInterval.Duration,
		SequenceDelay:      rc.SequenceDelay.Duration,
		MinRefreshInterval: rc.ManualThrottle.Duration,
		RefreshInterval:    rc.Interval.Duration,
		VisibilityDelay:    rc.VisibilityDelay.Duration,
		VisibilityStale:    rc.VisibilityStale.Duration,
		Timeout:            rc.Timeout.Duration,
	}
}

func rankWeights(rc config.RankingConfig) rank.Weights {
	return rank.Weights{
		Day:       rc.Day.Duration,
		ThreeDays: rc.ThreeDays.Duration,
		Week:      rc.Week.Duration,
		Comment:   rc.CommentWeight,
		Retweet:   rc.RetweetWeight,
	}
}
