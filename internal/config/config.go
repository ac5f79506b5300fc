package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile    = "config.yaml"
	DefaultRelevanceFile = "relevance.yaml"
	DefaultStoragePath   = ".communitysurf/communitysurf.db"
	DefaultCacheFile     = ".communitysurf/cache.json"
	DefaultRetainDays    = 30
	DefaultCacheTTL      = 120 * time.Second
	DefaultCacheStore    = "sqlite"
	DefaultClassifyMode  = "heuristic"
	DefaultSort          = "hot"
	DefaultFeedLimit     = 50
	DefaultServerAddr    = "127.0.0.1:8080"
	DefaultLogLevel      = "info"
	DefaultLLMModel      = "gpt-4.1-mini"
	DefaultLLMMaxTokens  = 50
)

// Fetch timing defaults.
const (
	DefaultMinInterval     = 500 * time.Millisecond
	DefaultSequenceDelay   = 500 * time.Millisecond
	DefaultManualThrottle  = 30 * time.Second
	DefaultRefreshInterval = 15 * time.Minute
	DefaultVisibilityDelay = time.Second
	DefaultVisibilityStale = time.Minute
	DefaultFetchTimeout    = 30 * time.Second
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "15m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Sources     SourcesConfig                  `yaml:"sources"`
	Storage     StorageConfig                  `yaml:"storage"`
	Cache       CacheConfig                    `yaml:"cache"`
	Refresh     RefreshConfig                  `yaml:"refresh"`
	Ranking     RankingConfig                  `yaml:"ranking"`
	Feed        FeedConfig                     `yaml:"feed"`
	Competitors map[string]map[string][]string `yaml:"competitors"` // replaces the built-in catalog when set
	Classify    ClassifyConfig                 `yaml:"classify"`
	Privacy     PrivacyConfig                  `yaml:"privacy"`
	Server      ServerConfig                   `yaml:"server"`
	LogLevel    string                         `yaml:"log_level"`
}

type SourcesConfig struct {
	Backend BackendConfig `yaml:"backend"`
	Reddit  RedditConfig  `yaml:"reddit"`
	Social  SocialConfig  `yaml:"social"`
	Forum   ForumConfig   `yaml:"forum"`
}

// BackendConfig points at an aggregator backend serving every slot.
type BackendConfig struct {
	URL string `yaml:"url"`
}

// RedditConfig fetches subreddits directly when set; otherwise reddit
// comes from the backend.
type RedditConfig struct {
	Subreddits []string `yaml:"subreddits"`
	TimeFilter string   `yaml:"time_filter"`
	Limit      int      `yaml:"limit"`
}

type SocialConfig struct {
	Query string `yaml:"query"`
	Limit int    `yaml:"limit"`
}

// ForumConfig prefers a Discourse site, then RSS feeds, then the backend.
type ForumConfig struct {
	Discourse   string   `yaml:"discourse"`
	Feeds       []string `yaml:"feeds"`
	WithContent bool     `yaml:"with_content"`
	Limit       int      `yaml:"limit"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type CacheConfig struct {
	TTL   Duration `yaml:"ttl"`
	Store string   `yaml:"store"` // sqlite, file or none
	Path  string   `yaml:"path"`  // file store only
}

type RefreshConfig struct {
	MinInterval     Duration `yaml:"min_interval"`
	SequenceDelay   Duration `yaml:"sequence_delay"`
	ManualThrottle  Duration `yaml:"manual_throttle"`
	Interval        Duration `yaml:"interval"`
	VisibilityDelay Duration `yaml:"visibility_delay"`
	VisibilityStale Duration `yaml:"visibility_stale"`
	Timeout         Duration `yaml:"timeout"`
}

type RankingConfig struct {
	Day           Duration `yaml:"day"`
	ThreeDays     Duration `yaml:"three_days"`
	Week          Duration `yaml:"week"`
	CommentWeight float64  `yaml:"comment_weight"`
	RetweetWeight float64  `yaml:"retweet_weight"`
}

type FeedConfig struct {
	Sort  string `yaml:"sort"`
	Limit int    `yaml:"limit"`
}

type ClassifyConfig struct {
	Mode string    `yaml:"mode"`
	LLM  LLMConfig `yaml:"llm"`
}

type LLMConfig struct {
	Model     string `yaml:"model"`
	Endpoint  string `yaml:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxTokens int    `yaml:"max_tokens"`

	// Resolved from env var at load time.
	APIKey string `yaml:"-"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadRelevanceIn loads dir/relevance.yaml. A missing file yields a nil
// profile, which scores engagement only.
func LoadRelevanceIn(dir string) (*RelevanceProfile, error) {
	path := filepath.Join(dir, DefaultRelevanceFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return LoadRelevance(path)
}

func orDuration(d *Duration, def time.Duration) {
	if d.Duration == 0 {
		d.Duration = def
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}

	orDuration(&cfg.Cache.TTL, DefaultCacheTTL)
	if cfg.Cache.Store == "" {
		cfg.Cache.Store = DefaultCacheStore
	}
	if cfg.Cache.Store == "file" && cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCacheFile
	}

	r := &cfg.Refresh
	orDuration(&r.MinInterval, DefaultMinInterval)
	orDuration(&r.SequenceDelay, DefaultSequenceDelay)
	orDuration(&r.ManualThrottle, DefaultManualThrottle)
	orDuration(&r.Interval, DefaultRefreshInterval)
	orDuration(&r.VisibilityDelay, DefaultVisibilityDelay)
	orDuration(&r.VisibilityStale, DefaultVisibilityStale)
	orDuration(&r.Timeout, DefaultFetchTimeout)

	orDuration(&cfg.Ranking.Day, 24*time.Hour)
	orDuration(&cfg.Ranking.ThreeDays, 72*time.Hour)
	orDuration(&cfg.Ranking.Week, 168*time.Hour)
	if cfg.Ranking.CommentWeight == 0 {
		cfg.Ranking.CommentWeight = 2
	}
	if cfg.Ranking.RetweetWeight == 0 {
		cfg.Ranking.RetweetWeight = 1.5
	}

	if cfg.Feed.Sort == "" {
		cfg.Feed.Sort = DefaultSort
	}
	if cfg.Feed.Limit == 0 {
		cfg.Feed.Limit = DefaultFeedLimit
	}

	if cfg.Classify.Mode == "" {
		cfg.Classify.Mode = DefaultClassifyMode
	}
	if cfg.Classify.LLM.Model == "" {
		cfg.Classify.LLM.Model = DefaultLLMModel
	}
	if cfg.Classify.LLM.MaxTokens == 0 {
		cfg.Classify.LLM.MaxTokens = DefaultLLMMaxTokens
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Classify.LLM.APIKeyEnv != "" {
		cfg.Classify.LLM.APIKey = os.Getenv(cfg.Classify.LLM.APIKeyEnv)
	}
}

func validate(cfg *Config) error {
	src := cfg.Sources
	hasBackend := src.Backend.URL != ""
	hasReddit := len(src.Reddit.Subreddits) > 0
	hasForum := src.Forum.Discourse != "" || len(src.Forum.Feeds) > 0
	if !hasBackend && !hasReddit && !hasForum {
		return errors.New("sources: configure backend.url, reddit.subreddits or a forum")
	}

	for field, raw := range map[string]string{
		"sources.backend.url":     src.Backend.URL,
		"sources.forum.discourse": src.Forum.Discourse,
	} {
		if raw == "" {
			continue
		}
		if err := checkURL(raw); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	switch src.Reddit.TimeFilter {
	case "", "hour", "day", "week", "month", "year", "all":
	default:
		return fmt.Errorf("sources.reddit.time_filter: unknown value %q", src.Reddit.TimeFilter)
	}

	for field, n := range map[string]int{
		"sources.reddit.limit": src.Reddit.Limit,
		"sources.social.limit": src.Social.Limit,
		"sources.forum.limit":  src.Forum.Limit,
		"feed.limit":           cfg.Feed.Limit,
		"storage.retain_days":  cfg.Storage.RetainDays,
	} {
		if n < 0 {
			return fmt.Errorf("%s: must not be negative", field)
		}
	}

	for field, d := range map[string]Duration{
		"cache.ttl":                cfg.Cache.TTL,
		"refresh.min_interval":     cfg.Refresh.MinInterval,
		"refresh.sequence_delay":   cfg.Refresh.SequenceDelay,
		"refresh.manual_throttle":  cfg.Refresh.ManualThrottle,
		"refresh.interval":         cfg.Refresh.Interval,
		"refresh.visibility_delay": cfg.Refresh.VisibilityDelay,
		"refresh.visibility_stale": cfg.Refresh.VisibilityStale,
		"refresh.timeout":          cfg.Refresh.Timeout,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%s: must not be negative", field)
		}
	}

	rk := cfg.Ranking
	if !(rk.Day.Duration < rk.ThreeDays.Duration && rk.ThreeDays.Duration < rk.Week.Duration) {
		return errors.New("ranking: buckets must satisfy day < three_days < week")
	}

	switch cfg.Cache.Store {
	case "sqlite", "file", "none":
	default:
		return fmt.Errorf("cache.store: unknown store %q (want sqlite, file or none)", cfg.Cache.Store)
	}

	switch cfg.Feed.Sort {
	case "new", "top", "engagement", "hot":
	default:
		return fmt.Errorf("feed.sort: unknown mode %q (want new, top, engagement or hot)", cfg.Feed.Sort)
	}

	switch cfg.Classify.Mode {
	case "heuristic", "none":
	case "llm":
		if cfg.Classify.LLM.APIKey == "" {
			return errors.New("classify.llm: api key is empty (set api_key_env)")
		}
	default:
		return fmt.Errorf("classify.mode: unknown mode %q (want heuristic, llm or none)", cfg.Classify.Mode)
	}

	for cat, competitors := range cfg.Competitors {
		if len(competitors) == 0 {
			return fmt.Errorf("competitors.%s: no competitors", cat)
		}
		for name, kws := range competitors {
			if len(kws) == 0 {
				return fmt.Errorf("competitors.%s.%s: no keywords", cat, name)
			}
		}
	}

	for i, p := range cfg.Privacy.Redact.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("privacy.redact.patterns[%d]: %w", i, err)
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}

	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
