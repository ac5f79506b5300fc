// Package fetch serializes and throttles calls to the feed sources and
// tracks a per-source fetch state.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/communitysurf/internal/cache"
	"github.com/ppiankov/communitysurf/internal/clock"
	"github.com/ppiankov/communitysurf/internal/source"
)

var (
	// ErrInProgress rejects a non-forced fetch while another one runs.
	ErrInProgress = errors.New("fetch already in progress")
	// ErrSuperseded stops a sequence whose claim was cleared or taken over.
	ErrSuperseded = errors.New("fetch sequence superseded")
	// ErrUnknownSource is returned for a slot with no adapter.
	ErrUnknownSource = errors.New("unknown source")
)

// Order is the fixed sequence in which sources are fetched.
var Order = []string{source.SlotReddit, source.SlotSocial, source.SlotForum}

// Config holds the coordinator's timing rules.
type Config struct {
	MinInterval        time.Duration // spacing between the end of one fetch and the next request
	SequenceDelay      time.Duration // pause between sources within a sequence
	MinRefreshInterval time.Duration // manual refresh throttle
	RefreshInterval    time.Duration // auto-refresh period
	VisibilityDelay    time.Duration // delay before a visibility-triggered refresh
	VisibilityStale    time.Duration // data age that makes a visibility refresh worthwhile
	Timeout            time.Duration // hard limit per adapter call
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		MinInterval:        500 * time.Millisecond,
		SequenceDelay:      500 * time.Millisecond,
		MinRefreshInterval: 30 * time.Second,
		RefreshInterval:    15 * time.Minute,
		VisibilityDelay:    time.Second,
		VisibilityStale:    time.Minute,
		Timeout:            30 * time.Second,
	}
}

// autoRefreshFraction of RefreshInterval must pass between auto-refreshes.
const autoRefreshFraction = 0.9

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithClock replaces the wall clock used for cooldowns, throttles and timers.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// WithLogger sets the logger. Each sequence logs with its own id.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithCache serves non-forced fetches from rc while fresh and stores every
// network batch in it.
func WithCache(rc *cache.Cache[source.Batch]) Option {
	return func(c *Coordinator) { c.cache = rc }
}

// WithParams sets the provider of the current query parameters. It is
// called once per fetch.
func WithParams(fn func(slot string) source.Params) Option {
	return func(c *Coordinator) { c.params = fn }
}

// WithEnrich post-processes every network batch before it is cached and
// delivered. fn runs after the adapter call, outside Timeout.
func WithEnrich(fn func(ctx context.Context, b source.Batch) source.Batch) Option {
	return func(c *Coordinator) { c.enrich = fn }
}

// WithOnBatch registers the consumer of fetched batches.
func WithOnBatch(fn func(source.Batch)) Option {
	return func(c *Coordinator) { c.onBatch = fn }
}

// Coordinator owns the process-wide in-progress claim, the fetch
// timestamps and the per-source state. All of it is guarded by mu.
type Coordinator struct {
	adapters map[string]source.Adapter
	order    []string

	cfg     Config
	clock   clock.Clock
	log     *slog.Logger
	cache   *cache.Cache[source.Batch]
	params  func(slot string) source.Params
	enrich  func(context.Context, source.Batch) source.Batch
	onBatch func(source.Batch)

	mu            sync.Mutex
	inProgress    bool
	owner         uint64
	lastFetchEnd  time.Time
	lastManual    time.Time
	lastAuto      time.Time
	lastSuccess   time.Time
	visible       bool
	status        map[string]*Status
	visibilityGen uint64

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New builds a coordinator over adapters. Adapters are keyed by Name and
// must be distinct slots from Order.
func New(adapters []source.Adapter, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		adapters: make(map[string]source.Adapter, len(adapters)),
		cfg:      DefaultConfig(),
		clock:    clock.Real{},
		log:      slog.Default(),
		params:   func(string) source.Params { return source.Params{} },
		visible:  true,
		status:   make(map[string]*Status),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, a := range adapters {
		name := a.Name()
		if !knownSlot(name) {
			return nil, fmt.Errorf("adapter %q: %w", name, ErrUnknownSource)
		}
		if _, dup := c.adapters[name]; dup {
			return nil, fmt.Errorf("adapter %q registered twice", name)
		}
		c.adapters[name] = a
	}
	for _, slot := range Order {
		if _, ok := c.adapters[slot]; ok {
			c.order = append(c.order, slot)
			c.status[slot] = &Status{Source: slot, State: Idle}
		}
	}
	if len(c.order) == 0 {
		return nil, errors.New("at least one source adapter is required")
	}

	c.lastAuto = c.clock.Now()
	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())
	return c, nil
}

func knownSlot(name string) bool {
	for _, s := range Order {
		if s == name {
			return true
		}
	}
	return false
}

// Sources lists the configured slots in fetch order.
func (c *Coordinator) Sources() []string {
	return append([]string(nil), c.order...)
}

// Close cancels pending visibility refreshes and waits for them.
func (c *Coordinator) Close() {
	c.bgCancel()
	c.bg.Wait()
}

// InProgress reports whether a fetch currently holds the claim.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

// LastSuccess is when a source last completed successfully.
func (c *Coordinator) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// claim takes the in-progress flag. Without override it fails while the
// flag is held. Each claim gets a fresh owner token.
func (c *Coordinator) claim(override bool) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimLocked(override)
}

func (c *Coordinator) claimLocked(override bool) (uint64, error) {
	if c.inProgress && !override {
		return 0, ErrInProgress
	}
	c.owner++
	c.inProgress = true
	return c.owner, nil
}

// release clears the flag only if token still owns it.
func (c *Coordinator) release(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == token {
		c.inProgress = false
	}
}

func (c *Coordinator) owns(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress && c.owner == token
}

// Fetch fetches a single source. A non-forced call fails with
// ErrInProgress while another fetch holds the claim; a forced call takes
// the claim over and bypasses the cache.
func (c *Coordinator) Fetch(ctx context.Context, slot string, force bool) error {
	a, ok := c.adapters[slot]
	if !ok {
		return fmt.Errorf("%q: %w", slot, ErrUnknownSource)
	}
	token, err := c.claim(force)
	if err != nil {
		return err
	}
	defer c.release(token)

	return c.step(ctx, c.log.With("source", slot), a, force)
}

// Sequence fetches every source in Order, pausing SequenceDelay between
// them. Per-source failures are recorded in Status and do not stop the
// sequence. A sequence whose claim is cleared or taken over stops before
// its next source with ErrSuperseded.
func (c *Coordinator) Sequence(ctx context.Context, force bool) error {
	token, err := c.claim(force)
	if err != nil {
		return err
	}
	return c.runSequence(ctx, token, force)
}

func (c *Coordinator) runSequence(ctx context.Context, token uint64, refresh bool) error {
	defer c.release(token)

	log := c.log.With("sequence", uuid.NewString())
	start := c.clock.Now()
	log.Debug("fetch sequence started", "refresh", refresh, "sources", len(c.order))

	for i, slot := range c.order {
		if i > 0 {
			if err := c.sleep(ctx, c.cfg.SequenceDelay); err != nil {
				return err
			}
			if !c.owns(token) {
				log.Info("fetch sequence superseded, stopping", "next", slot)
				return ErrSuperseded
			}
		}
		if err := c.step(ctx, log.With("source", slot), c.adapters[slot], refresh); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// recorded in status; siblings still run
			continue
		}
	}

	log.Debug("fetch sequence finished", "elapsed", c.clock.Now().Sub(start))
	return nil
}

// Refresh runs a forced sequence on user request. Requests closer than
// MinRefreshInterval to the previous accepted one are ignored and report
// false.
func (c *Coordinator) Refresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	now := c.clock.Now()
	if !c.lastManual.IsZero() && now.Sub(c.lastManual) < c.cfg.MinRefreshInterval {
		c.mu.Unlock()
		c.log.Info("refresh throttled", "since_last", now.Sub(c.lastManual))
		return false, nil
	}
	c.lastManual = now
	c.mu.Unlock()

	return true, c.Sequence(ctx, true)
}

// AutoRefresh runs a refreshing sequence when all auto-refresh conditions
// hold: enough of the interval has passed since the last auto-refresh,
// nothing is in progress, and the app is visible with data older than the
// interval. It reports whether a sequence ran.
func (c *Coordinator) AutoRefresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	now := c.clock.Now()
	minGap := time.Duration(float64(c.cfg.RefreshInterval) * autoRefreshFraction)

	var reason string
	switch {
	case now.Sub(c.lastAuto) < minGap:
		reason = "interval not elapsed"
	case c.inProgress:
		reason = "fetch in progress"
	case !c.visible:
		reason = "not visible"
	case !c.lastSuccess.IsZero() && now.Sub(c.lastSuccess) <= c.cfg.RefreshInterval:
		reason = "data is fresh"
	}
	if reason != "" {
		c.mu.Unlock()
		c.log.Debug("auto-refresh skipped", "reason", reason)
		return false, nil
	}

	c.lastAuto = now
	token, _ := c.claimLocked(false)
	c.mu.Unlock()

	c.log.Info("auto-refresh running")
	return true, c.runSequence(ctx, token, true)
}

// Run ticks AutoRefresh every RefreshInterval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.cfg.RefreshInterval):
		}
		if _, err := c.AutoRefresh(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("auto-refresh failed", "error", err)
		}
	}
}

// Visible reports the last visibility signal. The coordinator starts
// visible.
func (c *Coordinator) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// SetVisible records a visibility change. Becoming visible after more than
// VisibilityStale without a successful fetch schedules a forced sequence
// after VisibilityDelay; it reports whether one was scheduled.
func (c *Coordinator) SetVisible(visible bool) bool {
	c.mu.Lock()
	was := c.visible
	c.visible = visible
	if !visible {
		// cancels a refresh scheduled by an earlier transition
		c.visibilityGen++
		c.mu.Unlock()
		return false
	}
	if was {
		c.mu.Unlock()
		return false
	}
	now := c.clock.Now()
	if !c.lastSuccess.IsZero() && now.Sub(c.lastSuccess) <= c.cfg.VisibilityStale {
		c.mu.Unlock()
		return false
	}
	c.visibilityGen++
	gen := c.visibilityGen
	c.mu.Unlock()

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		select {
		case <-c.bgCtx.Done():
			return
		case <-c.clock.After(c.cfg.VisibilityDelay):
		}
		c.mu.Lock()
		stillWanted := c.visible && c.visibilityGen == gen
		c.mu.Unlock()
		if !stillWanted {
			return
		}
		c.log.Info("visibility refresh running")
		if err := c.Sequence(c.bgCtx, true); err != nil && c.bgCtx.Err() == nil {
			c.log.Warn("visibility refresh failed", "error", err)
		}
	}()
	return true
}

// sleep waits d on the coordinator clock.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// waitCooldown blocks until MinInterval has passed since the last fetch
// ended.
func (c *Coordinator) waitCooldown(ctx context.Context, log *slog.Logger) error {
	c.mu.Lock()
	last := c.lastFetchEnd
	c.mu.Unlock()
	if last.IsZero() {
		return ctx.Err()
	}
	remaining := c.cfg.MinInterval - c.clock.Now().Sub(last)
	if remaining <= 0 {
		return ctx.Err()
	}
	log.Debug("waiting for fetch cooldown", "wait", remaining)
	return c.sleep(ctx, remaining)
}
