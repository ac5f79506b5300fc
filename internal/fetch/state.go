package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ppiankov/communitysurf/internal/cache"
	"github.com/ppiankov/communitysurf/internal/source"
)

// State is a source's fetch state.
type State string

const (
	Idle    State = "idle"
	Loading State = "loading"
	Success State = "success"
	Failed  State = "error"
)

// Status is a snapshot of one source's fetch state.
type Status struct {
	Source      string    `json:"source"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"` // user-facing message
	LastSuccess time.Time `json:"last_success,omitzero"`
	FromCache   bool      `json:"from_cache"`
	Count       int       `json:"count"`
}

// Statuses returns every source's state in fetch order.
func (c *Coordinator) Statuses() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, 0, len(c.order))
	for _, slot := range c.order {
		out = append(out, *c.status[slot])
	}
	return out
}

// StatusOf returns one source's state.
func (c *Coordinator) StatusOf(slot string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.status[slot]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

func (c *Coordinator) setLoading(slot string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[slot].State = Loading
}

// step runs one source fetch: cache lookup unless refreshing, cooldown
// wait, the adapter call under Timeout, enrichment, then state and cache
// updates.
func (c *Coordinator) step(ctx context.Context, log *slog.Logger, a source.Adapter, refresh bool) error {
	slot := a.Name()
	params := c.params(slot)
	params.Refresh = refresh
	key := cache.Key(slot, params.Values())

	c.setLoading(slot)

	if !refresh && c.cache != nil {
		if batch, ok := c.cache.Get(ctx, key); ok {
			batch.FromCache = true
			c.recordSuccess(slot, batch)
			log.Debug("served from cache", "posts", len(batch.Posts))
			c.deliver(batch)
			return nil
		}
	}

	if err := c.waitCooldown(ctx, log); err != nil {
		c.recordFailure(slot, err)
		return err
	}

	batch, err := c.call(ctx, a, params)

	c.mu.Lock()
	c.lastFetchEnd = c.clock.Now()
	c.mu.Unlock()

	if err != nil {
		log.Warn("source fetch failed", "error", err)
		c.recordFailure(slot, err)
		return err
	}

	if c.enrich != nil {
		batch = c.enrich(ctx, batch)
	}
	batch.Source = slot
	batch.FetchedAt = c.clock.Now()
	if c.cache != nil {
		c.cache.Set(ctx, key, batch)
	}
	c.recordSuccess(slot, batch)
	log.Info("source fetched", "posts", len(batch.Posts), "upstream_cache", batch.FromCache)
	c.deliver(batch)
	return nil
}

// call invokes the adapter with a hard timeout. A deadline hit is
// reported as a NetworkError.
func (c *Coordinator) call(ctx context.Context, a source.Adapter, params source.Params) (source.Batch, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	batch, err := a.Fetch(cctx, params)
	if err == nil {
		return batch, nil
	}
	var netErr *source.NetworkError
	if !errors.As(err, &netErr) && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return source.Batch{}, &source.NetworkError{URL: a.Name(), Err: err}
	}
	return source.Batch{}, err
}

func (c *Coordinator) recordSuccess(slot string, batch source.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	st := c.status[slot]
	st.State = Success
	st.Error = ""
	st.LastSuccess = now
	st.FromCache = batch.FromCache
	st.Count = len(batch.Posts)
	c.lastSuccess = now
}

func (c *Coordinator) recordFailure(slot string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.status[slot]
	st.State = Failed
	st.Error = source.UserMessage(err)
}

func (c *Coordinator) deliver(batch source.Batch) {
	if c.onBatch != nil {
		c.onBatch(batch)
	}
}
