// Package querycache implements the in-memory query cache coordinator:
// per-key freshness tracking, request coalescing, stale-while-revalidate
// reads, and automatic background revalidation on focus regain or
// network reconnect.
package querycache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/fabwerk/mes-edge-client/pkg/retry"
)

// Status describes the lifecycle state of a query entry.
type Status string

const (
	// StatusIdle means no data has been fetched yet.
	StatusIdle Status = "idle"

	// StatusFetching means a fetch is in flight.
	StatusFetching Status = "fetching"

	// StatusFresh means data is inside the freshness window.
	StatusFresh Status = "fresh"

	// StatusStale means data is usable but flagged for revalidation.
	StatusStale Status = "stale"

	// StatusError means the last fetch failed and no data is held.
	StatusError Status = "error"
)

// FetchFunc loads the data for a query key.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Observer receives fetch outcomes. The connectivity monitor implements
// it to derive online/offline state from observed traffic.
type Observer interface {
	ReportSuccess()
	ReportFailure(err error)
}

// Options configures a Coordinator.
type Options struct {
	// FreshFor is the freshness window after which data turns stale but
	// stays usable. Default 30s.
	FreshFor time.Duration

	// GCAfter is the garbage-collection window after which an entry
	// with no subscribers is evicted entirely. Default 5m.
	GCAfter time.Duration

	// SweepEvery is the janitor interval. Default 30s.
	SweepEvery time.Duration

	// Retry is the fetch retry policy. Default retry.QueryPolicy().
	Retry *retry.Policy

	// Logger is the coordinator logger.
	Logger zerolog.Logger

	// Observer, if set, receives fetch outcomes.
	Observer Observer
}

// Result is what a read returns: the current data (possibly stale) plus
// its status. A stale result means a background refresh is underway.
type Result struct {
	Data      json.RawMessage
	Status    Status
	FetchedAt time.Time
}

type entry struct {
	mu          sync.Mutex
	data        json.RawMessage
	fetchedAt   time.Time
	createdAt   time.Time
	stale       bool
	fetching    bool
	lastErr     error
	subscribers int
	fetch       FetchFunc
}

// Coordinator owns the per-process query cache. It is safe for
// concurrent use; entry state is protected by a per-key mutex and at
// most one network fetch per key is ever in flight.
type Coordinator struct {
	mu      sync.RWMutex
	entries map[string]*entry
	sf      singleflight.Group
	opts    Options
	policy  retry.Policy
	stop    chan struct{}
	stopped sync.Once
}

// New creates a coordinator and starts its janitor.
func New(opts Options) *Coordinator {
	if opts.FreshFor <= 0 {
		opts.FreshFor = 30 * time.Second
	}
	if opts.GCAfter <= 0 {
		opts.GCAfter = 5 * time.Minute
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = 30 * time.Second
	}
	policy := retry.QueryPolicy()
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	c := &Coordinator{
		entries: make(map[string]*entry),
		opts:    opts,
		policy:  policy,
		stop:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Read returns the current value for key, fetching it if necessary.
// A fresh value returns immediately. A stale value also returns
// immediately while a detached background fetch refreshes the entry
// (stale-while-revalidate). Only a cold entry blocks on the network,
// and concurrent cold readers for the same key share one fetch.
func (c *Coordinator) Read(ctx context.Context, key string, fetch FetchFunc) (Result, error) {
	e := c.entry(key)

	e.mu.Lock()
	e.fetch = fetch
	if e.data != nil {
		if !e.stale && time.Since(e.fetchedAt) < c.opts.FreshFor {
			res := Result{Data: e.data, Status: StatusFresh, FetchedAt: e.fetchedAt}
			e.mu.Unlock()
			return res, nil
		}
		res := Result{Data: e.data, Status: StatusStale, FetchedAt: e.fetchedAt}
		alreadyFetching := e.fetching
		e.mu.Unlock()
		if !alreadyFetching {
			c.revalidate(key)
		}
		return res, nil
	}
	e.mu.Unlock()

	if err := c.doFetch(ctx, key); err != nil {
		return Result{Status: StatusError}, err
	}

	e.mu.Lock()
	res := Result{Data: e.data, Status: StatusFresh, FetchedAt: e.fetchedAt}
	e.mu.Unlock()
	return res, nil
}

// Subscribe registers interest in a key, protecting it from garbage
// collection. The returned function unsubscribes.
func (c *Coordinator) Subscribe(key string) func() {
	e := c.entry(key)
	e.mu.Lock()
	e.subscribers++
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			if e.subscribers > 0 {
				e.subscribers--
			}
			e.mu.Unlock()
		})
	}
}

// Invalidate marks the given keys stale so the next read revalidates.
// Unknown keys are ignored. This is the capability the mutation
// executor uses after a successful write; the key mapping is declared
// by the caller, not inferred here.
func (c *Coordinator) Invalidate(keys ...string) {
	for _, key := range keys {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if !ok {
			continue
		}
		e.mu.Lock()
		e.stale = true
		e.mu.Unlock()
		c.opts.Logger.Debug().Str("key", key).Msg("Query invalidated")
	}
}

// NotifyFocus marks every entry stale and revalidates subscribed keys
// in the background. Call it when the operator returns to the dashboard.
func (c *Coordinator) NotifyFocus() {
	c.staleAllAndRevalidate("focus")
}

// NotifyReconnect marks every entry stale and revalidates subscribed
// keys in the background. Call it when connectivity returns.
func (c *Coordinator) NotifyReconnect() {
	c.staleAllAndRevalidate("reconnect")
}

// State reports the current status of a key without touching the data.
func (c *Coordinator) State(key string) Status {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return StatusIdle
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.fetching:
		return StatusFetching
	case e.data != nil && !e.stale && time.Since(e.fetchedAt) < c.opts.FreshFor:
		return StatusFresh
	case e.data != nil:
		return StatusStale
	case e.lastErr != nil:
		return StatusError
	default:
		return StatusIdle
	}
}

// Close stops the janitor. In-flight fetches are allowed to complete.
func (c *Coordinator) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

func (c *Coordinator) entry(key string) *entry {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[key]; ok {
		return e
	}
	e = &entry{createdAt: time.Now()}
	c.entries[key] = e
	entriesGauge.Set(float64(len(c.entries)))
	return e
}

// doFetch runs the coalesced, retry-wrapped fetch for key. Concurrent
// callers share the in-flight result via singleflight.
func (c *Coordinator) doFetch(ctx context.Context, key string) error {
	_, err, shared := c.sf.Do(key, func() (any, error) {
		e := c.entry(key)

		e.mu.Lock()
		fetch := e.fetch
		e.fetching = true
		e.mu.Unlock()

		fetchesTotal.Inc()

		var data json.RawMessage
		err := retry.Do(ctx, c.policy, func() error {
			d, ferr := fetch(ctx)
			if c.opts.Observer != nil {
				if ferr != nil {
					c.opts.Observer.ReportFailure(ferr)
				} else {
					c.opts.Observer.ReportSuccess()
				}
			}
			if ferr != nil {
				return ferr
			}
			data = d
			return nil
		})

		e.mu.Lock()
		defer e.mu.Unlock()
		e.fetching = false
		if err != nil {
			e.lastErr = err
			c.opts.Logger.Warn().Err(err).Str("key", key).Msg("Query fetch failed")
			return nil, err
		}
		e.data = data
		e.fetchedAt = time.Now()
		e.stale = false
		e.lastErr = nil
		return data, nil
	})

	if shared {
		coalescedTotal.Inc()
	}
	return err
}

// revalidate refreshes a key in the background. The fetch is detached
// from any caller context: a subscriber going away mid-flight does not
// cancel the network call, the result still populates the cache.
func (c *Coordinator) revalidate(key string) {
	revalidationsTotal.Inc()
	go func() {
		_ = c.doFetch(context.Background(), key)
	}()
}

func (c *Coordinator) staleAllAndRevalidate(trigger string) {
	c.mu.RLock()
	type target struct {
		key string
		e   *entry
	}
	targets := make([]target, 0, len(c.entries))
	for key, e := range c.entries {
		targets = append(targets, target{key: key, e: e})
	}
	c.mu.RUnlock()

	revalidated := 0
	for _, t := range targets {
		t.e.mu.Lock()
		t.e.stale = true
		wants := t.e.subscribers > 0 && t.e.fetch != nil && !t.e.fetching
		t.e.mu.Unlock()
		if wants {
			c.revalidate(t.key)
			revalidated++
		}
	}

	c.opts.Logger.Info().
		Str("trigger", trigger).
		Int("entries", len(targets)).
		Int("revalidated", revalidated).
		Msg("Marked queries stale")
}

// janitor evicts entries past the GC window that nobody subscribes to.
func (c *Coordinator) janitor() {
	ticker := time.NewTicker(c.opts.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Coordinator) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.entries {
		e.mu.Lock()
		anchor := e.fetchedAt
		if anchor.IsZero() {
			anchor = e.createdAt
		}
		dead := e.subscribers == 0 && !e.fetching && time.Since(anchor) >= c.opts.GCAfter
		e.mu.Unlock()

		if dead {
			delete(c.entries, key)
			evicted++
		}
	}

	if evicted > 0 {
		gcEvictionsTotal.Add(float64(evicted))
		entriesGauge.Set(float64(len(c.entries)))
		c.opts.Logger.Debug().Int("evicted", evicted).Msg("Query cache swept")
	}
}
