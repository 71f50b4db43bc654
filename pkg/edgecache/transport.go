package edgecache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Transport is an http.RoundTripper that applies the cache rule table
// to outgoing requests. It sits beneath the gateway the way a service
// worker sits at the fetch boundary: the query cache coordinator above
// it may hold a fresher in-memory copy; this layer is the independent
// safety net that survives restarts.
type Transport struct {
	base   http.RoundTripper
	rules  []Rule
	store  Store
	logger zerolog.Logger
}

// NewTransport creates a caching transport over base. A nil base uses
// http.DefaultTransport.
func NewTransport(store Store, rules []Rule, base http.RoundTripper, logger zerolog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:   base,
		rules:  rules,
		store:  store,
		logger: logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rule, ok := matchRule(t.rules, req)
	if !ok {
		return t.base.RoundTrip(req)
	}

	switch rule.Strategy {
	case CacheFirst:
		return t.cacheFirst(rule, req)
	case NetworkFirst:
		return t.networkFirst(rule, req)
	default:
		return t.base.RoundTrip(req)
	}
}

// cacheFirst serves a non-expired entry without touching the network.
// On a miss the network failure, if any, propagates unmodified.
func (t *Transport) cacheFirst(rule *Rule, req *http.Request) (*http.Response, error) {
	key := RequestKey(req)

	if entry, err := t.store.Get(req.Context(), rule.CacheName, key); err == nil {
		t.logger.Debug().
			Str("cache", rule.CacheName).
			Str("key", key).
			Msg("Serving cache-first hit")
		return entryToResponse(entry, req, "hit"), nil
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	t.maybeStore(req.Context(), rule, key, resp)
	return resp, nil
}

// networkFirst races the network call against the rule's timeout and
// falls back to the newest non-expired entry on timeout or network
// failure. With no fallback available the ErrNoFallback sentinel is
// returned for the gateway to classify.
func (t *Transport) networkFirst(rule *Rule, req *http.Request) (*http.Response, error) {
	key := RequestKey(req)

	type outcome struct {
		resp *http.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := t.base.RoundTrip(req)
		done <- outcome{resp: resp, err: err}
	}()

	timer := time.NewTimer(rule.NetworkTimeout)
	defer timer.Stop()

	var cause error
	select {
	case out := <-done:
		if out.err == nil {
			t.maybeStore(req.Context(), rule, key, out.resp)
			return out.resp, nil
		}
		cause = out.err
	case <-timer.C:
		cause = fmt.Errorf("no response within %s", rule.NetworkTimeout)
		// The in-flight call is left to finish; its response is drained
		// so the connection can be reused.
		go func() {
			if out := <-done; out.resp != nil {
				out.resp.Body.Close()
			}
		}()
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}

	if entry, err := t.store.Get(req.Context(), rule.CacheName, key); err == nil {
		fallbackServed.WithLabelValues(rule.CacheName).Inc()
		t.logger.Warn().
			Str("cache", rule.CacheName).
			Str("key", key).
			AnErr("cause", cause).
			Msg("Network unavailable, serving cached fallback")
		return entryToResponse(entry, req, "stale-fallback"), nil
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrNoFallback, key, cause)
}

// maybeStore caches the response when its status is in the rule's
// accepted set. The response body is restored for the caller.
func (t *Transport) maybeStore(ctx context.Context, rule *Rule, key string, resp *http.Response) {
	if !rule.Accepts(resp.StatusCode) {
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("Failed to read response for caching")
		return
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &Entry{
		Key:       key,
		Body:      body,
		Header:    resp.Header.Clone(),
		Status:    resp.StatusCode,
		StoredAt:  now,
		ExpiresAt: now.Add(rule.MaxAge),
	}

	if err := t.store.Put(ctx, rule.CacheName, entry, rule.MaxEntries); err != nil {
		t.logger.Warn().Err(err).
			Str("cache", rule.CacheName).
			Str("key", key).
			Msg("Failed to store cache entry")
		return
	}

	t.logger.Debug().
		Str("cache", rule.CacheName).
		Str("key", key).
		Dur("ttl", entry.TTL()).
		Msg("Cached response")
}

// entryToResponse converts a cache entry back to an HTTP response.
func entryToResponse(entry *Entry, req *http.Request, source string) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-Edge-Cache", source)

	status := entry.Status
	if status == 0 {
		// Opaque responses are recorded with status 0; served locally
		// they become plain 200s.
		status = http.StatusOK
	}

	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
		Request:    req,
	}
}
