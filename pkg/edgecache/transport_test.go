package edgecache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testRules(networkTimeout time.Duration) []Rule {
	return []Rule{
		{
			CacheName:          "static-assets",
			Match:              regexp.MustCompile(`\.(png|css|js)$`),
			Strategy:           CacheFirst,
			MaxEntries:         64,
			MaxAge:             time.Hour,
			AcceptableStatuses: []int{0, 200},
		},
		{
			CacheName:          "api-responses",
			Match:              regexp.MustCompile(`^/api/`),
			Strategy:           NetworkFirst,
			MaxEntries:         32,
			MaxAge:             time.Minute,
			AcceptableStatuses: []int{0, 200},
			NetworkTimeout:     networkTimeout,
		},
	}
}

func newTestTransport(t *testing.T, rules []Rule) (*Transport, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return NewTransport(store, rules, nil, zerolog.Nop()), store
}

func doGet(t *testing.T, transport *Transport, url string) *http.Response {
	t.Helper()
	resp, err := transport.RoundTrip(mustRequest(t, http.MethodGet, url))
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTransport_CacheFirstHitAvoidsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("body{}"))
	}))
	defer server.Close()

	transport, _ := newTestTransport(t, testRules(time.Second))

	resp := doGet(t, transport, server.URL+"/app/main.css")
	if got := resp.Header.Get("X-Edge-Cache"); got != "" {
		t.Errorf("First fetch X-Edge-Cache = %q, want unset", got)
	}

	resp = doGet(t, transport, server.URL+"/app/main.css")
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "body{}" {
		t.Errorf("Cached body = %q", body)
	}
	if got := resp.Header.Get("X-Edge-Cache"); got != "hit" {
		t.Errorf("X-Edge-Cache = %q, want hit", got)
	}
	if calls.Load() != 1 {
		t.Errorf("Backend calls = %d, want 1", calls.Load())
	}
}

func TestTransport_CacheFirstMissNetworkErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	transport, _ := newTestTransport(t, testRules(time.Second))
	_, err := transport.RoundTrip(mustRequest(t, http.MethodGet, server.URL+"/app/main.css"))
	if err == nil {
		t.Fatal("Expected network error on cold miss")
	}
	if errors.Is(err, ErrNoFallback) {
		t.Error("Cache-first miss must not be classified as fallback exhaustion")
	}
}

func TestTransport_UnacceptableStatusNotStored(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	transport, store := newTestTransport(t, testRules(time.Second))

	resp := doGet(t, transport, server.URL+"/api/operations/42/labor")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500 passed through", resp.StatusCode)
	}

	req := mustRequest(t, http.MethodGet, server.URL+"/api/operations/42/labor")
	if _, err := store.Get(context.Background(), "api-responses", RequestKey(req)); !errors.Is(err, ErrMiss) {
		t.Errorf("Error response was cached, got %v", err)
	}

	doGet(t, transport, server.URL+"/api/operations/42/labor")
	if calls.Load() != 2 {
		t.Errorf("Backend calls = %d, want 2 (no caching of errors)", calls.Load())
	}
}

func TestTransport_NetworkFirstStoresSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	transport, store := newTestTransport(t, testRules(time.Second))
	resp := doGet(t, transport, server.URL+"/api/ncrs")
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `[{"id":1}]` {
		t.Errorf("Body = %q, caching must not consume the response", body)
	}

	req := mustRequest(t, http.MethodGet, server.URL+"/api/ncrs")
	entry, err := store.Get(context.Background(), "api-responses", RequestKey(req))
	if err != nil {
		t.Fatalf("Success response not stored: %v", err)
	}
	if string(entry.Body) != `[{"id":1}]` {
		t.Errorf("Stored body = %q", entry.Body)
	}
}

func TestTransport_NetworkFirstTimeoutFallsBack(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	transport, store := newTestTransport(t, testRules(50*time.Millisecond))

	req := mustRequest(t, http.MethodGet, server.URL+"/api/operations/42/labor")
	entry := newTestEntry(RequestKey(req), time.Minute)
	entry.Body = []byte(`[{"id":7,"worker":"stale"}]`)
	if err := store.Put(context.Background(), "api-responses", entry, 32); err != nil {
		t.Fatalf("Seeding cache failed: %v", err)
	}

	start := time.Now()
	resp := doGet(t, transport, server.URL+"/api/operations/42/labor")
	elapsed := time.Since(start)

	if got := resp.Header.Get("X-Edge-Cache"); got != "stale-fallback" {
		t.Errorf("X-Edge-Cache = %q, want stale-fallback", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(entry.Body) {
		t.Errorf("Fallback body = %q", body)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Fallback took %v, should resolve near the 50ms timeout", elapsed)
	}
}

func TestTransport_NetworkFirstTimeoutNoCache(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	transport, _ := newTestTransport(t, testRules(50*time.Millisecond))

	_, err := transport.RoundTrip(mustRequest(t, http.MethodGet, server.URL+"/api/operations/42/labor"))
	if !errors.Is(err, ErrNoFallback) {
		t.Errorf("Error = %v, want ErrNoFallback", err)
	}
}

func TestTransport_NetworkFirstFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // backend unreachable

	transport, store := newTestTransport(t, testRules(time.Second))

	req := mustRequest(t, http.MethodGet, server.URL+"/api/ncrs")
	entry := newTestEntry(RequestKey(req), time.Minute)
	if err := store.Put(context.Background(), "api-responses", entry, 32); err != nil {
		t.Fatalf("Seeding cache failed: %v", err)
	}

	resp := doGet(t, transport, server.URL+"/api/ncrs")
	if got := resp.Header.Get("X-Edge-Cache"); got != "stale-fallback" {
		t.Errorf("X-Edge-Cache = %q, want stale-fallback", got)
	}
}

func TestTransport_OpaqueStatusServedAsOK(t *testing.T) {
	transport, store := newTestTransport(t, testRules(time.Second))

	req := mustRequest(t, http.MethodGet, "http://backend/static/logo.png")
	entry := newTestEntry(RequestKey(req), time.Hour)
	entry.Status = 0
	if err := store.Put(context.Background(), "static-assets", entry, 64); err != nil {
		t.Fatalf("Seeding cache failed: %v", err)
	}

	resp := doGet(t, transport, "http://backend/static/logo.png")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, opaque entries must serve as 200", resp.StatusCode)
	}
}

func TestTransport_UnmatchedRequestBypassesCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport, _ := newTestTransport(t, testRules(time.Second))

	doGet(t, transport, server.URL+"/internal/debug")
	doGet(t, transport, server.URL+"/internal/debug")
	if calls.Load() != 2 {
		t.Errorf("Backend calls = %d, want 2 for unmatched path", calls.Load())
	}
}
