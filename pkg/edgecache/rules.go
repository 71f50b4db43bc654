package edgecache

import (
	"net/http"
	"regexp"
	"time"
)

// Strategy selects how a rule resolves a request against cache and network.
type Strategy string

const (
	// CacheFirst serves a valid cached entry without a network call and
	// only fetches on a miss. Used for static assets.
	CacheFirst Strategy = "cache-first"

	// NetworkFirst prefers a live network call and falls back to the most
	// recent non-expired entry on timeout or network failure. Used for
	// live manufacturing data.
	NetworkFirst Strategy = "network-first"
)

// Rule declares the cache behavior for requests matching a URL pattern.
// Rules are declared at process start, never mutated at runtime, and
// evaluated in declaration order with first match winning.
type Rule struct {
	// CacheName scopes stored entries; each rule owns its own cache.
	CacheName string

	// Match is applied to the request URL path.
	Match *regexp.Regexp

	// Strategy is the resolution strategy.
	Strategy Strategy

	// MaxEntries bounds the cache; the least-recently-stored entry is
	// evicted first once exceeded.
	MaxEntries int

	// MaxAge is the entry lifetime. An entry older than this is treated
	// as absent and replaced on the next fetch.
	MaxAge time.Duration

	// AcceptableStatuses lists response statuses that may be stored.
	// Anything else is returned to the caller but never cached.
	AcceptableStatuses []int

	// NetworkTimeout is how long NetworkFirst waits before falling back
	// to cache. Ignored for CacheFirst.
	NetworkTimeout time.Duration
}

// Accepts returns true if a response with the given status may be stored.
func (r *Rule) Accepts(status int) bool {
	for _, s := range r.AcceptableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

var (
	assetPattern = regexp.MustCompile(`\.(png|jpe?g|gif|svg|ico|css|js|woff2?)$`)
	apiPattern   = regexp.MustCompile(`^/api/`)
)

// DefaultRules returns the static rule table: cache-first for static
// assets with a day-long lifetime, network-first with a short lifetime
// for API responses. Status 0 is accepted alongside 200 because the
// hosting environment records opaque cross-origin responses that way.
func DefaultRules() []Rule {
	return []Rule{
		{
			CacheName:          "static-assets",
			Match:              assetPattern,
			Strategy:           CacheFirst,
			MaxEntries:         64,
			MaxAge:             24 * time.Hour,
			AcceptableStatuses: []int{0, 200},
		},
		{
			CacheName:          "api-responses",
			Match:              apiPattern,
			Strategy:           NetworkFirst,
			MaxEntries:         32,
			MaxAge:             60 * time.Second,
			AcceptableStatuses: []int{0, 200},
			NetworkTimeout:     10 * time.Second,
		},
	}
}

// matchRule finds the first rule matching the request. Only GET requests
// are cacheable; everything else passes straight to the network.
func matchRule(rules []Rule, req *http.Request) (*Rule, bool) {
	if req.Method != http.MethodGet {
		return nil, false
	}
	for i := range rules {
		if rules[i].Match.MatchString(req.URL.Path) {
			return &rules[i], true
		}
	}
	return nil, false
}
