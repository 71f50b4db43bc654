package edgecache

import (
	"net/http"
	"time"
)

// Entry represents a cached backend response.
type Entry struct {
	// Key is the deterministic request key this entry was stored under.
	Key string `json:"key"`

	// Body is the response body.
	Body []byte `json:"body"`

	// Header contains the response headers.
	Header http.Header `json:"header"`

	// Status is the HTTP status code of the cached response.
	Status int `json:"status"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired returns true if the entry is past its expiry time.
func (e *Entry) Expired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the time until expiration, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
