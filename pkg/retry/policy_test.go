package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/fabwerk/mes-edge-client/pkg/client"
)

func TestPolicy_Retryable(t *testing.T) {
	policy := QueryPolicy()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"network error", &client.Error{Kind: client.KindNetwork}, true},
		{"timeout error", &client.Error{Kind: client.KindTimeout}, true},
		{"decode error", &client.Error{Kind: client.KindDecode}, true},
		{"plain error", errors.New("boom"), true},
		{"400 bad request", &client.Error{Kind: client.KindHTTP, Status: 400}, false},
		{"404 not found", &client.Error{Kind: client.KindHTTP, Status: 404}, false},
		{"408 request timeout", &client.Error{Kind: client.KindHTTP, Status: 408}, true},
		{"429 too many requests", &client.Error{Kind: client.KindHTTP, Status: 429}, true},
		{"499 edge of range", &client.Error{Kind: client.KindHTTP, Status: 499}, false},
		{"500 server error", &client.Error{Kind: client.KindHTTP, Status: 500}, true},
		{"503 unavailable", &client.Error{Kind: client.KindHTTP, Status: 503}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPolicy_Delay(t *testing.T) {
	policy := QueryPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestQueryPolicy_Budget(t *testing.T) {
	policy := QueryPolicy()
	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if policy.Scope != "query" {
		t.Errorf("Scope = %q, want query", policy.Scope)
	}
}

func TestMutationPolicy_Budget(t *testing.T) {
	policy := MutationPolicy()
	if policy.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want 2", policy.MaxAttempts)
	}
	if policy.Scope != "mutation" {
		t.Errorf("Scope = %q, want mutation", policy.Scope)
	}
}

func TestStatusRange_Contains(t *testing.T) {
	r := StatusRange{From: 400, To: 499}
	if !r.Contains(400) || !r.Contains(499) {
		t.Error("Range bounds must be inclusive")
	}
	if r.Contains(399) || r.Contains(500) {
		t.Error("Range must exclude statuses outside bounds")
	}
}
