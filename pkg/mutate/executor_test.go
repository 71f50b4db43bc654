package mutate

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fabwerk/mes-edge-client/pkg/client"
	"github.com/fabwerk/mes-edge-client/pkg/querycache"
)

type recordingSink struct {
	mu      sync.Mutex
	reports []string
}

func (s *recordingSink) ReportMutationFailure(_ context.Context, name string, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, name)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func newTestExecutor(t *testing.T, sink Sink) (*Executor, *querycache.Coordinator) {
	t.Helper()
	queries := querycache.New(querycache.Options{
		FreshFor: time.Minute, // reads stay fresh unless invalidated
	})
	t.Cleanup(queries.Close)
	return New(queries, sink, zerolog.Nop()), queries
}

func TestDo_Success(t *testing.T) {
	exec, _ := newTestExecutor(t, nil)

	data, err := exec.Do(context.Background(), Mutation{
		Name: "labor.clockIn",
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			if idempotencyKey == "" {
				t.Error("Idempotency key must not be empty")
			}
			return json.RawMessage(`{"ok":true}`), nil
		},
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("Data = %s", data)
	}
}

func TestDo_RetriesOnceWithSameIdempotencyKey(t *testing.T) {
	exec, _ := newTestExecutor(t, nil)

	var keys []string
	data, err := exec.Do(context.Background(), Mutation{
		Name: "labor.clockIn",
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			keys = append(keys, idempotencyKey)
			if len(keys) == 1 {
				return nil, &client.Error{Kind: client.KindNetwork}
			}
			return json.RawMessage(`{"ok":true}`), nil
		},
	})
	if err != nil {
		t.Fatalf("Do failed after retry: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("Data = %s", data)
	}
	if len(keys) != 2 {
		t.Fatalf("Attempts = %d, want 2", len(keys))
	}
	if keys[0] != keys[1] {
		t.Errorf("Idempotency key changed across attempts: %q vs %q", keys[0], keys[1])
	}
}

func TestDo_ExhaustsSingleRetryBudget(t *testing.T) {
	sink := &recordingSink{}
	exec, _ := newTestExecutor(t, sink)

	attempts := 0
	_, err := exec.Do(context.Background(), Mutation{
		Name: "material.consume",
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			attempts++
			return nil, &client.Error{Kind: client.KindNetwork}
		},
	})
	if err == nil {
		t.Fatal("Expected terminal failure")
	}
	if attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (one retry only)", attempts)
	}
	if sink.count() != 1 {
		t.Errorf("Sink reports = %d, want 1", sink.count())
	}
	if client.KindOf(err) != client.KindNetwork {
		t.Errorf("Kind = %q, typed error must propagate", client.KindOf(err))
	}
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	sink := &recordingSink{}
	exec, _ := newTestExecutor(t, sink)

	attempts := 0
	_, err := exec.Do(context.Background(), Mutation{
		Name: "ncr.create",
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			attempts++
			return nil, &client.Error{Kind: client.KindHTTP, Status: 422}
		},
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Attempts = %d, want 1 for a validation error", attempts)
	}
	if sink.count() != 1 {
		t.Errorf("Sink reports = %d, want 1", sink.count())
	}
}

func TestDo_InvalidatesDeclaredKeysOnSuccess(t *testing.T) {
	exec, queries := newTestExecutor(t, nil)
	ctx := context.Background()

	fetch := func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`[]`), nil
	}
	queries.Read(ctx, "operations:42:labor", fetch)
	queries.Read(ctx, "ncrs", fetch)

	_, err := exec.Do(ctx, Mutation{
		Name:        "labor.clockIn",
		Invalidates: []string{"operations:42:labor"},
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	if got := queries.State("operations:42:labor"); got != querycache.StatusStale {
		t.Errorf("Declared key state = %s, want stale", got)
	}
	if got := queries.State("ncrs"); got != querycache.StatusFresh {
		t.Errorf("Undeclared key state = %s, must stay fresh", got)
	}
}

func TestDo_NoInvalidationOnFailure(t *testing.T) {
	sink := &recordingSink{}
	exec, queries := newTestExecutor(t, sink)
	ctx := context.Background()

	queries.Read(ctx, "operations:42:labor", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`[]`), nil
	})

	exec.Do(ctx, Mutation{
		Name:        "labor.clockIn",
		Invalidates: []string{"operations:42:labor"},
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			return nil, &client.Error{Kind: client.KindHTTP, Status: 409}
		},
	})

	if got := queries.State("operations:42:labor"); got != querycache.StatusFresh {
		t.Errorf("State = %s, failed mutation must not invalidate", got)
	}
}
