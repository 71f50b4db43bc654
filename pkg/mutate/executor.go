// Package mutate implements the mutation executor: state-changing calls
// with a conservative single-retry budget, caller-declared query
// invalidation, and failure reporting to an observability sink.
package mutate

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fabwerk/mes-edge-client/pkg/querycache"
	"github.com/fabwerk/mes-edge-client/pkg/retry"
)

// Fn performs the actual state-changing call. The idempotency key is
// generated once per mutation and repeated verbatim on the retry
// attempt, so a server that deduplicates on it cannot double-apply the
// side effect (e.g. a double clock-in).
type Fn func(ctx context.Context, idempotencyKey string) (json.RawMessage, error)

// Mutation describes one state-changing operation.
type Mutation struct {
	// Name identifies the mutation in logs and failure reports.
	Name string

	// Invalidates lists the query keys marked stale after success.
	// The mapping between a mutation and the queries it affects is
	// declared here by the caller, never inferred.
	Invalidates []string

	// Fn performs the call.
	Fn Fn
}

// Executor applies the mutation retry policy and routes terminal
// failures to the sink before propagating them.
type Executor struct {
	queries *querycache.Coordinator
	policy  retry.Policy
	sink    Sink
	logger  zerolog.Logger
}

// New creates an executor. A nil sink falls back to log-only reporting.
func New(queries *querycache.Coordinator, sink Sink, logger zerolog.Logger) *Executor {
	if sink == nil {
		sink = NewLogSink(logger)
	}
	return &Executor{
		queries: queries,
		policy:  retry.MutationPolicy(),
		sink:    sink,
		logger:  logger,
	}
}

// Do executes the mutation. At most one retry is attempted; mutations
// are retried far more conservatively than queries because they may
// have side effects. On success the declared query keys are invalidated
// exactly once, even when the success came from the retry attempt. On
// terminal failure the error is reported to the sink and returned.
func (e *Executor) Do(ctx context.Context, m Mutation) (json.RawMessage, error) {
	idempotencyKey := uuid.NewString()

	var result json.RawMessage
	err := retry.Do(ctx, e.policy, func() error {
		data, ferr := m.Fn(ctx, idempotencyKey)
		if ferr != nil {
			return ferr
		}
		result = data
		return nil
	})

	if err != nil {
		e.sink.ReportMutationFailure(ctx, m.Name, err)
		return nil, err
	}

	if len(m.Invalidates) > 0 {
		e.queries.Invalidate(m.Invalidates...)
	}

	e.logger.Debug().
		Str("mutation", m.Name).
		Int("invalidated", len(m.Invalidates)).
		Msg("Mutation applied")

	return result, nil
}
