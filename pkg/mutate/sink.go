package mutate

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var mutationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mes_mutation_failures_total",
	Help: "Total terminal mutation failures by mutation name",
}, []string{"mutation"})

// Sink receives terminal mutation failures. Failures reach the sink
// before they propagate to the caller, so operations keeps visibility
// even when the UI recovers gracefully.
type Sink interface {
	ReportMutationFailure(ctx context.Context, name string, err error)
}

// LogSink reports failures to the structured log and a Prometheus
// counter.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// ReportMutationFailure implements Sink.
func (s *LogSink) ReportMutationFailure(_ context.Context, name string, err error) {
	mutationFailuresTotal.WithLabelValues(name).Inc()
	s.logger.Error().
		Err(err).
		Str("mutation", name).
		Msg("Mutation failed after retry budget")
}
