package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_retries_total",
		Help: "Total number of retry attempts by scope",
	}, []string{"scope"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_retry_exhausted_total",
		Help: "Total number of times the retry budget was exhausted by scope",
	}, []string{"scope"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mes_retry_backoff_seconds",
		Help:    "Backoff duration for retries by scope",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	}, []string{"scope"})
)

// Do executes fn under the policy. Non-retryable errors surface
// immediately with no backoff delay; retryable errors are retried
// transparently until the attempt budget runs out, at which point the
// last error is returned. Backoff sleeps respect context cancellation.
func Do(ctx context.Context, p Policy, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				log.Info().
					Str("scope", p.Scope).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !p.Retryable(err) {
			return lastErr
		}

		if attempt >= p.MaxAttempts-1 {
			break
		}

		delay := p.Delay(attempt)
		retriesTotal.WithLabelValues(p.Scope).Inc()
		retryBackoffSeconds.WithLabelValues(p.Scope).Observe(delay.Seconds())

		log.Debug().
			Str("scope", p.Scope).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	retryExhaustedTotal.WithLabelValues(p.Scope).Inc()
	log.Warn().
		Str("scope", p.Scope).
		Int("max_attempts", p.MaxAttempts).
		Msg("Retry attempts exhausted")

	return lastErr
}
