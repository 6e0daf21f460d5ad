package resolver

import (
	"context"
	"time"

	"github.com/phl-informatics/accession-resolver/pkg/entrez"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for term-level retry behavior.
var (
	resolverTermsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_terms_total",
		Help: "Terms processed by outcome (resolved, not_found, exhausted, aborted)",
	}, []string{"outcome"})

	resolverRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_retries_total",
		Help: "Total term-level retry attempts",
	})

	resolverRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resolver_retry_backoff_seconds",
		Help:    "Backoff duration before term-level retries",
		Buckets: []float64{1, 2, 3, 5, 9, 10},
	})
)

// backoffUnit scales the term-level backoff. Tests override this to avoid
// real sleeps.
var backoffUnit = time.Second

// backoffWait computes the wait before retry attempt attempt+1:
// min(1 + 2^attempt, 10) units.
func backoffWait(attempt int) time.Duration {
	wait := 1 + (1 << attempt)
	if wait > 10 {
		wait = 10
	}
	return time.Duration(wait) * backoffUnit
}

// resolveWithRetry runs the full resolution for one term under the retry
// budget. Each attempt gets its own timeout; transient failures back off
// and retry, anything else aborts the term. The concurrency permit is
// acquired once and held across the entire retry sequence. The returned
// accession is nil for not-found, exhausted, and aborted terms alike:
// failure never propagates past this point.
func (r *Resolver) resolveWithRetry(ctx context.Context, term string) *string {
	if err := r.permit.Acquire(ctx); err != nil {
		r.logger.Error().Err(err).Str("term", term).Msg("Permit acquisition interrupted")
		resolverTermsTotal.WithLabelValues("aborted").Inc()
		return nil
	}
	defer r.permit.Release()

	for attempt := 0; attempt < r.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		accession, err := r.resolveOnce(attemptCtx, term)
		cancel()

		if err == nil {
			if accession != nil {
				resolverTermsTotal.WithLabelValues("resolved").Inc()
			} else {
				resolverTermsTotal.WithLabelValues("not_found").Inc()
			}
			return accession
		}

		if !entrez.IsTransient(err) {
			r.logger.Error().
				Err(err).
				Str("term", term).
				Int("attempt", attempt).
				Msg("Unexpected error, aborting term")
			resolverTermsTotal.WithLabelValues("aborted").Inc()
			return nil
		}

		// Last attempt failed: no point waiting.
		if attempt+1 >= r.config.MaxRetries {
			break
		}

		wait := backoffWait(attempt)
		resolverRetriesTotal.Inc()
		resolverRetryBackoffSeconds.Observe(wait.Seconds())

		r.logger.Warn().
			Err(err).
			Str("term", term).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Transient failure, retrying after backoff")

		select {
		case <-ctx.Done():
			r.logger.Error().Err(ctx.Err()).Str("term", term).Msg("Batch context done during backoff")
			resolverTermsTotal.WithLabelValues("aborted").Inc()
			return nil
		case <-time.After(wait):
		}
	}

	r.logger.Error().
		Str("term", term).
		Int("max_retries", r.config.MaxRetries).
		Msg("Retries exhausted, term degrades to null")
	resolverTermsTotal.WithLabelValues("exhausted").Inc()

	return nil
}
