package resolver

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Resolve resolves a batch of terms and returns one entry per distinct
// trimmed term: the accession, or nil when nothing validated. This is the
// batch entry point; it builds the shared state, runs the pool to
// completion, and never returns an error.
func Resolve(ctx context.Context, lookup Lookup, terms []string, cfg Config) map[string]*string {
	return New(lookup, cfg).ResolveAll(ctx, terms)
}

// ResolveAll runs the worker pool over the term queue and aggregates
// outcomes. Terms are claimed in queue order; completion order is
// nondeterministic. Duplicate terms collapse to one entry, last writer
// wins.
func (r *Resolver) ResolveAll(ctx context.Context, terms []string) map[string]*string {
	start := time.Now()

	// Pre-load the queue with all terms, then close it: the closed
	// channel is the completion sentinel for every worker. A term is
	// claimed by exactly one worker and never re-queued; retries happen
	// inside the claim.
	queue := make(chan string, len(terms))
	for _, term := range terms {
		queue <- strings.TrimSpace(term)
	}
	close(queue)

	results := make(map[string]*string, len(terms))
	var mu sync.Mutex

	r.logger.Info().
		Int("terms", len(terms)).
		Int("workers", r.config.Workers).
		Int("concurrency_limit", r.permit.Capacity()).
		Msg("Starting batch resolution")

	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.worker(ctx, workerID, queue, results, &mu)
		}(i)
	}
	wg.Wait()

	r.logger.Info().
		Int("terms", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Batch resolution complete")

	return results
}

// worker drains the queue until it closes, writing exactly one outcome
// per claimed term.
func (r *Resolver) worker(ctx context.Context, workerID int, queue <-chan string, results map[string]*string, mu *sync.Mutex) {
	processed := 0

	for term := range queue {
		accession := r.resolveTerm(ctx, term)

		mu.Lock()
		results[term] = accession
		mu.Unlock()

		processed++
	}

	if processed > 0 {
		r.logger.Debug().
			Int("worker_id", workerID).
			Int("terms_processed", processed).
			Msg("Worker completed")
	}
}

// resolveTerm isolates a single term's resolution. A panic while
// resolving records a null outcome for that term and the worker moves on;
// sibling workers are unaffected.
func (r *Resolver) resolveTerm(ctx context.Context, term string) (accession *string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("term", term).
				Interface("panic", rec).
				Msg("Worker panic recovered, term degrades to null")
			accession = nil
		}
	}()

	return r.resolveWithRetry(ctx, term)
}
