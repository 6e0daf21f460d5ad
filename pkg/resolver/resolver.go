package resolver

import (
	"context"

	"github.com/phl-informatics/accession-resolver/pkg/entrez"
	"github.com/phl-informatics/accession-resolver/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Lookup is the remote search interface the resolver depends on.
// *entrez.Client implements it; tests substitute fakes.
type Lookup interface {
	// Search returns record ids for a term in upstream priority order.
	Search(ctx context.Context, term string) ([]string, error)

	// Summarize returns the candidate record for one id.
	Summarize(ctx context.Context, uid string) (entrez.Record, error)
}

// Resolver resolves batches of terms against a Lookup under a shared
// concurrency permit.
type Resolver struct {
	lookup Lookup
	config Config
	permit *ratelimit.Permit
	logger zerolog.Logger
}

// New creates a Resolver with its own permit.
func New(lookup Lookup, cfg Config) *Resolver {
	return &Resolver{
		lookup: lookup,
		config: cfg.normalize(),
		permit: ratelimit.NewPermit(ConcurrencyLimit),
		logger: log.With().Str("component", "resolver").Logger(),
	}
}

// resolveOnce runs a single resolution attempt for one term: search, then
// summarize the first candidates in order until one validates. A nil
// accession with a nil error is a legitimate not-found outcome. Transport
// errors propagate to the retry controller untouched.
func (r *Resolver) resolveOnce(ctx context.Context, term string) (*string, error) {
	ids, err := r.lookup.Search(ctx, term)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxSummaryLookups {
		ids = ids[:maxSummaryLookups]
	}

	for _, uid := range ids {
		rec, err := r.lookup.Summarize(ctx, uid)
		if err != nil {
			return nil, err
		}

		if Matches(rec, term) {
			accession := rec.AccessionVersion
			r.logger.Debug().
				Str("term", term).
				Str("uid", uid).
				Str("accession", accession).
				Msg("Candidate validated")
			return &accession, nil
		}
	}

	return nil, nil
}
