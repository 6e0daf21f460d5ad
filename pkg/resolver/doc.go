// Package resolver turns free-text sample identifiers into GenBank
// accession numbers via concurrent, retried eutils lookups.
//
// The pipeline for one batch:
//
//	Resolve -> worker pool -> per-term retry controller -> term resolution
//	        -> entrez.Client (search, then up to 10 summaries) -> validation
//
// Every input term yields exactly one entry in the returned map, either an
// accession string or nil. No error crosses the batch boundary: transient
// transport failures are retried with bounded exponential backoff and
// degrade to nil when the retry budget is exhausted; anything unexpected
// degrades to nil immediately. A global permit caps the number of lookup
// sequences in flight at ConcurrencyLimit regardless of worker count.
//
// Example usage:
//
//	client := entrez.New(entrez.DefaultConfig())
//	results := resolver.Resolve(ctx, client, terms, resolver.DefaultConfig())
package resolver
