// Package entrez provides the NCBI Entrez eutils lookup client with
// rate-limit handling, request pacing, and error classification.
package entrez

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phl-informatics/accession-resolver/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for eutils lookups.
var (
	entrezRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entrez_requests_total",
		Help: "Total eutils requests by endpoint and status",
	}, []string{"endpoint", "status"})

	entrezRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "entrez_request_duration_seconds",
		Help:    "Eutils request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	entrezRateLimitBackoffsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entrez_rate_limit_backoffs_total",
		Help: "Total payload-level rate limit backoffs by endpoint",
	}, []string{"endpoint"})

	entrezRateLimitBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "entrez_rate_limit_backoff_seconds",
		Help:    "Backoff duration for payload-level rate limit retries",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})
)

// DefaultBaseURL is the public NCBI eutils endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// rateLimitPhrase is the literal signal eutils embeds in the response
// payload when a client exceeds its request quota. It arrives with a 200
// status and is distinct from transport-level failure.
const rateLimitPhrase = "API rate limit exceeded"

// rateLimitUnit scales the payload rate-limit backoff (2^attempt units).
// Tests override this to avoid real sleeps.
var rateLimitUnit = time.Second

// Record is one nuccore summary document, the candidate a search id
// resolves to. It is transient: produced per summary call and discarded
// after validation.
type Record struct {
	UID              string `json:"uid"`
	AccessionVersion string `json:"accessionversion"`
	Title            string `json:"title"`
}

// Config holds the lookup client configuration.
type Config struct {
	// BaseURL is the eutils root (default: DefaultBaseURL).
	BaseURL string

	// APIKey is the optional NCBI API key, sent as the api_key parameter.
	APIKey string

	// Database is the Entrez database to query (default: nuccore).
	Database string

	// RequestDelay is slept after every response to pace request volume.
	RequestDelay time.Duration

	// UserAgent identifies this client to NCBI.
	UserAgent string

	// HTTPClient overrides the transport (for testing). Timeouts are
	// enforced by the per-attempt context, not the transport.
	HTTPClient *http.Client

	// Cache is an optional summary-record cache. Nil disables caching.
	Cache *cache.Manager

	// CacheTTL bounds how long summary records stay cached.
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Database:     "nuccore",
		RequestDelay: 500 * time.Millisecond,
		UserAgent:    "accession-resolver/0.1.0",
		CacheTTL:     15 * time.Minute,
	}
}

// Client performs the two eutils lookups: search-by-term and
// summarize-by-id. Each call is a single network round trip; the only
// retry the client performs itself is the payload rate-limit backoff.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new eutils lookup client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Database == "" {
		cfg.Database = "nuccore"
	}
	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = 0
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "entrez-client").Logger(),
	}
}

// esearchResponse mirrors the subset of the esearch payload we consume.
type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esummaryResponse mirrors the subset of the esummary payload we consume.
// The result object maps each uid to its summary document.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// Search queries esearch.fcgi for a term and returns the matching record
// ids in upstream priority order.
func (c *Client) Search(ctx context.Context, term string) ([]string, error) {
	params := url.Values{
		"db":      {c.config.Database},
		"term":    {term},
		"retmode": {"json"},
	}

	body, err := c.fetchJSON(ctx, "esearch.fcgi", params, 0)
	if err != nil {
		return nil, err
	}

	var payload esearchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &APIError{
			Endpoint: "esearch.fcgi",
			Class:    ClassPayload,
			Message:  "decode esearch response",
			Err:      err,
		}
	}

	c.logger.Debug().
		Str("term", term).
		Int("ids", len(payload.ESearchResult.IDList)).
		Msg("Search completed")

	return payload.ESearchResult.IDList, nil
}

// Summarize queries esummary.fcgi for a record id and returns its summary
// document. When a cache is configured it is consulted first and updated
// after a successful network lookup.
func (c *Client) Summarize(ctx context.Context, uid string) (Record, error) {
	if rec, ok := c.cachedRecord(ctx, uid); ok {
		return rec, nil
	}

	params := url.Values{
		"db":      {c.config.Database},
		"id":      {uid},
		"retmode": {"json"},
	}

	body, err := c.fetchJSON(ctx, "esummary.fcgi", params, 0)
	if err != nil {
		return Record{}, err
	}

	var payload esummaryResponse
	if err := json.Unmarshal(body, &payload); err != nil || payload.Result == nil {
		return Record{}, &APIError{
			Endpoint: "esummary.fcgi",
			Class:    ClassPayload,
			Message:  "decode esummary response",
			Err:      err,
		}
	}

	raw, ok := payload.Result[uid]
	if !ok {
		// Uid absent from the result set: an empty candidate, not an
		// error. Validation downstream rejects it.
		return Record{UID: uid}, nil
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, &APIError{
			Endpoint: "esummary.fcgi",
			Class:    ClassPayload,
			Message:  fmt.Sprintf("decode summary document for uid %s", uid),
			Err:      err,
		}
	}
	rec.UID = uid

	c.storeRecord(ctx, uid, rec)

	return rec, nil
}

// fetchJSON performs one GET against an eutils endpoint, paces after the
// response, and handles the payload rate-limit signal by sleeping
// 2^attempt units and re-issuing the identical call. The attempt counter
// is local to this call chain and independent of the term-level retry
// counter maintained by the resolver.
func (c *Client) fetchJSON(ctx context.Context, endpoint string, params url.Values, attempt int) ([]byte, error) {
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}
	reqURL := c.config.BaseURL + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &APIError{
			Endpoint: endpoint,
			Class:    ClassPayload,
			Message:  "create request",
			Err:      err,
		}
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	entrezRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Eutils request failed")
		entrezRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			Endpoint: endpoint,
			Class:    ClassNetwork,
			Message:  "http request",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		entrezRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			Endpoint: endpoint,
			Class:    ClassNetwork,
			Message:  "read response body",
			Err:      err,
		}
	}

	entrezRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	// Pace after the response, not before the request.
	if err := sleepCtx(ctx, c.config.RequestDelay); err != nil {
		return nil, &APIError{
			Endpoint: endpoint,
			Class:    ClassNetwork,
			Message:  "request pacing interrupted",
			Err:      err,
		}
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ClassServer,
			Message:    resp.Status,
		}
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ClassPayload,
			Message:    resp.Status,
		}
	}

	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ClassPayload,
			Message:    "response is not valid JSON",
			Err:        err,
		}
	}

	if strings.Contains(probe.Error, rateLimitPhrase) {
		wait := time.Duration(1<<attempt) * rateLimitUnit

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Eutils rate limit exceeded, backing off")

		entrezRateLimitBackoffsTotal.WithLabelValues(endpoint).Inc()
		entrezRateLimitBackoffSeconds.Observe(wait.Seconds())

		if err := sleepCtx(ctx, wait); err != nil {
			return nil, &APIError{
				Endpoint: endpoint,
				Class:    ClassNetwork,
				Message:  "rate limit backoff interrupted",
				Err:      err,
			}
		}
		return c.fetchJSON(ctx, endpoint, params, attempt+1)
	}

	return body, nil
}

// cachedRecord looks up a summary record in the cache. A miss or any cache
// failure falls back to the network.
func (c *Client) cachedRecord(ctx context.Context, uid string) (Record, bool) {
	if c.config.Cache == nil {
		return Record{}, false
	}

	key := cache.Key{Database: c.config.Database, UID: uid}
	entry, err := c.config.Cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("uid", uid).Msg("Summary cache get error")
		}
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(entry.Data, &rec); err != nil {
		c.logger.Warn().Err(err).Str("uid", uid).Msg("Corrupt summary cache entry")
		return Record{}, false
	}

	c.logger.Debug().Str("uid", uid).Msg("Summary served from cache")
	return rec, true
}

// storeRecord caches a summary record, best-effort.
func (c *Client) storeRecord(ctx context.Context, uid string, rec Record) {
	if c.config.Cache == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn().Err(err).Str("uid", uid).Msg("Marshal summary cache entry")
		return
	}

	entry := cache.NewEntry(data, c.config.CacheTTL)
	key := cache.Key{Database: c.config.Database, UID: uid}
	if err := c.config.Cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("uid", uid).Msg("Summary cache set error")
	}
}

// sleepCtx sleeps for d with context cancellation support.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
