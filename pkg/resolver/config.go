package resolver

import (
	"time"
)

// ConcurrencyLimit is the global cap on simultaneously in-flight lookup
// sequences. It is fixed and independent of Workers: workers drain the
// term queue, the permit gates actual network concurrency.
const ConcurrencyLimit = 3

// maxSummaryLookups bounds the fan-out of summary calls per term.
const maxSummaryLookups = 10

// Config holds the batch tunables. Created once per batch invocation,
// immutable, shared read-only by all workers.
type Config struct {
	// APIKey is the optional NCBI credential. It is consumed by the
	// lookup client; whoever constructs the client copies it there.
	APIKey string

	// Timeout bounds each resolution attempt, not the whole term.
	Timeout time.Duration

	// Workers is the number of concurrent queue-draining workers.
	Workers int

	// MaxRetries is the total attempt budget per term.
	MaxRetries int

	// RequestDelay is the pacing sleep applied after each remote
	// response. Like APIKey it is consumed by the lookup client.
	RequestDelay time.Duration
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		Workers:      5,
		MaxRetries:   5,
		RequestDelay: 500 * time.Millisecond,
	}
}

// normalize clamps nonsensical values to usable ones.
func (c Config) normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RequestDelay < 0 {
		c.RequestDelay = 0
	}
	return c
}
