// Package ratelimit bounds the number of remote lookup sequences in
// flight. Eutils tolerates only a handful of simultaneous requests per
// client before answering with rate-limit payloads, so batch resolution
// holds a global permit around each term's full lookup sequence,
// decoupled from the worker count that drains the term queue.
package ratelimit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookupsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "resolver_lookups_in_flight",
	Help: "Number of term lookup sequences currently holding a permit",
})

// Permit is a counting semaphore capping concurrent lookup sequences.
// It is constructed once per batch and passed by reference to every
// worker; there is no ambient global permit state.
type Permit struct {
	slots chan struct{}
}

// NewPermit creates a permit with the given capacity.
func NewPermit(capacity int) *Permit {
	if capacity <= 0 {
		capacity = 1
	}
	return &Permit{
		slots: make(chan struct{}, capacity),
	}
}

// Acquire blocks until a slot is free or the context is done.
func (p *Permit) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		lookupsInFlight.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (p *Permit) Release() {
	<-p.slots
	lookupsInFlight.Dec()
}

// Capacity returns the permit's fixed capacity.
func (p *Permit) Capacity() int {
	return cap(p.slots)
}

// InFlight returns the number of slots currently held.
func (p *Permit) InFlight() int {
	return len(p.slots)
}
